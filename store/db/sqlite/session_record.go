package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/yosefsha/myassistant/store"
)

func (d *DB) UpsertSessionRecord(ctx context.Context, upsert *store.SessionRecord) error {
	stmt := `INSERT INTO routing_session (id, payload, active_specialist, turn_count, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			active_specialist = excluded.active_specialist,
			turn_count = excluded.turn_count,
			updated_ts = excluded.updated_ts`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ID, upsert.Payload, upsert.ActiveSpecialist, upsert.TurnCount, upsert.CreatedTs, upsert.UpdatedTs,
	); err != nil {
		return errors.Wrapf(err, "failed to upsert session record %s", upsert.ID)
	}
	return nil
}

func (d *DB) ListSessionRecords(ctx context.Context, find *store.FindSessionRecord) ([]*store.SessionRecord, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UpdatedAfter; v != nil {
		where, args = append(where, "updated_ts > ?"), append(args, *v)
	}

	query := `SELECT id, payload, active_specialist, turn_count, created_ts, updated_ts
		FROM routing_session
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id ASC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list session records")
	}
	defer rows.Close()

	list := []*store.SessionRecord{}
	for rows.Next() {
		var r store.SessionRecord
		if err := rows.Scan(&r.ID, &r.Payload, &r.ActiveSpecialist, &r.TurnCount, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan session record")
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating session records")
	}
	return list, nil
}

func (d *DB) DeleteSessionRecord(ctx context.Context, delete *store.DeleteSessionRecord) error {
	where, args := []string{}, []any{}
	if delete.ID != "" {
		where, args = append(where, "id = ?"), append(args, delete.ID)
	}
	if v := delete.UpdatedBefore; v != nil {
		where, args = append(where, "updated_ts <= ?"), append(args, *v)
	}
	if len(where) == 0 {
		return errors.New("delete session record: no condition given")
	}

	stmt := "DELETE FROM routing_session WHERE " + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrapf(err, "failed to delete session record %s", delete.ID)
	}
	return nil
}
