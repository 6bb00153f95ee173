package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yosefsha/myassistant/store"
)

func (d *DB) UpsertSessionRecord(ctx context.Context, upsert *store.SessionRecord) error {
	stmt := `INSERT INTO routing_session (id, payload, active_specialist, turn_count, created_ts, updated_ts)
		VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` +
		placeholder(4) + `, ` + placeholder(5) + `, ` + placeholder(6) + `)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			active_specialist = EXCLUDED.active_specialist,
			turn_count = EXCLUDED.turn_count,
			updated_ts = EXCLUDED.updated_ts`

	_, err := d.db.ExecContext(ctx, stmt,
		upsert.ID, upsert.Payload, upsert.ActiveSpecialist, upsert.TurnCount, upsert.CreatedTs, upsert.UpdatedTs)
	if err != nil {
		return fmt.Errorf("failed to upsert session record %s: %w", upsert.ID, err)
	}
	return nil
}

func (d *DB) ListSessionRecords(ctx context.Context, find *store.FindSessionRecord) ([]*store.SessionRecord, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UpdatedAfter; v != nil {
		where, args = append(where, "updated_ts > "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, payload, active_specialist, turn_count, created_ts, updated_ts
		FROM routing_session
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	list := []*store.SessionRecord{}
	for rows.Next() {
		var r store.SessionRecord
		if err := rows.Scan(&r.ID, &r.Payload, &r.ActiveSpecialist, &r.TurnCount, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session record rows: %w", err)
	}
	return list, nil
}

func (d *DB) DeleteSessionRecord(ctx context.Context, delete *store.DeleteSessionRecord) error {
	where, args := []string{}, []any{}
	if delete.ID != "" {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, delete.ID)
	}
	if v := delete.UpdatedBefore; v != nil {
		where, args = append(where, "updated_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(where) == 0 {
		return errors.New("delete session record: no condition given")
	}

	stmt := "DELETE FROM routing_session WHERE " + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete session record %s: %w", delete.ID, err)
	}
	return nil
}
