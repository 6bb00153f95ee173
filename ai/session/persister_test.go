package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yosefsha/myassistant/ai/specialist"
	"github.com/yosefsha/myassistant/store"
)

type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*store.SessionRecord
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[string]*store.SessionRecord)}
}

func (s *memRecordStore) UpsertSessionRecord(_ context.Context, upsert *store.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *upsert
	s.records[r.ID] = &r
	return nil
}

func (s *memRecordStore) ListSessionRecords(_ context.Context, find *store.FindSessionRecord) ([]*store.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.SessionRecord
	for _, r := range s.records {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.UpdatedAfter != nil && r.UpdatedTs <= *find.UpdatedAfter {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memRecordStore) DeleteSessionRecord(_ context.Context, del *store.DeleteSessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if del.ID == "" && del.UpdatedBefore == nil {
		return errors.New("no condition")
	}
	for id, r := range s.records {
		if del.ID != "" && id != del.ID {
			continue
		}
		if del.UpdatedBefore != nil && r.UpdatedTs > *del.UpdatedBefore {
			continue
		}
		delete(s.records, id)
	}
	return nil
}

func (s *memRecordStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memRecordStore) get(id string) (*store.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

func TestPersister_SavesAndDeletes(t *testing.T) {
	rs := newMemRecordStore()
	m := NewManager(Config{Persister: NewPersister(rs, 16, nil), CleanupInterval: time.Hour})
	defer m.Shutdown()

	m.CreateOrGet("s1")
	_, err := m.AppendTurn("s1", turn("technical"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, ok := rs.get("s1")
		return ok && r.TurnCount == 1
	}, time.Second, 5*time.Millisecond)

	r, _ := rs.get("s1")
	assert.Equal(t, "technical", r.ActiveSpecialist)
	assert.Contains(t, string(r.Payload), `"specialist":"technical"`)

	require.NoError(t, m.Expire("s1"))
	require.Eventually(t, func() bool {
		_, ok := rs.get("s1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestManager_RestoreWithinIdleWindow(t *testing.T) {
	rs := newMemRecordStore()
	clock := newFakeClock()

	first := NewManager(Config{
		Persister:       NewPersister(rs, 16, nil),
		IdleTimeout:     10 * time.Minute,
		CleanupInterval: time.Hour,
		Now:             clock.Now,
	})
	first.CreateOrGet("stale")
	_, err := first.AppendTurn("stale", turn("financial"))
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	first.CreateOrGet("live")
	_, err = first.AppendTurn("live", turn("technical"))
	require.NoError(t, err)
	_, err = first.AppendTurn("live", turn("creative"))
	require.NoError(t, err)

	// Shutdown drains the persister queue.
	first.Shutdown()

	clock.Advance(5 * time.Minute)
	second := NewManager(Config{
		Persister:       NewPersister(rs, 16, nil),
		IdleTimeout:     10 * time.Minute,
		CleanupInterval: time.Hour,
		Now:             clock.Now,
	})
	defer second.Shutdown()

	n, err := second.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := second.Get("live")
	require.NoError(t, err)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, specialist.ID("creative"), s.ActiveSpecialist)
	assert.Equal(t, 1, s.SwitchCount)

	_, err = second.Get("stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, ok := rs.get("stale")
	assert.False(t, ok, "stale record is purged on restore")
	_, ok = rs.get("live")
	assert.True(t, ok)

	// Restored sessions continue their index sequence.
	s, err = second.AppendTurn("live", turn("creative"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Turns[2].Index)
}

func TestPersister_PurgeStale(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		cutoff time.Time
		want   []string
	}{
		{"before everything", base.Add(-time.Hour), []string{"a", "b", "c"}},
		{"boundary is inclusive", base.Add(time.Minute), []string{"c"}},
		{"after everything", base.Add(time.Hour), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := newMemRecordStore()
			for i, id := range []string{"a", "b", "c"} {
				ts := base.Add(time.Duration(i) * time.Minute).Unix()
				require.NoError(t, rs.UpsertSessionRecord(ctx, &store.SessionRecord{ID: id, UpdatedTs: ts}))
			}
			p := NewPersister(rs, 1, nil)
			defer func() { _ = p.Close(time.Second) }()

			require.NoError(t, p.PurgeStale(ctx, tt.cutoff))
			list, err := rs.ListSessionRecords(ctx, &store.FindSessionRecord{})
			require.NoError(t, err)
			var got []string
			for _, r := range list {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_ExpireRacingAppendLeavesNoRecord(t *testing.T) {
	rs := newMemRecordStore()
	m := NewManager(Config{Persister: NewPersister(rs, 4096, nil), CleanupInterval: time.Hour})

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		m.CreateOrGet(id)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.AppendTurn(id, turn("technical"))
		}()
		go func() {
			defer wg.Done()
			_ = m.Expire(id)
		}()
	}
	wg.Wait()

	// Shutdown drains the persister queue.
	m.Shutdown()
	assert.Zero(t, rs.len(), "a save must never be applied after the session's delete")
}

func TestPersister_CloseRejectsNewJobs(t *testing.T) {
	p := NewPersister(newMemRecordStore(), 1, nil)
	require.NoError(t, p.Close(time.Second))
	assert.False(t, p.Save(&Session{ID: "x"}))
	assert.False(t, p.Delete("x"))
}
