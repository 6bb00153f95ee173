package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yosefsha/myassistant/store"
)

// RecordStore is the persistence surface the Persister needs. *store.Store
// satisfies it.
type RecordStore interface {
	UpsertSessionRecord(ctx context.Context, upsert *store.SessionRecord) error
	ListSessionRecords(ctx context.Context, find *store.FindSessionRecord) ([]*store.SessionRecord, error)
	DeleteSessionRecord(ctx context.Context, delete *store.DeleteSessionRecord) error
}

const persistTimeout = 5 * time.Second

type persistJob struct {
	snapshot *Session // save when non-nil
	deleteID string   // delete when non-empty
}

// Persister writes session snapshots to a RecordStore from a background
// worker so that routing never waits on the database. Jobs are applied in
// enqueue order.
type Persister struct {
	store  RecordStore
	queue  chan persistJob
	wg     sync.WaitGroup
	logger *slog.Logger
	stopCh chan struct{}
	once   sync.Once
}

// NewPersister creates a persister and starts its worker.
func NewPersister(rs RecordStore, queueSize int, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &Persister{
		store:  rs,
		queue:  make(chan persistJob, queueSize),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.processQueue()
	return p
}

// Save queues a snapshot for upsert. Returns false if the queue is full.
func (p *Persister) Save(s *Session) bool {
	return p.enqueue(persistJob{snapshot: s})
}

// Delete queues removal of a session record. Returns false if the queue is full.
func (p *Persister) Delete(id string) bool {
	return p.enqueue(persistJob{deleteID: id})
}

func (p *Persister) enqueue(job persistJob) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}

	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn("Persister: queue full, dropping session job",
			"session_id", job.sessionID(),
			"queue_size", len(p.queue))
		return false
	}
}

func (j persistJob) sessionID() string {
	if j.snapshot != nil {
		return j.snapshot.ID
	}
	return j.deleteID
}

func (p *Persister) processQueue() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.queue:
			p.apply(job)
		case <-p.stopCh:
			p.drainQueue()
			return
		}
	}
}

func (p *Persister) apply(job persistJob) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if job.snapshot != nil {
		err = p.save(ctx, job.snapshot)
	} else {
		err = p.store.DeleteSessionRecord(ctx, &store.DeleteSessionRecord{ID: job.deleteID})
	}
	if err != nil {
		p.logger.Error("Persister: failed to persist session",
			"session_id", job.sessionID(),
			"error", err)
		return false
	}
	return true
}

func (p *Persister) save(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return p.store.UpsertSessionRecord(ctx, &store.SessionRecord{
		ID:               s.ID,
		Payload:          payload,
		ActiveSpecialist: s.ActiveSpecialist.String(),
		TurnCount:        len(s.Turns),
		CreatedTs:        s.CreatedAt.Unix(),
		UpdatedTs:        s.LastActivity.Unix(),
	})
}

// drainQueue applies whatever is still queued at shutdown.
func (p *Persister) drainQueue() {
	saved, lost := 0, 0
	for {
		select {
		case job := <-p.queue:
			if p.apply(job) {
				saved++
			} else {
				lost++
			}
		default:
			if lost > 0 {
				p.logger.Error("Persister: shutdown complete with data loss", "saved", saved, "lost", lost)
			}
			return
		}
	}
}

// LoadActive decodes every stored session updated after since.
func (p *Persister) LoadActive(ctx context.Context, since time.Time) ([]*Session, error) {
	after := since.Unix()
	records, err := p.store.ListSessionRecords(ctx, &store.FindSessionRecord{UpdatedAfter: &after})
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}

	sessions := make([]*Session, 0, len(records))
	for _, r := range records {
		var s Session
		if err := json.Unmarshal(r.Payload, &s); err != nil {
			p.logger.Warn("Persister: skipping undecodable session record", "session_id", r.ID, "error", err)
			continue
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

// PurgeStale deletes every stored session last updated at or before cutoff,
// the complement of what LoadActive returns for the same cutoff.
func (p *Persister) PurgeStale(ctx context.Context, cutoff time.Time) error {
	before := cutoff.Unix()
	if err := p.store.DeleteSessionRecord(ctx, &store.DeleteSessionRecord{UpdatedBefore: &before}); err != nil {
		return fmt.Errorf("purge stale session records: %w", err)
	}
	return nil
}

// Close stops accepting jobs, drains the queue and waits up to timeout.
func (p *Persister) Close(timeout time.Duration) error {
	p.once.Do(func() {
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("persister shutdown timed out after %s", timeout)
	}
}
