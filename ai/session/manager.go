package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yosefsha/myassistant/ai/specialist"
)

const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultCleanupInterval = 1 * time.Minute
)

// Config configures a Manager.
type Config struct {
	IdleTimeout     time.Duration // Sessions idle longer than this are expired (default: 30m)
	CleanupInterval time.Duration // Interval between idle sweeps (default: 1m)
	Persister       *Persister    // Optional snapshot persistence
	Logger          *slog.Logger
	Now             func() time.Time // Clock override for tests
}

// entry guards one session. lock serializes whole routing requests; mu
// guards the state itself so reads never wait on an in-flight request.
type entry struct {
	lock    chan struct{}
	mu      sync.Mutex
	sess    *Session
	expired bool
}

// Manager owns all live sessions. The map lock is held only for lookups and
// inserts; per-session work happens under the session's own locks.
type Manager struct {
	sessions map[string]*entry
	mu       sync.RWMutex

	idleTimeout time.Duration
	persister   *Persister
	logger      *slog.Logger
	now         func() time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager and starts its idle cleanup loop.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{
		sessions:    make(map[string]*entry),
		idleTimeout: cfg.IdleTimeout,
		persister:   cfg.Persister,
		logger:      cfg.Logger,
		now:         cfg.Now,
		done:        make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop(cfg.CleanupInterval)

	return m
}

func newEntry(s *Session) *entry {
	return &entry{lock: make(chan struct{}, 1), sess: s}
}

func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return e, ok
}

// CreateOrGet returns the session with id, creating an empty one if absent.
// Calling it for an existing id returns the current state unchanged.
func (m *Manager) CreateOrGet(id string) *Session {
	if e, ok := m.lookup(id); ok {
		if s, err := e.snapshot(); err == nil {
			return s
		}
	}

	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok || e.isExpired() {
		now := m.now()
		e = newEntry(&Session{
			ID:               id,
			CreatedAt:        now,
			Turns:            []Turn{},
			ActiveSpecialist: specialist.General,
			LastActivity:     now,
		})
		m.sessions[id] = e
		m.logger.Debug("session created", "session_id", id)
	}
	m.mu.Unlock()

	s, _ := e.snapshot()
	return s
}

// Get returns a snapshot of the session.
func (m *Manager) Get(id string) (*Session, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.snapshot()
}

// Acquire blocks until the caller holds the session's request lock or ctx is
// done. The returned release func is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, id string) (func(), error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() { once.Do(func() { <-e.lock }) }

	if e.isExpired() {
		release()
		return nil, ErrSessionNotFound
	}
	return release, nil
}

// AppendTurn appends turn to the session, assigning its index. The switch
// count grows when the turn's specialist differs from a named active
// specialist. Returns the updated snapshot.
func (m *Manager) AppendTurn(id string, turn Turn) (*Session, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := m.now()
	if turn.Specialist == "" {
		turn.Specialist = specialist.General
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}

	e.mu.Lock()
	if e.expired {
		e.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	s := e.sess
	turn.Index = len(s.Turns) + 1
	if turn.Specialist != s.ActiveSpecialist && !s.ActiveSpecialist.IsGeneral() {
		s.SwitchCount++
	}
	s.ActiveSpecialist = turn.Specialist
	s.Turns = append(s.Turns, turn)
	s.LastActivity = now
	snap := s.clone()
	// Enqueue under e.mu so a concurrent retire cannot slip its delete in
	// ahead of this save.
	if m.persister != nil {
		m.persister.Save(snap)
	}
	e.mu.Unlock()

	return snap, nil
}

// RecentTurns returns up to n most recent turns, oldest first.
func (m *Manager) RecentTurns(id string, n int) ([]Turn, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expired {
		return nil, ErrSessionNotFound
	}
	if n <= 0 {
		return []Turn{}, nil
	}
	turns := e.sess.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Stats returns the analytics summary for a session.
func (m *Manager) Stats(id string) (*Stats, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expired {
		return nil, ErrSessionNotFound
	}
	return e.sess.stats(), nil
}

// Expire terminates a session and frees its state.
func (m *Manager) Expire(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.retire(id, e, "terminated")
	return nil
}

func (m *Manager) retire(id string, e *entry, reason string) {
	e.mu.Lock()
	e.expired = true
	if m.persister != nil {
		m.persister.Delete(id)
	}
	e.mu.Unlock()

	m.logger.Info("session expired", "session_id", id, "reason", reason)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Restore loads persisted sessions that are still inside the idle window
// and purges the records that fell out of it. Sessions already live are left
// untouched. Returns the number restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.persister == nil {
		return 0, nil
	}

	cutoff := m.now().Add(-m.idleTimeout)
	if err := m.persister.PurgeStale(ctx, cutoff); err != nil {
		m.logger.Warn("failed to purge stale session records", "error", err)
	}
	list, err := m.persister.LoadActive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored := 0
	for _, s := range list {
		if _, ok := m.sessions[s.ID]; ok {
			continue
		}
		if s.Turns == nil {
			s.Turns = []Turn{}
		}
		if s.ActiveSpecialist == "" {
			s.ActiveSpecialist = specialist.General
		}
		m.sessions[s.ID] = newEntry(s)
		restored++
	}
	m.logger.Info("sessions restored", "count", restored)
	return restored, nil
}

// ExpireIdle expires every session idle longer than the idle timeout and not
// currently held by Acquire. Returns the number expired.
func (m *Manager) ExpireIdle() int {
	now := m.now()

	m.mu.Lock()
	var victims []string
	var entries []*entry
	for id, e := range m.sessions {
		// Skip sessions with a request in flight.
		select {
		case e.lock <- struct{}{}:
		default:
			continue
		}
		e.mu.Lock()
		idle := now.Sub(e.sess.LastActivity)
		e.mu.Unlock()
		if idle > m.idleTimeout {
			delete(m.sessions, id)
			victims = append(victims, id)
			entries = append(entries, e)
			continue
		}
		<-e.lock
	}
	m.mu.Unlock()

	for i, id := range victims {
		m.retire(id, entries[i], "idle")
		<-entries[i].lock
	}
	return len(victims)
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.ExpireIdle(); n > 0 {
				m.logger.Debug("idle sessions expired", "count", n, "remaining", m.Count())
			}
		case <-m.done:
			return
		}
	}
}

// Shutdown stops the cleanup loop and flushes pending persistence.
// Live sessions stay in the store so Restore can pick them up.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		if m.persister != nil {
			if err := m.persister.Close(persistTimeout); err != nil {
				m.logger.Error("session persister shutdown", "error", err)
			}
		}
	})
}

func (e *entry) snapshot() (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.expired {
		return nil, ErrSessionNotFound
	}
	return e.sess.clone(), nil
}

func (e *entry) isExpired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expired
}
