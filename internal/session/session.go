// Package session owns the in-memory session population: lazy creation,
// per-session locking, and the periodic expiry sweep.
package session

import (
	"log/slog"
	"sync"
	"time"

	"citabot/internal/i18n"
	"citabot/internal/models"
)

// DefaultTimeout is the inactivity window after which a session expires.
const DefaultTimeout = 30 * time.Minute

// entry pairs a session with its own lock. Messages for one session are
// handled strictly one at a time; messages for different sessions run
// concurrently.
type entry struct {
	mu      sync.Mutex
	session *models.Session
}

// Store is a concurrency-safe keyed map of active sessions.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	timeout time.Duration
}

// Opts holds configuration options for the session store.
type Opts struct {
	Timeout time.Duration
}

// Option defines a configuration option for the session store.
type Option func(*Opts)

// WithTimeout sets the inactivity timeout for sessions.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("Store.NewStore: creating session store", "timeout", cfg.Timeout)
	return &Store{
		entries: make(map[string]*entry),
		timeout: cfg.Timeout,
	}
}

// Timeout returns the configured inactivity timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Get returns a snapshot of the session, or nil when absent and create is
// false. Newly created sessions start in INIT with the default language.
// The second return value reports whether the session was created by this call.
func (s *Store) Get(id string, create bool) (*models.Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		e.mu.Lock()
		snapshot := cloneSession(e.session)
		e.mu.Unlock()
		return snapshot, false
	}
	if !create {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return cloneSession(e.session), false
	}
	now := time.Now()
	sess := &models.Session{
		ID:           id,
		State:        models.StateInit,
		Language:     i18n.DefaultLanguage,
		StartTime:    now,
		LastActivity: now,
	}
	s.entries[id] = &entry{session: sess}
	slog.Debug("Store.Get: session created", "sessionID", id)
	return cloneSession(sess), true
}

// WithLock runs fn with exclusive access to the live session record. The
// session is created if missing. All mutation from the conversation engine
// goes through here, which serializes concurrent messages for one session id.
func (s *Store) WithLock(id string, fn func(sess *models.Session) error) error {
	if id == "" {
		return models.ErrEmptySessionID
	}
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		now := time.Now()
		e = &entry{session: &models.Session{
			ID:           id,
			State:        models.StateInit,
			Language:     i18n.DefaultLanguage,
			StartTime:    now,
			LastActivity: now,
		}}
		s.entries[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// Remove evicts a session from the store.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Sweep evicts every session whose inactivity exceeds the timeout and returns
// snapshots of the evicted sessions. Calling it twice with no intervening
// activity removes nothing on the second call.
func (s *Store) Sweep(now time.Time) []*models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*models.Session
	for id, e := range s.entries {
		e.mu.Lock()
		inactive := now.Sub(e.session.LastActivity)
		if inactive > s.timeout {
			expired = append(expired, cloneSession(e.session))
			delete(s.entries, id)
			slog.Info("Store.Sweep: session expired", "sessionID", id, "inactive", inactive)
		}
		e.mu.Unlock()
	}
	return expired
}

// Stats aggregates the current session population by state and language.
func (s *Store) Stats() models.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.SessionStats{
		ByState:    make(map[models.SessionState]int),
		ByLanguage: make(map[string]int),
	}
	for _, e := range s.entries {
		e.mu.Lock()
		sess := e.session
		if sess.Completed {
			stats.Completed++
		} else {
			stats.Active++
		}
		stats.ByState[sess.State]++
		stats.ByLanguage[sess.Language]++
		e.mu.Unlock()
	}
	return stats
}

// cloneSession deep-copies a session so callers cannot mutate store state
// outside WithLock.
func cloneSession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = append([]models.HistoryEntry(nil), s.History...)
	cp.Context.AvailableSlots = append([]models.Slot(nil), s.Context.AvailableSlots...)
	if s.Context.SelectedSlot != nil {
		slot := *s.Context.SelectedSlot
		cp.Context.SelectedSlot = &slot
	}
	return &cp
}
