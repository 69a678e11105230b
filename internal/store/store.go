// Package store provides record storage backends for citabot.
//
// It includes an in-memory repository plus SQLite and PostgreSQL backends for
// durable appointment and conversation archival. The backend is selected from
// the DSN at startup.
package store

import (
	"sort"
	"strings"
	"sync"

	"citabot/internal/models"
)

// Repository is the persistence abstraction for appointments and
// conversation summaries. Saves are upserts keyed by id.
type Repository interface {
	SaveAppointment(a models.Appointment) error
	GetAppointment(id string) (*models.Appointment, error)
	ListAppointments() ([]models.Appointment, error)
	SaveConversation(c models.ConversationSummary) error
	ListConversations() ([]models.ConversationSummary, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets a file path DSN for the SQLite backend.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths are
// assumed to be SQLite databases.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryRepository keeps records in process memory. It is the default
// backend when no DSN is configured.
type InMemoryRepository struct {
	mu            sync.RWMutex
	appointments  map[string]models.Appointment
	conversations map[string]models.ConversationSummary
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments:  make(map[string]models.Appointment),
		conversations: make(map[string]models.ConversationSummary),
	}
}

func (r *InMemoryRepository) SaveAppointment(a models.Appointment) error {
	r.mu.Lock()
	r.appointments[a.ID] = a
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) GetAppointment(id string) (*models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *InMemoryRepository) ListAppointments() ([]models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Appointment, 0, len(r.appointments))
	for _, a := range r.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) SaveConversation(c models.ConversationSummary) error {
	r.mu.Lock()
	r.conversations[c.SessionID] = c
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) ListConversations() ([]models.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ConversationSummary, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *InMemoryRepository) Close() error { return nil }
