// Package datastore owns the appointment and conversation-summary collections
// and their spreadsheet mirror.
//
// Every mutating call persists the full workbook before returning
// (write-through); persistence failures are reported through the event
// callback and never roll back the in-memory effect. All writes are
// serialized behind one mutex.
package datastore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"citabot/internal/models"
	"citabot/internal/store"
	"citabot/internal/util"
)

// Default file locations, relative to the state directory.
const (
	DefaultFileName  = "citas.xlsx"
	DefaultBackupDir = "backups"
)

// Manager maintains the in-memory collections and the file-backed mirror.
type Manager struct {
	mu            sync.Mutex
	repo          store.Repository
	appointments  map[string]models.Appointment
	conversations map[string]models.ConversationSummary
	filePath      string
	backupDir     string
	loc           *time.Location
	notify        func(models.Event)
}

// Opts holds configuration options for the data manager.
type Opts struct {
	Repository store.Repository
	FilePath   string
	BackupDir  string
	Location   *time.Location
	Notify     func(models.Event)
}

// Option defines a configuration option for the data manager.
type Option func(*Opts)

// WithRepository sets the archival repository backend.
func WithRepository(r store.Repository) Option {
	return func(o *Opts) { o.Repository = r }
}

// WithFilePath sets the workbook file path.
func WithFilePath(p string) Option {
	return func(o *Opts) { o.FilePath = p }
}

// WithBackupDir sets the directory for timestamped workbook copies.
func WithBackupDir(d string) Option {
	return func(o *Opts) { o.BackupDir = d }
}

// WithLocation sets the timezone used for rendered timestamps.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// WithNotify sets the event callback (dataSaved, backupCreated, error).
func WithNotify(fn func(models.Event)) Option {
	return func(o *Opts) { o.Notify = fn }
}

// NewManager creates a data manager and loads any previously archived records
// from the repository. Load failures fall back to a fresh empty store.
func NewManager(opts ...Option) (*Manager, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Repository == nil {
		cfg.Repository = store.NewInMemoryRepository()
	}
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultFileName
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.FilePath), DefaultBackupDir)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	m := &Manager{
		repo:          cfg.Repository,
		appointments:  make(map[string]models.Appointment),
		conversations: make(map[string]models.ConversationSummary),
		filePath:      cfg.FilePath,
		backupDir:     cfg.BackupDir,
		loc:           cfg.Location,
		notify:        cfg.Notify,
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m.load()
	slog.Info("Manager.NewManager: data manager initialized",
		"appointments", len(m.appointments), "conversations", len(m.conversations), "file", m.filePath)
	ev := models.NewEvent(models.EventInitialized, "")
	ev.Detail = m.filePath
	m.emit(ev)
	return m, nil
}

// load restores the collections from the repository. Any failure leaves the
// manager with a fresh empty store, which is the normal first-run path.
func (m *Manager) load() {
	appts, err := m.repo.ListAppointments()
	if err != nil {
		slog.Warn("Manager.load: could not load appointments, starting fresh", "error", err)
		return
	}
	for _, a := range appts {
		m.appointments[a.ID] = a
	}
	convs, err := m.repo.ListConversations()
	if err != nil {
		slog.Warn("Manager.load: could not load conversations, starting fresh", "error", err)
		return
	}
	for _, c := range convs {
		m.conversations[c.SessionID] = c
	}
}

// emit invokes the event callback when one is configured.
func (m *Manager) emit(ev models.Event) {
	if m.notify != nil {
		m.notify(ev)
	}
}

func (m *Manager) emitError(op string, err error) {
	slog.Error("Manager: operation error", "op", op, "error", err)
	ev := models.NewEvent(models.EventError, "")
	ev.Detail = fmt.Sprintf("%s: %v", op, err)
	m.emit(ev)
}

// CreateAppointment inserts a new appointment built from slot and assignment
// data and persists the full collection. It fails when slot times are absent.
func (m *Manager) CreateAppointment(a models.Appointment) (models.Appointment, error) {
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return models.Appointment{}, models.ErrMissingSlotData
	}
	if a.ID == "" {
		a.ID = util.GenerateAppointmentID(time.Now(), m.loc)
	}
	if a.Status == "" {
		a.Status = models.AppointmentStatusPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.appointments[a.ID] = a
	m.persistLocked()
	m.mu.Unlock()

	m.archive(a)
	slog.Info("Manager.CreateAppointment: appointment stored", "id", a.ID, "technician", a.Technician)
	return a, nil
}

// UpdateAppointment merges the patch onto an existing record, stamps
// UpdatedAt and persists. Unknown ids yield a not-found error.
func (m *Manager) UpdateAppointment(id string, patch models.AppointmentPatch) (models.Appointment, error) {
	m.mu.Lock()
	a, ok := m.appointments[id]
	if !ok {
		m.mu.Unlock()
		return models.Appointment{}, fmt.Errorf("%w: %s", models.ErrAppointmentNotFound, id)
	}
	applyPatch(&a, patch)
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	m.persistLocked()
	m.mu.Unlock()

	m.archive(a)
	slog.Info("Manager.UpdateAppointment: appointment updated", "id", id, "status", a.Status)
	return a, nil
}

// CancelAppointment is a convenience update setting status=cancelled with an
// audit trail. Cancellation is terminal; the record is never deleted.
func (m *Manager) CancelAppointment(id, reason string) (models.Appointment, error) {
	status := models.AppointmentStatusCancelled
	now := time.Now()
	return m.UpdateAppointment(id, models.AppointmentPatch{
		Status:             &status,
		CancelledAt:        &now,
		CancellationReason: &reason,
	})
}

// GetAppointment returns a single appointment by id.
func (m *Manager) GetAppointment(id string) (models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return models.Appointment{}, fmt.Errorf("%w: %s", models.ErrAppointmentNotFound, id)
	}
	return a, nil
}

// GetAppointments returns the appointments satisfying every supplied filter,
// sorted ascending by start time.
func (m *Manager) GetAppointments(f models.AppointmentFilters) []models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filteredLocked(f)
}

func (m *Manager) filteredLocked(f models.AppointmentFilters) []models.Appointment {
	out := make([]models.Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// SaveConversation derives and stores a conversation summary for a finished
// session and persists.
func (m *Manager) SaveConversation(sess *models.Session) (models.ConversationSummary, error) {
	if sess == nil || sess.ID == "" {
		return models.ConversationSummary{}, models.ErrEmptySessionID
	}
	end := sess.LastActivity
	if end.IsZero() {
		end = time.Now()
	}
	summary := models.ConversationSummary{
		SessionID:       sess.ID,
		StartTime:       sess.StartTime,
		EndTime:         end,
		DurationMinutes: int(end.Sub(sess.StartTime).Minutes()),
		Language:        sess.Language,
		MessageCount:    len(sess.History),
		Completed:       sess.Completed,
		FinalState:      sess.State,
		AppointmentID:   sess.Context.AppointmentID,
	}

	m.mu.Lock()
	m.conversations[summary.SessionID] = summary
	m.persistLocked()
	m.mu.Unlock()

	if err := m.repo.SaveConversation(summary); err != nil {
		m.emitError("archive conversation", err)
	}
	slog.Debug("Manager.SaveConversation: summary stored", "sessionID", summary.SessionID, "messages", summary.MessageCount)
	return summary, nil
}

// archive mirrors a record into the repository backend; failures are reported
// as error events, never raised to the caller.
func (m *Manager) archive(a models.Appointment) {
	if err := m.repo.SaveAppointment(a); err != nil {
		m.emitError("archive appointment", err)
	}
}

// persistLocked rewrites the workbook mirror. Callers hold m.mu. Failures are
// reported via the error event; the in-memory mutation stands.
func (m *Manager) persistLocked() {
	if err := m.writeWorkbook(m.filePath); err != nil {
		m.emitError("save workbook", err)
		return
	}
	ev := models.NewEvent(models.EventDataSaved, "")
	ev.Detail = m.filePath
	m.emit(ev)
}

// Flush forces a workbook write, used on shutdown.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistLocked()
}

// Backup duplicates the persisted workbook to a timestamp-suffixed copy.
// Failures are reported via the error event and returned for callers that
// care (the scheduler only logs them).
func (m *Manager) Backup() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		m.emitError("backup", err)
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	src, err := os.ReadFile(m.filePath)
	if err != nil {
		m.emitError("backup", err)
		return "", fmt.Errorf("failed to read workbook for backup: %w", err)
	}
	name := fmt.Sprintf("citas-%s.xlsx", util.BackupTimestamp(time.Now()))
	dst := filepath.Join(m.backupDir, name)
	if err := os.WriteFile(dst, src, 0644); err != nil {
		m.emitError("backup", err)
		return "", fmt.Errorf("failed to write backup copy: %w", err)
	}

	ev := models.NewEvent(models.EventBackupCreated, "")
	ev.Detail = dst
	m.emit(ev)
	slog.Info("Manager.Backup: backup created", "path", dst)
	return dst, nil
}

// Close flushes the workbook and releases the repository handle.
func (m *Manager) Close() error {
	m.Flush()
	return m.repo.Close()
}

func applyPatch(a *models.Appointment, p models.AppointmentPatch) {
	if p.CustomerName != nil {
		a.CustomerName = *p.CustomerName
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.Technician != nil {
		a.Technician = *p.Technician
	}
	if p.Zone != nil {
		a.Zone = *p.Zone
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ReminderEnabled != nil {
		a.ReminderEnabled = *p.ReminderEnabled
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.CancelledAt != nil {
		a.CancelledAt = p.CancelledAt
	}
	if p.CancellationReason != nil {
		a.CancellationReason = *p.CancellationReason
	}
}
