// Package store provides record storage backends for citabot.
//
// This file implements the SQLite-backed repository.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"citabot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteRepository stores records in a local SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository with the given DSN.
// The DSN is a file path; missing directories are created.
func NewSQLiteRepository(opts ...Option) (*SQLiteRepository, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteRepository.NewSQLiteRepository: opening", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteRepository: failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("SQLiteRepository: failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteRepository: ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteRepository: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteRepository: migrations applied")
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) SaveAppointment(a models.Appointment) error {
	_, err := r.db.Exec(`INSERT INTO appointments
		(id, session_id, customer_name, phone, start_time, end_time, technician, zone,
		 status, language, created_at, updated_at, reminder_enabled, notes, cancelled_at, cancellation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		 session_id=excluded.session_id, customer_name=excluded.customer_name, phone=excluded.phone,
		 start_time=excluded.start_time, end_time=excluded.end_time, technician=excluded.technician,
		 zone=excluded.zone, status=excluded.status, language=excluded.language,
		 updated_at=excluded.updated_at, reminder_enabled=excluded.reminder_enabled,
		 notes=excluded.notes, cancelled_at=excluded.cancelled_at, cancellation_reason=excluded.cancellation_reason`,
		a.ID, a.SessionID, a.CustomerName, a.Phone, a.StartTime, a.EndTime, a.Technician, a.Zone,
		string(a.Status), a.Language, a.CreatedAt, nullableTime(a.UpdatedAt), a.ReminderEnabled,
		a.Notes, a.CancelledAt, nilIfEmpty(a.CancellationReason))
	if err != nil {
		slog.Error("SQLiteRepository.SaveAppointment failed", "error", err, "id", a.ID)
		return fmt.Errorf("failed to upsert appointment %s: %w", a.ID, err)
	}
	slog.Debug("SQLiteRepository.SaveAppointment succeeded", "id", a.ID, "status", a.Status)
	return nil
}

func (r *SQLiteRepository) GetAppointment(id string) (*models.Appointment, error) {
	row := r.db.QueryRow(appointmentSelect+` WHERE id = ?`, id)
	a, err := scanAppointmentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteRepository.GetAppointment failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get appointment %s: %w", id, err)
	}
	return &a, nil
}

func (r *SQLiteRepository) ListAppointments() ([]models.Appointment, error) {
	rows, err := r.db.Query(appointmentSelect + ` ORDER BY start_time ASC`)
	if err != nil {
		slog.Error("SQLiteRepository.ListAppointments query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *SQLiteRepository) SaveConversation(c models.ConversationSummary) error {
	_, err := r.db.Exec(`INSERT INTO conversations
		(session_id, start_time, end_time, duration_minutes, language, message_count, completed, final_state, appointment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
		 start_time=excluded.start_time, end_time=excluded.end_time, duration_minutes=excluded.duration_minutes,
		 language=excluded.language, message_count=excluded.message_count, completed=excluded.completed,
		 final_state=excluded.final_state, appointment_id=excluded.appointment_id`,
		c.SessionID, c.StartTime, c.EndTime, c.DurationMinutes, c.Language, c.MessageCount,
		c.Completed, string(c.FinalState), nilIfEmpty(c.AppointmentID))
	if err != nil {
		slog.Error("SQLiteRepository.SaveConversation failed", "error", err, "sessionID", c.SessionID)
		return fmt.Errorf("failed to upsert conversation %s: %w", c.SessionID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListConversations() ([]models.ConversationSummary, error) {
	rows, err := r.db.Query(conversationSelect + ` ORDER BY start_time ASC`)
	if err != nil {
		slog.Error("SQLiteRepository.ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
