// Package store provides record storage backends for citabot.
//
// This file implements the PostgreSQL-backed repository.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"citabot/internal/models"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresRepository stores records in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres repository based on provided options.
func NewPostgresRepository(opts ...Option) (*PostgresRepository, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresRepository.NewPostgresRepository: opening", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("PostgresRepository: failed to open connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresRepository: ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresRepository: failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresRepository: migrations applied")
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) SaveAppointment(a models.Appointment) error {
	_, err := r.db.Exec(`INSERT INTO appointments
		(id, session_id, customer_name, phone, start_time, end_time, technician, zone,
		 status, language, created_at, updated_at, reminder_enabled, notes, cancelled_at, cancellation_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
		 session_id=EXCLUDED.session_id, customer_name=EXCLUDED.customer_name, phone=EXCLUDED.phone,
		 start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time, technician=EXCLUDED.technician,
		 zone=EXCLUDED.zone, status=EXCLUDED.status, language=EXCLUDED.language,
		 updated_at=EXCLUDED.updated_at, reminder_enabled=EXCLUDED.reminder_enabled,
		 notes=EXCLUDED.notes, cancelled_at=EXCLUDED.cancelled_at, cancellation_reason=EXCLUDED.cancellation_reason`,
		a.ID, a.SessionID, a.CustomerName, a.Phone, a.StartTime, a.EndTime, a.Technician, a.Zone,
		string(a.Status), a.Language, a.CreatedAt, nullableTime(a.UpdatedAt), a.ReminderEnabled,
		a.Notes, a.CancelledAt, nilIfEmpty(a.CancellationReason))
	if err != nil {
		slog.Error("PostgresRepository.SaveAppointment failed", "error", err, "id", a.ID)
		return fmt.Errorf("failed to upsert appointment %s: %w", a.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetAppointment(id string) (*models.Appointment, error) {
	row := r.db.QueryRow(appointmentSelect+` WHERE id = $1`, id)
	a, err := scanAppointmentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresRepository.GetAppointment failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get appointment %s: %w", id, err)
	}
	return &a, nil
}

func (r *PostgresRepository) ListAppointments() ([]models.Appointment, error) {
	rows, err := r.db.Query(appointmentSelect + ` ORDER BY start_time ASC`)
	if err != nil {
		slog.Error("PostgresRepository.ListAppointments query failed", "error", err)
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PostgresRepository) SaveConversation(c models.ConversationSummary) error {
	_, err := r.db.Exec(`INSERT INTO conversations
		(session_id, start_time, end_time, duration_minutes, language, message_count, completed, final_state, appointment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
		 start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time, duration_minutes=EXCLUDED.duration_minutes,
		 language=EXCLUDED.language, message_count=EXCLUDED.message_count, completed=EXCLUDED.completed,
		 final_state=EXCLUDED.final_state, appointment_id=EXCLUDED.appointment_id`,
		c.SessionID, c.StartTime, c.EndTime, c.DurationMinutes, c.Language, c.MessageCount,
		c.Completed, string(c.FinalState), nilIfEmpty(c.AppointmentID))
	if err != nil {
		slog.Error("PostgresRepository.SaveConversation failed", "error", err, "sessionID", c.SessionID)
		return fmt.Errorf("failed to upsert conversation %s: %w", c.SessionID, err)
	}
	return nil
}

func (r *PostgresRepository) ListConversations() ([]models.ConversationSummary, error) {
	rows, err := r.db.Query(conversationSelect + ` ORDER BY start_time ASC`)
	if err != nil {
		slog.Error("PostgresRepository.ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// Close releases the database handle.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
