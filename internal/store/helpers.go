package store

import (
	"database/sql"
	"fmt"
	"time"

	"citabot/internal/models"
)

const appointmentSelect = `SELECT id, session_id, customer_name, phone, start_time, end_time,
	technician, zone, status, language, created_at, updated_at, reminder_enabled,
	notes, cancelled_at, cancellation_reason FROM appointments`

const conversationSelect = `SELECT session_id, start_time, end_time, duration_minutes,
	language, message_count, completed, final_state, appointment_id FROM conversations`

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullableTime returns nil for the zero time, used for nullable columns.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(sc rowScanner) (models.Appointment, error) {
	var a models.Appointment
	var customerName, phone, technician, zone, language, notes, cancelReason sql.NullString
	var status string
	var updatedAt, cancelledAt sql.NullTime
	err := sc.Scan(
		&a.ID, &a.SessionID, &customerName, &phone, &a.StartTime, &a.EndTime,
		&technician, &zone, &status, &language, &a.CreatedAt, &updatedAt,
		&a.ReminderEnabled, &notes, &cancelledAt, &cancelReason,
	)
	if err != nil {
		return a, err
	}
	a.CustomerName = customerName.String
	a.Phone = phone.String
	a.Technician = technician.String
	a.Zone = zone.String
	a.Status = models.AppointmentStatus(status)
	a.Language = language.String
	a.Notes = notes.String
	a.CancellationReason = cancelReason.String
	if updatedAt.Valid {
		a.UpdatedAt = updatedAt.Time
	}
	if cancelledAt.Valid {
		a.CancelledAt = &cancelledAt.Time
	}
	return a, nil
}

// scanAppointmentRow scans an Appointment from a single sql.Row.
func scanAppointmentRow(row *sql.Row) (models.Appointment, error) {
	return scanAppointment(row)
}

func collectAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment failed: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment rows: %w", err)
	}
	return out, nil
}

func scanConversation(sc rowScanner) (models.ConversationSummary, error) {
	var c models.ConversationSummary
	var language, finalState, appointmentID sql.NullString
	err := sc.Scan(
		&c.SessionID, &c.StartTime, &c.EndTime, &c.DurationMinutes,
		&language, &c.MessageCount, &c.Completed, &finalState, &appointmentID,
	)
	if err != nil {
		return c, err
	}
	c.Language = language.String
	c.FinalState = models.SessionState(finalState.String)
	c.AppointmentID = appointmentID.String
	return c, nil
}

func collectConversations(rows *sql.Rows) ([]models.ConversationSummary, error) {
	var out []models.ConversationSummary
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation failed: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}
