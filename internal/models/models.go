// Package models defines the core data structures for citabot.
//
// It includes sessions, slots, appointments and conversation summaries, which
// are shared across the conversation engine, the data manager and the API.
package models

import (
	"errors"
	"time"
)

// SessionState identifies the position of a session in the booking script.
type SessionState string

const (
	StateInit              SessionState = "INIT"
	StateLanguageSelection SessionState = "LANGUAGE_SELECTION"
	StateConsent           SessionState = "CONSENT"
	StateSlotSelection     SessionState = "SLOT_SELECTION"
	StateConfirmation      SessionState = "CONFIRMATION"
	StateReminderSetup     SessionState = "REMINDER_SETUP"
	StateManagement        SessionState = "MANAGEMENT"
	StateCompleted         SessionState = "COMPLETED"
	StateError             SessionState = "ERROR"
)

// IsValidSessionState checks if the given state is a member of the closed state set.
func IsValidSessionState(s SessionState) bool {
	switch s {
	case StateInit, StateLanguageSelection, StateConsent, StateSlotSelection,
		StateConfirmation, StateReminderSetup, StateManagement, StateCompleted, StateError:
		return true
	default:
		return false
	}
}

// Validation and lookup errors shared across packages.
var (
	ErrEmptySessionID      = errors.New("session id cannot be empty")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrMissingSlotData     = errors.New("appointment requires slot start and end times")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidExportFormat = errors.New("unsupported export format")
)

// MessageDirection distinguishes user input from bot output in the history.
type MessageDirection string

const (
	DirectionUser MessageDirection = "user"
	DirectionBot  MessageDirection = "bot"
)

// HistoryEntry is one message in a session's append-only history.
type HistoryEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Direction MessageDirection  `json:"direction"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionContext holds in-flight selections made during the conversation.
type SessionContext struct {
	CustomerName    string `json:"customer_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Consent         bool   `json:"consent"`
	AvailableSlots  []Slot `json:"available_slots,omitempty"`
	SelectedSlot    *Slot  `json:"selected_slot,omitempty"`
	AppointmentID   string `json:"appointment_id,omitempty"`
	Technician      string `json:"technician,omitempty"`
	ReminderEnabled bool   `json:"reminder_enabled"`
}

// Session is one active conversation, keyed by a caller-supplied opaque id.
type Session struct {
	ID           string         `json:"id"`
	State        SessionState   `json:"state"`
	Language     string         `json:"language"`
	StartTime    time.Time      `json:"start_time"`
	LastActivity time.Time      `json:"last_activity"`
	Context      SessionContext `json:"context"`
	History      []HistoryEntry `json:"history"`
	RetryCount   int            `json:"retry_count"`
	Completed    bool           `json:"completed"`
}

// Slot is a candidate appointment window. Slots are regenerated per session
// and never persisted; a slot becomes an Appointment only on confirmation.
type Slot struct {
	ID        string    `json:"id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// AppointmentStatus is the lifecycle status of a confirmed booking.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// IsValidAppointmentStatus checks if the given status is supported.
func IsValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	default:
		return false
	}
}

// Appointment is a confirmed fiber-installation booking. Appointments are
// never hard-deleted; cancellation is a terminal status flag.
type Appointment struct {
	ID                 string            `json:"id"`
	SessionID          string            `json:"session_id"`
	CustomerName       string            `json:"customer_name,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	Technician         string            `json:"technician"`
	Zone               string            `json:"zone,omitempty"`
	Status             AppointmentStatus `json:"status"`
	Language           string            `json:"language"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at,omitzero"`
	ReminderEnabled    bool              `json:"reminder_enabled"`
	Notes              string            `json:"notes,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
}

// AppointmentPatch describes a partial update to an appointment. Nil fields
// are left untouched.
type AppointmentPatch struct {
	CustomerName       *string            `json:"customer_name,omitempty"`
	Phone              *string            `json:"phone,omitempty"`
	StartTime          *time.Time         `json:"start_time,omitempty"`
	EndTime            *time.Time         `json:"end_time,omitempty"`
	Technician         *string            `json:"technician,omitempty"`
	Zone               *string            `json:"zone,omitempty"`
	Status             *AppointmentStatus `json:"status,omitempty"`
	ReminderEnabled    *bool              `json:"reminder_enabled,omitempty"`
	Notes              *string            `json:"notes,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancellationReason *string            `json:"cancellation_reason,omitempty"`
}

// AppointmentFilters narrows appointment queries. Zero values match everything;
// the date range is inclusive on both ends.
type AppointmentFilters struct {
	Status     AppointmentStatus `json:"status,omitempty"`
	Technician string            `json:"technician,omitempty"`
	From       *time.Time        `json:"from,omitempty"`
	To         *time.Time        `json:"to,omitempty"`
}

// Matches reports whether the appointment satisfies every supplied filter.
func (f AppointmentFilters) Matches(a Appointment) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Technician != "" && a.Technician != f.Technician {
		return false
	}
	if f.From != nil && a.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && a.StartTime.After(*f.To) {
		return false
	}
	return true
}

// ConversationSummary is the derived record written once a session completes.
type ConversationSummary struct {
	SessionID       string       `json:"session_id"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	DurationMinutes int          `json:"duration_minutes"`
	Language        string       `json:"language"`
	MessageCount    int          `json:"message_count"`
	Completed       bool         `json:"completed"`
	FinalState      SessionState `json:"final_state"`
	AppointmentID   string       `json:"appointment_id,omitempty"`
}

// Technician is a static configuration entity consulted for random assignment.
type Technician struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Zone   string `json:"zone"`
	Active bool   `json:"active"`
}

// Reply is the conversation engine's answer to one inbound message.
type Reply struct {
	Body         string       `json:"body"`
	QuickReplies []string     `json:"quick_replies,omitempty"`
	State        SessionState `json:"state"`
}

// SessionStats aggregates the live session population.
type SessionStats struct {
	Active     int                  `json:"active"`
	Completed  int                  `json:"completed"`
	ByState    map[SessionState]int `json:"by_state"`
	ByLanguage map[string]int       `json:"by_language"`
}

// ConversationStats aggregates persisted conversation summaries.
type ConversationStats struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	Abandoned       int            `json:"abandoned"`
	ByLanguage      map[string]int `json:"by_language"`
	AverageMessages int            `json:"average_messages"`
}

// DataStats is the derived statistics view persisted to the workbook.
type DataStats struct {
	TotalAppointments int                       `json:"total_appointments"`
	ByStatus          map[AppointmentStatus]int `json:"by_status"`
	RemindersEnabled  int                       `json:"reminders_enabled"`
	Conversations     ConversationStats         `json:"conversations"`
	HeapAllocBytes    uint64                    `json:"heap_alloc_bytes"`
	Goroutines        int                       `json:"goroutines"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}
