// Package models defines the typed domain events produced by the conversation
// engine and the data manager. Events are returned to the caller alongside the
// response; the facade decides how to dispatch them (persist, broadcast, notify).
package models

import "time"

// EventType names a domain event.
type EventType string

const (
	EventSessionCreated       EventType = "sessionCreated"
	EventMessageProcessed     EventType = "messageProcessed"
	EventAppointmentCreated   EventType = "appointmentCreated"
	EventAppointmentUpdated   EventType = "appointmentUpdated"
	EventAppointmentCancelled EventType = "appointmentCancelled"
	EventReminderScheduled    EventType = "reminderScheduled"
	EventSessionCompleted     EventType = "sessionCompleted"
	EventSessionFailed        EventType = "sessionFailed"
	EventSessionExpired       EventType = "sessionExpired"
	EventInitialized          EventType = "initialized"
	EventDataSaved            EventType = "dataSaved"
	EventBackupCreated        EventType = "backupCreated"
	EventStatsUpdated         EventType = "statsUpdated"
	EventError                EventType = "error"
)

// StatsSnapshot is the combined statistics payload carried by the periodic
// statsUpdated broadcast.
type StatsSnapshot struct {
	Sessions SessionStats `json:"sessions"`
	Data     DataStats    `json:"data"`
}

// Event is a single domain event. Only the fields relevant to the event type
// are populated.
type Event struct {
	Type          EventType      `json:"type"`
	Time          time.Time      `json:"time"`
	SessionID     string         `json:"session_id,omitempty"`
	State         SessionState   `json:"state,omitempty"`
	Language      string         `json:"language,omitempty"`
	Appointment   *Appointment   `json:"appointment,omitempty"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Detail        string         `json:"detail,omitempty"`
	Stats         *StatsSnapshot `json:"stats,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(t EventType, sessionID string) Event {
	return Event{Type: t, Time: time.Now(), SessionID: sessionID}
}
