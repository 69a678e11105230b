package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"citabot/internal/models"
)

func dueAppointment(id string, start time.Time) models.Appointment {
	return models.Appointment{
		ID:              id,
		Phone:           "+34600111222",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Hour),
		Technician:      "T-01",
		Status:          models.AppointmentStatusConfirmed,
		Language:        "es",
		ReminderEnabled: true,
	}
}

func TestRun_SendsDueReminders(t *testing.T) {
	mock := NewMockSender()
	svc := NewService(mock, DefaultLeadTime)
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	due := dueAppointment("A-1", now.Add(4*time.Hour))
	tooFar := dueAppointment("A-2", now.Add(48*time.Hour))
	past := dueAppointment("A-3", now.Add(-time.Hour))
	optedOut := dueAppointment("A-4", now.Add(4*time.Hour))
	optedOut.ReminderEnabled = false
	noPhone := dueAppointment("A-5", now.Add(4*time.Hour))
	noPhone.Phone = ""
	cancelled := dueAppointment("A-6", now.Add(4*time.Hour))
	cancelled.Status = models.AppointmentStatusCancelled

	sent := svc.Run(context.Background(), []models.Appointment{due, tooFar, past, optedOut, noPhone, cancelled}, now)
	if sent != 1 {
		t.Fatalf("expected 1 reminder, sent %d", sent)
	}
	messages := mock.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].To != due.Phone {
		t.Errorf("sent to %s, want %s", messages[0].To, due.Phone)
	}
	if !strings.Contains(messages[0].Body, "A-1") {
		t.Errorf("reminder body does not mention the appointment id: %q", messages[0].Body)
	}
	if !strings.Contains(messages[0].Body, "Recordatorio") {
		t.Errorf("expected Spanish reminder text, got %q", messages[0].Body)
	}
}

func TestRun_SendsOncePerAppointment(t *testing.T) {
	mock := NewMockSender()
	svc := NewService(mock, DefaultLeadTime)
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	appointments := []models.Appointment{dueAppointment("A-1", now.Add(4*time.Hour))}

	if sent := svc.Run(context.Background(), appointments, now); sent != 1 {
		t.Fatalf("first pass sent %d, want 1", sent)
	}
	if sent := svc.Run(context.Background(), appointments, now.Add(time.Minute)); sent != 0 {
		t.Errorf("second pass sent %d, want 0", sent)
	}
}

func TestRun_LocalizedBody(t *testing.T) {
	mock := NewMockSender()
	svc := NewService(mock, DefaultLeadTime)
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	a := dueAppointment("A-1", now.Add(4*time.Hour))
	a.Language = "de"

	svc.Run(context.Background(), []models.Appointment{a}, now)
	messages := mock.Messages()
	if len(messages) != 1 || !strings.Contains(messages[0].Body, "Erinnerung") {
		t.Errorf("expected German reminder, got %v", messages)
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
}
