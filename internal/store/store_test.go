package store

import (
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"citabot/internal/models"
)

func sampleAppointment(id string, start time.Time) models.Appointment {
	return models.Appointment{
		ID:        id,
		SessionID: "s-" + id,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    models.AppointmentStatusConfirmed,
		Language:  "es",
		CreatedAt: start.Add(-24 * time.Hour),
	}
}

func sampleConversation(id string, start time.Time) models.ConversationSummary {
	return models.ConversationSummary{
		SessionID:       id,
		StartTime:       start,
		EndTime:         start.Add(12 * time.Minute),
		DurationMinutes: 12,
		Language:        "de",
		MessageCount:    9,
		Completed:       true,
		FinalState:      models.StateCompleted,
		AppointmentID:   "A-1",
	}
}

func exerciseRepository(t *testing.T, r Repository) {
	t.Helper()
	base := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	if a, err := r.GetAppointment("missing"); err != nil || a != nil {
		t.Fatalf("absent appointment: got (%v, %v), want (nil, nil)", a, err)
	}

	if err := r.SaveAppointment(sampleAppointment("A-2", base.Add(2*time.Hour))); err != nil {
		t.Fatalf("SaveAppointment failed: %v", err)
	}
	if err := r.SaveAppointment(sampleAppointment("A-1", base)); err != nil {
		t.Fatalf("SaveAppointment failed: %v", err)
	}

	// Saving the same id again is an upsert, not a duplicate.
	update := sampleAppointment("A-1", base)
	update.Status = models.AppointmentStatusCancelled
	update.CancellationReason = "test"
	now := base.Add(time.Hour)
	update.CancelledAt = &now
	if err := r.SaveAppointment(update); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := r.GetAppointment("A-1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if got == nil || got.Status != models.AppointmentStatusCancelled || got.CancellationReason != "test" {
		t.Errorf("upsert not applied: %+v", got)
	}
	if got.CancelledAt == nil {
		t.Error("CancelledAt not round-tripped")
	}

	all, err := r.ListAppointments()
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(all))
	}
	if all[0].ID != "A-1" || all[1].ID != "A-2" {
		t.Errorf("appointments not sorted by start time: %s, %s", all[0].ID, all[1].ID)
	}

	if err := r.SaveConversation(sampleConversation("s1", base)); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	convs, err := r.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(convs))
	}
	c := convs[0]
	if c.SessionID != "s1" || c.MessageCount != 9 || c.FinalState != models.StateCompleted || c.AppointmentID != "A-1" {
		t.Errorf("conversation not round-tripped: %+v", c)
	}
}

func TestInMemoryRepository(t *testing.T) {
	r := NewInMemoryRepository()
	exerciseRepository(t, r)
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSQLiteRepository(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "citabot.db")
	r, err := NewSQLiteRepository(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteRepository failed: %v", err)
	}
	defer r.Close()
	exerciseRepository(t, r)
}

func TestSQLiteRepository_RequiresDSN(t *testing.T) {
	if _, err := NewSQLiteRepository(); err == nil {
		t.Error("expected error without DSN")
	}
}

func TestPostgresRepository(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for the connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	r, err := NewPostgresRepository(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer r.Close()
	r.db.Exec("DELETE FROM conversations")
	r.db.Exec("DELETE FROM appointments")
	exerciseRepository(t, r)
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://user:pw@localhost/db": "postgres",
		"postgresql://user:pw@host/db":    "postgres",
		"host=localhost user=citabot":     "postgres",
		"/var/lib/citabot/citabot.db":     "sqlite",
		"citabot.db":                      "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
