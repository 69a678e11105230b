package conversation

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"
	"time"

	"citabot/internal/models"
	"citabot/internal/session"
	"citabot/internal/slots"
)

var appointmentIDPattern = regexp.MustCompile(`^C-\d{4}-\d{4}-\d{4}-[0-9A-Z]{4}$`)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(
		WithSessions(session.NewStore(session.WithTimeout(time.Hour))),
		WithSlotConfig(slots.DefaultConfig(time.UTC)),
	)
}

func mustProcess(t *testing.T, e *Engine, sessionID, message string) (models.Reply, []models.Event) {
	t.Helper()
	reply, events, err := e.ProcessMessage(sessionID, message, nil)
	if err != nil {
		t.Fatalf("ProcessMessage(%q) failed: %v", message, err)
	}
	return reply, events
}

func hasEvent(events []models.Event, typ models.EventType) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

// driveToManagement walks a fresh session through the whole booking script and
// returns the appointmentCreated event it produced.
func driveToManagement(t *testing.T, e *Engine, sessionID string) models.Event {
	t.Helper()
	mustProcess(t, e, sessionID, "/start")
	mustProcess(t, e, sessionID, "Español")
	reply, _ := mustProcess(t, e, sessionID, "Sí, acepto")
	if reply.State != models.StateSlotSelection {
		t.Fatalf("expected SLOT_SELECTION after consent, got %s", reply.State)
	}
	reply, _ = mustProcess(t, e, sessionID, "1")
	if reply.State != models.StateConfirmation {
		t.Fatalf("expected CONFIRMATION after slot pick, got %s", reply.State)
	}
	_, events := mustProcess(t, e, sessionID, "Sí")
	for _, ev := range events {
		if ev.Type == models.EventAppointmentCreated {
			mustProcess(t, e, sessionID, "No") // decline the reminder, land in MANAGEMENT
			return ev
		}
	}
	t.Fatal("no appointmentCreated event after confirmation")
	return models.Event{}
}

func TestProcessMessage_InvalidInput(t *testing.T) {
	e := newTestEngine(t)
	if _, _, err := e.ProcessMessage("", "hola", nil); err != models.ErrEmptySessionID {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
	if _, _, err := e.ProcessMessage("s1", "", nil); err != models.ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestFirstMessage_AsksForLanguage(t *testing.T) {
	e := newTestEngine(t)
	reply, events := mustProcess(t, e, "s1", "/start")

	if reply.State != models.StateLanguageSelection {
		t.Errorf("state = %s, want %s", reply.State, models.StateLanguageSelection)
	}
	if len(reply.QuickReplies) != 3 {
		t.Errorf("expected 3 language options, got %d", len(reply.QuickReplies))
	}
	if !strings.Contains(reply.Body, "elige tu idioma") {
		t.Errorf("unexpected greeting: %q", reply.Body)
	}
	if !hasEvent(events, models.EventSessionCreated) {
		t.Error("missing sessionCreated event")
	}
	if !hasEvent(events, models.EventMessageProcessed) {
		t.Error("missing messageProcessed event")
	}
}

func TestLanguageSelection_German(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	reply, _ := mustProcess(t, e, "s1", "Deutsch")

	if reply.State != models.StateConsent {
		t.Errorf("state = %s, want %s", reply.State, models.StateConsent)
	}
	if !strings.Contains(reply.Body, "einverstanden") {
		t.Errorf("expected German consent text, got %q", reply.Body)
	}
	sess, err := e.GetSession("s1", false)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Language != "de" {
		t.Errorf("session language = %s, want de", sess.Language)
	}
}

func TestLanguageSelection_UnrecognizedReprompts(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	reply, _ := mustProcess(t, e, "s1", "klingon")
	if reply.State != models.StateLanguageSelection {
		t.Errorf("state = %s, want %s", reply.State, models.StateLanguageSelection)
	}
}

func TestConsent_AffirmativeOffersSlots(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Deutsch")
	reply, _ := mustProcess(t, e, "s1", "JA")

	if reply.State != models.StateSlotSelection {
		t.Fatalf("state = %s, want %s", reply.State, models.StateSlotSelection)
	}
	if len(reply.QuickReplies) == 0 {
		t.Fatal("expected slot options")
	}

	sess, _ := e.GetSession("s1", false)
	if !sess.Context.Consent {
		t.Error("consent flag not set")
	}
	horizon := time.Now().AddDate(0, 0, slots.DefaultHorizonDays)
	lead := time.Now().Add(time.Duration(slots.DefaultMinLeadHours) * time.Hour)
	for i, s := range sess.Context.AvailableSlots {
		if !s.Start.After(lead) || !s.Start.Before(horizon) {
			t.Errorf("slot %d outside offer window: %s", i, s.Start)
		}
	}
}

func TestConsent_DeclineReprompts(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	reply, _ := mustProcess(t, e, "s1", "no")
	if reply.State != models.StateConsent {
		t.Errorf("state = %s, want %s", reply.State, models.StateConsent)
	}
}

func TestConsent_DeleteCommandWipesSession(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	reply, events := mustProcess(t, e, "s1", "/borrar")

	if reply.State != models.StateCompleted {
		t.Errorf("state = %s, want %s", reply.State, models.StateCompleted)
	}
	if !hasEvent(events, models.EventSessionCompleted) {
		t.Error("missing sessionCompleted event")
	}
	sess, _ := e.GetSession("s1", false)
	if sess.Context.CustomerName != "" || sess.Context.AppointmentID != "" {
		t.Error("context not wiped")
	}
}

func TestConfirmation_CreatesAppointment(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	mustProcess(t, e, "s1", "Sí, acepto")
	mustProcess(t, e, "s1", "2")
	reply, events := mustProcess(t, e, "s1", "Sí")

	if reply.State != models.StateReminderSetup {
		t.Fatalf("state = %s, want %s", reply.State, models.StateReminderSetup)
	}

	var created *models.Event
	for i := range events {
		if events[i].Type == models.EventAppointmentCreated {
			created = &events[i]
		}
	}
	if created == nil || created.Appointment == nil {
		t.Fatal("missing appointmentCreated event with payload")
	}
	appt := created.Appointment
	if !appointmentIDPattern.MatchString(appt.ID) {
		t.Errorf("bad appointment id: %s", appt.ID)
	}
	if appt.Status != models.AppointmentStatusConfirmed {
		t.Errorf("status = %s, want confirmed", appt.Status)
	}
	found := false
	for _, tech := range DefaultTechnicians() {
		if tech.ID == appt.Technician {
			found = true
			if !tech.Active {
				t.Errorf("assigned inactive technician %s", tech.ID)
			}
		}
	}
	if !found {
		t.Errorf("unknown technician %s", appt.Technician)
	}
	if !strings.Contains(reply.Body, appt.ID) {
		t.Errorf("confirmation reply does not mention the appointment id: %q", reply.Body)
	}
}

func TestConfirmation_NegativeReshowsSlots(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	mustProcess(t, e, "s1", "Sí, acepto")
	mustProcess(t, e, "s1", "1")
	reply, _ := mustProcess(t, e, "s1", "no")
	if reply.State != models.StateSlotSelection {
		t.Errorf("state = %s, want %s", reply.State, models.StateSlotSelection)
	}
	if len(reply.QuickReplies) == 0 {
		t.Error("expected slot options to be shown again")
	}
}

func TestSlotSelection_UnknownOptionReprompts(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	mustProcess(t, e, "s1", "Sí, acepto")
	reply, _ := mustProcess(t, e, "s1", "99")
	if reply.State != models.StateSlotSelection {
		t.Errorf("state = %s, want %s", reply.State, models.StateSlotSelection)
	}
}

func TestReminderSetup_AffirmativeEmitsEvent(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	mustProcess(t, e, "s1", "Sí, acepto")
	mustProcess(t, e, "s1", "1")
	mustProcess(t, e, "s1", "Sí")
	reply, events := mustProcess(t, e, "s1", "Sí")

	if reply.State != models.StateManagement {
		t.Errorf("state = %s, want %s", reply.State, models.StateManagement)
	}
	if !hasEvent(events, models.EventReminderScheduled) {
		t.Error("missing reminderScheduled event")
	}
	sess, _ := e.GetSession("s1", false)
	if !sess.Context.ReminderEnabled {
		t.Error("reminder flag not set")
	}
}

func TestManagement_CancelEmitsEvent(t *testing.T) {
	e := newTestEngine(t)
	created := driveToManagement(t, e, "s1")

	reply, events := mustProcess(t, e, "s1", "Cancelar")
	if reply.State != models.StateManagement {
		t.Errorf("state = %s, want %s", reply.State, models.StateManagement)
	}
	cancelled := false
	for _, ev := range events {
		if ev.Type == models.EventAppointmentCancelled {
			cancelled = true
			if ev.AppointmentID != created.AppointmentID {
				t.Errorf("cancelled id %s, want %s", ev.AppointmentID, created.AppointmentID)
			}
		}
	}
	if !cancelled {
		t.Fatal("missing appointmentCancelled event")
	}

	// A second cancel finds nothing to act on.
	_, events = mustProcess(t, e, "s1", "Cancelar")
	if hasEvent(events, models.EventAppointmentCancelled) {
		t.Error("cancel without an active appointment must not emit an event")
	}
}

func TestManagement_FinishCompletesSession(t *testing.T) {
	e := newTestEngine(t)
	driveToManagement(t, e, "s1")
	reply, events := mustProcess(t, e, "s1", "Terminar")

	if reply.State != models.StateCompleted {
		t.Errorf("state = %s, want %s", reply.State, models.StateCompleted)
	}
	if !hasEvent(events, models.EventSessionCompleted) {
		t.Error("missing sessionCompleted event")
	}
}

func TestCompleted_StartResets(t *testing.T) {
	e := newTestEngine(t)
	driveToManagement(t, e, "s1")
	mustProcess(t, e, "s1", "Terminar")

	reply, _ := mustProcess(t, e, "s1", "/start")
	if reply.State != models.StateLanguageSelection {
		t.Errorf("state = %s, want %s after reset", reply.State, models.StateLanguageSelection)
	}
	sess, _ := e.GetSession("s1", false)
	if sess.Completed {
		t.Error("session still marked completed after reset")
	}
}

func TestInactivityTimeout(t *testing.T) {
	e := newTestEngine(t)
	mustProcess(t, e, "s1", "/start")

	// Backdate the session beyond the inactivity window.
	err := e.Sessions().WithLock("s1", func(sess *models.Session) error {
		sess.LastActivity = time.Now().Add(-2 * time.Hour)
		return nil
	})
	if err != nil {
		t.Fatalf("backdating failed: %v", err)
	}

	reply, events := mustProcess(t, e, "s1", "Español")
	if reply.State != models.StateCompleted {
		t.Errorf("state = %s, want %s", reply.State, models.StateCompleted)
	}
	if !strings.Contains(reply.Body, "caducado") {
		t.Errorf("expected timeout message, got %q", reply.Body)
	}
	if !hasEvent(events, models.EventSessionExpired) {
		t.Error("missing sessionExpired event")
	}

	// The message that triggered the timeout is still recorded, followed by
	// the timeout reply.
	sess, _ := e.GetSession("s1", false)
	if n := len(sess.History); n < 2 {
		t.Fatalf("expected user entry and timeout reply in history, got %d entries", n)
	} else {
		user := sess.History[n-2]
		if user.Direction != models.DirectionUser || user.Content != "Español" {
			t.Errorf("expected the triggering message as the penultimate entry, got %+v", user)
		}
	}
}

func TestRetryCeiling_MovesToError(t *testing.T) {
	// An all-inactive technician pool makes confirmation fail internally.
	e := NewEngine(
		WithSessions(session.NewStore(session.WithTimeout(time.Hour))),
		WithSlotConfig(slots.DefaultConfig(time.UTC)),
		WithTechnicians([]models.Technician{{ID: "T-X", Name: "Nadie", Zone: "Norte", Active: false}}),
	)
	mustProcess(t, e, "s1", "/start")
	mustProcess(t, e, "s1", "Español")
	mustProcess(t, e, "s1", "Sí, acepto")
	mustProcess(t, e, "s1", "1")

	reply, _ := mustProcess(t, e, "s1", "Sí")
	if reply.State != models.StateConfirmation {
		t.Fatalf("first failure: state = %s, want retry in %s", reply.State, models.StateConfirmation)
	}
	reply, _ = mustProcess(t, e, "s1", "Sí")
	if reply.State != models.StateConfirmation {
		t.Fatalf("second failure: state = %s, want retry in %s", reply.State, models.StateConfirmation)
	}
	reply, events := mustProcess(t, e, "s1", "Sí")
	if reply.State != models.StateError {
		t.Fatalf("third failure: state = %s, want %s", reply.State, models.StateError)
	}
	if !hasEvent(events, models.EventSessionFailed) {
		t.Error("missing sessionFailed event")
	}
	sess, _ := e.GetSession("s1", false)
	if !sess.Completed {
		t.Error("errored session must be marked completed")
	}
}

// TestRandomWalk_StatesStayValid feeds arbitrary messages through the machine
// and checks that every resulting state is one of the defined states.
func TestRandomWalk_StatesStayValid(t *testing.T) {
	vocabulary := []string{
		"/start", "Español", "Deutsch", "English", "Sí", "no", "JA", "1", "2", "99",
		"Cancelar", "reprogramar", "Estado", "Terminar", "/borrar", "banana", "ok", "nein",
	}
	e := newTestEngine(t)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		msg := vocabulary[rng.IntN(len(vocabulary))]
		reply, _, err := e.ProcessMessage("walk", msg, nil)
		if err != nil {
			t.Fatalf("step %d (%q): unexpected error %v", i, msg, err)
		}
		if !models.IsValidSessionState(reply.State) {
			t.Fatalf("step %d (%q): invalid state %q", i, msg, reply.State)
		}
	}
}

func TestGeneralAvailability_WiderCap(t *testing.T) {
	e := newTestEngine(t)
	avail, err := e.GeneralAvailability(time.Now())
	if err != nil {
		t.Fatalf("GeneralAvailability failed: %v", err)
	}
	if len(avail) > slots.DefaultQueryMaxSlots {
		t.Errorf("expected at most %d slots, got %d", slots.DefaultQueryMaxSlots, len(avail))
	}
}

func TestMetadata_PopulatesContact(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := e.ProcessMessage("s1", "/start", map[string]string{"name": "Marta Gil", "phone": "+34600111222"})
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	sess, _ := e.GetSession("s1", false)
	if sess.Context.CustomerName != "Marta Gil" || sess.Context.Phone != "+34600111222" {
		t.Errorf("metadata not applied: %+v", sess.Context)
	}
}
