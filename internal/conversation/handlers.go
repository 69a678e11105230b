package conversation

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"citabot/internal/i18n"
	"citabot/internal/models"
	"citabot/internal/slots"
	"citabot/internal/util"
)

// handleInit greets a fresh session and asks for a language. Any first
// message, including /start, lands here.
func (e *Engine) handleInit(sess *models.Session) (result, error) {
	return result{
		body:         i18n.Text(i18n.KeyLanguagePrompt, sess.Language),
		quickReplies: i18n.QuickReplies(i18n.KeyLanguagePrompt, sess.Language),
		next:         models.StateLanguageSelection,
	}, nil
}

// handleLanguageSelection matches the message against the known language
// labels; unrecognized input re-prompts.
func (e *Engine) handleLanguageSelection(sess *models.Session, message string) (result, error) {
	lang, ok := i18n.DetectLanguage(message)
	if !ok {
		return result{
			body:         i18n.Text(i18n.KeyLanguagePrompt, sess.Language),
			quickReplies: i18n.QuickReplies(i18n.KeyLanguagePrompt, sess.Language),
			next:         models.StateLanguageSelection,
		}, nil
	}
	sess.Language = lang
	slog.Debug("Engine.handleLanguageSelection: language selected", "sessionID", sess.ID, "language", lang)
	return result{
		body:         i18n.Text(i18n.KeyConsent, lang),
		quickReplies: i18n.QuickReplies(i18n.KeyConsent, lang),
		next:         models.StateConsent,
	}, nil
}

// handleConsent waits for data-processing consent. The delete command wipes
// the session immediately; anything that is not an affirmative re-prompts.
func (e *Engine) handleConsent(sess *models.Session, message string, now time.Time) (result, error) {
	if i18n.IsDeleteCommand(message) {
		return e.wipeSession(sess), nil
	}
	if i18n.ClassifyYesNo(message, sess.Language) != i18n.IntentAffirmative {
		return result{
			body:         i18n.Text(i18n.KeyConsentRetry, sess.Language),
			quickReplies: i18n.QuickReplies(i18n.KeyConsent, sess.Language),
			next:         models.StateConsent,
		}, nil
	}

	sess.Context.Consent = true
	available, err := slots.Generate(now, e.slotCfg)
	if err != nil {
		return result{}, fmt.Errorf("slot generation failed: %w", err)
	}
	if len(available) == 0 {
		return result{
			body:      i18n.Text(i18n.KeySlotsEmpty, sess.Language),
			next:      models.StateCompleted,
			completed: true,
		}, nil
	}
	sess.Context.AvailableSlots = available
	return result{
		body:         i18n.Text(i18n.KeySlotsPrompt, sess.Language),
		quickReplies: slotQuickReplies(sess),
		next:         models.StateSlotSelection,
	}, nil
}

// handleSlotSelection matches the message against the displayed slots and
// moves to confirmation; no match re-shows the options.
func (e *Engine) handleSlotSelection(sess *models.Session, message string) (result, error) {
	slot := e.matchSlot(sess, message)
	if slot == nil {
		return result{
			body:         i18n.Text(i18n.KeySlotRetry, sess.Language),
			quickReplies: slotQuickReplies(sess),
			next:         models.StateSlotSelection,
		}, nil
	}
	sess.Context.SelectedSlot = slot
	label := i18n.FormatSlot(*slot, sess.Language, e.loc)
	return result{
		body:         i18n.Textf(i18n.KeyConfirmPrompt, sess.Language, label),
		quickReplies: i18n.QuickReplies(i18n.KeyConfirmPrompt, sess.Language),
		next:         models.StateConfirmation,
	}, nil
}

// handleConfirmation creates the appointment on an affirmative, re-shows the
// slots on a negative, and re-prompts on anything ambiguous.
func (e *Engine) handleConfirmation(sess *models.Session, message string, now time.Time) (result, error) {
	switch i18n.ClassifyYesNo(message, sess.Language) {
	case i18n.IntentNegative:
		return result{
			body:         i18n.Text(i18n.KeySlotsPrompt, sess.Language),
			quickReplies: slotQuickReplies(sess),
			next:         models.StateSlotSelection,
		}, nil
	case i18n.IntentUnknown:
		return result{
			body:         i18n.Text(i18n.KeyConfirmRetry, sess.Language),
			quickReplies: i18n.QuickReplies(i18n.KeyConfirmPrompt, sess.Language),
			next:         models.StateConfirmation,
		}, nil
	}

	slot := sess.Context.SelectedSlot
	if slot == nil {
		return result{}, fmt.Errorf("confirmation without a selected slot")
	}
	tech, err := e.assignTechnician()
	if err != nil {
		return result{}, err
	}

	appt := models.Appointment{
		ID:              util.GenerateAppointmentID(now, e.loc),
		SessionID:       sess.ID,
		CustomerName:    sess.Context.CustomerName,
		Phone:           sess.Context.Phone,
		StartTime:       slot.Start,
		EndTime:         slot.End,
		Technician:      tech.ID,
		Zone:            tech.Zone,
		Status:          models.AppointmentStatusConfirmed,
		Language:        sess.Language,
		CreatedAt:       now,
		ReminderEnabled: false,
	}
	sess.Context.AppointmentID = appt.ID
	sess.Context.Technician = tech.ID
	slog.Info("Engine.handleConfirmation: appointment created",
		"sessionID", sess.ID, "appointmentID", appt.ID, "technician", tech.ID)

	ev := models.NewEvent(models.EventAppointmentCreated, sess.ID)
	ev.Appointment = &appt
	ev.AppointmentID = appt.ID
	ev.Language = sess.Language

	return result{
		body:         i18n.Textf(i18n.KeyReminderPrompt, sess.Language, appt.ID, tech.Name),
		quickReplies: i18n.QuickReplies(i18n.KeyReminderPrompt, sess.Language),
		next:         models.StateReminderSetup,
		events:       []models.Event{ev},
	}, nil
}

// handleReminderSetup records the reminder preference and always moves on to
// management. Only an affirmative enables the reminder.
func (e *Engine) handleReminderSetup(sess *models.Session, message string) (result, error) {
	var events []models.Event
	var ack string
	if i18n.ClassifyYesNo(message, sess.Language) == i18n.IntentAffirmative {
		sess.Context.ReminderEnabled = true
		ack = i18n.Text(i18n.KeyReminderOn, sess.Language)
		ev := models.NewEvent(models.EventReminderScheduled, sess.ID)
		ev.AppointmentID = sess.Context.AppointmentID
		ev.Language = sess.Language
		events = append(events, ev)
	} else {
		sess.Context.ReminderEnabled = false
		ack = i18n.Text(i18n.KeyReminderOff, sess.Language)
	}
	return result{
		body:         ack + "\n\n" + i18n.Text(i18n.KeyManagementMenu, sess.Language),
		quickReplies: i18n.QuickReplies(i18n.KeyManagementMenu, sess.Language),
		next:         models.StateManagement,
		events:       events,
	}, nil
}

// handleManagement serves the post-booking menu: reschedule, cancel, status
// and finish, classified by per-language keywords.
func (e *Engine) handleManagement(sess *models.Session, message string, now time.Time) (result, error) {
	lang := sess.Language
	menu := i18n.QuickReplies(i18n.KeyManagementMenu, lang)

	switch i18n.ClassifyManagement(message, lang) {
	case i18n.ActionCancel:
		if sess.Context.AppointmentID == "" {
			return result{body: i18n.Text(i18n.KeyNoAppointment, lang), quickReplies: menu, next: models.StateManagement}, nil
		}
		ev := models.NewEvent(models.EventAppointmentCancelled, sess.ID)
		ev.AppointmentID = sess.Context.AppointmentID
		ev.Reason = "cancelled by customer"
		ev.Language = lang
		body := i18n.Textf(i18n.KeyManagementCancelled, lang, sess.Context.AppointmentID)
		sess.Context.AppointmentID = ""
		sess.Context.ReminderEnabled = false
		return result{body: body, quickReplies: menu, next: models.StateManagement, events: []models.Event{ev}}, nil

	case i18n.ActionReschedule:
		if sess.Context.AppointmentID == "" {
			return result{body: i18n.Text(i18n.KeyNoAppointment, lang), quickReplies: menu, next: models.StateManagement}, nil
		}
		ev := models.NewEvent(models.EventAppointmentUpdated, sess.ID)
		ev.AppointmentID = sess.Context.AppointmentID
		ev.Reason = "reschedule requested"
		ev.Language = lang
		return result{
			body:         i18n.Text(i18n.KeyManagementResched, lang),
			quickReplies: menu,
			next:         models.StateManagement,
			events:       []models.Event{ev},
		}, nil

	case i18n.ActionStatus:
		if sess.Context.AppointmentID == "" || sess.Context.SelectedSlot == nil {
			return result{body: i18n.Text(i18n.KeyNoAppointment, lang), quickReplies: menu, next: models.StateManagement}, nil
		}
		tech := e.technicianName(sess.Context.Technician)
		when := i18n.FormatDateTime(sess.Context.SelectedSlot.Start, lang, e.loc)
		body := i18n.Textf(i18n.KeyManagementStatus, lang,
			sess.Context.AppointmentID, when, tech, string(models.AppointmentStatusConfirmed))
		return result{body: body, quickReplies: menu, next: models.StateManagement}, nil

	case i18n.ActionComplete:
		ev := models.NewEvent(models.EventSessionCompleted, sess.ID)
		ev.State = models.StateCompleted
		ev.Language = lang
		ev.AppointmentID = sess.Context.AppointmentID
		return result{
			body:      i18n.Text(i18n.KeyGoodbye, lang),
			next:      models.StateCompleted,
			events:    []models.Event{ev},
			completed: true,
		}, nil

	default:
		return result{body: i18n.Text(i18n.KeyManagementUnknown, lang), quickReplies: menu, next: models.StateManagement}, nil
	}
}

// handleTerminal answers messages arriving after the session ended. A /start
// resets the session and begins a new conversation under the same id.
func (e *Engine) handleTerminal(sess *models.Session) (result, error) {
	if len(sess.History) > 0 {
		last := sess.History[len(sess.History)-1]
		if last.Direction == models.DirectionUser && strings.HasPrefix(strings.ToLower(strings.TrimSpace(last.Content)), "/start") {
			resetSession(sess)
			return e.handleInit(sess)
		}
	}
	return result{
		body: i18n.Text(i18n.KeyGoodbye, sess.Language),
		next: sess.State,
	}, nil
}

// wipeSession clears context and history and ends the conversation, honoring
// the data-deletion command.
func (e *Engine) wipeSession(sess *models.Session) result {
	lang := sess.Language
	sess.Context = models.SessionContext{}
	sess.History = nil
	sess.Completed = true
	slog.Info("Engine.wipeSession: session data deleted", "sessionID", sess.ID)
	ev := models.NewEvent(models.EventSessionCompleted, sess.ID)
	ev.State = models.StateCompleted
	ev.Language = lang
	ev.Reason = "data deletion requested"
	return result{
		body:      i18n.Text(i18n.KeyDataDeleted, lang),
		next:      models.StateCompleted,
		events:    []models.Event{ev},
		completed: true,
	}
}

func resetSession(sess *models.Session) {
	now := time.Now()
	sess.State = models.StateInit
	sess.Language = i18n.DefaultLanguage
	sess.StartTime = now
	sess.LastActivity = now
	sess.Context = models.SessionContext{}
	sess.History = nil
	sess.RetryCount = 0
	sess.Completed = false
}

// slotQuickReplies renders the session's stored slot candidates as numbered
// labels.
func slotQuickReplies(sess *models.Session) []string {
	labels := make([]string, 0, len(sess.Context.AvailableSlots))
	for i, slot := range sess.Context.AvailableSlots {
		labels = append(labels, fmt.Sprintf("%d. %s", i+1, i18n.FormatSlot(slot, sess.Language, slot.Start.Location())))
	}
	return labels
}

// matchSlot resolves a message to one of the displayed slots, either by its
// option number or by (a substring of) its formatted label.
func (e *Engine) matchSlot(sess *models.Session, message string) *models.Slot {
	available := sess.Context.AvailableSlots
	if len(available) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(message)

	if n, err := strconv.Atoi(strings.TrimSuffix(trimmed, ".")); err == nil {
		if n >= 1 && n <= len(available) {
			slot := available[n-1]
			return &slot
		}
		return nil
	}

	lower := strings.ToLower(trimmed)
	for _, slot := range available {
		label := strings.ToLower(i18n.FormatSlot(slot, sess.Language, e.loc))
		if strings.Contains(lower, label) {
			s := slot
			return &s
		}
	}
	// Also accept the leading "N." form of the displayed quick reply.
	if dot := strings.IndexByte(lower, '.'); dot > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(lower[:dot])); err == nil && n >= 1 && n <= len(available) {
			slot := available[n-1]
			return &slot
		}
	}
	return nil
}
