// Package conversation implements the scripted booking state machine.
//
// The engine consumes one inbound message plus the session it belongs to,
// dispatches to the handler for the session's current state, and produces a
// reply (text + quick replies + next state) together with a list of typed
// domain events. The engine never dispatches events itself; the caller decides
// how to persist and broadcast them.
package conversation

import (
	"fmt"
	"log/slog"
	"time"

	"citabot/internal/i18n"
	"citabot/internal/models"
	"citabot/internal/session"
	"citabot/internal/slots"
)

// DefaultRetryCeiling is how many handler failures a session survives before
// it is moved permanently to ERROR.
const DefaultRetryCeiling = 3

// result is what a state handler returns on success. Handlers signal failure
// through an ordinary error; the orchestrator applies the retry policy.
type result struct {
	body         string
	quickReplies []string
	next         models.SessionState
	events       []models.Event
	completed    bool
}

// Engine is the conversation state machine.
type Engine struct {
	sessions     *session.Store
	slotCfg      slots.Config
	technicians  []models.Technician
	retryCeiling int
	loc          *time.Location
}

// Opts holds configuration options for the engine.
type Opts struct {
	Sessions     *session.Store
	SlotConfig   slots.Config
	Technicians  []models.Technician
	RetryCeiling int
	Location     *time.Location
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithSessions sets the session store.
func WithSessions(s *session.Store) Option {
	return func(o *Opts) { o.Sessions = s }
}

// WithSlotConfig sets the slot generation template.
func WithSlotConfig(cfg slots.Config) Option {
	return func(o *Opts) { o.SlotConfig = cfg }
}

// WithTechnicians sets the technician pool.
func WithTechnicians(t []models.Technician) Option {
	return func(o *Opts) { o.Technicians = t }
}

// WithRetryCeiling sets the handler-failure ceiling.
func WithRetryCeiling(n int) Option {
	return func(o *Opts) { o.RetryCeiling = n }
}

// NewEngine creates a conversation engine. Missing options fall back to
// defaults: a fresh session store, the stock weekly template, and the default
// technician pool.
func NewEngine(opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Location == nil {
		cfg.Location = cfg.SlotConfig.Location
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore()
	}
	if cfg.SlotConfig.WeeklyTimes == nil {
		cfg.SlotConfig = slots.DefaultConfig(cfg.Location)
	}
	if len(cfg.Technicians) == 0 {
		cfg.Technicians = DefaultTechnicians()
	}
	if cfg.RetryCeiling <= 0 {
		cfg.RetryCeiling = DefaultRetryCeiling
	}
	slog.Debug("Engine.NewEngine: engine created",
		"technicians", len(cfg.Technicians), "retryCeiling", cfg.RetryCeiling)
	return &Engine{
		sessions:     cfg.Sessions,
		slotCfg:      cfg.SlotConfig,
		technicians:  cfg.Technicians,
		retryCeiling: cfg.RetryCeiling,
		loc:          cfg.Location,
	}
}

// Sessions exposes the underlying session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// GetSession returns a snapshot of a session, creating it when requested.
func (e *Engine) GetSession(sessionID string, createIfMissing bool) (*models.Session, error) {
	if sessionID == "" {
		return nil, models.ErrEmptySessionID
	}
	sess, _ := e.sessions.Get(sessionID, createIfMissing)
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// Stats aggregates the live session population.
func (e *Engine) Stats() models.SessionStats {
	return e.sessions.Stats()
}

// GeneralAvailability produces the general-availability slot listing, capped
// wider than the session-scoped listing.
func (e *Engine) GeneralAvailability(now time.Time) ([]models.Slot, error) {
	cfg := e.slotCfg
	cfg.MaxSlots = slots.DefaultQueryMaxSlots
	return slots.Generate(now, cfg)
}

// Sweep expires inactive sessions and returns snapshots of the evicted ones
// so the caller can archive them. Driven by the scheduler, independent of the
// per-message timeout check.
func (e *Engine) Sweep(now time.Time) []*models.Session {
	return e.sessions.Sweep(now)
}

// ProcessMessage runs one inbound message through the state machine. It
// returns the bot reply and the domain events the message produced. Internal
// handler failures never surface as errors; they feed the retry/ERROR policy
// and produce a localized error reply instead. The returned error is non-nil
// only for invalid input.
func (e *Engine) ProcessMessage(sessionID, message string, metadata map[string]string) (models.Reply, []models.Event, error) {
	if sessionID == "" {
		return models.Reply{}, nil, models.ErrEmptySessionID
	}
	if message == "" {
		return models.Reply{}, nil, models.ErrEmptyMessage
	}

	var reply models.Reply
	var events []models.Event

	err := e.sessions.WithLock(sessionID, func(sess *models.Session) error {
		now := time.Now()
		if sess.State == models.StateInit && len(sess.History) == 0 {
			ev := models.NewEvent(models.EventSessionCreated, sess.ID)
			ev.State = sess.State
			events = append(events, ev)
			applyMetadata(sess, metadata)
		}

		// Inactivity short-circuit: a stale session gets a terminal timeout
		// reply regardless of its previous state.
		if now.Sub(sess.LastActivity) > e.sessions.Timeout() {
			slog.Info("Engine.ProcessMessage: session timed out", "sessionID", sess.ID, "state", sess.State)
			appendHistory(sess, models.DirectionUser, message, metadata)
			sess.State = models.StateCompleted
			sess.Completed = true
			sess.LastActivity = now
			reply = models.Reply{
				Body:  i18n.Text(i18n.KeyTimeout, sess.Language),
				State: models.StateCompleted,
			}
			appendHistory(sess, models.DirectionBot, reply.Body, nil)
			ev := models.NewEvent(models.EventSessionExpired, sess.ID)
			ev.State = models.StateCompleted
			ev.Language = sess.Language
			events = append(events, ev)
			return nil
		}

		if sess.State != models.StateInit {
			appendHistory(sess, models.DirectionUser, message, metadata)
		}

		res, handlerErr := e.dispatch(sess, message, now)
		if handlerErr != nil {
			res = e.recoverFromFailure(sess, handlerErr)
		}

		sess.State = res.next
		sess.LastActivity = now
		if res.completed {
			sess.Completed = true
		}
		if res.body != "" {
			appendHistory(sess, models.DirectionBot, res.body, nil)
		}

		reply = models.Reply{Body: res.body, QuickReplies: res.quickReplies, State: res.next}
		events = append(events, res.events...)

		ev := models.NewEvent(models.EventMessageProcessed, sess.ID)
		ev.State = res.next
		ev.Language = sess.Language
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return models.Reply{}, nil, err
	}
	return reply, events, nil
}

// dispatch routes the message to the handler for the session's current state.
func (e *Engine) dispatch(sess *models.Session, message string, now time.Time) (result, error) {
	slog.Debug("Engine.dispatch: handling message", "sessionID", sess.ID, "state", sess.State)
	switch sess.State {
	case models.StateInit:
		return e.handleInit(sess)
	case models.StateLanguageSelection:
		return e.handleLanguageSelection(sess, message)
	case models.StateConsent:
		return e.handleConsent(sess, message, now)
	case models.StateSlotSelection:
		return e.handleSlotSelection(sess, message)
	case models.StateConfirmation:
		return e.handleConfirmation(sess, message, now)
	case models.StateReminderSetup:
		return e.handleReminderSetup(sess, message)
	case models.StateManagement:
		return e.handleManagement(sess, message, now)
	case models.StateCompleted, models.StateError:
		return e.handleTerminal(sess)
	default:
		return result{}, fmt.Errorf("unknown session state %q", sess.State)
	}
}

// recoverFromFailure applies the retry policy: below the ceiling the session
// keeps its state and gets a retry prompt; at the ceiling it moves permanently
// to ERROR.
func (e *Engine) recoverFromFailure(sess *models.Session, handlerErr error) result {
	sess.RetryCount++
	slog.Error("Engine.recoverFromFailure: handler failed",
		"sessionID", sess.ID, "state", sess.State, "retryCount", sess.RetryCount, "error", handlerErr)

	if sess.RetryCount >= e.retryCeiling {
		ev := models.NewEvent(models.EventSessionFailed, sess.ID)
		ev.State = models.StateError
		ev.Language = sess.Language
		ev.Detail = handlerErr.Error()
		return result{
			body:      i18n.Text(i18n.KeyErrorMax, sess.Language),
			next:      models.StateError,
			events:    []models.Event{ev},
			completed: true,
		}
	}
	return result{
		body:         i18n.Text(i18n.KeyErrorRetry, sess.Language),
		quickReplies: quickRepliesForState(sess),
		next:         sess.State,
	}
}

// quickRepliesForState reproduces the quick-reply set of the prompt the user
// last saw, used when re-prompting after a handler failure.
func quickRepliesForState(sess *models.Session) []string {
	switch sess.State {
	case models.StateLanguageSelection:
		return i18n.QuickReplies(i18n.KeyLanguagePrompt, sess.Language)
	case models.StateConsent:
		return i18n.QuickReplies(i18n.KeyConsent, sess.Language)
	case models.StateSlotSelection:
		return slotQuickReplies(sess)
	case models.StateConfirmation:
		return i18n.QuickReplies(i18n.KeyConfirmPrompt, sess.Language)
	case models.StateReminderSetup:
		return i18n.QuickReplies(i18n.KeyReminderPrompt, sess.Language)
	case models.StateManagement:
		return i18n.QuickReplies(i18n.KeyManagementMenu, sess.Language)
	default:
		return nil
	}
}

func appendHistory(sess *models.Session, dir models.MessageDirection, content string, metadata map[string]string) {
	sess.History = append(sess.History, models.HistoryEntry{
		Timestamp: time.Now(),
		Direction: dir,
		Content:   content,
		Metadata:  metadata,
	})
}

// applyMetadata copies caller-supplied contact details into the session
// context when the session is first seen.
func applyMetadata(sess *models.Session, metadata map[string]string) {
	if metadata == nil {
		return
	}
	if name, ok := metadata["name"]; ok && sess.Context.CustomerName == "" {
		sess.Context.CustomerName = name
	}
	if phone, ok := metadata["phone"]; ok && sess.Context.Phone == "" {
		sess.Context.Phone = phone
	}
}
