// Package api provides the HTTP facade and main server logic for citabot.
//
// It exposes RESTful endpoints for the chat flow, appointment queries, data
// export and statistics, plus a WebSocket event stream. The API integrates
// the conversation engine, data manager, scheduler and reminder modules.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citabot/internal/conversation"
	"citabot/internal/datastore"
	"citabot/internal/genai"
	"citabot/internal/models"
	"citabot/internal/reminder"
	"citabot/internal/scheduler"
	"citabot/internal/store"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	ReminderSender reminder.Sender
	AssistClient   *genai.Client
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithReminderSender sets the SMS backend for appointment reminders.
func WithReminderSender(s reminder.Sender) Option {
	return func(o *Opts) { o.ReminderSender = s }
}

// WithAssistClient sets the optional GenAI client backing /api/assist.
func WithAssistClient(c *genai.Client) Option {
	return func(o *Opts) { o.AssistClient = c }
}

// Server ties the conversation engine, data manager and event stream
// together behind the HTTP API.
type Server struct {
	engine    *conversation.Engine
	data      *datastore.Manager
	hub       *Hub
	reminders *reminder.Service
	assist    *genai.Client
	addr      string
}

// NewServer builds a server around the given engine and data manager.
func NewServer(engine *conversation.Engine, data *datastore.Manager, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		engine: engine,
		data:   data,
		hub:    NewHub(),
		assist: cfg.AssistClient,
		addr:   cfg.Addr,
	}
	if cfg.ReminderSender != nil {
		s.reminders = reminder.NewService(cfg.ReminderSender, reminder.DefaultLeadTime)
	}
	return s
}

// Hub exposes the WebSocket hub, used by the data manager notify callback.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes returns the HTTP handler with all endpoints registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", s.messageHandler)
	mux.HandleFunc("GET /api/sessions/{id}", s.sessionHandler)
	mux.HandleFunc("GET /api/stats", s.statsHandler)
	mux.HandleFunc("GET /api/appointments", s.appointmentsHandler)
	mux.HandleFunc("GET /api/appointments/{id}", s.appointmentHandler)
	mux.HandleFunc("POST /api/appointments/{id}/cancel", s.cancelHandler)
	mux.HandleFunc("GET /api/export", s.exportHandler)
	mux.HandleFunc("POST /api/assist", s.assistHandler)
	mux.HandleFunc("GET /ws", s.hub.serveWs)
	return mux
}

// dispatchEvents applies the side effects of conversation events and
// broadcasts every event to the WebSocket stream. Persistence failures are
// logged, not raised; the conversation reply already went out.
func (s *Server) dispatchEvents(events []models.Event) {
	for _, ev := range events {
		switch ev.Type {
		case models.EventAppointmentCreated:
			if ev.Appointment != nil {
				if _, err := s.data.CreateAppointment(*ev.Appointment); err != nil {
					slog.Error("Server.dispatchEvents: failed to store appointment", "error", err, "id", ev.AppointmentID)
				}
			}
		case models.EventAppointmentCancelled:
			if _, err := s.data.CancelAppointment(ev.AppointmentID, ev.Reason); err != nil {
				slog.Error("Server.dispatchEvents: failed to cancel appointment", "error", err, "id", ev.AppointmentID)
			}
		case models.EventAppointmentUpdated:
			note := ev.Reason
			if _, err := s.data.UpdateAppointment(ev.AppointmentID, models.AppointmentPatch{Notes: &note}); err != nil {
				slog.Error("Server.dispatchEvents: failed to update appointment", "error", err, "id", ev.AppointmentID)
			}
		case models.EventReminderScheduled:
			if ev.AppointmentID != "" {
				enabled := true
				if _, err := s.data.UpdateAppointment(ev.AppointmentID, models.AppointmentPatch{ReminderEnabled: &enabled}); err != nil {
					slog.Error("Server.dispatchEvents: failed to flag reminder", "error", err, "id", ev.AppointmentID)
				}
			}
		case models.EventSessionCompleted, models.EventSessionFailed, models.EventSessionExpired:
			s.archiveSession(ev.SessionID)
		}
		s.hub.Broadcast(ev)
	}
}

func (s *Server) archiveSession(sessionID string) {
	sess, err := s.engine.GetSession(sessionID, false)
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			slog.Error("Server.archiveSession: failed to load session", "error", err, "sessionID", sessionID)
		}
		return
	}
	if _, err := s.data.SaveConversation(sess); err != nil {
		slog.Error("Server.archiveSession: failed to save conversation", "error", err, "sessionID", sessionID)
	}
}

// sweepJob evicts inactive sessions, archives their conversations and
// broadcasts one sessionExpired event per eviction.
func (s *Server) sweepJob() {
	expired := s.engine.Sweep(time.Now())
	if len(expired) == 0 {
		return
	}
	slog.Info("Server.sweepJob: sessions expired", "count", len(expired))
	for _, sess := range expired {
		if _, err := s.data.SaveConversation(sess); err != nil {
			slog.Error("Server.sweepJob: failed to save conversation", "error", err, "sessionID", sess.ID)
		}
		ev := models.NewEvent(models.EventSessionExpired, sess.ID)
		ev.State = sess.State
		ev.Language = sess.Language
		s.hub.Broadcast(ev)
	}
}

// statsJob broadcasts the combined statistics snapshot to connected
// subscribers. Skipped when nobody is listening.
func (s *Server) statsJob() {
	if s.hub.ClientCount() == 0 {
		return
	}
	ev := models.NewEvent(models.EventStatsUpdated, "")
	ev.Stats = &models.StatsSnapshot{
		Sessions: s.engine.Stats(),
		Data:     s.data.GenerateStats(),
	}
	s.hub.Broadcast(ev)
}

// reminderJob sends due reminders when an SMS backend is configured.
func (s *Server) reminderJob() {
	if s.reminders == nil {
		return
	}
	appointments := s.data.GetAppointments(models.AppointmentFilters{Status: models.AppointmentStatusConfirmed})
	if n := s.reminders.Run(context.Background(), appointments, time.Now()); n > 0 {
		slog.Info("Server.reminderJob: reminders sent", "count", n)
	}
}

// backupJob copies the workbook aside; failures were already reported as
// error events.
func (s *Server) backupJob() {
	if _, err := s.data.Backup(); err != nil {
		slog.Warn("Server.backupJob: backup failed", "error", err)
	}
}

// Run builds all modules from the given options, starts the server and
// blocks until SIGINT/SIGTERM, then shuts down gracefully.
func Run(storeOpts []store.Option, dataOpts []datastore.Option, engineOpts []conversation.Option, apiOpts []Option) error {
	repo, err := buildRepository(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}

	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	hub := NewHub()
	data, err := datastore.NewManager(append(dataOpts,
		datastore.WithRepository(repo),
		datastore.WithNotify(hub.Broadcast))...)
	if err != nil {
		return fmt.Errorf("failed to initialize data manager: %w", err)
	}

	engine := conversation.NewEngine(engineOpts...)
	srv := NewServer(engine, data, apiOpts...)
	srv.hub = hub

	sched := scheduler.NewScheduler()
	if err := sched.AddJob("sweep", scheduler.ScheduleSweep, srv.sweepJob); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	if err := sched.AddJob("stats", scheduler.ScheduleStats, srv.statsJob); err != nil {
		return fmt.Errorf("failed to schedule stats broadcast: %w", err)
	}
	if err := sched.AddJob("reminders", scheduler.ScheduleReminders, srv.reminderJob); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	if err := sched.AddJob("backup", scheduler.ScheduleBackup, srv.backupJob); err != nil {
		return fmt.Errorf("failed to schedule backups: %w", err)
	}

	httpSrv := &http.Server{
		Addr:         srv.addr,
		Handler:      srv.Routes(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: citabot API listening", "addr", srv.addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		slog.Info("Server.Run: shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("Server.Run: HTTP shutdown failed", "error", err)
	}
	sched.Stop()
	srv.hub.Close()
	if err := data.Close(); err != nil {
		slog.Error("Server.Run: data manager close failed", "error", err)
	}
	slog.Info("Server.Run: shutdown complete")
	return nil
}

// buildRepository opens the archival backend matching the configured DSN.
// Without a DSN the repository stays in memory and the workbook file is the
// only persistence.
func buildRepository(storeOpts []store.Option) (store.Repository, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("buildRepository: no DSN configured, using in-memory repository")
		return store.NewInMemoryRepository(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		return store.NewPostgresRepository(storeOpts...)
	}
	return store.NewSQLiteRepository(storeOpts...)
}
