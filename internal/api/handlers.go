// Package api provides HTTP handlers for citabot endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"citabot/internal/datastore"
	"citabot/internal/models"
)

// messageRequest is the inbound chat message payload.
type messageRequest struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// assistRequest is the free-form question payload.
type assistRequest struct {
	Question string `json:"question"`
}

// cancelRequest carries the optional cancellation reason.
type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	reply, events, err := s.engine.ProcessMessage(req.SessionID, req.Message, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptySessionID), errors.Is(err, models.ErrEmptyMessage):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("Server.messageHandler: processing failed", "error", err, "sessionID", req.SessionID)
			writeJSONError(w, http.StatusInternalServerError, "Failed to process message")
		}
		return
	}
	s.dispatchEvents(events)

	slog.Debug("Server.messageHandler: message processed", "sessionID", req.SessionID, "state", reply.State)
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.engine.GetSession(id, false)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Session %s not found", id))
			return
		}
		slog.Error("Server.sessionHandler: lookup failed", "error", err, "sessionID", id)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// statsResponse aggregates the engine and data manager views.
type statsResponse struct {
	Sessions    models.SessionStats `json:"sessions"`
	Data        models.DataStats    `json:"data"`
	Subscribers int                 `json:"subscribers"`
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Sessions:    s.engine.Stats(),
		Data:        s.data.GenerateStats(),
		Subscribers: s.hub.ClientCount(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// parseFilters reads the appointment filter query parameters. Time bounds use
// RFC 3339.
func parseFilters(r *http.Request) (models.AppointmentFilters, error) {
	var f models.AppointmentFilters
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		f.Status = models.AppointmentStatus(v)
	}
	if v := q.Get("technician"); v != "" {
		f.Technician = v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid from bound %q: %w", v, err)
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid to bound %q: %w", v, err)
		}
		f.To = &t
	}
	return f, nil
}

func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	appointments := s.data.GetAppointments(filters)
	writeJSONResponse(w, http.StatusOK, models.Success(appointments))
}

func (s *Server) appointmentHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := s.data.GetAppointment(id)
	if err != nil {
		if errors.Is(err, models.ErrAppointmentNotFound) {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Appointment %s not found", id))
			return
		}
		slog.Error("Server.appointmentHandler: lookup failed", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load appointment")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(a))
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	var req cancelRequest
	// Body is optional; a missing or empty reason gets a default.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled via API"
	}

	a, err := s.data.CancelAppointment(id, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrAppointmentNotFound) {
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Appointment %s not found", id))
			return
		}
		slog.Error("Server.cancelHandler: cancellation failed", "error", err, "id", id)
		writeJSONError(w, http.StatusInternalServerError, "Failed to cancel appointment")
		return
	}

	ev := models.NewEvent(models.EventAppointmentCancelled, a.SessionID)
	ev.AppointmentID = a.ID
	ev.Reason = req.Reason
	s.hub.Broadcast(ev)

	slog.Info("Server.cancelHandler: appointment cancelled", "id", id, "reason", req.Reason)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Appointment cancelled", a))
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = datastore.FormatJSON
	}
	filters, err := parseFilters(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, contentType, err := s.data.ExportData(format, filters)
	if err != nil {
		if errors.Is(err, models.ErrInvalidExportFormat) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Server.exportHandler: export failed", "error", err, "format", format)
		writeJSONError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=citas-export.%s", format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.exportHandler: failed to write export", "error", err)
	}
}

func (s *Server) assistHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if s.assist == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "Assist is not configured")
		return
	}
	var req assistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.Question == "" {
		writeJSONError(w, http.StatusBadRequest, "Question must not be empty")
		return
	}

	answer, err := s.assist.Assist(r.Context(), req.Question)
	if err != nil {
		slog.Error("Server.assistHandler: generation failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "Failed to generate answer")
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"answer": answer}))
}
