// Package api provides HTTP response utilities for citabot.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"citabot/internal/models"
)

// fallbackBody is served when marshaling a response fails. Built once at
// startup so the failure path never depends on runtime encoding.
var fallbackBody []byte

func init() {
	var err error
	fallbackBody, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("failed to marshal fallback response at startup: %v", err))
	}
}

// writeJSONResponse writes the envelope with the given status code. The body
// is marshaled before the writer is touched, so an encoding failure can still
// downgrade the status to 500 and serve the fallback.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response models.APIResponse) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal response", "error", err, "status", response.Status)
		body = fallbackBody
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write response", "error", err)
	}
}

// writeJSONError is shorthand for the error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, models.Error(message))
}
