package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/engine"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/orchestrate"
	"github.com/nodemesh/datashare/registry"
)

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Could not encode response", "error", err)
	}
}

// writeError emits the structured error document. The HTTP status doubles
// as the error code, matching what clients re-parse on the other side.
func writeError(logger *slog.Logger, w http.ResponseWriter, status int, source, message string) {
	logger.Error("Request failed", "status", status, "message", message)
	writeJSON(logger, w, status, models.Error{
		Code:    status,
		Message: message,
		Source:  source,
		Date:    time.Now().UTC(),
	})
}

// statusFor keeps not-found conditions at 404 no matter how many times
// they were wrapped on the way up; everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNodeNotFound),
		errors.Is(err, engine.ErrInvitationNotFound),
		errors.Is(err, orchestrate.ErrNodeUnknown),
		errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
