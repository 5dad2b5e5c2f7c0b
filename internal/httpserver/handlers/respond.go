package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"oncoscan/internal/audit"
)

// EventRecorder appends security events to the audit trail.
type EventRecorder interface {
	RecordEvent(ctx context.Context, userID *uint, action string, metadata map[string]any) error
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	respondStatus(w, http.StatusOK, v)
}

func respondStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// recordEvent appends an audit event; failures are only logged.
func recordEvent(r *http.Request, events EventRecorder, lg *zap.SugaredLogger, userID *uint, action string, metadata map[string]any) {
	if events == nil {
		return
	}
	if err := events.RecordEvent(r.Context(), userID, action, metadata); err != nil {
		lg.Errorw("audit event failed", "action", action, "error", err)
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return audit.DefaultLimit
	}
	return n
}
