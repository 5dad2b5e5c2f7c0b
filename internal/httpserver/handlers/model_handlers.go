package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/inference"
	"oncoscan/internal/metrics"
)

const serviceName = "oncoscan"

type statusResp struct {
	Service string `json:"service"`
	inference.Status
}

func Status(mgr *inference.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, statusResp{Service: serviceName, Status: mgr.Status()})
	}
}

// Reload swaps in a backend built from the current configuration. A failed
// load keeps the previous backend serving.
func Reload(mgr *inference.Manager, events EventRecorder, m *metrics.Metrics, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		st, err := mgr.Reload(r.Context())
		m.ObserveReload(err == nil)
		meta := map[string]any{"backend": st.Backend, "reloaded": err == nil}
		recordEvent(r, events, lg, &c.UserID, audit.ActionModelReload, meta)
		if err != nil {
			lg.Errorw("model reload requested by user failed", "user", c.Subject, "error", err)
			respondStatus(w, http.StatusInternalServerError, map[string]any{
				"reloaded": false, "error": "model reload failed", "status": st,
			})
			return
		}
		respondJSON(w, map[string]any{"reloaded": true, "status": st})
	}
}
