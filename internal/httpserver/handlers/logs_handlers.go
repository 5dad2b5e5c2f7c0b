package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
)

// MyPredictions lists the caller's prediction records. Admins may pass
// all=1 to see every user's.
func MyPredictions(log *audit.Log, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		uid := &c.UserID
		if r.URL.Query().Get("all") == "1" && c.Admin {
			uid = nil
		}
		recs, err := log.Predictions(r.Context(), uid, queryLimit(r))
		if err != nil {
			lg.Errorw("list predictions failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, recs)
	}
}

func Audits(log *audit.Log, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := log.Predictions(r.Context(), nil, queryLimit(r))
		if err != nil {
			lg.Errorw("list audits failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, recs)
	}
}

func Events(log *audit.Log, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		evs, err := log.Events(r.Context(), queryLimit(r))
		if err != nil {
			lg.Errorw("list events failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, evs)
	}
}
