package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/metrics"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login accepts a JSON body or an OAuth2 password form.
func Login(svc *auth.Service, events EventRecorder, m *metrics.Metrics, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if ct == "application/json" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			req.Username = r.PostForm.Get("username")
			req.Password = r.PostForm.Get("password")
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}

		tok, u, err := svc.Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			m.ObserveLogin(false)
			recordEvent(r, events, lg, nil, audit.ActionLoginFailed, map[string]any{"username": req.Username})
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "incorrect username or password", http.StatusUnauthorized)
			return
		}
		if err != nil {
			lg.Errorw("login failed", "username", req.Username, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		m.ObserveLogin(true)
		recordEvent(r, events, lg, &u.ID, audit.ActionLogin, nil)
		respondJSON(w, tok)
	}
}

func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		respondJSON(w, map[string]any{
			"user_id": c.UserID, "username": c.Subject, "full_name": c.FullName, "is_admin": c.Admin,
		})
	}
}
