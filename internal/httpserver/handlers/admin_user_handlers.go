package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/models"
	"oncoscan/internal/users"
)

func ListUsers(repo *users.Repository, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.List(r.Context())
		if err != nil {
			lg.Errorw("list users failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, list)
	}
}

func CreateUser(repo *users.Repository, events EventRecorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			FullName string `json:"full_name"`
			IsAdmin  bool   `json:"is_admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username/password required", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}
		u := models.User{Username: req.Username, PasswordHash: hash, FullName: strings.TrimSpace(req.FullName), IsAdmin: req.IsAdmin}
		if err := repo.Create(r.Context(), &u); err != nil {
			writeUserError(w, lg, err)
			return
		}
		actor := auth.FromContext(r.Context()).UserID
		recordEvent(r, events, lg, &actor, audit.ActionUserCreate, map[string]any{"username": u.Username, "is_admin": u.IsAdmin})
		respondStatus(w, http.StatusCreated, u)
	}
}

func UpdateUser(repo *users.Repository, events EventRecorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		var req struct {
			Password *string `json:"password"`
			IsAdmin  *bool   `json:"is_admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var upd users.Update
		changed := []string{}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				http.Error(w, "hash error", http.StatusInternalServerError)
				return
			}
			upd.PasswordHash = &hash
			changed = append(changed, "password")
		}
		if req.IsAdmin != nil {
			upd.IsAdmin = req.IsAdmin
			changed = append(changed, "is_admin")
		}
		u, err := repo.Apply(r.Context(), username, upd)
		if err != nil {
			writeUserError(w, lg, err)
			return
		}
		if len(changed) > 0 {
			actor := auth.FromContext(r.Context()).UserID
			recordEvent(r, events, lg, &actor, audit.ActionUserUpdate, map[string]any{"username": u.Username, "fields": changed})
		}
		respondJSON(w, u)
	}
}

func writeUserError(w http.ResponseWriter, lg *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, users.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, users.ErrDuplicate):
		http.Error(w, "username already exists", http.StatusConflict)
	case errors.Is(err, users.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		lg.Errorw("user store failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
