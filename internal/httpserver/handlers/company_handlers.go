package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/models"
)

// GetCompany returns the single company profile, or an empty one when none
// has been saved yet.
func GetCompany(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c models.CompanyProfile
		err := db.WithContext(r.Context()).Order("id").First(&c).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			lg.Errorw("load company profile failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		respondJSON(w, c)
	}
}

// SaveCompany upserts the company profile. Omitted fields keep their value.
func SaveCompany(db *gorm.DB, events EventRecorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name         *string `json:"name"`
			Address      *string `json:"address"`
			ContactEmail *string `json:"contact_email"`
			LogoURL      *string `json:"logo_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var c models.CompanyProfile
		err := db.WithContext(r.Context()).Order("id").First(&c).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			lg.Errorw("load company profile failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
		}
		if req.Address != nil {
			c.Address = strings.TrimSpace(*req.Address)
		}
		if req.ContactEmail != nil {
			c.ContactEmail = strings.TrimSpace(*req.ContactEmail)
		}
		if req.LogoURL != nil {
			c.LogoURL = strings.TrimSpace(*req.LogoURL)
		}

		if c.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		// Same limits as the column sizes.
		if utf8.RuneCountInString(c.Name) > 255 || utf8.RuneCountInString(c.Address) > 512 {
			http.Error(w, "name must be <= 255 and address <= 512 characters", http.StatusBadRequest)
			return
		}
		if c.ContactEmail != "" {
			if _, err := mail.ParseAddress(c.ContactEmail); err != nil {
				http.Error(w, "contact_email is not a valid address", http.StatusBadRequest)
				return
			}
		}

		if err := db.WithContext(r.Context()).Save(&c).Error; err != nil {
			lg.Errorw("save company profile failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		actor := auth.FromContext(r.Context()).UserID
		recordEvent(r, events, lg, &actor, audit.ActionCompanyUpdate, map[string]any{"name": c.Name})
		respondJSON(w, c)
	}
}
