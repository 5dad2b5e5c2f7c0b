// Package audit is the append-only record of inference requests and
// security events.
package audit

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"oncoscan/internal/models"
)

var ErrWriteFailure = errors.New("audit write failed")

const (
	ActionLogin         = "LOGIN"
	ActionLoginFailed   = "LOGIN_FAILED"
	ActionModelReload   = "MODEL_RELOAD"
	ActionUserCreate    = "USER_CREATE"
	ActionUserUpdate    = "USER_UPDATE"
	ActionCompanyUpdate = "COMPANY_UPDATE"

	DefaultLimit = 50
	MaxLimit     = 500
)

type Log struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Log {
	return &Log{db: db}
}

// RecordPrediction appends rec. rec.ID is assigned when empty.
func (l *Log) RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("%w: prediction %s: %v", ErrWriteFailure, rec.ID, err)
	}
	return nil
}

// RecordEvent appends a security event. userID may be nil for anonymous
// actions such as failed logins.
func (l *Log) RecordEvent(ctx context.Context, userID *uint, action string, metadata map[string]any) error {
	ev := models.AuditEvent{UserID: userID, Action: action, Metadata: models.NewJSONB(metadata)}
	if err := l.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrWriteFailure, action, err)
	}
	return nil
}

// Predictions returns the newest records first. A nil userID returns
// records of every user.
func (l *Log) Predictions(ctx context.Context, userID *uint, limit int) ([]models.PredictionRecord, error) {
	q := l.db.WithContext(ctx).Order("created_at desc").Limit(clamp(limit))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var recs []models.PredictionRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return recs, nil
}

func (l *Log) Events(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	var evs []models.AuditEvent
	if err := l.db.WithContext(ctx).Order("created_at desc").Limit(clamp(limit)).Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return evs, nil
}

func clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
