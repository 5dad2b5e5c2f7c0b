package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrImmutable is returned by hooks guarding append-only tables.
var ErrImmutable = errors.New("record is immutable")

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PredictionRecord is one row of the inference audit trail.
type PredictionRecord struct {
	ID             string    `gorm:"primaryKey;size:36" json:"audit_id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Username       string    `gorm:"size:150;not null" json:"username"`
	Filename       string    `gorm:"size:255" json:"filename"`
	Modality       string    `gorm:"size:32" json:"scan_modality"`
	SizeBytes      int64     `json:"size_bytes"`
	SHA256         string    `gorm:"size:64;index" json:"sha256"`
	StorageURI     string    `gorm:"size:1024" json:"storage_uri,omitempty"`
	BackendName    string    `gorm:"size:64;not null" json:"backend"`
	PrimaryFinding string    `gorm:"size:128" json:"primary_finding"`
	Probability    float64   `json:"probability"`
	ProcessingMS   int64     `json:"processing_ms"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (p *PredictionRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *PredictionRecord) BeforeUpdate(tx *gorm.DB) error { return ErrImmutable }
func (p *PredictionRecord) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }

// AuditEvent records security relevant actions other than predictions.
type AuditEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Metadata  JSONB     `json:"metadata"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (e *AuditEvent) BeforeUpdate(tx *gorm.DB) error { return ErrImmutable }
func (e *AuditEvent) BeforeDelete(tx *gorm.DB) error { return ErrImmutable }

type CompanyProfile struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Address      string    `gorm:"size:512" json:"address"`
	ContactEmail string    `gorm:"size:255" json:"contact_email"`
	LogoURL      string    `gorm:"size:1024" json:"logo_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// All lists every table managed by AutoMigrate, parents first.
func All() []any {
	return []any{&User{}, &PredictionRecord{}, &AuditEvent{}, &CompanyProfile{}}
}
