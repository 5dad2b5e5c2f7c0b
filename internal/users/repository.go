// Package users is the credential store: persisted user records with a
// short-lived read cache in front of the database.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"oncoscan/internal/models"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("username already exists")
	ErrInvalid   = errors.New("username and password hash are required")
)

// Update carries the mutable fields of a user. Nil means unchanged.
type Update struct {
	PasswordHash *string
	IsAdmin      *bool
}

type Repository struct {
	db    *gorm.DB
	cache *gocache.Cache
}

// NewRepository caches lookups for ttl. A zero ttl disables caching.
func NewRepository(db *gorm.DB, ttl time.Duration) *Repository {
	r := &Repository{db: db}
	if ttl > 0 {
		r.cache = gocache.New(ttl, 2*ttl)
	}
	return r
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, ErrNotFound
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(username); ok {
			return v.(models.User), nil
		}
	}
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	if r.cache != nil {
		r.cache.SetDefault(username, u)
	}
	return u, nil
}

func (r *Repository) Exists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", strings.TrimSpace(username)).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) Create(ctx context.Context, u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || u.PasswordHash == "" {
		return ErrInvalid
	}
	exists, err := r.Exists(ctx, u.Username)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}
	err = r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Apply changes the password and/or admin flag of username.
func (r *Repository) Apply(ctx context.Context, username string, upd Update) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	changes := map[string]any{}
	if upd.PasswordHash != nil && *upd.PasswordHash != "" {
		changes["password_hash"] = *upd.PasswordHash
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsAdmin != nil {
		changes["is_admin"] = *upd.IsAdmin
		u.IsAdmin = *upd.IsAdmin
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := r.db.WithContext(ctx).Model(&u).Updates(changes).Error; err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	if r.cache != nil {
		r.cache.Delete(u.Username)
	}
	return u, nil
}
