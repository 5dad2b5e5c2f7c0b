package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"oncoscan/internal/models"
	"oncoscan/internal/users"
)

// UserStore is the read side of the credential store.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service struct {
	store  UserStore
	tokens *TokenManager
}

func NewService(store UserStore, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// burnHash spends one bcrypt comparison so unknown usernames take as long
// as wrong passwords.
func burnHash(pw string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("oncoscan-timing-equaliser")
	})
	_ = CheckPassword(dummyHash, pw)
}

// Authenticate verifies username/password and issues a token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Token, models.User, error) {
	u, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, users.ErrNotFound) {
		burnHash(password)
		return Token{}, models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, models.User{}, err
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		return Token{}, models.User{}, ErrInvalidCredentials
	}
	tok, exp, err := s.tokens.Sign(u.Username, u.IsAdmin)
	if err != nil {
		return Token{}, models.User{}, err
	}
	return Token{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp}, u, nil
}

// Verify checks a token without touching the store.
func (s *Service) Verify(token string) (Claims, error) {
	return s.tokens.Verify(token)
}

// Resolve verifies token and loads the user it names, so tokens of users
// that no longer exist are rejected. Role flags come from the store, not
// from the token.
func (s *Service) Resolve(ctx context.Context, token string) (Claims, error) {
	c, err := s.tokens.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	u, err := s.store.FindByUsername(ctx, c.Subject)
	if errors.Is(err, users.ErrNotFound) {
		return Claims{}, ErrInvalidCredentials
	}
	if err != nil {
		return Claims{}, err
	}
	return Claims{Subject: u.Username, UserID: u.ID, FullName: u.FullName, Admin: u.IsAdmin}, nil
}
