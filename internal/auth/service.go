// Package auth turns credentials into verified user identities. The game
// core never sees tokens or passwords, only resolved user ids.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// TokenStore holds opaque session tokens (Redis in production, memory in
// tests) with a TTL per token.
type TokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Resolve returns the user id for a token, or "" when unknown/expired.
	Resolve(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

// Service implements registration, login, and token resolution.
type Service struct {
	store      app.Store
	tokens     TokenStore
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(store app.Store, tokens TokenStore, sessionTTL time.Duration) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register creates a user after validating the input and hashing the
// password. Email and username are lowercased before the uniqueness check.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))
	displayName := strings.TrimSpace(input.DisplayName)

	if !strings.Contains(email, "@") || len(email) < 5 {
		return nil, domain.Validationf("email", "enter a valid email")
	}
	if !usernameRe.MatchString(username) {
		return nil, domain.Validationf("username", "3-20 characters, letters/digits/underscore")
	}
	if len(displayName) < 2 || len(displayName) > 40 {
		return nil, domain.Validationf("displayName", "2-40 characters")
	}
	if len(input.Password) < 8 || len(input.Password) > 64 {
		return nil, domain.Validationf("password", "8-64 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx app.Tx) error {
		if existing, err := tx.UserByEmail(ctx, email); err != nil {
			return err
		} else if existing != nil {
			return domain.ErrEmailOrUsernameTaken
		}
		if existing, err := tx.UserByUsername(ctx, username); err != nil {
			return err
		} else if existing != nil {
			return domain.ErrEmailOrUsernameTaken
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials against the stored hash and mints a session
// token. The identifier may be an email or a username.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, *domain.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.UserByEmail(ctx, identifier)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		user, err = s.store.UserByUsername(ctx, identifier)
		if err != nil {
			return "", nil, err
		}
	}
	if user == nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.tokens.Save(ctx, token, user.ID, s.sessionTTL); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout invalidates a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Delete(ctx, token)
}

// ResolveToken maps a session token to a verified user id.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrNotAuthenticated
	}
	userID, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}
	return userID, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
