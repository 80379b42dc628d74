package memory

import (
	"context"
	"sync"
	"time"
)

// TokenStore is an in-memory implementation of auth.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	clock  func() time.Time
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	userID    string
	expiresAt time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		clock:  time.Now,
		tokens: make(map[string]tokenEntry),
	}
}

func (s *TokenStore) Save(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = tokenEntry{userID: userID, expiresAt: s.clock().Add(ttl)}
	return nil
}

func (s *TokenStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if !entry.expiresAt.After(s.clock()) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return "", nil
	}
	return entry.userID, nil
}

func (s *TokenStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
