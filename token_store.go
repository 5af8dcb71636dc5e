package ttauth

import (
	"context"
	"sync"
	"time"
)

// TokenStore persists the token of one session. Save supersedes any
// previously stored token; there is no merging.
type TokenStore interface {
	// Save stores tok. Implementations expire it no later than tok.Expiry().
	Save(ctx context.Context, tok *Token) error
	// Load returns ErrTokenNotFound when nothing (or only an expired token) is stored.
	Load(ctx context.Context) (*Token, error)
	// Clear removes the stored token.
	Clear(ctx context.Context) error
}

// InMemoryTokenStore is a TokenStore for a single session, mostly useful in
// tests and CLI tools.
type InMemoryTokenStore struct {
	mu  sync.RWMutex
	tok *Token
	now func() time.Time
}

// NewInMemoryTokenStore creates an empty store.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{now: time.Now}
}

// Save implements TokenStore.Save.
func (s *InMemoryTokenStore) Save(_ context.Context, tok *Token) error {
	cp := *tok
	cp.GrantedScope = append([]string(nil), tok.GrantedScope...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = &cp
	return nil
}

// Load implements TokenStore.Load.
func (s *InMemoryTokenStore) Load(_ context.Context) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil || !s.tok.Valid(s.now()) {
		return nil, ErrTokenNotFound
	}
	cp := *s.tok
	return &cp, nil
}

// Clear implements TokenStore.Clear.
func (s *InMemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}

var _ TokenStore = (*InMemoryTokenStore)(nil)
