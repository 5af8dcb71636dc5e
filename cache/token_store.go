package cache

import (
	"context"
	"errors"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

// SessionStore keeps one token per server side session.
type SessionStore interface {
	// Put stores tok for sessionID, replacing any previous token. The entry
	// expires together with the access token.
	Put(ctx context.Context, sessionID string, tok *ttauth.Token) error
	// Get returns ttauth.ErrTokenNotFound for unknown or expired sessions.
	Get(ctx context.Context, sessionID string) (*ttauth.Token, error)
	// Delete removes the session's token.
	Delete(ctx context.Context, sessionID string) error
}

// ErrEmptySessionID is returned when a session id is missing.
var ErrEmptySessionID = errors.New("session id is empty")

// sessionTokenStore binds a SessionStore to one session.
type sessionTokenStore struct {
	store     SessionStore
	sessionID string
}

// Bind returns a ttauth.TokenStore for a single session of store.
func Bind(store SessionStore, sessionID string) ttauth.TokenStore {
	return &sessionTokenStore{store: store, sessionID: sessionID}
}

func (s *sessionTokenStore) Save(ctx context.Context, tok *ttauth.Token) error {
	if s.sessionID == "" {
		return ErrEmptySessionID
	}
	return s.store.Put(ctx, s.sessionID, tok)
}

func (s *sessionTokenStore) Load(ctx context.Context) (*ttauth.Token, error) {
	if s.sessionID == "" {
		return nil, ttauth.ErrTokenNotFound
	}
	return s.store.Get(ctx, s.sessionID)
}

func (s *sessionTokenStore) Clear(ctx context.Context) error {
	if s.sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, s.sessionID)
}
