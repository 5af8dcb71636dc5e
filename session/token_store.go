package session

import (
	"context"
	"net/http"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/cache"
	"github.com/rs/zerolog/log"
)

// StoreFunc returns the token store for the session of one request.
type StoreFunc func(w http.ResponseWriter, r *http.Request) ttauth.TokenStore

// CookieTokenStore keeps the token in an encrypted httpOnly cookie. A token
// saved during a request is visible to later Loads of the same request.
type CookieTokenStore struct {
	m       *Manager
	w       http.ResponseWriter
	r       *http.Request
	saved   *ttauth.Token
	cleared bool
}

// TokenStore returns the cookie store for a request.
func (m *Manager) TokenStore(w http.ResponseWriter, r *http.Request) ttauth.TokenStore {
	return &CookieTokenStore{m: m, w: w, r: r}
}

// CookieStores stores tokens client side.
func (m *Manager) CookieStores() StoreFunc {
	return m.TokenStore
}

// ServerStores stores tokens in store, keyed by the session cookie.
func (m *Manager) ServerStores(store cache.SessionStore) StoreFunc {
	return func(w http.ResponseWriter, r *http.Request) ttauth.TokenStore {
		id, err := m.SessionID(w, r)
		if err != nil {
			log.Error().Err(err).Msg("failed to issue session id")
			return failedStore{err: err}
		}
		return cache.Bind(store, id)
	}
}

// failedStore is handed out when no session id could be issued.
type failedStore struct {
	err error
}

func (f failedStore) Save(context.Context, *ttauth.Token) error { return f.err }

func (f failedStore) Load(context.Context) (*ttauth.Token, error) { return nil, f.err }

func (f failedStore) Clear(context.Context) error { return f.err }

// Save implements ttauth.TokenStore.Save.
func (s *CookieTokenStore) Save(_ context.Context, tok *ttauth.Token) error {
	maxAge, ok := s.m.tokenMaxAge(tok)
	if !ok {
		// MaxAge 0 would leave a session cookie behind.
		s.m.expire(s.w, TokenCookieName, "/", true)
		s.saved, s.cleared = nil, true
		return nil
	}
	if err := s.m.write(s.w, TokenCookieName, "/", tok, maxAge); err != nil {
		return err
	}
	cp := *tok
	s.saved, s.cleared = &cp, false
	return nil
}

// Load implements ttauth.TokenStore.Load.
func (s *CookieTokenStore) Load(_ context.Context) (*ttauth.Token, error) {
	if s.saved != nil {
		cp := *s.saved
		return &cp, nil
	}
	if s.cleared {
		return nil, ttauth.ErrTokenNotFound
	}
	var tok ttauth.Token
	if err := s.m.read(s.r, TokenCookieName, &tok); err != nil {
		return nil, ttauth.ErrTokenNotFound
	}
	if !tok.Valid(s.m.now()) {
		return nil, ttauth.ErrTokenNotFound
	}
	return &tok, nil
}

// Clear implements ttauth.TokenStore.Clear.
func (s *CookieTokenStore) Clear(_ context.Context) error {
	s.m.expire(s.w, TokenCookieName, "/", true)
	s.saved, s.cleared = nil, true
	return nil
}

var _ ttauth.TokenStore = (*CookieTokenStore)(nil)
