package session

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	ttauth "github.com/pilab-dev/tiktok-auth"
)

// SetScopes exposes the granted scopes to the frontend. The cookie is not
// httpOnly and carries no secret.
func (m *Manager) SetScopes(w http.ResponseWriter, tok *ttauth.Token) {
	maxAge, ok := m.tokenMaxAge(tok)
	if !ok {
		m.expire(w, ScopesCookieName, "/", false)
		return
	}
	http.SetCookie(w, m.cookie(ScopesCookieName, tok.GrantedScopeString(), "/", maxAge, false))
}

// Scopes reads the scopes cookie.
func (m *Manager) Scopes(r *http.Request) []string {
	c, err := r.Cookie(ScopesCookieName)
	if err != nil || c.Value == ttauth.NoScope {
		return nil
	}
	return ttauth.ParseScope(c.Value)
}

// ClearScopes expires the scopes cookie.
func (m *Manager) ClearScopes(w http.ResponseWriter) {
	m.expire(w, ScopesCookieName, "/", false)
}

// SessionID returns the id of the server side session, issuing one when the
// request has none. The id cookie is signed.
func (m *Manager) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	var id string
	if err := m.read(r, SessionCookieName, &id); err == nil && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	encoded, err := m.codec.Encode(SessionCookieName, id)
	if err != nil {
		return "", fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, m.cookie(SessionCookieName, encoded, "/", sessionMaxAge, true))
	// Later lookups within the same request must resolve the same session.
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: encoded})
	return id, nil
}
