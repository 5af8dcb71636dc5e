package session

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	ttauth "github.com/pilab-dev/tiktok-auth"
)

// stateSeparator joins the attempt id and the caller supplied state.
const stateSeparator = "."

// Attempt is one in-flight authorization. Every authorize call creates its
// own, so concurrent logins in one browser do not overwrite each other.
type Attempt struct {
	ID          string `json:"id"`
	Verifier    string `json:"verifier"`
	CallerState string `json:"caller_state,omitempty"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	// ReturnTo is a local path the user is sent to after success.
	ReturnTo  string    `json:"return_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAttempt starts an attempt for a freshly generated pair.
func (m *Manager) NewAttempt(pair ttauth.PKCEPair, callerState, redirectURI, scope string) *Attempt {
	return &Attempt{
		ID:          uuid.NewString(),
		Verifier:    pair.Verifier,
		CallerState: callerState,
		RedirectURI: redirectURI,
		Scope:       scope,
		CreatedAt:   m.now(),
	}
}

// State is the value sent upstream as the OAuth state parameter.
func (a *Attempt) State() string {
	if a.CallerState == "" {
		return a.ID
	}
	return a.ID + stateSeparator + a.CallerState
}

// SplitState reverses Attempt.State.
func SplitState(state string) (attemptID, callerState string) {
	attemptID, callerState, _ = strings.Cut(state, stateSeparator)
	return attemptID, callerState
}

// AttemptCookieName is the cookie holding the attempt with the given id.
func AttemptCookieName(id string) string {
	return AttemptCookiePrefix + id
}

// cookiePath scopes the attempt cookie to the callback path.
func cookiePath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// SaveAttempt writes the attempt cookie.
func (m *Manager) SaveAttempt(w http.ResponseWriter, a *Attempt) error {
	return m.write(w, AttemptCookieName(a.ID), cookiePath(a.RedirectURI), a, m.verifierTTL)
}

// LoadAttempt returns the attempt named by id. Missing, tampered and expired
// attempts all yield ttauth.ErrMissingVerifier.
func (m *Manager) LoadAttempt(r *http.Request, id string) (*Attempt, error) {
	if id == "" {
		return nil, &ttauth.AuthError{Kind: ttauth.ErrMissingVerifier, Description: "state carries no attempt id"}
	}
	var a Attempt
	if err := m.read(r, AttemptCookieName(id), &a); err != nil {
		return nil, &ttauth.AuthError{Kind: ttauth.ErrMissingVerifier, Description: "no verifier stored for this attempt", Err: err}
	}
	if a.ID != id {
		return nil, &ttauth.AuthError{Kind: ttauth.ErrStateMismatch, Description: "attempt id does not match state"}
	}
	if m.now().Sub(a.CreatedAt) > m.verifierTTL {
		return nil, &ttauth.AuthError{Kind: ttauth.ErrMissingVerifier, Description: "authorization attempt expired"}
	}
	return &a, nil
}

// ClearAttempt expires the attempt cookie. redirectURI must be the one the
// attempt was created with; when unknown the request path is used.
func (m *Manager) ClearAttempt(w http.ResponseWriter, r *http.Request, id, redirectURI string) {
	if id == "" {
		return
	}
	path := r.URL.Path
	if redirectURI != "" {
		path = cookiePath(redirectURI)
	}
	m.expire(w, AttemptCookieName(id), path, true)
}
