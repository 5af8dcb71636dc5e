package ttauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// AccessTokenPrefix is carried by every TikTok user access token.
const AccessTokenPrefix = "act."

const minAccessTokenLength = 20

// Token is the result of a successful grant. Tokens are opaque to this package.
type Token struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	TokenType        string    `json:"token_type,omitempty"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresIn int64     `json:"refresh_expires_in,omitempty"`
	OpenID           string    `json:"open_id,omitempty"`
	GrantedScope     []string  `json:"scope,omitempty"`
	ScopeReturned    bool      `json:"scope_returned"`
	IssuedAt         time.Time `json:"issued_at"`
}

// Expiry is the instant at which the access token must be considered dead.
// A zero ExpiresIn yields a zero time.
func (t *Token) Expiry() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// RefreshExpiry is the instant after which the refresh token is unusable.
func (t *Token) RefreshExpiry() time.Time {
	if t.RefreshExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.RefreshExpiresIn) * time.Second)
}

// Valid reports whether the access token is present and not yet expired at now.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	exp := t.Expiry()
	return exp.IsZero() || now.Before(exp)
}

// TTL returns the remaining lifetime of the access token at now.
func (t *Token) TTL(now time.Time) time.Duration {
	exp := t.Expiry()
	if exp.IsZero() {
		return 0
	}
	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}

// GrantedScopeString renders the granted scopes for display. It returns
// NoScope when the provider did not return a scope field at all.
func (t *Token) GrantedScopeString() string {
	if !t.ScopeReturned || len(t.GrantedScope) == 0 {
		return NoScope
	}
	return strings.Join(t.GrantedScope, ScopeSeparator)
}

// HasScope reports whether scope was granted.
func (t *Token) HasScope(scope string) bool {
	for _, s := range t.GrantedScope {
		if s == scope {
			return true
		}
	}
	return false
}

// OAuth2 converts the token for use with golang.org/x/oauth2 transports.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry(),
	}
	return tok.WithExtra(map[string]interface{}{
		"open_id": t.OpenID,
		"scope":   strings.Join(t.GrantedScope, ScopeSeparator),
	})
}

// LooksLikeAccessToken is the cheap structural check applied before any
// network call. It is an optimization, not a security boundary.
func LooksLikeAccessToken(token string) bool {
	return strings.HasPrefix(token, AccessTokenPrefix) && len(token) > minAccessTokenLength
}
