package ttauth

import (
	"fmt"
	"net/url"
)

// AuthURLBuilder composes the TikTok consent screen URL. It has no side
// effects: persisting the verifier is up to the caller.
type AuthURLBuilder struct {
	identity  ClientIdentity
	endpoints Endpoints
}

// NewAuthURLBuilder creates a builder for the given application.
func NewAuthURLBuilder(identity ClientIdentity, endpoints Endpoints) *AuthURLBuilder {
	return &AuthURLBuilder{
		identity:  identity,
		endpoints: endpoints,
	}
}

// Build returns the authorization URL. redirectURI is passed through
// untouched and must be absolute. scope is normalized first; an empty result
// fails with ErrInvalidScope. state may be empty.
func (b *AuthURLBuilder) Build(redirectURI, scope, state, challenge string) (string, error) {
	if err := ValidateRedirectURI(redirectURI); err != nil {
		return "", err
	}

	normalized, err := NormalizeScope(scope)
	if err != nil {
		return "", err
	}

	if challenge == "" {
		return "", &AuthError{Kind: ErrMissingVerifier, Description: "code challenge is empty"}
	}

	u, err := url.Parse(b.endpoints.AuthorizeURL())
	if err != nil {
		return "", fmt.Errorf("invalid authorize endpoint: %w", err)
	}

	q := url.Values{}
	q.Set("client_key", b.identity.Key)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", normalized)
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", CodeChallengeMethod)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ValidateRedirectURI requires an absolute http(s) URL without a fragment.
func ValidateRedirectURI(redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return &AuthError{Kind: ErrInvalidRedirectURI, Description: redirectURI, Err: err}
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return &AuthError{Kind: ErrInvalidRedirectURI, Description: fmt.Sprintf("%q is not an absolute http(s) URL", redirectURI)}
	}
	if u.Fragment != "" {
		return &AuthError{Kind: ErrInvalidRedirectURI, Description: fmt.Sprintf("%q must not contain a fragment", redirectURI)}
	}
	return nil
}
