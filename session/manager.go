package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	ttauth "github.com/pilab-dev/tiktok-auth"
	"golang.org/x/crypto/hkdf"
)

// Cookie names.
const (
	TokenCookieName     = "tiktok_access_token"
	ScopesCookieName    = "tiktok_scopes"
	SessionCookieName   = "tiktok_session"
	AttemptCookiePrefix = "tiktok_pkce_"
)

// DefaultTokenMaxAge applies to tokens without expires_in.
const DefaultTokenMaxAge = time.Hour

const sessionMaxAge = 30 * 24 * time.Hour

// MinSecretLength is the shortest accepted cookie secret.
const MinSecretLength = 32

// Options configures a Manager.
type Options struct {
	// Secret seeds the cookie signing and encryption keys.
	Secret string
	// Secure marks every cookie Secure. Enable it in production.
	Secure bool
	// VerifierTTL bounds how long an authorization attempt stays valid.
	VerifierTTL time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Manager reads and writes the auth cookies. All values except the scopes
// cookie are signed and encrypted.
type Manager struct {
	codec       *securecookie.SecureCookie
	secure      bool
	verifierTTL time.Duration
	now         func() time.Time
}

// NewManager derives the cookie keys from opts.Secret.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, fmt.Errorf("cookie secret must be at least %d characters", MinSecretLength)
	}
	hashKey, err := deriveKey(opts.Secret, "tiktok-auth cookie hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(opts.Secret, "tiktok-auth cookie block", 32)
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// Expiry is enforced by the cookie MaxAge and the payload timestamps.
	codec.MaxAge(0)

	ttl := opts.VerifierTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		codec:       codec,
		secure:      opts.Secure,
		verifierTTL: ttl,
		now:         now,
	}, nil
}

func deriveKey(secret, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	return key, nil
}

func (m *Manager) cookie(name, value, path string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: httpOnly,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) expire(w http.ResponseWriter, name, path string, httpOnly bool) {
	c := m.cookie(name, "", path, 0, httpOnly)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

// tokenMaxAge is the cookie lifetime for values tied to tok. ok is false
// when tok has already expired.
func (m *Manager) tokenMaxAge(tok *ttauth.Token) (maxAge time.Duration, ok bool) {
	if tok.ExpiresIn <= 0 {
		return DefaultTokenMaxAge, true
	}
	maxAge = tok.TTL(m.now())
	return maxAge, maxAge >= time.Second
}

func (m *Manager) write(w http.ResponseWriter, name, path string, v interface{}, maxAge time.Duration) error {
	encoded, err := m.codec.Encode(name, v)
	if err != nil {
		return fmt.Errorf("encode cookie %s: %w", name, err)
	}
	http.SetCookie(w, m.cookie(name, encoded, path, maxAge, true))
	return nil
}

var errNoCookie = errors.New("cookie not present")

func (m *Manager) read(r *http.Request, name string, v interface{}) error {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return errNoCookie
	}
	return m.codec.Decode(name, c.Value, v)
}
