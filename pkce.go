package ttauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// MinVerifierLength and MaxVerifierLength bound the accepted code_verifier length.
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// CodeChallengeMethod is sent alongside the challenge. TikTok keeps the
	// S256 label even though it expects a hex encoded digest.
	CodeChallengeMethod = "S256"

	verifierEntropyBytes = 96
)

// PKCEPair is a code verifier together with its derived challenge.
// A pair belongs to exactly one authorization attempt.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// ChallengeTransform derives a code challenge from a verifier.
type ChallengeTransform func(verifier string) string

// HexSHA256Challenge is the transform TikTok expects: the lowercase hex
// encoding of SHA-256(verifier).
func HexSHA256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return hex.EncodeToString(sum[:])
}

// S256Challenge is the RFC 7636 transform (base64url without padding).
// It is not accepted by TikTok.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// PKCEGenerator produces verifier/challenge pairs.
type PKCEGenerator struct {
	rand      io.Reader
	transform ChallengeTransform
}

// PKCEOption configures a PKCEGenerator.
type PKCEOption func(*PKCEGenerator)

// WithRandSource replaces crypto/rand as the entropy source.
func WithRandSource(r io.Reader) PKCEOption {
	return func(g *PKCEGenerator) {
		g.rand = r
	}
}

// WithChallengeTransform replaces the default hex transform.
func WithChallengeTransform(t ChallengeTransform) PKCEOption {
	return func(g *PKCEGenerator) {
		g.transform = t
	}
}

// NewPKCEGenerator creates a generator backed by crypto/rand and the hex transform.
func NewPKCEGenerator(opts ...PKCEOption) *PKCEGenerator {
	g := &PKCEGenerator{
		rand:      rand.Reader,
		transform: HexSHA256Challenge,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate draws a fresh verifier and derives its challenge. The only
// failure is a broken randomness source, reported as ErrRandomSource.
func (g *PKCEGenerator) Generate() (PKCEPair, error) {
	buf := make([]byte, verifierEntropyBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return PKCEPair{}, fmt.Errorf("%w: %w", ErrRandomSource, err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(buf)
	if len(verifier) > MaxVerifierLength {
		verifier = verifier[:MaxVerifierLength]
	}

	return PKCEPair{
		Verifier:  verifier,
		Challenge: g.transform(verifier),
	}, nil
}

// Challenge derives the challenge for an existing verifier.
func (g *PKCEGenerator) Challenge(verifier string) string {
	return g.transform(verifier)
}

// GeneratePKCEPair is a shortcut for NewPKCEGenerator().Generate().
func GeneratePKCEPair() (PKCEPair, error) {
	return NewPKCEGenerator().Generate()
}

// CheckRandomSource makes sure the operating system CSPRNG is usable.
// Binaries call it at startup and refuse to run when it fails.
func CheckRandomSource() error {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Errorf("%w: %w", ErrRandomSource, err)
	}
	return nil
}

// ValidVerifier reports whether v has an accepted length and only uses
// unreserved characters.
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
