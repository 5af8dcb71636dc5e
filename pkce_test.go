package ttauth_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"testing"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var verifierAlphabet = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)

func TestGeneratePKCEPair(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		pair, err := ttauth.GeneratePKCEPair()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(pair.Verifier), ttauth.MinVerifierLength)
		assert.LessOrEqual(t, len(pair.Verifier), ttauth.MaxVerifierLength)
		assert.Regexp(t, verifierAlphabet, pair.Verifier)
		assert.True(t, ttauth.ValidVerifier(pair.Verifier))

		sum := sha256.Sum256([]byte(pair.Verifier))
		assert.Equal(t, hex.EncodeToString(sum[:]), pair.Challenge)

		_, dup := seen[pair.Verifier]
		assert.False(t, dup, "verifier reused across attempts")
		seen[pair.Verifier] = struct{}{}
	}
}

func TestHexSHA256Challenge_Deterministic(t *testing.T) {
	verifier := strings.Repeat("a", 64)
	first := ttauth.HexSHA256Challenge(verifier)
	second := ttauth.HexSHA256Challenge(verifier)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToLower(first), first)
	assert.NotEqual(t, ttauth.S256Challenge(verifier), first)
}

func TestS256Challenge_RFC7636Vector(t *testing.T) {
	// RFC 7636 appendix B.
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ttauth.S256Challenge("dBjftJeZ4CVP-1B0jbsk5n1-DE4iwNMKnGjoQx-GNmRkjWlOI"),
	)
}

func TestPKCEGenerator_CustomTransform(t *testing.T) {
	g := ttauth.NewPKCEGenerator(ttauth.WithChallengeTransform(ttauth.S256Challenge))
	pair, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, ttauth.S256Challenge(pair.Verifier), pair.Challenge)
	assert.Equal(t, pair.Challenge, g.Challenge(pair.Verifier))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestPKCEGenerator_RandomSourceFailure(t *testing.T) {
	g := ttauth.NewPKCEGenerator(ttauth.WithRandSource(failingReader{}))
	_, err := g.Generate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ttauth.ErrRandomSource)
}

func TestCheckRandomSource(t *testing.T) {
	assert.NoError(t, ttauth.CheckRandomSource())
}

func TestValidVerifier(t *testing.T) {
	assert.False(t, ttauth.ValidVerifier(strings.Repeat("a", 42)))
	assert.True(t, ttauth.ValidVerifier(strings.Repeat("a", 43)))
	assert.True(t, ttauth.ValidVerifier(strings.Repeat("a", 128)))
	assert.False(t, ttauth.ValidVerifier(strings.Repeat("a", 129)))
	assert.False(t, ttauth.ValidVerifier(strings.Repeat("a", 50)+"+/"))
	assert.True(t, ttauth.ValidVerifier(strings.Repeat("a", 50)+"-._~"))
}
