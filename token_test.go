package ttauth_test

import (
	"context"
	"testing"
	"time"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Expiry(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tok := &ttauth.Token{AccessToken: testAccessToken, ExpiresIn: 3600, IssuedAt: issued}

	assert.Equal(t, issued.Add(time.Hour), tok.Expiry())
	assert.True(t, tok.Valid(issued.Add(59*time.Minute)))
	assert.False(t, tok.Valid(issued.Add(time.Hour)))
	assert.Equal(t, 30*time.Minute, tok.TTL(issued.Add(30*time.Minute)))
	assert.Equal(t, time.Duration(0), tok.TTL(issued.Add(2*time.Hour)))
}

func TestToken_GrantedScopeString(t *testing.T) {
	tok := &ttauth.Token{}
	assert.Equal(t, "none", tok.GrantedScopeString())

	tok.ScopeReturned = true
	tok.GrantedScope = []string{"user.info.basic", "video.list"}
	assert.Equal(t, "user.info.basic,video.list", tok.GrantedScopeString())
	assert.True(t, tok.HasScope("video.list"))
	assert.False(t, tok.HasScope("video.publish"))
}

func TestToken_OAuth2(t *testing.T) {
	issued := time.Now()
	tok := &ttauth.Token{
		AccessToken:  testAccessToken,
		RefreshToken: "rft.x",
		ExpiresIn:    60,
		OpenID:       "o1",
		IssuedAt:     issued,
	}
	o := tok.OAuth2()
	assert.Equal(t, testAccessToken, o.AccessToken)
	assert.Equal(t, "rft.x", o.RefreshToken)
	assert.Equal(t, "Bearer", o.TokenType)
	assert.Equal(t, "o1", o.Extra("open_id"))
	assert.True(t, o.Valid())
}

func TestLooksLikeAccessToken(t *testing.T) {
	assert.True(t, ttauth.LooksLikeAccessToken(testAccessToken))
	assert.False(t, ttauth.LooksLikeAccessToken("act.123"))
	assert.False(t, ttauth.LooksLikeAccessToken("clt.client12345Client12345"))
}

func TestParseTokenResponse_NoScopeIsNotAnError(t *testing.T) {
	tok, err := ttauth.ParseTokenResponse([]byte(`{"data":{"access_token":"act.noscope1234567890abc","expires_in":86400}}`), time.Now())
	require.NoError(t, err)
	assert.False(t, tok.ScopeReturned)
	assert.Equal(t, ttauth.NoScope, tok.GrantedScopeString())
}

func TestInMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := ttauth.NewInMemoryTokenStore()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ttauth.ErrTokenNotFound)

	first := &ttauth.Token{AccessToken: "act.first", ExpiresIn: 3600, IssuedAt: time.Now()}
	second := &ttauth.Token{AccessToken: "act.second", ExpiresIn: 3600, IssuedAt: time.Now()}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "act.second", loaded.AccessToken)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ttauth.ErrTokenNotFound)

	expired := &ttauth.Token{AccessToken: "act.old", ExpiresIn: 1, IssuedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, store.Save(ctx, expired))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ttauth.ErrTokenNotFound)
}

func TestAuthError_Is(t *testing.T) {
	err := &ttauth.AuthError{Kind: ttauth.ErrTokenExchangeFailed, Reason: ttauth.ReasonCodeInvalid, Code: "invalid_grant", LogID: "L1"}
	assert.ErrorIs(t, err, ttauth.ErrTokenExchangeFailed)
	assert.NotErrorIs(t, err, ttauth.ErrNetwork)
	assert.Contains(t, err.Error(), "log_id=L1")
	assert.Equal(t, "token_exchange_failed", ttauth.KindName(err))

	cb := ttauth.CallbackError("access_denied", "user cancelled", "")
	assert.ErrorIs(t, cb, ttauth.ErrAccessDenied)
	assert.ErrorIs(t, ttauth.CallbackError("invalid_scope", "", ""), ttauth.ErrInvalidScope)
}

func TestClientIdentity_Redacted(t *testing.T) {
	assert.NotContains(t, testIdentity.String(), testIdentity.Secret)
	assert.Error(t, ttauth.ClientIdentity{}.Validate())
	assert.NoError(t, testIdentity.Validate())
}
