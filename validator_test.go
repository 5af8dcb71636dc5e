package ttauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidTokenIsIdempotent(t *testing.T) {
	body := `{"data":{"user":{"open_id":"o1","union_id":"u1","display_name":"Jane","avatar_url":"https://p16.example.com/a.jpg"}},"error":{"code":"ok","message":"","log_id":"L1"}}`
	client, req := newAPIServer(t, http.StatusOK, body)
	v := ttauth.NewValidator(client)

	first, err := v.Validate(context.Background(), testAccessToken)
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), testAccessToken)
	require.NoError(t, err)

	assert.True(t, first.Valid)
	assert.Equal(t, first, second)
	assert.Equal(t, "Jane", first.User.DisplayName)
	assert.Equal(t, "o1", first.User.OpenID)
	assert.Equal(t, []string{"avatar_url", "display_name", "open_id", "union_id"}, first.AvailableFields)
	assert.Equal(t, []string{ttauth.ScopeUserInfoBasic, ttauth.ScopeUserInfoProfile}, first.InferredScopes)
	assert.Equal(t, "open_id,display_name,union_id,avatar_url", req.query.Get("fields"))
}

func TestValidator_OkCodeIsNotAnError(t *testing.T) {
	client, _ := newAPIServer(t, http.StatusOK, `{"data":{"user":{"open_id":"o1"}},"error":{"code":"ok","message":"","log_id":"L2"}}`)

	res, err := ttauth.NewValidator(client).Validate(context.Background(), testAccessToken)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.ErrorCode)
	assert.Equal(t, "L2", res.LogID)
}

func TestValidator_RejectedToken(t *testing.T) {
	client, _ := newAPIServer(t, http.StatusUnauthorized, `{"data":{},"error":{"code":"access_token_invalid","message":"The access token is invalid.","log_id":"L3"}}`)

	res, err := ttauth.NewValidator(client).Validate(context.Background(), testAccessToken)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "access_token_invalid", res.ErrorCode)
	assert.Equal(t, "L3", res.LogID)
	assert.Equal(t, "The access token is invalid.", res.Reason)
}

func TestValidator_StructuralCheckSkipsNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := ttauth.NewAPIClient(ttauth.Endpoints{APIBaseURL: server.URL}, server.Client())

	for _, tok := range []string{"", "short", "act.short", "xyz.0123456789abcdefghijklmnop"} {
		res, err := ttauth.NewValidator(client).Validate(context.Background(), tok)
		require.NoError(t, err)
		assert.False(t, res.Valid, tok)
		assert.Equal(t, "invalid_token_format", res.ErrorCode)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestValidator_UnwrappedUserData(t *testing.T) {
	client, _ := newAPIServer(t, http.StatusOK, `{"data":{"open_id":"o1","display_name":"Jane"},"error":{"code":"ok","message":"","log_id":"L4"}}`)

	res, err := ttauth.NewValidator(client).Validate(context.Background(), testAccessToken)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.User)
	assert.Equal(t, "Jane", res.User.DisplayName)
	assert.Equal(t, "o1", res.User.OpenID)
	assert.Equal(t, []string{"display_name", "open_id"}, res.AvailableFields)
}

func TestValidator_MalformedResponse(t *testing.T) {
	for _, body := range []string{`{"data":{}}`, `{"data":{"user":null}}`, `{"data":{"user":{}}}`} {
		client, _ := newAPIServer(t, http.StatusOK, body)

		_, err := ttauth.NewValidator(client).Validate(context.Background(), testAccessToken)
		assert.ErrorIs(t, err, ttauth.ErrMalformedProviderResponse, body)
	}
}

func TestInferScopes(t *testing.T) {
	client, _ := newAPIServer(t, http.StatusOK, `{"data":{"user":{"open_id":"o1","bio_description":"hi","follower_count":3}}}`)

	res, err := ttauth.NewValidator(client).Validate(context.Background(), testAccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{ttauth.ScopeUserInfoBasic, ttauth.ScopeUserInfoProfile, ttauth.ScopeUserInfoStats}, res.InferredScopes)
}
