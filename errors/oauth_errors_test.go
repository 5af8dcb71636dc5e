package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	ttauth "github.com/pilab-dev/tiktok-auth"
	serrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/stretchr/testify/assert"
)

func TestFromAuthError(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{&ttauth.AuthError{Kind: ttauth.ErrInvalidScope}, serrors.InvalidScope, http.StatusBadRequest},
		{&ttauth.AuthError{Kind: ttauth.ErrMissingCode}, serrors.NoCode, http.StatusBadRequest},
		{&ttauth.AuthError{Kind: ttauth.ErrMissingVerifier}, serrors.NoCodeVerifier, http.StatusBadRequest},
		{&ttauth.AuthError{Kind: ttauth.ErrTokenExchangeFailed}, serrors.TokenExchangeFailed, http.StatusBadRequest},
		{&ttauth.AuthError{Kind: ttauth.ErrTokenInvalid}, serrors.InvalidToken, http.StatusUnauthorized},
		{ttauth.ErrTokenNotFound, serrors.InvalidToken, http.StatusUnauthorized},
		{&ttauth.AuthError{Kind: ttauth.ErrNetwork}, serrors.ProviderUnavailable, http.StatusBadGateway},
		{&ttauth.AuthError{Kind: ttauth.ErrMalformedProviderResponse}, serrors.MalformedResponse, http.StatusBadGateway},
		{fmt.Errorf("boom"), serrors.ServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			out := serrors.FromAuthError(tt.err)
			assert.Equal(t, tt.code, out.Code)
			assert.Equal(t, tt.status, out.Status)
		})
	}
}

func TestFromAuthError_CarriesProviderDetails(t *testing.T) {
	err := fmt.Errorf("callback: %w", &ttauth.AuthError{
		Kind:        ttauth.ErrTokenExchangeFailed,
		Reason:      ttauth.ReasonVerifierMismatch,
		Code:        "invalid_grant",
		Description: "Code verifier or code challenge is invalid.",
		LogID:       "L1",
	})

	out := serrors.FromAuthError(err)
	assert.Equal(t, "invalid_grant", out.ErrorCode)
	assert.Equal(t, "L1", out.LogID)
	assert.Equal(t, "code_verifier_mismatch", out.ErrorType)
	assert.Equal(t, "Code verifier or code challenge is invalid.", out.Description)
}
