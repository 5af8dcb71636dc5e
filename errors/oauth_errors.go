package errors

import (
	"errors"
	"fmt"
	"net/http"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

// OAuth2Error is the JSON error body returned by the HTTP API.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	ErrorType   string `json:"error_type,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	LogID       string `json:"log_id,omitempty"`
	Status      int    `json:"-"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes used in redirects and JSON bodies.
const (
	InvalidRequest       = "invalid_request"
	InvalidScope         = "invalid_scope"
	AccessDenied         = "access_denied"
	NoCode               = "no_code"
	NoCodeVerifier       = "no_code_verifier"
	StateMismatch        = "state_mismatch"
	TokenExchangeFailed  = "token_exchange_failed"
	AccessTokenRequired  = "access_token_required"
	InvalidToken         = "invalid_token"
	ProviderUnavailable  = "provider_unavailable"
	MalformedResponse    = "malformed_provider_response"
	ServerError          = "server_error"
	InvalidRedirectURI   = "invalid_redirect_uri"
	RefreshTokenRequired = "refresh_token_required"
	InsufficientScope    = "insufficient_scope"
)

// NewInvalidRequest reports a bad request.
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidRequest, Description: description, Status: http.StatusBadRequest}
}

// NewAccessTokenRequired is returned by resource routes without a token.
func NewAccessTokenRequired() *OAuth2Error {
	return &OAuth2Error{
		Code:        AccessTokenRequired,
		Description: "Authenticate first via /tiktok/api/auth/authorize. The token can be sent as Authorization: Bearer <token>, as access_token query parameter or in the session cookie.",
		Status:      http.StatusUnauthorized,
	}
}

// NewServerError reports an unexpected failure.
func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{Code: ServerError, Description: description, Status: http.StatusInternalServerError}
}

// FromAuthError maps the ttauth error taxonomy onto an HTTP error.
func FromAuthError(err error) *OAuth2Error {
	out := &OAuth2Error{
		Code:        ServerError,
		Description: err.Error(),
		ErrorType:   ttauth.KindName(err),
		Status:      http.StatusInternalServerError,
	}

	var authErr *ttauth.AuthError
	if errors.As(err, &authErr) {
		out.ErrorCode = authErr.Code
		out.LogID = authErr.LogID
		if authErr.Description != "" {
			out.Description = authErr.Description
		}
	}

	switch {
	case errors.Is(err, ttauth.ErrInvalidScope):
		out.Code, out.Status = InvalidScope, http.StatusBadRequest
	case errors.Is(err, ttauth.ErrAccessDenied):
		out.Code, out.Status = AccessDenied, http.StatusForbidden
	case errors.Is(err, ttauth.ErrMissingCode):
		out.Code, out.Status = NoCode, http.StatusBadRequest
	case errors.Is(err, ttauth.ErrMissingVerifier):
		out.Code, out.Status = NoCodeVerifier, http.StatusBadRequest
	case errors.Is(err, ttauth.ErrStateMismatch):
		out.Code, out.Status = StateMismatch, http.StatusBadRequest
	case errors.Is(err, ttauth.ErrInvalidRedirectURI):
		out.Code, out.Status = InvalidRedirectURI, http.StatusBadRequest
	case errors.Is(err, ttauth.ErrTokenExchangeFailed):
		out.Code, out.Status = TokenExchangeFailed, http.StatusBadRequest
		if authErr != nil && authErr.Reason != "" {
			out.ErrorType = string(authErr.Reason)
		}
	case errors.Is(err, ttauth.ErrTokenInvalid), errors.Is(err, ttauth.ErrTokenNotFound):
		out.Code, out.Status = InvalidToken, http.StatusUnauthorized
	case errors.Is(err, ttauth.ErrNetwork):
		out.Code, out.Status = ProviderUnavailable, http.StatusBadGateway
	case errors.Is(err, ttauth.ErrMalformedProviderResponse):
		out.Code, out.Status = MalformedResponse, http.StatusBadGateway
	}
	return out
}
