package ttauth

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *AuthError matches exactly one of them via errors.Is.
var (
	ErrInvalidScope              = errors.New("invalid scope")
	ErrMissingCode               = errors.New("missing authorization code")
	ErrMissingVerifier           = errors.New("missing code verifier")
	ErrTokenExchangeFailed       = errors.New("token exchange failed")
	ErrMalformedProviderResponse = errors.New("malformed provider response")
	ErrNetwork                   = errors.New("network error")
	ErrTokenInvalid              = errors.New("token invalid")
	ErrStateMismatch             = errors.New("state mismatch")
	ErrInvalidRedirectURI        = errors.New("invalid redirect uri")
	ErrAccessDenied              = errors.New("access denied")

	ErrTokenNotFound = errors.New("token not found")
	ErrRandomSource  = errors.New("cryptographic random source unavailable")
)

// ExchangeFailureReason narrows down why the provider rejected a grant.
type ExchangeFailureReason string

const (
	ReasonUnknown          ExchangeFailureReason = "unknown"
	ReasonCodeInvalid      ExchangeFailureReason = "code_invalid_or_expired"
	ReasonRedirectMismatch ExchangeFailureReason = "redirect_uri_mismatch"
	ReasonInvalidClient    ExchangeFailureReason = "invalid_client"
	ReasonVerifierMismatch ExchangeFailureReason = "code_verifier_mismatch"
	ReasonRefreshInvalid   ExchangeFailureReason = "refresh_token_invalid"
)

// AuthError is the error type returned by every provider facing operation.
type AuthError struct {
	Kind        error
	Reason      ExchangeFailureReason
	Code        string
	Description string
	LogID       string
	HTTPStatus  int
	Err         error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" && e.Reason != ReasonUnknown {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.LogID != "" {
		fmt.Fprintf(&b, " [log_id=%s]", e.LogID)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a stable identifier for the error kind, used in logs,
// metrics labels and redirect parameters.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, ErrMissingCode):
		return "missing_code"
	case errors.Is(err, ErrMissingVerifier):
		return "missing_verifier"
	case errors.Is(err, ErrTokenExchangeFailed):
		return "token_exchange_failed"
	case errors.Is(err, ErrMalformedProviderResponse):
		return "malformed_provider_response"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrInvalidRedirectURI):
		return "invalid_redirect_uri"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrTokenNotFound):
		return "token_not_found"
	default:
		return "internal_error"
	}
}

// AsAuthError returns the *AuthError inside err, if any.
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// classifyGrantFailure maps a provider error code and description to a reason.
func classifyGrantFailure(code, description string) ExchangeFailureReason {
	desc := strings.ToLower(description)
	switch {
	case code == "invalid_client" || strings.Contains(desc, "client_key") || strings.Contains(desc, "client secret"):
		return ReasonInvalidClient
	case strings.Contains(desc, "verifier") || strings.Contains(desc, "challenge"):
		return ReasonVerifierMismatch
	case strings.Contains(desc, "redirect"):
		return ReasonRedirectMismatch
	case strings.Contains(desc, "refresh"):
		return ReasonRefreshInvalid
	case code == "invalid_grant" || strings.Contains(desc, "code"):
		return ReasonCodeInvalid
	default:
		return ReasonUnknown
	}
}

// CallbackError converts the error parameters TikTok appends to the redirect
// URI into an *AuthError.
func CallbackError(code, description, logID string) *AuthError {
	kind := ErrTokenExchangeFailed
	switch code {
	case "invalid_scope", "scope_not_authorized":
		kind = ErrInvalidScope
	case "access_denied":
		kind = ErrAccessDenied
	case "invalid_redirect_uri", "redirect_uri_mismatch":
		kind = ErrInvalidRedirectURI
	}
	return &AuthError{
		Kind:        kind,
		Code:        code,
		Description: description,
		LogID:       logID,
	}
}
