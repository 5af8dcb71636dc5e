package ttauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// UserInfoEndpoint returns the authenticated user.
const UserInfoEndpoint = "/user/info/"

// ValidationFields is the minimal field set requested by the validator.
var ValidationFields = []string{"open_id", "display_name", "union_id", "avatar_url"}

// UserSnapshot is the user as seen during validation.
type UserSnapshot struct {
	OpenID      string `json:"open_id,omitempty"`
	UnionID     string `json:"union_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ValidationResult is the outcome of a validation call.
type ValidationResult struct {
	Valid           bool          `json:"valid"`
	Reason          string        `json:"reason,omitempty"`
	ErrorCode       string        `json:"error_code,omitempty"`
	LogID           string        `json:"log_id,omitempty"`
	User            *UserSnapshot `json:"user,omitempty"`
	AvailableFields []string      `json:"available_fields,omitempty"`
	InferredScopes  []string      `json:"inferred_scopes,omitempty"`
}

// Validator checks whether TikTok still accepts an access token.
type Validator struct {
	api *APIClient
}

// NewValidator creates a validator on top of the façade.
func NewValidator(api *APIClient) *Validator {
	return &Validator{api: api}
}

// Validate rejects structurally implausible tokens without a network call and
// otherwise performs one user/info read. It never mutates state, so repeated
// calls with the same token yield the same result.
//
// The returned error is only set for transport level problems (ErrNetwork,
// ErrMalformedProviderResponse); a token the provider rejects yields
// Valid=false with a nil error.
func (v *Validator) Validate(ctx context.Context, token string) (res *ValidationResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.Validate")
	defer func() {
		result := "error"
		if err == nil {
			result = "invalid"
			if res.Valid {
				result = "valid"
			}
			span.SetAttributes(attribute.Bool("tiktok.token_valid", res.Valid))
		}
		metrics.TokenValidationsTotal.WithLabelValues(result).Inc()
		tracing.EndSpan(span, err)
	}()

	if !LooksLikeAccessToken(token) {
		return &ValidationResult{
			Valid:     false,
			Reason:    "token does not look like a TikTok access token",
			ErrorCode: "invalid_token_format",
		}, nil
	}

	env, err := v.api.Call(ctx, http.MethodGet, UserInfoEndpoint, Params{
		"fields": FieldList(ValidationFields...),
	}, token)
	if err != nil {
		return nil, err
	}

	if env.Failed() {
		return &ValidationResult{
			Valid:     false,
			Reason:    env.Error.Message,
			ErrorCode: env.Error.Code,
			LogID:     env.Error.LogID,
		}, nil
	}

	user, err := decodeUser(env)
	if err != nil {
		return nil, err
	}

	var snap UserSnapshot
	raw, _ := json.Marshal(user)
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &AuthError{Kind: ErrMalformedProviderResponse, Err: err}
	}

	res = &ValidationResult{
		Valid:           true,
		User:            &snap,
		AvailableFields: sortedKeys(user),
		InferredScopes:  InferScopes(user),
	}
	if env.Error != nil {
		res.LogID = env.Error.LogID
	}
	return res, nil
}

// decodeUser reads data.user, falling back to data itself when TikTok sends
// the user fields without the wrapper.
func decodeUser(env *Envelope) (map[string]json.RawMessage, error) {
	var data map[string]json.RawMessage
	if err := env.Decode(&data); err != nil {
		return nil, err
	}
	if raw, ok := data["user"]; ok && string(raw) != "null" {
		var user map[string]json.RawMessage
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, &AuthError{Kind: ErrMalformedProviderResponse, Err: err}
		}
		data = user
	}
	if len(data) == 0 {
		return nil, &AuthError{Kind: ErrMalformedProviderResponse, Description: "user/info response has no user object"}
	}
	return data, nil
}

// InferScopes guesses the granted scopes from the user fields TikTok returned.
func InferScopes(user map[string]json.RawMessage) []string {
	scopes := []string{ScopeUserInfoBasic}
	if hasAny(user, "bio_description", "avatar_url", "profile_deep_link", "is_verified") {
		scopes = append(scopes, ScopeUserInfoProfile)
	}
	if hasAny(user, "follower_count", "following_count", "likes_count", "video_count") {
		scopes = append(scopes, ScopeUserInfoStats)
	}
	return scopes
}

func hasAny(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && string(v) != "null" {
			return true
		}
	}
	return false
}

// TokenRejected reports whether err means the token itself is unusable, as
// opposed to a transient failure.
func TokenRejected(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenNotFound)
}
