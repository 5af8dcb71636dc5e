package ttauth

import (
	"encoding/json"
	"time"
)

// tokenFields is the token payload as TikTok sends it, wherever it sits.
type tokenFields struct {
	AccessToken      string  `json:"access_token"`
	RefreshToken     string  `json:"refresh_token"`
	TokenType        string  `json:"token_type"`
	ExpiresIn        int64   `json:"expires_in"`
	RefreshExpiresIn int64   `json:"refresh_expires_in"`
	OpenID           string  `json:"open_id"`
	Scope            *string `json:"scope"`
}

// tokenExtractor tries to find a token in one response shape.
type tokenExtractor struct {
	name    string
	extract func(body map[string]json.RawMessage) (*tokenFields, bool)
}

// tokenExtractors is tried in order; the first match wins. New response
// shapes are added here.
var tokenExtractors = []tokenExtractor{
	{name: "data", extract: fromDataWrapper},
	{name: "top_level", extract: fromTopLevel},
}

func fromDataWrapper(body map[string]json.RawMessage) (*tokenFields, bool) {
	raw, ok := body["data"]
	if !ok {
		return nil, false
	}
	var f tokenFields
	if err := json.Unmarshal(raw, &f); err != nil || f.AccessToken == "" {
		return nil, false
	}
	return &f, true
}

func fromTopLevel(body map[string]json.RawMessage) (*tokenFields, bool) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false
	}
	var f tokenFields
	if err := json.Unmarshal(raw, &f); err != nil || f.AccessToken == "" {
		return nil, false
	}
	return &f, true
}

// extractToken runs the extractors over a decoded response body. It returns
// the name of the matching shape for logging.
func extractToken(body map[string]json.RawMessage, issuedAt time.Time) (*Token, string, bool) {
	for _, ex := range tokenExtractors {
		f, ok := ex.extract(body)
		if !ok {
			continue
		}
		tok := &Token{
			AccessToken:      f.AccessToken,
			RefreshToken:     f.RefreshToken,
			TokenType:        f.TokenType,
			ExpiresIn:        f.ExpiresIn,
			RefreshExpiresIn: f.RefreshExpiresIn,
			OpenID:           f.OpenID,
			IssuedAt:         issuedAt,
		}
		if f.Scope != nil {
			// An empty scope string counts as no scope returned.
			if granted := ParseScope(*f.Scope); len(granted) > 0 {
				tok.ScopeReturned = true
				tok.GrantedScope = granted
			}
		}
		return tok, ex.name, true
	}
	return nil, "", false
}

// ParseTokenResponse decodes a token endpoint body. It reports
// ErrMalformedProviderResponse for non-JSON bodies and for bodies that carry
// neither a token nor an error.
func ParseTokenResponse(body []byte, issuedAt time.Time) (*Token, error) {
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &AuthError{Kind: ErrMalformedProviderResponse, Err: err}
	}
	if perr := providerErrorFromBody(decoded); perr != nil {
		return nil, perr
	}
	tok, _, ok := extractToken(decoded, issuedAt)
	if !ok {
		return nil, &AuthError{
			Kind:        ErrMalformedProviderResponse,
			Description: "response contains no access_token",
		}
	}
	return tok, nil
}
