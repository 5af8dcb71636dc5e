package ttauth

import (
	"fmt"
	"strings"
)

// ScopeSeparator joins scopes in requests and splits them in responses.
const ScopeSeparator = ","

// NoScope is recorded when the provider returned a token without a scope field.
const NoScope = "none"

// Well known TikTok scopes.
const (
	ScopeUserInfoBasic   = "user.info.basic"
	ScopeUserInfoProfile = "user.info.profile"
	ScopeUserInfoStats   = "user.info.stats"
	ScopeVideoList       = "video.list"
	ScopeVideoUpload     = "video.upload"
	ScopeVideoPublish    = "video.publish"
)

// NormalizeScope trims every scope, drops empty and repeated entries and
// joins the rest with a single comma. "a, b ,,c" becomes "a,b,c".
func NormalizeScope(scope string) (string, error) {
	scopes := ParseScope(scope)
	if len(scopes) == 0 {
		return "", &AuthError{
			Kind:        ErrInvalidScope,
			Code:        "invalid_scope",
			Description: fmt.Sprintf("no usable scope in %q", scope),
		}
	}
	return strings.Join(scopes, ScopeSeparator), nil
}

// ParseScope splits a comma or whitespace separated scope string, keeping
// the first occurrence order.
func ParseScope(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ScopeDiff compares granted scopes against expected ones.
func ScopeDiff(expected, granted []string) (missing, extra []string) {
	grantedSet := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		grantedSet[s] = struct{}{}
	}
	expectedSet := make(map[string]struct{}, len(expected))
	for _, s := range expected {
		expectedSet[s] = struct{}{}
		if _, ok := grantedSet[s]; !ok {
			missing = append(missing, s)
		}
	}
	for _, s := range granted {
		if _, ok := expectedSet[s]; !ok {
			extra = append(extra, s)
		}
	}
	return missing, extra
}
