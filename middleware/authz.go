package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/rs/zerolog/log"
)

// RequireScopes rejects requests whose stored token is known to lack one of
// scopes. It must run after RequireToken. Tokens passed by header or query,
// or stored without a scope list, are let through and left to the provider.
func RequireScopes(scopes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resolved, ok := TokenFromContext(c)
			if !ok || resolved.Stored == nil || !resolved.Stored.ScopeReturned {
				return next(c)
			}

			var missing []string
			for _, s := range scopes {
				if !resolved.Stored.HasScope(s) {
					missing = append(missing, s)
				}
			}
			if len(missing) > 0 {
				log.Warn().Str("path", c.Path()).Strs("missing_scopes", missing).
					Strs("granted_scopes", resolved.Stored.GrantedScope).Msg("Scope not granted")
				e := &oautherrors.OAuth2Error{
					Code:        oautherrors.InsufficientScope,
					Description: "missing scopes: " + strings.Join(missing, ","),
					Status:      http.StatusForbidden,
				}
				return c.JSON(e.Status, e)
			}
			return next(c)
		}
	}
}
