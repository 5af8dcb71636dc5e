package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/pilab-dev/tiktok-auth/session"
	"github.com/rs/zerolog/log"
)

// resolvedTokenKey is the echo context key of the ResolvedToken.
const resolvedTokenKey = "tiktok.resolved_token"

// AccessTokenQueryParam is the query parameter accepted as token source.
const AccessTokenQueryParam = "access_token"

// TokenSource tells where a request's access token came from.
type TokenSource string

const (
	SourceHeader TokenSource = "header"
	SourceQuery  TokenSource = "query"
	SourceStore  TokenSource = "store"
)

// ResolvedToken is the access token a request acts with.
type ResolvedToken struct {
	AccessToken string
	Source      TokenSource
	// Stored is the full token, only set for SourceStore.
	Stored *ttauth.Token
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// Resolve looks the token up in order: bearer header, access_token query
// parameter, token store.
func Resolve(c echo.Context, stores session.StoreFunc) (ResolvedToken, error) {
	req := c.Request()
	if tok, ok := BearerToken(req.Header.Get(echo.HeaderAuthorization)); ok {
		return ResolvedToken{AccessToken: tok, Source: SourceHeader}, nil
	}
	if tok := strings.TrimSpace(c.QueryParam(AccessTokenQueryParam)); tok != "" {
		return ResolvedToken{AccessToken: tok, Source: SourceQuery}, nil
	}
	if stores == nil {
		return ResolvedToken{}, ttauth.ErrTokenNotFound
	}
	stored, err := stores(c.Response(), req).Load(req.Context())
	if err != nil {
		return ResolvedToken{}, err
	}
	return ResolvedToken{AccessToken: stored.AccessToken, Source: SourceStore, Stored: stored}, nil
}

// RequireToken resolves the access token and rejects the request with 401
// access_token_required when there is none.
func RequireToken(stores session.StoreFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resolved, err := Resolve(c, stores)
			if err != nil {
				if !errors.Is(err, ttauth.ErrTokenNotFound) {
					log.Warn().Err(err).Str("path", c.Path()).Msg("Token store lookup failed")
				}
				e := oautherrors.NewAccessTokenRequired()
				return c.JSON(e.Status, e)
			}
			log.Debug().Str("path", c.Path()).Str("source", string(resolved.Source)).Msg("Access token resolved")
			c.Set(resolvedTokenKey, resolved)
			return next(c)
		}
	}
}

// TokenFromContext returns the token set by RequireToken.
func TokenFromContext(c echo.Context) (ResolvedToken, bool) {
	resolved, ok := c.Get(resolvedTokenKey).(ResolvedToken)
	return resolved, ok
}

// MustToken is TokenFromContext for handlers mounted behind RequireToken.
func MustToken(c echo.Context) (ResolvedToken, error) {
	resolved, ok := TokenFromContext(c)
	if !ok {
		e := oautherrors.NewAccessTokenRequired()
		return ResolvedToken{}, echo.NewHTTPError(http.StatusUnauthorized, e.Description)
	}
	return resolved, nil
}
