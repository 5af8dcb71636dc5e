//nolint:varnamelen
package echo

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/pilab-dev/tiktok-auth/internal/audit"
	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/pilab-dev/tiktok-auth/middleware"
	"github.com/pilab-dev/tiktok-auth/session"
)

// localPath accepts only same-site absolute paths as post-login targets.
func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

// AuthorizeHandler starts an authorization attempt and redirects the user to
// the TikTok consent screen.
func (ta *TikTokAPI) AuthorizeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	rawScope := c.QueryParam("scope")
	if rawScope == "" {
		rawScope = ta.cfg.DefaultScope
	}
	scope, err := ttauth.NormalizeScope(rawScope)
	if err != nil {
		return ta.fail(c, "Rejected authorization request", err)
	}

	returnTo := c.QueryParam("redirect")
	if returnTo != "" && !localPath(returnTo) {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("redirect must be a local path"))
	}

	redirectURI := ta.cfg.RedirectURIFor(origin(c))

	pair, err := ta.pkce.Generate()
	if err != nil {
		ta.logger.Error(ctx, "Failed to generate PKCE pair", err)
		return c.JSON(http.StatusInternalServerError, oautherrors.NewServerError("Failed to start authorization"))
	}

	attempt := ta.sessions.NewAttempt(pair, c.QueryParam("state"), redirectURI, scope)
	attempt.ReturnTo = returnTo

	authURL, err := ta.authURLs.Build(redirectURI, scope, attempt.State(), pair.Challenge)
	if err != nil {
		return ta.fail(c, "Failed to build authorization URL", err)
	}
	if err := ta.sessions.SaveAttempt(c.Response(), attempt); err != nil {
		ta.logger.Error(ctx, "Failed to store authorization attempt", err)
		return c.JSON(http.StatusInternalServerError, oautherrors.NewServerError("Failed to start authorization"))
	}

	metrics.AuthorizationsStartedTotal.Inc()
	ta.logger.Info(ctx, "Authorization started", log.Fields{
		"attempt_id":   attempt.ID,
		"scope":        scope,
		"redirect_uri": redirectURI,
	})
	ta.record(c, audit.Event{Action: audit.ActionAuthorize, Scope: scope, Success: true}, nil)
	return c.Redirect(http.StatusFound, authURL)
}

// CallbackHandler completes an authorization attempt. The attempt cookie is
// removed whatever the outcome.
func (ta *TikTokAPI) CallbackHandler(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	attemptID, callerState := session.SplitState(q.Get("state"))

	attempt, attemptErr := ta.sessions.LoadAttempt(c.Request(), attemptID)
	cookieURI := ta.cfg.RedirectURIFor(origin(c))
	if attempt != nil {
		cookieURI = attempt.RedirectURI
	}
	ta.sessions.ClearAttempt(c.Response(), c.Request(), attemptID, cookieURI)

	if upstream := q.Get("error"); upstream != "" {
		err := ttauth.CallbackError(upstream, q.Get("error_description"), q.Get("log_id"))
		return ta.redirectError(c, err, upstream, callerState)
	}
	code := q.Get("code")
	if code == "" {
		return ta.redirectError(c, &ttauth.AuthError{Kind: ttauth.ErrMissingCode, Description: "callback carries no authorization code"}, "", callerState)
	}
	if attemptErr != nil {
		return ta.redirectError(c, attemptErr, "", callerState)
	}
	if attempt.CallerState != callerState {
		return ta.redirectError(c, &ttauth.AuthError{Kind: ttauth.ErrStateMismatch, Description: "state does not match the authorization attempt"}, "", callerState)
	}

	tok, err := ta.tokens.ExchangeCode(ctx, code, attempt.RedirectURI, attempt.Verifier)
	if err != nil {
		return ta.redirectError(c, err, "", callerState)
	}
	if err := ta.stores(c.Response(), c.Request()).Save(ctx, tok); err != nil {
		ta.logger.Error(ctx, "Failed to store token", err)
		return ta.redirectError(c, err, oautherrors.ServerError, callerState)
	}
	ta.sessions.SetScopes(c.Response(), tok)

	if !tok.ScopeReturned {
		ta.logger.Warn(ctx, "Token response carried no scope", log.Fields{"open_id": tok.OpenID})
	}
	ta.logger.Info(ctx, "Authorization completed", log.Fields{
		"attempt_id": attempt.ID,
		"open_id":    tok.OpenID,
		"scope":      tok.GrantedScopeString(),
		"token":      log.Redact(tok.AccessToken),
	})
	ta.record(c, audit.Event{
		Action:  audit.ActionLogin,
		OpenID:  tok.OpenID,
		Scope:   tok.GrantedScopeString(),
		Success: true,
	}, nil)

	target := ta.cfg.SuccessPath
	if attempt.ReturnTo != "" {
		target = attempt.ReturnTo
	}
	params := url.Values{}
	params.Set("authenticated", "true")
	params.Set("scope", tok.GrantedScopeString())
	if callerState != "" {
		params.Set("state", callerState)
	}
	return c.Redirect(http.StatusFound, withQuery(target, params))
}

// redirectError sends the user to the error page. code overrides the mapped
// error code, used to pass upstream errors through unchanged.
func (ta *TikTokAPI) redirectError(c echo.Context, err error, code, callerState string) error {
	e := oautherrors.FromAuthError(err)
	if code != "" {
		e.Code = code
	}
	ta.logger.Warn(c.Request().Context(), "Authorization failed", log.Fields{
		"error":      e.Code,
		"error_kind": ttauth.KindName(err),
		"error_code": e.ErrorCode,
		"log_id":     e.LogID,
	})
	ta.record(c, audit.Event{Action: audit.ActionLogin}, err)

	params := url.Values{}
	params.Set("error", e.Code)
	params.Set("error_description", e.Description)
	params.Set("error_type", e.ErrorType)
	if e.ErrorCode != "" {
		params.Set("error_code", e.ErrorCode)
	}
	if e.LogID != "" {
		params.Set("log_id", e.LogID)
	}
	if callerState != "" {
		params.Set("state", callerState)
	}
	return c.Redirect(http.StatusFound, withQuery(ta.cfg.ErrorPath, params))
}

func withQuery(path string, params url.Values) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

// RootHandler serves /tiktok, which TikTok may use as redirect target.
func (ta *TikTokAPI) RootHandler(c echo.Context) error {
	if c.QueryParam("code") != "" || c.QueryParam("error") != "" {
		return ta.CallbackHandler(c)
	}
	return c.Redirect(http.StatusTemporaryRedirect, ta.cfg.HomePath)
}

type validateResponse struct {
	*ttauth.ValidationResult
	TokenSource  string `json:"token_source"`
	GrantedScope string `json:"granted_scope,omitempty"`
}

// ValidateHandler asks TikTok whether the current token is still accepted.
func (ta *TikTokAPI) ValidateHandler(c echo.Context) error {
	resolved, err := middleware.Resolve(c, ta.stores)
	if err != nil {
		e := oautherrors.NewAccessTokenRequired()
		return c.JSON(e.Status, e)
	}

	res, err := ta.validator.Validate(c.Request().Context(), resolved.AccessToken)
	if err != nil {
		return ta.fail(c, "Token validation failed", err)
	}

	out := validateResponse{ValidationResult: res, TokenSource: string(resolved.Source)}
	if resolved.Stored != nil {
		out.GrantedScope = resolved.Stored.GrantedScopeString()
	}
	if !res.Valid {
		return c.JSON(http.StatusUnauthorized, out)
	}
	return c.JSON(http.StatusOK, out)
}

type debugToken struct {
	Exists      bool   `json:"exists"`
	Source      string `json:"source,omitempty"`
	Preview     string `json:"preview,omitempty"`
	FormatValid bool   `json:"format_valid"`
}

type debugScopes struct {
	Granted       []string `json:"granted"`
	ScopeReturned bool     `json:"scope_returned"`
	Expected      []string `json:"expected"`
	Missing       []string `json:"missing"`
	Extra         []string `json:"extra"`
}

type debugResponse struct {
	Token           debugToken  `json:"token"`
	Scopes          debugScopes `json:"scopes"`
	Recommendations []string    `json:"recommendations"`
}

// DebugHandler compares the granted scopes with ExpectedScopes. It never
// calls the provider.
func (ta *TikTokAPI) DebugHandler(c echo.Context) error {
	out := debugResponse{Scopes: debugScopes{Expected: ExpectedScopes}}

	resolved, err := middleware.Resolve(c, ta.stores)
	if err == nil {
		out.Token = debugToken{
			Exists:      true,
			Source:      string(resolved.Source),
			Preview:     log.Redact(resolved.AccessToken),
			FormatValid: ttauth.LooksLikeAccessToken(resolved.AccessToken),
		}
	}

	if resolved.Stored != nil && resolved.Stored.ScopeReturned {
		out.Scopes.Granted = resolved.Stored.GrantedScope
		out.Scopes.ScopeReturned = true
	} else if fromCookie := ta.sessions.Scopes(c.Request()); len(fromCookie) > 0 {
		out.Scopes.Granted = fromCookie
		out.Scopes.ScopeReturned = true
	}
	out.Scopes.Missing, out.Scopes.Extra = ttauth.ScopeDiff(ExpectedScopes, out.Scopes.Granted)
	out.Recommendations = recommendations(out)

	return c.JSON(http.StatusOK, out)
}

func recommendations(d debugResponse) []string {
	if !d.Token.Exists {
		return []string{"No token found. Authenticate first via /tiktok/api/auth/authorize."}
	}
	var recs []string
	if !d.Token.FormatValid {
		recs = append(recs, "The token does not look like a TikTok user access token (act. prefix).")
	}
	if !d.Scopes.ScopeReturned {
		recs = append(recs, "TikTok returned no scope list with the token. The scopes may not be approved for the app or sandbox.")
	}
	if len(d.Scopes.Missing) > 0 {
		recs = append(recs,
			"Missing scopes: "+strings.Join(d.Scopes.Missing, ", ")+". Enable them in the developer portal and authorize again with scope="+strings.Join(ExpectedScopes, ","))
	}
	if len(d.Scopes.Extra) > 0 {
		recs = append(recs, "Additional scopes granted: "+strings.Join(d.Scopes.Extra, ", "))
	}
	if len(recs) == 0 {
		recs = append(recs, "All expected scopes are granted.")
	}
	return recs
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type tokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	OpenID       string `json:"open_id,omitempty"`
	Scope        string `json:"scope"`
}

// RefreshHandler renews the stored token, or the refresh token given in the
// request body. Tokens are only echoed back when the caller supplied the
// refresh token itself.
func (ta *TikTokAPI) RefreshHandler(c echo.Context) error {
	ctx := c.Request().Context()
	store := ta.stores(c.Response(), c.Request())

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("Malformed request body"))
	}
	explicit := req.RefreshToken != ""
	if !explicit {
		if stored, err := store.Load(ctx); err == nil {
			req.RefreshToken = stored.RefreshToken
		}
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, &oautherrors.OAuth2Error{
			Code:        oautherrors.RefreshTokenRequired,
			Description: "No refresh token in the request or the session",
			Status:      http.StatusBadRequest,
		})
	}

	tok, err := ta.tokens.Refresh(ctx, req.RefreshToken)
	if err != nil {
		ta.record(c, audit.Event{Action: audit.ActionRefresh}, err)
		return ta.fail(c, "Token refresh failed", err)
	}
	ta.record(c, audit.Event{
		Action:  audit.ActionRefresh,
		OpenID:  tok.OpenID,
		Scope:   tok.GrantedScopeString(),
		Success: true,
	}, nil)
	if err := store.Save(ctx, tok); err != nil {
		ta.logger.Error(ctx, "Failed to store refreshed token", err)
		return c.JSON(http.StatusInternalServerError, oautherrors.NewServerError("Failed to store token"))
	}
	ta.sessions.SetScopes(c.Response(), tok)

	out := tokenResponse{Success: true, ExpiresIn: tok.ExpiresIn, OpenID: tok.OpenID, Scope: tok.GrantedScopeString()}
	if explicit {
		out.AccessToken, out.RefreshToken = tok.AccessToken, tok.RefreshToken
	}
	return c.JSON(http.StatusOK, out)
}

// RevokeHandler revokes the token at TikTok and forgets it locally. Local
// state is cleared even when the upstream call fails.
func (ta *TikTokAPI) RevokeHandler(c echo.Context) error {
	ctx := c.Request().Context()
	resolved, err := middleware.Resolve(c, ta.stores)
	if err != nil {
		e := oautherrors.NewAccessTokenRequired()
		return c.JSON(e.Status, e)
	}

	revokeErr := ta.tokens.Revoke(ctx, resolved.AccessToken)

	if err := ta.stores(c.Response(), c.Request()).Clear(ctx); err != nil {
		ta.logger.Error(ctx, "Failed to clear token store", err)
	}
	ta.sessions.ClearScopes(c.Response())

	ev := audit.Event{Action: audit.ActionRevoke, Success: true}
	if resolved.Stored != nil {
		ev.OpenID = resolved.Stored.OpenID
	}
	ta.record(c, ev, revokeErr)

	if revokeErr != nil {
		return ta.fail(c, "Token revocation failed", revokeErr)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// LogoutHandler forgets the stored token without contacting TikTok.
func (ta *TikTokAPI) LogoutHandler(c echo.Context) error {
	ctx := c.Request().Context()
	if err := ta.stores(c.Response(), c.Request()).Clear(ctx); err != nil && !errors.Is(err, ttauth.ErrTokenNotFound) {
		ta.logger.Error(ctx, "Failed to clear token store", err)
		return c.JSON(http.StatusInternalServerError, oautherrors.NewServerError("Failed to log out"))
	}
	ta.record(c, audit.Event{Action: audit.ActionLogout, Success: true}, nil)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
