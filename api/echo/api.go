//nolint:varnamelen
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/config"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/pilab-dev/tiktok-auth/internal/audit"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/pilab-dev/tiktok-auth/middleware"
	"github.com/pilab-dev/tiktok-auth/resource"
	"github.com/pilab-dev/tiktok-auth/session"
)

// ExpectedScopes is what the debug endpoint compares the granted scopes to.
var ExpectedScopes = []string{
	ttauth.ScopeUserInfoBasic,
	ttauth.ScopeUserInfoProfile,
	ttauth.ScopeUserInfoStats,
	ttauth.ScopeVideoUpload,
	ttauth.ScopeVideoPublish,
}

// TikTokAPI holds the dependencies of the HTTP handlers.
type TikTokAPI struct {
	cfg       *config.ServerConfig
	pkce      *ttauth.PKCEGenerator
	authURLs  *ttauth.AuthURLBuilder
	tokens    *ttauth.TokenClient
	validator *ttauth.Validator
	users     *resource.Users
	videos    *resource.Videos
	posts     *resource.Posts
	sessions  *session.Manager
	stores    session.StoreFunc
	logger    log.Logger
	audit     *audit.Recorder
}

// Option customizes a TikTokAPI.
type Option func(*TikTokAPI)

// WithAudit records token lifecycle events to r.
func WithAudit(r *audit.Recorder) Option {
	return func(ta *TikTokAPI) {
		ta.audit = r
	}
}

// NewTikTokAPI wires the handlers. stores decides where tokens are kept;
// nil keeps them in the session cookie.
func NewTikTokAPI(
	cfg *config.ServerConfig,
	sessions *session.Manager,
	stores session.StoreFunc,
	httpClient *http.Client,
	logger log.Logger,
	opts ...Option,
) *TikTokAPI {
	if httpClient == nil {
		httpClient = ttauth.NewHTTPClient(cfg.HTTPClientTimeout)
	}
	if stores == nil {
		stores = sessions.CookieStores()
	}
	if logger == nil {
		logger = log.Nop()
	}

	endpoints := cfg.Endpoints()
	apiClient := ttauth.NewAPIClient(endpoints, httpClient)

	ta := &TikTokAPI{
		cfg:      cfg,
		pkce:     ttauth.NewPKCEGenerator(),
		authURLs: ttauth.NewAuthURLBuilder(cfg.Identity(), endpoints),
		tokens: ttauth.NewTokenClient(cfg.Identity(),
			ttauth.WithEndpoints(endpoints),
			ttauth.WithHTTPClient(httpClient),
		),
		validator: ttauth.NewValidator(apiClient),
		users:     resource.NewUsers(apiClient),
		videos:    resource.NewVideos(apiClient),
		posts:     resource.NewPosts(apiClient),
		sessions:  sessions,
		stores:    stores,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(ta)
	}
	return ta
}

// RegisterRoutes registers the TikTok routes.
func (ta *TikTokAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/tiktok", ta.RootHandler)

	auth := e.Group("/tiktok/api/auth")
	auth.GET("/authorize", ta.AuthorizeHandler)
	auth.GET("/callback", ta.CallbackHandler)
	auth.GET("/validate", ta.ValidateHandler)
	auth.GET("/debug", ta.DebugHandler)
	auth.POST("/refresh", ta.RefreshHandler)
	auth.POST("/revoke", ta.RevokeHandler)
	auth.POST("/logout", ta.LogoutHandler)

	requireToken := middleware.RequireToken(ta.stores)

	api := e.Group("/tiktok/api")
	api.GET("/user/info", ta.UserInfoHandler, requireToken)
	api.POST("/videos/list", ta.VideosListHandler, requireToken, middleware.RequireScopes(ttauth.ScopeVideoList))
	api.POST("/videos/query", ta.VideosQueryHandler, requireToken, middleware.RequireScopes(ttauth.ScopeVideoList))
	api.POST("/videos/publish", ta.VideosPublishHandler, requireToken, middleware.RequireScopes(ttauth.ScopeVideoPublish))
	api.POST("/videos/status", ta.VideosStatusHandler, requireToken)
	api.POST("/creator/info", ta.CreatorInfoHandler, requireToken)

	e.POST("/tiktok/webhook", ta.WebhookHandler)
	e.GET("/tiktok/webhook", ta.WebhookChallengeHandler)
}

func (ta *TikTokAPI) record(c echo.Context, ev audit.Event, err error) {
	ev.RemoteIP = c.RealIP()
	if err != nil {
		ev.ErrorKind = ttauth.KindName(err)
		if authErr, ok := ttauth.AsAuthError(err); ok {
			ev.LogID = authErr.LogID
		}
	}
	ta.audit.Record(c.Request().Context(), ev, err)
}

// origin is the scheme and host the request was made to.
func origin(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}

// fail logs err with its kind and writes the mapped JSON error.
func (ta *TikTokAPI) fail(c echo.Context, msg string, err error) error {
	e := oautherrors.FromAuthError(err)
	fields := log.Fields{
		"error_kind": ttauth.KindName(err),
		"error_code": e.ErrorCode,
		"log_id":     e.LogID,
		"path":       c.Path(),
	}
	if e.Status >= http.StatusInternalServerError {
		ta.logger.Error(c.Request().Context(), msg, err, fields)
	} else {
		ta.logger.Warn(c.Request().Context(), msg, fields, log.Fields{"error": err.Error()})
	}
	return c.JSON(e.Status, e)
}

// respondEnvelope passes a provider envelope through, keeping provider
// errors visible to the caller.
func (ta *TikTokAPI) respondEnvelope(c echo.Context, msg string, env *ttauth.Envelope, err error) error {
	if err != nil {
		return ta.fail(c, msg, err)
	}
	if env.Failed() {
		status := env.HTTPStatus
		if status < http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		ta.logger.Warn(c.Request().Context(), msg, log.Fields{
			"error_code": env.Error.Code,
			"log_id":     env.Error.LogID,
			"path":       c.Path(),
		})
		return c.JSON(status, env)
	}
	return c.JSON(http.StatusOK, env)
}
