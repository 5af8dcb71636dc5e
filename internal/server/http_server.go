package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	apiecho "github.com/pilab-dev/tiktok-auth/api/echo"
	"github.com/pilab-dev/tiktok-auth/config"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// NewRouter builds the echo instance with the middleware chain and all routes.
func NewRouter(cfg *config.ServerConfig, appLogger log.Logger, tiktokAPI *apiecho.TikTokAPI, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := log.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if err != nil {
				appLogger.Error(req.Context(), "HTTP request failed", err, fields)
			} else {
				appLogger.Info(req.Context(), "HTTP request", fields)
			}
			return nil
		}
	})

	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
		HSTSMaxAge:         31536000,
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	tiktokAPI.RegisterRoutes(e)
	return e
}

// NewHTTPServer wraps the router into an *http.Server listening on HTTP_PORT.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, tiktokAPI *apiecho.TikTokAPI, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           NewRouter(cfg, appLogger, tiktokAPI, gatherer),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Callbacks wait for the token exchange, bounded by HTTP_CLIENT_TIMEOUT.
		WriteTimeout: cfg.HTTPClientTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
