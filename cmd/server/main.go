package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	ttauth "github.com/pilab-dev/tiktok-auth"
	apiecho "github.com/pilab-dev/tiktok-auth/api/echo"
	"github.com/pilab-dev/tiktok-auth/cache"
	rediscache "github.com/pilab-dev/tiktok-auth/cache/redis"
	"github.com/pilab-dev/tiktok-auth/config"
	"github.com/pilab-dev/tiktok-auth/internal/audit"
	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/internal/server"
	"github.com/pilab-dev/tiktok-auth/internal/telemetry"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/pilab-dev/tiktok-auth/session"
	"github.com/pilab-dev/tiktok-auth/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appLogger = log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal(ctx, "Invalid configuration", err)
	}
	// PKCE is impossible without a secure random source.
	if err := ttauth.CheckRandomSource(); err != nil {
		appLogger.Fatal(ctx, "Secure random source unavailable", err)
	}

	appLogger.Info(ctx, "Configuration loaded successfully", log.Fields{
		"http_port":    cfg.HTTPPort,
		"client":       cfg.Identity().String(),
		"api_base_url": cfg.APIBaseURL,
		"auth_base":    cfg.AuthBaseURL,
		"api_version":  cfg.APIVersion,
		"token_store":  cfg.TokenStore,
		"log_level":    cfg.LogLevel,
		"otel_service": cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName, cfg.TracingEnabled)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}
	tracerProvider = tp

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.InitCustomMetrics(reg)

	mp, err := telemetry.InitMeterProvider(reg, cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MeterProvider", err)
	}
	meterProvider = mp

	sessions, err := session.NewManager(session.Options{
		Secret:      cfg.CookieSecret,
		Secure:      cfg.CookieSecure,
		VerifierTTL: cfg.VerifierTTL,
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize session manager", err)
	}

	stores, closeStore := newTokenStores(ctx, cfg, sessions)
	defer closeStore()

	tiktokAPI := apiecho.NewTikTokAPI(cfg, sessions, stores, ttauth.NewHTTPClient(cfg.HTTPClientTimeout), appLogger,
		apiecho.WithAudit(audit.NewRecorder(os.Stdout, cfg.OtelServiceName)),
	)

	httpServer = server.NewHTTPServer(cfg, appLogger, tiktokAPI, reg)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}
	telemetry.Shutdown(shutdownCtx, appLogger, tracerProvider, meterProvider)

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

// newTokenStores selects the token store backend named by TOKEN_STORE.
func newTokenStores(ctx context.Context, cfg *config.ServerConfig, sessions *session.Manager) (session.StoreFunc, func()) {
	switch cfg.TokenStore {
	case config.StoreMemory:
		mem := cache.NewMemorySessionStore()
		appLogger.Info(ctx, "Using in-memory token store")
		return sessions.ServerStores(mem), func() { _ = mem.Close() }
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err, log.Fields{"addr": cfg.RedisAddr})
		}
		appLogger.Info(ctx, "Using Redis token store", log.Fields{"addr": cfg.RedisAddr, "prefix": cfg.RedisPrefix})
		return sessions.ServerStores(rediscache.NewSessionStore(client, cfg.RedisPrefix)), func() { _ = client.Close() }
	default:
		appLogger.Info(ctx, "Using cookie token store")
		return sessions.CookieStores(), func() {}
	}
}
