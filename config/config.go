package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/spf13/viper"
)

// OriginPlaceholder in TIKTOK_REDIRECT_URI is replaced with the request origin.
const OriginPlaceholder = "{origin}"

// Token store backends.
const (
	StoreCookie = "cookie"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Timeout bounds for outbound provider calls.
const (
	MinHTTPClientTimeout = time.Second
	MaxHTTPClientTimeout = 60 * time.Second
)

const minCookieSecretLength = 32

// ServerConfig holds all configuration for the server and the CLI.
type ServerConfig struct {
	ClientKey    string `mapstructure:"TIKTOK_CLIENT_KEY"`
	ClientSecret string `mapstructure:"TIKTOK_CLIENT_SECRET"`
	RedirectURI  string `mapstructure:"TIKTOK_REDIRECT_URI"`
	DefaultScope string `mapstructure:"TIKTOK_DEFAULT_SCOPE"`
	AuthBaseURL  string `mapstructure:"TIKTOK_AUTH_BASE_URL"`
	APIBaseURL   string `mapstructure:"TIKTOK_API_BASE_URL"`
	APIVersion   string `mapstructure:"TIKTOK_API_VERSION"`

	HTTPPort          string        `mapstructure:"HTTP_PORT"`
	HTTPClientTimeout time.Duration `mapstructure:"HTTP_CLIENT_TIMEOUT"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`

	CookieSecret string        `mapstructure:"COOKIE_SECRET"`
	CookieSecure bool          `mapstructure:"COOKIE_SECURE"`
	VerifierTTL  time.Duration `mapstructure:"VERIFIER_TTL"`

	TokenStore    string `mapstructure:"TOKEN_STORE"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	SuccessPath string `mapstructure:"SUCCESS_PATH"`
	ErrorPath   string `mapstructure:"ERROR_PATH"`
	HomePath    string `mapstructure:"HOME_PATH"`
}

// setDefaults registers every key so AutomaticEnv picks them up on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("TIKTOK_CLIENT_KEY", "")
	v.SetDefault("TIKTOK_CLIENT_SECRET", "")
	v.SetDefault("TIKTOK_REDIRECT_URI", OriginPlaceholder+"/tiktok/api/auth/callback")
	v.SetDefault("TIKTOK_DEFAULT_SCOPE", ttauth.ScopeUserInfoBasic)
	v.SetDefault("TIKTOK_AUTH_BASE_URL", ttauth.DefaultAuthBaseURL)
	v.SetDefault("TIKTOK_API_BASE_URL", ttauth.DefaultAPIBaseURL)
	v.SetDefault("TIKTOK_API_VERSION", ttauth.DefaultAPIVersion)
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", ttauth.DefaultHTTPTimeout)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "tiktok-auth")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("COOKIE_SECRET", "")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("VERIFIER_TTL", 10*time.Minute)
	v.SetDefault("TOKEN_STORE", StoreCookie)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "tiktok-auth")
	v.SetDefault("SUCCESS_PATH", "/tiktok/auth/success")
	v.SetDefault("ERROR_PATH", "/tiktok/auth/error")
	v.SetDefault("HOME_PATH", "/tiktok/home")
}

// LoadConfig reads configuration from file, environment variables, and defaults.
// It does not validate; call Validate before use.
func LoadConfig() (*ServerConfig, error) {
	return load(viper.New(), "")
}

// LoadConfigFile is LoadConfig with an explicit config file. An empty path
// falls back to the default search locations.
func LoadConfigFile(path string) (*ServerConfig, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, file string) (*ServerConfig, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/tiktok-auth/")
		v.AddConfigPath("$HOME/.tiktok-auth")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or invalid value at once.
func (c *ServerConfig) Validate() error {
	var errs []error

	if err := c.Identity().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.CookieSecret) < minCookieSecretLength {
		errs = append(errs, fmt.Errorf("COOKIE_SECRET must be at least %d characters", minCookieSecretLength))
	}
	if c.HTTPClientTimeout < MinHTTPClientTimeout || c.HTTPClientTimeout > MaxHTTPClientTimeout {
		errs = append(errs, fmt.Errorf("HTTP_CLIENT_TIMEOUT must be within %s and %s, got %s",
			MinHTTPClientTimeout, MaxHTTPClientTimeout, c.HTTPClientTimeout))
	}
	if c.VerifierTTL <= 0 {
		errs = append(errs, errors.New("VERIFIER_TTL must be positive"))
	}
	if _, err := ttauth.NormalizeScope(c.DefaultScope); err != nil {
		errs = append(errs, fmt.Errorf("TIKTOK_DEFAULT_SCOPE: %w", err))
	}
	for key, raw := range map[string]string{
		"TIKTOK_AUTH_BASE_URL": c.AuthBaseURL,
		"TIKTOK_API_BASE_URL":  c.APIBaseURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL", key))
		}
	}
	if !strings.Contains(c.RedirectURI, OriginPlaceholder) {
		if err := ttauth.ValidateRedirectURI(c.RedirectURI); err != nil {
			errs = append(errs, fmt.Errorf("TIKTOK_REDIRECT_URI: %w", err))
		}
	}
	switch c.TokenStore {
	case StoreCookie, StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis token store"))
		}
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be one of cookie, memory, redis, got %q", c.TokenStore))
	}

	return errors.Join(errs...)
}

// Identity returns the client credentials.
func (c *ServerConfig) Identity() ttauth.ClientIdentity {
	return ttauth.ClientIdentity{Key: c.ClientKey, Secret: c.ClientSecret}
}

// Endpoints returns the provider endpoints.
func (c *ServerConfig) Endpoints() ttauth.Endpoints {
	return ttauth.Endpoints{
		AuthBaseURL: c.AuthBaseURL,
		APIBaseURL:  c.APIBaseURL,
		APIVersion:  c.APIVersion,
	}
}

// RedirectURIFor resolves the redirect URI for a request origin such as
// "https://app.example.com".
func (c *ServerConfig) RedirectURIFor(origin string) string {
	return strings.ReplaceAll(c.RedirectURI, OriginPlaceholder, strings.TrimSuffix(origin, "/"))
}
