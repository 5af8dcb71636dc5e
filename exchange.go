package ttauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHTTPTimeout bounds every provider round trip.
const DefaultHTTPTimeout = 15 * time.Second

const maxResponseBytes = 1 << 20

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// NewHTTPClient returns the instrumented client used for provider calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// TokenClient talks to the TikTok token and revoke endpoints. Calls are never
// retried: authorization codes are single use.
type TokenClient struct {
	identity   ClientIdentity
	endpoints  Endpoints
	httpClient *http.Client
	now        func() time.Time
}

// TokenClientOption configures a TokenClient.
type TokenClientOption func(*TokenClient)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) TokenClientOption {
	return func(tc *TokenClient) {
		tc.httpClient = c
	}
}

// WithEndpoints points the client at different TikTok hosts.
func WithEndpoints(e Endpoints) TokenClientOption {
	return func(tc *TokenClient) {
		tc.endpoints = e
	}
}

// WithClock overrides time.Now for issued-at stamps.
func WithClock(now func() time.Time) TokenClientOption {
	return func(tc *TokenClient) {
		tc.now = now
	}
}

// NewTokenClient creates a TokenClient for the given application.
func NewTokenClient(identity ClientIdentity, opts ...TokenClientOption) *TokenClient {
	tc := &TokenClient{
		identity:   identity,
		endpoints:  DefaultEndpoints(),
		httpClient: NewHTTPClient(DefaultHTTPTimeout),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// ExchangeCode trades an authorization code for a token. redirectURI must be
// byte-identical to the one used to build the authorization URL, and verifier
// must be the one whose challenge was sent with it.
func (c *TokenClient) ExchangeCode(ctx context.Context, code, redirectURI, verifier string) (tok *Token, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.ExchangeCode")
	defer func() { tracing.EndSpan(span, err) }()

	if code == "" {
		return nil, &AuthError{Kind: ErrMissingCode, Description: "authorization code is empty"}
	}
	if verifier == "" {
		return nil, &AuthError{Kind: ErrMissingVerifier, Description: "code verifier is empty"}
	}

	form := url.Values{
		"client_key":    {c.identity.Key},
		"client_secret": {c.identity.Secret},
		"code":          {code},
		"grant_type":    {GrantAuthorizationCode},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	}
	return c.requestToken(ctx, form)
}

// Refresh renews an access token without a new consent screen.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (tok *Token, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.Refresh")
	defer func() { tracing.EndSpan(span, err) }()

	if refreshToken == "" {
		return nil, &AuthError{
			Kind:        ErrTokenExchangeFailed,
			Reason:      ReasonRefreshInvalid,
			Description: "refresh token is empty",
		}
	}

	form := url.Values{
		"client_key":    {c.identity.Key},
		"client_secret": {c.identity.Secret},
		"grant_type":    {GrantRefreshToken},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, form)
}

// ClientAccessToken obtains an application token with the client_credentials grant.
func (c *TokenClient) ClientAccessToken(ctx context.Context) (tok *Token, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.ClientAccessToken")
	defer func() { tracing.EndSpan(span, err) }()

	form := url.Values{
		"client_key":    {c.identity.Key},
		"client_secret": {c.identity.Secret},
		"grant_type":    {GrantClientCredentials},
	}
	return c.requestToken(ctx, form)
}

// Revoke invalidates an access token at the provider.
func (c *TokenClient) Revoke(ctx context.Context, accessToken string) (err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.Revoke")
	defer func() { tracing.EndSpan(span, err) }()

	form := url.Values{
		"client_key":    {c.identity.Key},
		"client_secret": {c.identity.Secret},
		"token":         {accessToken},
	}
	status, body, err := c.postForm(ctx, c.endpoints.RevokeURL(), form)
	if err != nil {
		return err
	}

	env, ok := parseEnvelope(body, status)
	if !ok {
		if status/100 == 2 && len(strings.TrimSpace(string(body))) == 0 {
			return nil
		}
		return &AuthError{Kind: ErrMalformedProviderResponse, HTTPStatus: status}
	}
	if env.Failed() {
		return env.AsError(ErrTokenInvalid)
	}
	if status/100 != 2 {
		return &AuthError{Kind: ErrTokenInvalid, HTTPStatus: status, Description: http.StatusText(status)}
	}
	return nil
}

func (c *TokenClient) requestToken(ctx context.Context, form url.Values) (tok *Token, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = KindName(err)
		}
		metrics.TokenExchangesTotal.WithLabelValues(form.Get("grant_type"), result).Inc()
	}()

	issuedAt := c.now()
	status, body, err := c.postForm(ctx, c.endpoints.TokenURL(), form)
	if err != nil {
		return nil, err
	}

	tok, err = ParseTokenResponse(body, issuedAt)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			authErr.HTTPStatus = status
			if form.Get("grant_type") == GrantRefreshToken && authErr.Reason == ReasonCodeInvalid {
				authErr.Reason = ReasonRefreshInvalid
			}
			if status/100 != 2 && errors.Is(authErr.Kind, ErrMalformedProviderResponse) && authErr.Err == nil {
				authErr.Kind = ErrTokenExchangeFailed
				authErr.Reason = ReasonUnknown
				authErr.Description = http.StatusText(status)
			}
		}
		return nil, err
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("tiktok.grant_type", form.Get("grant_type")),
		attribute.Bool("tiktok.scope_returned", tok.ScopeReturned),
	)
	return tok, nil
}

func (c *TokenClient) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &AuthError{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, &AuthError{Kind: ErrNetwork, HTTPStatus: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}
