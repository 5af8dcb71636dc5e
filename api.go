package ttauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

// Params are the request parameters of an Open API call.
type Params map[string]interface{}

// APIClient is the authenticated façade over the TikTok Open API. It borrows
// a token per call and never stores it.
type APIClient struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// NewAPIClient creates a façade. A nil httpClient selects the default
// instrumented client.
func NewAPIClient(endpoints Endpoints, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(DefaultHTTPTimeout)
	}
	return &APIClient{
		endpoints:  endpoints,
		httpClient: httpClient,
	}
}

// Call performs one Open API request with token as bearer credential.
//
// GET and DELETE params go to the query string. For POST, params are sent as
// a URL encoded form when every value is a scalar and as a JSON document as
// soon as one value is a map, struct, slice or array.
//
// A non-2xx response without a JSON body is returned as an error envelope
// carrying the HTTP status. Only transport failures (ErrNetwork) and 2xx
// bodies that are not JSON (ErrMalformedProviderResponse) return an error.
func (c *APIClient) Call(ctx context.Context, method, endpoint string, params Params, token string) (env *Envelope, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "ttauth.APIClient.Call")
	span.SetAttributes(
		attribute.String("tiktok.endpoint", endpoint),
		attribute.String("http.method", method),
	)
	defer func() {
		result := "ok"
		switch {
		case err != nil:
			result = KindName(err)
		case env.Failed():
			result = "provider_error"
		}
		metrics.APICallsTotal.WithLabelValues(metricEndpoint(endpoint), result).Inc()
		tracing.EndSpan(span, err)
	}()

	if token == "" {
		return nil, &AuthError{Kind: ErrTokenInvalid, Description: "access token is empty"}
	}

	req, err := c.newRequest(ctx, strings.ToUpper(method), endpoint, params)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &AuthError{Kind: ErrNetwork, HTTPStatus: resp.StatusCode, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	env, ok := parseEnvelope(body, resp.StatusCode)
	if !ok {
		if resp.StatusCode/100 != 2 {
			return statusEnvelope(resp.StatusCode), nil
		}
		return nil, &AuthError{
			Kind:        ErrMalformedProviderResponse,
			HTTPStatus:  resp.StatusCode,
			Description: "response body is not JSON",
		}
	}
	if resp.StatusCode/100 != 2 && !env.Failed() {
		fallback := statusEnvelope(resp.StatusCode)
		if env.Error != nil && env.Error.LogID != "" {
			fallback.Error.LogID = env.Error.LogID
		}
		env.Error = fallback.Error
	}
	return env, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, endpoint string, params Params) (*http.Request, error) {
	u, err := url.Parse(c.endpoints.APIURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	switch method {
	case http.MethodGet, http.MethodDelete:
		q := u.Query()
		for k, v := range params {
			if isNil(v) {
				continue
			}
			q.Set(k, scalarString(v))
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	}

	body, contentType, err := EncodeBody(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

// EncodeBody applies the dual encoding rule and returns the body with its
// content type.
func EncodeBody(params Params) ([]byte, string, error) {
	if HasNestedValue(params) {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode JSON body: %w", err)
		}
		return body, "application/json; charset=UTF-8", nil
	}

	form := url.Values{}
	for k, v := range params {
		if isNil(v) {
			continue
		}
		form.Set(k, scalarString(v))
	}
	return []byte(form.Encode()), "application/x-www-form-urlencoded", nil
}

// HasNestedValue reports whether any value is a map, struct, slice or array.
func HasNestedValue(params Params) bool {
	for _, v := range params {
		if isNested(v) {
			return true
		}
	}
	return false
}

// deref unwraps pointers and interfaces. ok is false for nil values,
// including typed nil pointers.
func deref(v interface{}) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, true
}

// isNil reports whether v is absent and must not be sent.
func isNil(v interface{}) bool {
	_, ok := deref(v)
	return !ok
}

func isNested(v interface{}) bool {
	rv, ok := deref(v)
	if !ok {
		return false
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

func scalarString(v interface{}) string {
	rv, ok := deref(v)
	if !ok {
		return ""
	}
	return fmt.Sprint(rv.Interface())
}

// metricEndpoint strips the query string so labels stay bounded.
func metricEndpoint(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

// FieldList joins Open API field names for the "fields" parameter.
func FieldList(fields ...string) string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, ",")
}

// sortedKeys is used where deterministic iteration matters.
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
