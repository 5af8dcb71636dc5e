package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	"github.com/pilab-dev/tiktok-auth/middleware"
	"github.com/pilab-dev/tiktok-auth/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTokenStore is a ttauth.TokenStore driven by testify/mock.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Save(ctx context.Context, tok *ttauth.Token) error {
	return m.Called(ctx, tok).Error(0)
}

func (m *MockTokenStore) Load(ctx context.Context) (*ttauth.Token, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ttauth.Token), args.Error(1)
}

func (m *MockTokenStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func storesOf(store ttauth.TokenStore) session.StoreFunc {
	return func(http.ResponseWriter, *http.Request) ttauth.TokenStore { return store }
}

func serve(t *testing.T, mw []echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, *middleware.ResolvedToken) {
	t.Helper()
	e := echo.New()
	var seen *middleware.ResolvedToken
	e.GET("/r", func(c echo.Context) error {
		resolved, err := middleware.MustToken(c)
		if err != nil {
			return err
		}
		seen = &resolved
		return c.NoContent(http.StatusNoContent)
	}, mw...)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestBearerToken(t *testing.T) {
	tok, ok := middleware.BearerToken("Bearer act.abc")
	assert.True(t, ok)
	assert.Equal(t, "act.abc", tok)

	tok, ok = middleware.BearerToken("bearer   act.abc ")
	assert.True(t, ok)
	assert.Equal(t, "act.abc", tok)

	_, ok = middleware.BearerToken("Basic Zm9vOmJhcg==")
	assert.False(t, ok)
	_, ok = middleware.BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = middleware.BearerToken("")
	assert.False(t, ok)
}

func TestRequireToken_LookupOrder(t *testing.T) {
	stored := &ttauth.Token{AccessToken: "act.stored", ExpiresIn: 60, IssuedAt: time.Now()}

	testCases := []struct {
		name       string
		header     string
		query      string
		wantToken  string
		wantSource middleware.TokenSource
		storeHit   bool
	}{
		{name: "header wins", header: "Bearer act.header", query: "act.query", wantToken: "act.header", wantSource: middleware.SourceHeader},
		{name: "query before store", query: "act.query", wantToken: "act.query", wantSource: middleware.SourceQuery},
		{name: "store fallback", wantToken: "act.stored", wantSource: middleware.SourceStore, storeHit: true},
		{name: "malformed header falls through", header: "Token act.header", wantToken: "act.stored", wantSource: middleware.SourceStore, storeHit: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockTokenStore)
			if tc.storeHit {
				store.On("Load", mock.Anything).Return(stored, nil).Once()
			}

			target := "/r"
			if tc.query != "" {
				target += "?access_token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rec, seen := serve(t, []echo.MiddlewareFunc{middleware.RequireToken(storesOf(store))}, req)
			require.Equal(t, http.StatusNoContent, rec.Code)
			require.NotNil(t, seen)
			assert.Equal(t, tc.wantToken, seen.AccessToken)
			assert.Equal(t, tc.wantSource, seen.Source)
			if tc.storeHit {
				assert.Same(t, stored, seen.Stored)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestRequireToken_Missing(t *testing.T) {
	store := new(MockTokenStore)
	store.On("Load", mock.Anything).Return(nil, ttauth.ErrTokenNotFound)

	rec, seen := serve(t, []echo.MiddlewareFunc{middleware.RequireToken(storesOf(store))}, httptest.NewRequest(http.MethodGet, "/r", nil))
	assert.Nil(t, seen)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"access_token_required"`)
}

func TestRequireScopes(t *testing.T) {
	granted := &ttauth.Token{
		AccessToken:   "act.stored",
		ExpiresIn:     60,
		IssuedAt:      time.Now(),
		GrantedScope:  []string{"user.info.basic"},
		ScopeReturned: true,
	}

	store := new(MockTokenStore)
	store.On("Load", mock.Anything).Return(granted, nil)
	mw := []echo.MiddlewareFunc{middleware.RequireToken(storesOf(store)), middleware.RequireScopes("video.list")}

	rec, _ := serve(t, mw, httptest.NewRequest(http.MethodGet, "/r", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_scope")

	// Header tokens carry no scope knowledge and pass.
	req := httptest.NewRequest(http.MethodGet, "/r", nil)
	req.Header.Set("Authorization", "Bearer act.header")
	rec, _ = serve(t, mw, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ok := new(MockTokenStore)
	ok.On("Load", mock.Anything).Return(granted, nil)
	rec, _ = serve(t, []echo.MiddlewareFunc{middleware.RequireToken(storesOf(ok)), middleware.RequireScopes("user.info.basic")},
		httptest.NewRequest(http.MethodGet, "/r", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
