package echo_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	apiecho "github.com/pilab-dev/tiktok-auth/api/echo"
	"github.com/pilab-dev/tiktok-auth/config"
	"github.com/pilab-dev/tiktok-auth/internal/audit"
	"github.com/pilab-dev/tiktok-auth/session"
	"github.com/stretchr/testify/require"
)

const (
	goodAccessToken  = "act.goodtoken1234567890abcdef"
	goodRefreshToken = "rft.goodrefresh1234567890"
	badAccessToken   = "act.revokedtoken1234567890ab"
)

// fakeTikTok serves the token endpoint and the Open API endpoints used by
// the handlers.
type fakeTikTok struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	challenges map[string]string // code -> challenge
	scope      string
	omitScope  bool
	revoked    []string
	bodies     map[string]map[string]json.RawMessage // path -> last JSON body
	lastQuery  url.Values
	calls      map[string]int
}

func newFakeTikTok(t *testing.T) *fakeTikTok {
	t.Helper()
	f := &fakeTikTok{
		t:          t,
		challenges: map[string]string{},
		calls:      map[string]int{},
		bodies:     map[string]map[string]json.RawMessage{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth/token/", f.token)
	mux.HandleFunc("/v2/oauth/revoke/", f.revoke)
	mux.HandleFunc("/v2/user/info/", f.authenticated(f.userInfo))
	mux.HandleFunc("/v2/video/list/", f.authenticated(f.videoList))
	mux.HandleFunc("/v2/post/publish/video/init/", f.authenticated(f.publishInit))
	mux.HandleFunc("/v2/post/publish/status/fetch/", f.authenticated(f.publishStatus))
	mux.HandleFunc("/v2/post/publish/creator_info/query/", f.authenticated(f.creatorInfo))
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func okEnvelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data":  data,
		"error": map[string]string{"code": "ok", "message": "", "log_id": "LOGOK"},
	}
}

// approve registers code for the challenge found in the consent URL.
func (f *fakeTikTok) approve(authURL, code string) {
	u, err := url.Parse(authURL)
	require.NoError(f.t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[code] = u.Query().Get("code_challenge")
	f.scope = u.Query().Get("scope")
}

func (f *fakeTikTok) token(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()

	tok := map[string]interface{}{
		"access_token":  goodAccessToken,
		"refresh_token": goodRefreshToken,
		"expires_in":    86400,
		"open_id":       "open-1",
		"token_type":    "Bearer",
	}
	if !f.omitScope {
		tok["scope"] = f.scope
	}

	switch r.PostForm.Get("grant_type") {
	case ttauth.GrantAuthorizationCode:
		challenge, ok := f.challenges[r.PostForm.Get("code")]
		delete(f.challenges, r.PostForm.Get("code"))
		if !ok {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Authorization code is expired.", "log_id": "LOGEXP"})
			return
		}
		if ttauth.HexSHA256Challenge(r.PostForm.Get("code_verifier")) != challenge {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Code verifier or code challenge is invalid.", "log_id": "LOGPKCE"})
			return
		}
	case ttauth.GrantRefreshToken:
		if r.PostForm.Get("refresh_token") != goodRefreshToken {
			respond(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh token is invalid or expired.", "log_id": "LOGRFT"})
			return
		}
		tok["scope"] = "user.info.basic,video.list"
	}
	respond(w, http.StatusOK, tok)
}

func (f *fakeTikTok) revoke(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.revoked = append(f.revoked, r.PostForm.Get("token"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeTikTok) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[r.URL.Path]++
		f.lastQuery = r.URL.Query()
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var parsed map[string]json.RawMessage
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &parsed)
			f.bodies[r.URL.Path] = parsed
		}
		f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+goodAccessToken {
			respond(w, http.StatusUnauthorized, map[string]interface{}{
				"data":  map[string]interface{}{},
				"error": map[string]string{"code": "access_token_invalid", "message": "The access token is invalid or not found in the request.", "log_id": "LOGINV"},
			})
			return
		}
		next(w, r)
	}
}

func (f *fakeTikTok) userInfo(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, okEnvelope(map[string]interface{}{
		"user": map[string]interface{}{
			"open_id":        "open-1",
			"union_id":       "union-1",
			"display_name":   "Test User",
			"avatar_url":     "https://p16.example.com/a.jpg",
			"follower_count": 10,
		},
	}))
}

func (f *fakeTikTok) videoList(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, okEnvelope(map[string]interface{}{
		"videos":   []map[string]interface{}{{"id": "v1", "title": "first"}},
		"cursor":   1700000000000,
		"has_more": true,
	}))
}

func (f *fakeTikTok) publishInit(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, okEnvelope(map[string]string{"publish_id": "v_pub_url~v2.123"}))
}

func (f *fakeTikTok) publishStatus(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, okEnvelope(map[string]string{"status": "PROCESSING_DOWNLOAD"}))
}

func (f *fakeTikTok) creatorInfo(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, okEnvelope(map[string]interface{}{
		"creator_username":      "tester",
		"privacy_level_options": []string{"SELF_ONLY"},
	}))
}

const testCookieSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	fake     *fakeTikTok
	e        *echo.Echo
	cfg      *config.ServerConfig
	sessions *session.Manager
	audit    *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := newFakeTikTok(t)
	cfg := &config.ServerConfig{
		ClientKey:         "awtestclientkey",
		ClientSecret:      "test-client-secret",
		RedirectURI:       config.OriginPlaceholder + "/tiktok/api/auth/callback",
		DefaultScope:      ttauth.ScopeUserInfoBasic,
		AuthBaseURL:       fake.server.URL,
		APIBaseURL:        fake.server.URL,
		APIVersion:        "v2",
		HTTPClientTimeout: 5 * time.Second,
		CookieSecret:      testCookieSecret,
		VerifierTTL:       10 * time.Minute,
		TokenStore:        config.StoreCookie,
		SuccessPath:       "/tiktok/auth/success",
		ErrorPath:         "/tiktok/auth/error",
		HomePath:          "/tiktok/home",
	}
	sessions, err := session.NewManager(session.Options{Secret: cfg.CookieSecret, VerifierTTL: cfg.VerifierTTL})
	require.NoError(t, err)

	var auditLog bytes.Buffer
	e := echo.New()
	apiecho.NewTikTokAPI(cfg, sessions, nil, fake.server.Client(), nil,
		apiecho.WithAudit(audit.NewRecorder(&auditLog, "tiktok-auth-test")),
	).RegisterRoutes(e)
	return &harness{fake: fake, e: e, cfg: cfg, sessions: sessions, audit: &auditLog}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

// withCookies copies the live cookies of rec onto req.
func withCookies(req *http.Request, recs ...*httptest.ResponseRecorder) *http.Request {
	for _, rec := range recs {
		for _, c := range rec.Result().Cookies() {
			if c.MaxAge >= 0 {
				req.AddCookie(c)
			}
		}
	}
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login runs authorize and callback and returns the callback response.
func (h *harness) login(t *testing.T, scope, state string) (*httptest.ResponseRecorder, *httptest.ResponseRecorder) {
	t.Helper()
	target := "/tiktok/api/auth/authorize?scope=" + url.QueryEscape(scope)
	if state != "" {
		target += "&state=" + url.QueryEscape(state)
	}
	authRec := h.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusFound, authRec.Code)

	location := authRec.Header().Get("Location")
	h.fake.approve(location, "code-ok")
	u, err := url.Parse(location)
	require.NoError(t, err)

	cb := httptest.NewRequest(http.MethodGet, "/tiktok/api/auth/callback?code=code-ok&state="+url.QueryEscape(u.Query().Get("state")), nil)
	cbRec := h.do(withCookies(cb, authRec))
	return authRec, cbRec
}

// auditEvents decodes every audit line written so far.
func (h *harness) auditEvents(t *testing.T) []audit.Event {
	t.Helper()
	var events []audit.Event
	for _, line := range bytes.Split(bytes.TrimSpace(h.audit.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry struct {
			Event audit.Event `json:"audit_event"`
		}
		require.NoError(t, json.Unmarshal(line, &entry))
		events = append(events, entry.Event)
	}
	return events
}
