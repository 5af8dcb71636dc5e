package ttauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

var testIdentity = ttauth.ClientIdentity{Key: "awtestclientkey", Secret: "test-client-secret"}

// fakeProvider emulates the TikTok token endpoint, including the server side
// PKCE check with the hex challenge.
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server

	mu    sync.Mutex
	codes map[string]pendingCode
	// tokenBody, when set, replaces the generated token response.
	tokenBody   string
	tokenStatus int
	revoked     []string
	lastForm    url.Values
}

type pendingCode struct {
	challenge   string
	redirectURI string
	scope       string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{t: t, codes: map[string]pendingCode{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth/token/", p.handleToken)
	mux.HandleFunc("/v2/oauth/revoke/", p.handleRevoke)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) endpoints() ttauth.Endpoints {
	return ttauth.Endpoints{
		AuthBaseURL: p.server.URL,
		APIBaseURL:  p.server.URL,
		APIVersion:  "v2",
	}
}

func (p *fakeProvider) tokenClient() *ttauth.TokenClient {
	return ttauth.NewTokenClient(testIdentity,
		ttauth.WithEndpoints(p.endpoints()),
		ttauth.WithHTTPClient(p.server.Client()),
	)
}

// approve simulates the consent screen: it reads the authorization URL the
// way TikTok would and issues a code bound to its challenge.
func (p *fakeProvider) approve(authURL, code string) {
	u, err := url.Parse(authURL)
	if err != nil {
		p.t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[code] = pendingCode{
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
		scope:       q.Get("scope"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func oauthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
		"log_id":            "20240101000000LOGID",
	})
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request", "unparseable form")
		return
	}
	p.mu.Lock()
	p.lastForm = r.PostForm
	body, status := p.tokenBody, p.tokenStatus
	p.mu.Unlock()

	if body != "" {
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}

	if r.PostForm.Get("client_key") != testIdentity.Key || r.PostForm.Get("client_secret") != testIdentity.Secret {
		oauthError(w, "invalid_client", "Client key or secret is incorrect.")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case ttauth.GrantAuthorizationCode:
		p.mu.Lock()
		pending, ok := p.codes[r.PostForm.Get("code")]
		delete(p.codes, r.PostForm.Get("code"))
		p.mu.Unlock()

		switch {
		case !ok:
			oauthError(w, "invalid_grant", "Authorization code is expired.")
		case pending.redirectURI != r.PostForm.Get("redirect_uri"):
			oauthError(w, "invalid_request", "The redirect_uri does not match.")
		case ttauth.HexSHA256Challenge(r.PostForm.Get("code_verifier")) != pending.challenge:
			oauthError(w, "invalid_grant", "Code verifier or code challenge is invalid.")
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token":       "act.example12345Example12345Example",
				"refresh_token":      "rft.example12345Example12345Example",
				"expires_in":         86400,
				"refresh_expires_in": 31536000,
				"open_id":            "open-id-1",
				"scope":              pending.scope,
				"token_type":         "Bearer",
			})
		}
	case ttauth.GrantRefreshToken:
		if r.PostForm.Get("refresh_token") != "rft.example12345Example12345Example" {
			oauthError(w, "invalid_grant", "Refresh token is invalid or expired.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "act.refreshed12345Refreshed12345",
			"refresh_token": "rft.example12345Example12345Example",
			"expires_in":    86400,
			"open_id":       "open-id-1",
			"scope":         "user.info.basic",
		})
	case ttauth.GrantClientCredentials:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "clt.client12345Client12345",
			"expires_in":   7200,
			"token_type":   "Bearer",
		})
	default:
		oauthError(w, "unsupported_grant_type", "grant type not supported")
	}
}

func (p *fakeProvider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request", "unparseable form")
		return
	}
	p.mu.Lock()
	p.revoked = append(p.revoked, r.PostForm.Get("token"))
	p.mu.Unlock()
	if r.PostForm.Get("token") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]string{"code": "invalid_params", "message": "token is required", "log_id": "LOG1"},
		})
		return
	}
	w.WriteHeader(http.StatusOK)
}
