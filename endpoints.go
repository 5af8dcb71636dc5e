package ttauth

import "strings"

const (
	DefaultAuthBaseURL = "https://www.tiktok.com"
	DefaultAPIBaseURL  = "https://open.tiktokapis.com"
	DefaultAPIVersion  = "v2"
)

// Endpoints locates the TikTok authorization server and Open API.
type Endpoints struct {
	AuthBaseURL string
	APIBaseURL  string
	APIVersion  string
}

// DefaultEndpoints returns the production TikTok endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthBaseURL: DefaultAuthBaseURL,
		APIBaseURL:  DefaultAPIBaseURL,
		APIVersion:  DefaultAPIVersion,
	}
}

func (e Endpoints) withDefaults() Endpoints {
	if e.AuthBaseURL == "" {
		e.AuthBaseURL = DefaultAuthBaseURL
	}
	if e.APIBaseURL == "" {
		e.APIBaseURL = DefaultAPIBaseURL
	}
	if e.APIVersion == "" {
		e.APIVersion = DefaultAPIVersion
	}
	e.AuthBaseURL = strings.TrimRight(e.AuthBaseURL, "/")
	e.APIBaseURL = strings.TrimRight(e.APIBaseURL, "/")
	return e
}

// AuthorizeURL is the consent screen.
func (e Endpoints) AuthorizeURL() string {
	e = e.withDefaults()
	return e.AuthBaseURL + "/" + e.APIVersion + "/auth/authorize/"
}

// TokenURL is used for every grant type.
func (e Endpoints) TokenURL() string {
	return e.APIURL("/oauth/token/")
}

// RevokeURL revokes an access token.
func (e Endpoints) RevokeURL() string {
	return e.APIURL("/oauth/revoke/")
}

// APIURL resolves an Open API endpoint such as "/user/info/".
func (e Endpoints) APIURL(endpoint string) string {
	e = e.withDefaults()
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return e.APIBaseURL + "/" + e.APIVersion + endpoint
}
