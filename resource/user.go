package resource

import (
	"context"
	"encoding/json"
	"net/http"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

// DefaultUserFields covers user.info.basic, user.info.profile and user.info.stats.
var DefaultUserFields = []string{
	FieldOpenID, FieldUnionID, FieldAvatarURL, FieldDisplayName,
	FieldBioDescription, FieldProfileDeepLink, FieldIsVerified,
	FieldFollowerCount, FieldFollowingCount, FieldLikesCount, FieldVideoCount,
}

// UserInfo is the user object returned by user/info.
type UserInfo struct {
	OpenID          string `json:"open_id,omitempty"`
	UnionID         string `json:"union_id,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	AvatarURL100    string `json:"avatar_url_100,omitempty"`
	AvatarLargeURL  string `json:"avatar_large_url,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	BioDescription  string `json:"bio_description,omitempty"`
	ProfileDeepLink string `json:"profile_deep_link,omitempty"`
	IsVerified      bool   `json:"is_verified,omitempty"`
	FollowerCount   int64  `json:"follower_count,omitempty"`
	FollowingCount  int64  `json:"following_count,omitempty"`
	LikesCount      int64  `json:"likes_count,omitempty"`
	VideoCount      int64  `json:"video_count,omitempty"`
}

// Users reads the authenticated user.
type Users struct {
	api Caller
}

// NewUsers creates the user resource.
func NewUsers(api Caller) *Users {
	return &Users{api: api}
}

// Self returns the raw envelope of user/info for the given fields, falling
// back to DefaultUserFields.
func (u *Users) Self(ctx context.Context, token string, fields ...string) (*ttauth.Envelope, error) {
	if len(fields) == 0 {
		fields = DefaultUserFields
	}
	return u.api.Call(ctx, http.MethodGet, ttauth.UserInfoEndpoint, ttauth.Params{
		"fields": ttauth.FieldList(fields...),
	}, token)
}

// Get decodes user/info into a UserInfo.
func (u *Users) Get(ctx context.Context, token string, fields ...string) (*UserInfo, error) {
	env, err := u.Self(ctx, token, fields...)
	if err != nil {
		return nil, err
	}
	if env.Failed() {
		return nil, env.AsError(ttauth.ErrTokenInvalid)
	}
	var data struct {
		User json.RawMessage `json:"user"`
	}
	if err := env.Decode(&data); err != nil {
		return nil, err
	}
	raw := data.User
	if len(raw) == 0 || string(raw) == "null" {
		raw = env.Data
	}
	var info UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &ttauth.AuthError{Kind: ttauth.ErrMalformedProviderResponse, Err: err}
	}
	return &info, nil
}
