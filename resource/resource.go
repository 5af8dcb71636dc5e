// Package resource exposes typed access to the TikTok Open API endpoints
// used by the service. Every call goes through the ttauth façade.
package resource

import (
	"context"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

// Caller is satisfied by *ttauth.APIClient.
type Caller interface {
	Call(ctx context.Context, method, endpoint string, params ttauth.Params, token string) (*ttauth.Envelope, error)
}

var _ Caller = (*ttauth.APIClient)(nil)

// Field names accepted by the Open API.
const (
	FieldOpenID          = "open_id"
	FieldUnionID         = "union_id"
	FieldAvatarURL       = "avatar_url"
	FieldAvatarURL100    = "avatar_url_100"
	FieldAvatarLargeURL  = "avatar_large_url"
	FieldDisplayName     = "display_name"
	FieldBioDescription  = "bio_description"
	FieldProfileDeepLink = "profile_deep_link"
	FieldIsVerified      = "is_verified"
	FieldFollowerCount   = "follower_count"
	FieldFollowingCount  = "following_count"
	FieldLikesCount      = "likes_count"
	FieldVideoCount      = "video_count"

	FieldID               = "id"
	FieldCreateTime       = "create_time"
	FieldTitle            = "title"
	FieldCoverImageURL    = "cover_image_url"
	FieldShareURL         = "share_url"
	FieldVideoDescription = "video_description"
	FieldDuration         = "duration"
	FieldHeight           = "height"
	FieldWidth            = "width"
	FieldEmbedHTML        = "embed_html"
	FieldEmbedLink        = "embed_link"
	FieldLikeCount        = "like_count"
	FieldCommentCount     = "comment_count"
	FieldShareCount       = "share_count"
	FieldViewCount        = "view_count"
)
