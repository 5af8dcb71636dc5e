package resource

import (
	"context"
	"errors"
	"net/http"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

const postEndpoint = "/post/publish"

// Privacy levels accepted by direct post.
const (
	PrivacyPublic        = "PUBLIC_TO_EVERYONE"
	PrivacyMutualFriends = "MUTUAL_FOLLOW_FRIENDS"
	PrivacyFollowers     = "FOLLOWER_OF_CREATOR"
	PrivacySelfOnly      = "SELF_ONLY"
)

// SourcePullFromURL lets TikTok fetch the media itself.
const SourcePullFromURL = "PULL_FROM_URL"

// ErrMissingVideoURL is returned when a publish request has no source URL.
var ErrMissingVideoURL = errors.New("video_url is required")

// ErrMissingPublishID is returned by Status without a publish id.
var ErrMissingPublishID = errors.New("publish_id is required")

// PostInfo is the post_info object of a direct post.
type PostInfo struct {
	Title                 string `json:"title,omitempty"`
	PrivacyLevel          string `json:"privacy_level,omitempty"`
	DisableDuet           bool   `json:"disable_duet,omitempty"`
	DisableComment        bool   `json:"disable_comment,omitempty"`
	DisableStitch         bool   `json:"disable_stitch,omitempty"`
	VideoCoverTimestampMS int64  `json:"video_cover_timestamp_ms,omitempty"`
	BrandContentToggle    bool   `json:"brand_content_toggle,omitempty"`
	BrandOrganicToggle    bool   `json:"brand_organic_toggle,omitempty"`
	IsAIGC                bool   `json:"is_aigc,omitempty"`
}

// SourceInfo describes where TikTok gets the media from.
type SourceInfo struct {
	Source          string   `json:"source"`
	VideoURL        string   `json:"video_url,omitempty"`
	PhotoImages     []string `json:"photo_images,omitempty"`
	PhotoCoverIndex *int     `json:"photo_cover_index,omitempty"`
}

// PublishResult is the data object of an init call.
type PublishResult struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url,omitempty"`
}

// Posts wraps the content posting API.
type Posts struct {
	api Caller
}

// NewPosts creates the post resource.
func NewPosts(api Caller) *Posts {
	return &Posts{api: api}
}

// CreatorInfo queries posting capabilities and privacy options of the creator.
func (p *Posts) CreatorInfo(ctx context.Context, token string) (*ttauth.Envelope, error) {
	return p.api.Call(ctx, http.MethodPost, postEndpoint+"/creator_info/query/", ttauth.Params{}, token)
}

// PublishVideo starts a direct post with TikTok pulling the video from videoURL.
func (p *Posts) PublishVideo(ctx context.Context, token, videoURL string, info PostInfo) (*ttauth.Envelope, error) {
	if videoURL == "" {
		return nil, ErrMissingVideoURL
	}
	if info.PrivacyLevel == "" {
		info.PrivacyLevel = PrivacySelfOnly
	}
	return p.api.Call(ctx, http.MethodPost, postEndpoint+"/video/init/", ttauth.Params{
		"post_info":   info,
		"source_info": SourceInfo{Source: SourcePullFromURL, VideoURL: videoURL},
	}, token)
}

// Draft sends a video to the creator's inbox for them to finish in the app.
func (p *Posts) Draft(ctx context.Context, token, videoURL string) (*ttauth.Envelope, error) {
	if videoURL == "" {
		return nil, ErrMissingVideoURL
	}
	return p.api.Call(ctx, http.MethodPost, postEndpoint+"/inbox/video/init/", ttauth.Params{
		"source_info": SourceInfo{Source: SourcePullFromURL, VideoURL: videoURL},
	}, token)
}

// Photos posts a photo carousel pulled from the given URLs.
func (p *Posts) Photos(ctx context.Context, token string, info PostInfo, images []string, coverIndex int, mode string) (*ttauth.Envelope, error) {
	if len(images) == 0 {
		return nil, errors.New("at least one photo url is required")
	}
	if mode == "" {
		mode = "DIRECT_POST"
	}
	return p.api.Call(ctx, http.MethodPost, postEndpoint+"/content/init/", ttauth.Params{
		"post_info": info,
		"source_info": SourceInfo{
			Source:          SourcePullFromURL,
			PhotoImages:     images,
			PhotoCoverIndex: &coverIndex,
		},
		"post_mode":  mode,
		"media_type": "PHOTO",
	}, token)
}

// Status fetches the processing state of a publish.
func (p *Posts) Status(ctx context.Context, token, publishID string) (*ttauth.Envelope, error) {
	if publishID == "" {
		return nil, ErrMissingPublishID
	}
	return p.api.Call(ctx, http.MethodPost, postEndpoint+"/status/fetch/", ttauth.Params{
		"publish_id": publishID,
	}, token)
}
