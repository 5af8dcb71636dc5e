package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	ttauth "github.com/pilab-dev/tiktok-auth"
)

// DefaultVideoFields is requested when the caller names none.
var DefaultVideoFields = []string{
	FieldID, FieldCreateTime, FieldTitle, FieldCoverImageURL, FieldShareURL,
	FieldVideoDescription, FieldDuration, FieldHeight, FieldWidth,
	FieldEmbedHTML, FieldEmbedLink, FieldLikeCount, FieldCommentCount,
	FieldShareCount, FieldViewCount,
}

// MaxVideoCount is the largest page the provider serves.
const MaxVideoCount = 20

// ErrNoVideoIDs is returned by Query without ids.
var ErrNoVideoIDs = errors.New("at least one video id is required")

// ListOptions controls video/list.
type ListOptions struct {
	MaxCount int
	// Cursor is passed back exactly as the previous page returned it.
	Cursor json.RawMessage
	Fields []string
}

// Videos lists and queries the user's public videos.
type Videos struct {
	api Caller
}

// NewVideos creates the video resource.
func NewVideos(api Caller) *Videos {
	return &Videos{api: api}
}

// List calls video/list. The envelope exposes Cursor and HasMore for the next page.
func (v *Videos) List(ctx context.Context, token string, opts ListOptions) (*ttauth.Envelope, error) {
	params := ttauth.Params{}
	if opts.MaxCount > 0 {
		if opts.MaxCount > MaxVideoCount {
			opts.MaxCount = MaxVideoCount
		}
		params["max_count"] = opts.MaxCount
	}
	if len(opts.Cursor) > 0 && string(opts.Cursor) != "null" {
		params["cursor"] = opts.Cursor
	}
	return v.api.Call(ctx, http.MethodPost, "/video/list/?fields="+fieldsOrDefault(opts.Fields), params, token)
}

// Query calls video/query for specific ids.
func (v *Videos) Query(ctx context.Context, token string, videoIDs []string, fields ...string) (*ttauth.Envelope, error) {
	if len(videoIDs) == 0 {
		return nil, ErrNoVideoIDs
	}
	params := ttauth.Params{
		"filters": map[string]interface{}{"video_ids": videoIDs},
	}
	return v.api.Call(ctx, http.MethodPost, "/video/query/?fields="+fieldsOrDefault(fields), params, token)
}

func fieldsOrDefault(fields []string) string {
	if len(fields) == 0 {
		fields = DefaultVideoFields
	}
	return ttauth.FieldList(fields...)
}
