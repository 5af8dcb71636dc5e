//nolint:varnamelen
package echo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	ttauth "github.com/pilab-dev/tiktok-auth"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/pilab-dev/tiktok-auth/log"
	"github.com/pilab-dev/tiktok-auth/middleware"
	"github.com/pilab-dev/tiktok-auth/resource"
)

// splitFields parses a comma separated fields parameter.
func splitFields(raw string) []string {
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// UserInfoHandler returns user/info for the fields query parameter.
func (ta *TikTokAPI) UserInfoHandler(c echo.Context) error {
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	env, err := ta.users.Self(c.Request().Context(), resolved.AccessToken, splitFields(c.QueryParam("fields"))...)
	return ta.respondEnvelope(c, "User info request failed", env, err)
}

type videoListRequest struct {
	MaxCount int             `json:"max_count"`
	Cursor   json.RawMessage `json:"cursor"`
	Fields   []string        `json:"fields"`
}

// VideosListHandler pages through the user's videos. The cursor of the
// response is passed back unchanged to fetch the next page.
func (ta *TikTokAPI) VideosListHandler(c echo.Context) error {
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	var req videoListRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("Malformed request body"))
	}
	env, err := ta.videos.List(c.Request().Context(), resolved.AccessToken, resource.ListOptions{
		MaxCount: req.MaxCount,
		Cursor:   req.Cursor,
		Fields:   req.Fields,
	})
	return ta.respondEnvelope(c, "Video list request failed", env, err)
}

type videoQueryRequest struct {
	VideoIDs []string `json:"video_ids"`
	Fields   []string `json:"fields"`
}

// VideosQueryHandler fetches specific videos by id.
func (ta *TikTokAPI) VideosQueryHandler(c echo.Context) error {
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	var req videoQueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("Malformed request body"))
	}
	if len(req.VideoIDs) == 0 {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest(resource.ErrNoVideoIDs.Error()))
	}
	env, err := ta.videos.Query(c.Request().Context(), resolved.AccessToken, req.VideoIDs, req.Fields...)
	return ta.respondEnvelope(c, "Video query request failed", env, err)
}

type publishRequest struct {
	VideoURL       string `json:"video_url"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Visibility     string `json:"visibility"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableComment bool   `json:"disable_comment"`
	DisableStitch  bool   `json:"disable_stitch"`
	// CoverTime is the cover frame position in seconds.
	CoverTime float64 `json:"cover_time"`
}

type publishResponse struct {
	Success     bool             `json:"success"`
	PublishID   string           `json:"publish_id"`
	Init        *ttauth.Envelope `json:"init_response"`
	Status      *ttauth.Envelope `json:"status_response,omitempty"`
	StatusError string           `json:"status_error,omitempty"`
}

// privacyLevel maps the visibility names of the publish form to TikTok
// privacy levels. Unknown values are passed through.
func privacyLevel(visibility string) string {
	switch strings.ToUpper(strings.TrimSpace(visibility)) {
	case "", "PRIVATE", "SELF", resource.PrivacySelfOnly:
		return resource.PrivacySelfOnly
	case "PUBLIC", resource.PrivacyPublic:
		return resource.PrivacyPublic
	case "FRIENDS", resource.PrivacyMutualFriends:
		return resource.PrivacyMutualFriends
	case "FOLLOWERS", resource.PrivacyFollowers:
		return resource.PrivacyFollowers
	default:
		return visibility
	}
}

// VideosPublishHandler lets TikTok pull a video from a URL and reports the
// first status of the publish.
func (ta *TikTokAPI) VideosPublishHandler(c echo.Context) error {
	ctx := c.Request().Context()
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	var req publishRequest
	if err := c.Bind(&req); err != nil || req.VideoURL == "" {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest(`Provide "video_url" in the request body`))
	}

	title := req.Title
	if req.Description != "" {
		title = strings.TrimSpace(title + "\n" + req.Description)
	}
	info := resource.PostInfo{
		Title:                 title,
		PrivacyLevel:          privacyLevel(req.Visibility),
		DisableDuet:           req.DisableDuet,
		DisableComment:        req.DisableComment,
		DisableStitch:         req.DisableStitch,
		VideoCoverTimestampMS: int64(req.CoverTime * 1000),
	}

	initEnv, err := ta.posts.PublishVideo(ctx, resolved.AccessToken, req.VideoURL, info)
	if err != nil || initEnv.Failed() {
		return ta.respondEnvelope(c, "Publish init failed", initEnv, err)
	}
	var result resource.PublishResult
	if err := initEnv.Decode(&result); err != nil || result.PublishID == "" {
		if err == nil {
			err = &ttauth.AuthError{Kind: ttauth.ErrMalformedProviderResponse, Description: "publish init returned no publish_id"}
		}
		return ta.fail(c, "Publish init failed", err)
	}

	out := publishResponse{Success: true, PublishID: result.PublishID, Init: initEnv}
	statusEnv, err := ta.posts.Status(ctx, resolved.AccessToken, result.PublishID)
	switch {
	case err != nil:
		out.StatusError = err.Error()
	case statusEnv.Failed():
		out.Status, out.StatusError = statusEnv, statusEnv.Error.Message
	default:
		out.Status = statusEnv
	}

	ta.logger.Info(ctx, "Video publish started", log.Fields{"publish_id": result.PublishID, "privacy_level": info.PrivacyLevel})
	return c.JSON(http.StatusOK, out)
}

type statusRequest struct {
	PublishID string `json:"publish_id" query:"publish_id" form:"publish_id"`
}

// VideosStatusHandler fetches the status of a publish. publish_id may come
// from the body or the query string.
func (ta *TikTokAPI) VideosStatusHandler(c echo.Context) error {
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("Malformed request body"))
	}
	if req.PublishID == "" {
		req.PublishID = c.QueryParam("publish_id")
	}

	env, err := ta.posts.Status(c.Request().Context(), resolved.AccessToken, req.PublishID)
	if errors.Is(err, resource.ErrMissingPublishID) {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest(`Provide "publish_id" in the body or query string`))
	}
	return ta.respondEnvelope(c, "Publish status request failed", env, err)
}

// CreatorInfoHandler returns the posting capabilities of the creator.
func (ta *TikTokAPI) CreatorInfoHandler(c echo.Context) error {
	resolved, err := middleware.MustToken(c)
	if err != nil {
		return err
	}
	env, err := ta.posts.CreatorInfo(c.Request().Context(), resolved.AccessToken)
	return ta.respondEnvelope(c, "Creator info request failed", env, err)
}
