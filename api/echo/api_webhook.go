package echo

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	oautherrors "github.com/pilab-dev/tiktok-auth/errors"
	"github.com/pilab-dev/tiktok-auth/internal/metrics"
	"github.com/pilab-dev/tiktok-auth/log"
)

const maxWebhookBody = 1 << 20

// WebhookEvent is the envelope TikTok posts to the webhook.
type WebhookEvent struct {
	ClientKey  string          `json:"client_key"`
	Event      string          `json:"event"`
	CreateTime int64           `json:"create_time"`
	UserOpenID string          `json:"user_openid"`
	Content    json.RawMessage `json:"content"`
}

// WebhookHandler acknowledges webhook events after logging them.
func (ta *TikTokAPI) WebhookHandler(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		ta.logger.Error(ctx, "Failed to read webhook body", err)
		return c.JSON(http.StatusInternalServerError, oautherrors.NewServerError("Failed to read body"))
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, oautherrors.NewInvalidRequest("Webhook payload is not JSON"))
	}

	metrics.WebhookEventsTotal.Inc()
	ta.logger.Info(ctx, "Webhook received", log.Fields{
		"event":       event.Event,
		"user_openid": event.UserOpenID,
		"create_time": event.CreateTime,
		"content":     string(event.Content),
	})
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// WebhookChallengeHandler answers the endpoint verification request.
func (ta *TikTokAPI) WebhookChallengeHandler(c echo.Context) error {
	if challenge := c.QueryParam("challenge"); challenge != "" {
		return c.JSON(http.StatusOK, map[string]string{"challenge": challenge})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Webhook endpoint is active"})
}
