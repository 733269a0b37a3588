package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/errors"
	recalldto "github.com/coach-sidekick/coach-sidekick-api/internal/adapter/dto/recall"
	"github.com/coach-sidekick/coach-sidekick-api/internal/usecase/pipeline"
	"github.com/coach-sidekick/coach-sidekick-api/pkg/recall"
)

// Webhook receives Recall.ai events. The handler acknowledges as soon as
// the event is applied to the in-memory session; persistence and analysis
// run in the background and never delay the response.
type Webhook struct {
	pipeline *pipeline.Pipeline
	secret   string
	verify   bool
	logger   *zap.Logger
}

// NewWebhook creates the webhook handler. When verify is set, requests
// without a valid HMAC signature are rejected.
func NewWebhook(p *pipeline.Pipeline, secret string, verify bool, logger *zap.Logger) *Webhook {
	return &Webhook{
		pipeline: p,
		secret:   secret,
		verify:   verify,
		logger:   logger,
	}
}

// HandleRecallEvent processes one provider webhook delivery.
func (h *Webhook) HandleRecallEvent(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}

	if h.verify {
		signature := c.Request().Header.Get("X-Recall-Signature")
		if !recall.VerifyHMAC(h.secret, body, signature) {
			return HandleError(h.logger, c, errors.ErrInvalidSignature())
		}
	}

	var evt recalldto.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if evt.Data.Bot.ID == "" {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("bot id is required"))
	}

	op := h.pipeline.HandleEvent(&evt)

	h.logger.Debug("webhook event handled",
		zap.String("event", evt.Event),
		zap.String("session_id", evt.Data.Bot.ID),
		zap.Int("op", int(op.Kind)))

	// Unknown-but-well-formed events land here with OpNone applied; the
	// provider still gets its acknowledgement.
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"event":   evt.Event,
	})
}
