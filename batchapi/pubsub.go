package batchapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/realtime"
)

// pushBatchEvent receives Pub/Sub push deliveries. Malformed messages are
// acked with 204 so Pub/Sub does not redeliver them forever.
func (h *Handler) pushBatchEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(h.Logger, "pubsub.go", "pushBatchEvent", "io.ReadAll", nil, err)
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.Bridge.HandlePush(c.Request.Context(), body); err != nil && !errors.Is(err, realtime.ErrMalformedPush) {
		config.LogError(h.Logger, "pubsub.go", "pushBatchEvent", "HandlePush", nil, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}
