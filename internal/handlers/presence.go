package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support-service/internal/middleware"
	"support-service/internal/observability"
	"support-service/internal/presence"
)

// PresenceHandler exposes heartbeat and online-count endpoints.
type PresenceHandler struct {
	tracker presence.Tracker
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(tracker presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// Heartbeat upserts the caller's last-seen timestamp.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	if err := h.tracker.Heartbeat(c.Request.Context(), ident.Token); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Online returns the current online-count estimate.
func (h *PresenceHandler) Online(c *gin.Context) {
	count, err := h.tracker.EstimateOnline(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence unavailable"})
		return
	}

	observability.SetOnlineEstimate(count)
	c.JSON(http.StatusOK, gin.H{"online": count})
}
