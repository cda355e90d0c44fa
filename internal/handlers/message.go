package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"support-service/internal/middleware"
	"support-service/internal/models"
	"support-service/internal/moderation"
	"support-service/internal/observability"
	"support-service/internal/repositories"
	"support-service/internal/telemetry"
)

const (
	defaultRoomLimit = 50
	maxRoomLimit     = 200
)

// MessageHandler manages room and ticket message endpoints.
type MessageHandler struct {
	messageRepo  repositories.MessageRepository
	reactionRepo repositories.ReactionRepository
	ticketRepo   repositories.TicketRepository
	filter       moderation.Filter
	emitter      *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, reactionRepo repositories.ReactionRepository, ticketRepo repositories.TicketRepository, filter moderation.Filter, emitter *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		ticketRepo:   ticketRepo,
		filter:       filter,
		emitter:      emitter,
	}
}

// ListMessages returns the recent global-room messages, or a ticket's full
// history when ticket_id is given. Both are chronological.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	if ticketParam := c.Query("ticket_id"); ticketParam != "" {
		ticketID, err := strconv.ParseInt(ticketParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket_id"})
			return
		}

		ticket, err := h.ticketRepo.Get(c.Request.Context(), ticketID)
		if err != nil {
			if errors.Is(err, repositories.ErrTicketNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		if !ident.Privileged() && ticket.OwnerToken != ident.Token {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your ticket"})
			return
		}

		msgs, err := h.messageRepo.ListTicketMessages(c.Request.Context(), ticketID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs, "ticket_status": ticket.Status})
		return
	}

	limit := defaultRoomLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > maxRoomLimit {
		limit = maxRoomLimit
	}

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message in the global room or in a ticket. The body
// runs through the moderation filter first; ticket replies enforce the
// reply-permission rule (owner only while OPEN, privileged in any state).
func (h *MessageHandler) PostMessage(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	var req struct {
		Content  string `json:"content" binding:"required"`
		TicketID *int64 `json:"ticket_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content := h.filter.Clean(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	scope := "room"
	if req.TicketID != nil {
		scope = "ticket"
		ticket, err := h.ticketRepo.Get(c.Request.Context(), *req.TicketID)
		if err != nil {
			if errors.Is(err, repositories.ErrTicketNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		if !ident.Privileged() {
			if ticket.OwnerToken != ident.Token {
				c.JSON(http.StatusForbidden, gin.H{"error": "not your ticket"})
				return
			}
			if ticket.Status == models.TicketClosed {
				c.JSON(http.StatusConflict, gin.H{"error": "ticket closed"})
				return
			}
		}
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), repositories.CreateMessageParams{
		TicketID: req.TicketID,
		Author:   ident,
		Content:  content,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	observability.IncMessagePosted(scope)
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage hard-deletes a message. Privileged role only.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	if !ident.Privileged() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return
	}

	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	if err := h.messageRepo.DeleteMessage(c.Request.Context(), messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	h.emitter.Emit(c.Request.Context(), "message_deleted", fmt.Sprintf("message %d deleted", messageID),
		requestIDFromContext(c), ident, observability.IPFromRequest(c.Request))
	c.Status(http.StatusNoContent)
}

// ClearRoom deletes every global-room message. Ticket histories stay.
func (h *MessageHandler) ClearRoom(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	if !ident.Privileged() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return
	}

	deleted, err := h.messageRepo.ClearRoom(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	h.emitter.Emit(c.Request.Context(), "room_cleared", fmt.Sprintf("%d room messages deleted", deleted),
		requestIDFromContext(c), ident, observability.IPFromRequest(c.Request))
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ToggleReaction applies or removes the caller's reaction of the given kind
// and returns the fresh counts.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Kind models.ReactionKind `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reaction kind"})
		return
	}

	applied, counts, err := h.reactionRepo.Toggle(c.Request.Context(), messageID, ident.Token, req.Kind)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrSelfReaction):
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot react to own message"})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		}
		return
	}

	observability.IncReactionToggle(string(req.Kind), applied)
	c.JSON(http.StatusOK, gin.H{"applied": applied, "counts": counts})
}
