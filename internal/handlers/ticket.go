package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"support-service/internal/middleware"
	"support-service/internal/models"
	"support-service/internal/observability"
	"support-service/internal/repositories"
	"support-service/internal/telemetry"
)

// TicketHandler manages the support ticket lifecycle.
type TicketHandler struct {
	ticketRepo  repositories.TicketRepository
	messageRepo repositories.MessageRepository
	emitter     *telemetry.AuditEmitter
}

// NewTicketHandler builds a TicketHandler.
func NewTicketHandler(ticketRepo repositories.TicketRepository, messageRepo repositories.MessageRepository, emitter *telemetry.AuditEmitter) *TicketHandler {
	return &TicketHandler{
		ticketRepo:  ticketRepo,
		messageRepo: messageRepo,
		emitter:     emitter,
	}
}

// CreateTicket opens a ticket in the chosen category, or returns the
// caller's existing OPEN ticket when one exists. 201 means created, 200 means
// the existing ticket came back.
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	var req struct {
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticket, created, err := h.ticketRepo.CreateOrGetOpen(c.Request.Context(), ident.Token, req.Category)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		observability.IncTicketTransition("created")
	}
	c.JSON(status, ticket)
}

// CloseTicket transitions the ticket to CLOSED. Allowed for the owner or a
// privileged role; CLOSED is terminal.
func (h *TicketHandler) CloseTicket(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	ticketID, ok := parseID(c, "ticket_id")
	if !ok {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return
	}

	if err := h.ticketRepo.Close(c.Request.Context(), ticketID); err != nil {
		if errors.Is(err, repositories.ErrTicketNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	observability.IncTicketTransition("closed")
	if ident.Privileged() && ticket.OwnerToken != ident.Token {
		h.emitter.Emit(c.Request.Context(), "ticket_force_closed", fmt.Sprintf("ticket %d closed by staff", ticketID),
			requestIDFromContext(c), ident, observability.IPFromRequest(c.Request))
	}
	c.Status(http.StatusNoContent)
}

// GetTicket returns the ticket and its full message history. A 404 here is a
// real outcome the client reacts to: the ticket was deleted out-of-band.
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	ticketID, ok := parseID(c, "ticket_id")
	if !ok {
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

	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "messages": msgs})
}

// ListTickets returns the caller's tickets, most recently updated first.
func (h *TicketHandler) ListTickets(c *gin.Context) {
	ident, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}

	tickets, err := h.ticketRepo.ListForOwner(c.Request.Context(), ident.Token)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
