package poller

import (
	"context"
	"errors"

	"support-service/internal/models"
)

// Errors surfaced by API implementations. They mirror the service's error
// taxonomy so surfaces can react without parsing response bodies.
var (
	ErrTicketNotFound = errors.New("ticket no longer exists")
	ErrTicketClosed   = errors.New("ticket closed")
	ErrNotAllowed     = errors.New("not allowed")
	ErrUnavailable    = errors.New("service unavailable")
)

// API is the narrow operation set a surface polls against. The HTTP client
// implements it against the live service; tests substitute fakes.
type API interface {
	PostMessage(ctx context.Context, content string, ticketID *int64) (models.Message, error)
	ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error)
	ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, models.TicketStatus, error)
	ToggleReaction(ctx context.Context, messageID int64, kind models.ReactionKind) (bool, models.ReactionCounts, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	CreateTicket(ctx context.Context, category string) (models.Ticket, error)
	CloseTicket(ctx context.Context, ticketID int64) error
	GetTicket(ctx context.Context, ticketID int64) (models.Ticket, []models.Message, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	Heartbeat(ctx context.Context) error
	OnlineCount(ctx context.Context) (int, error)
}

// SoundKind selects the audio cue a surface plays.
type SoundKind string

const (
	SoundNewMessage   SoundKind = "new_message"
	SoundTicketChange SoundKind = "ticket_change"
)

// Notifier triggers audio/visual cues. Implementations live in the embedding
// UI, not here.
type Notifier interface {
	Play(kind SoundKind)
}

// View is the snapshot a surface renders after each poll or local mutation.
// Messages holds the authoritative list followed by any optimistic entries
// still awaiting confirmation (negative ids).
type View struct {
	Messages      []models.Message
	Online        int
	Unread        bool
	TicketID      *int64
	TicketStatus  models.TicketStatus
	StatusChanged bool
	TicketGone    bool
	Err           string
}

// Renderer receives every new View.
type Renderer interface {
	Render(view View)
}
