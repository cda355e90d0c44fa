package models

import "time"

// TicketStatus enumerates the ticket lifecycle states. CLOSED is terminal:
// there is no reopen transition anywhere in the API.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "OPEN"
	TicketClosed TicketStatus = "CLOSED"
)

// Ticket is a scoped support conversation owned by a single identity.
// At most one OPEN ticket may exist per owner at any time.
type Ticket struct {
	ID         int64        `db:"id" json:"id"`
	Category   string       `db:"category" json:"category"`
	Status     TicketStatus `db:"status" json:"status"`
	OwnerToken string       `db:"owner_token" json:"owner_token"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}
