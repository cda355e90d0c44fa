package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"support-service/internal/models"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket closed")
)

const ticketColumns = `id, category, status, owner_token, created_at, updated_at`

// TicketRepository abstracts ticket persistence.
type TicketRepository interface {
	CreateOrGetOpen(ctx context.Context, ownerToken string, category string) (models.Ticket, bool, error)
	Close(ctx context.Context, ticketID int64) error
	Get(ctx context.Context, ticketID int64) (models.Ticket, error)
	ListForOwner(ctx context.Context, ownerToken string) ([]models.Ticket, error)
}

// TicketRepo is a sqlx implementation of TicketRepository.
type TicketRepo struct {
	db *sqlx.DB
}

// NewTicketRepo constructs a TicketRepo.
func NewTicketRepo(db *sqlx.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// CreateOrGetOpen creates an OPEN ticket for the owner, or returns the
// existing OPEN ticket when there already is one. The boolean reports whether
// a new ticket was created. A partial unique index on (owner_token) WHERE
// status='OPEN' backs this against racing creators: the loser's insert fails
// with a unique violation and the winner's row is returned instead.
func (r *TicketRepo) CreateOrGetOpen(ctx context.Context, ownerToken string, category string) (models.Ticket, bool, error) {
	var ticket models.Ticket
	err := r.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE owner_token=$1 AND status='OPEN'`, ownerToken)
	if err == nil {
		return ticket, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, false, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO tickets (category, owner_token) VALUES ($1, $2) RETURNING `+ticketColumns,
		category, ownerToken).StructScan(&ticket)
	if err == nil {
		return ticket, true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		// Lost the race: another surface created the open ticket first.
		if err := r.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE owner_token=$1 AND status='OPEN'`, ownerToken); err != nil {
			return models.Ticket{}, false, err
		}
		return ticket, false, nil
	}
	return models.Ticket{}, false, err
}

// Close marks the ticket CLOSED and stamps the update time. Closing an
// already-closed ticket is a no-op success; CLOSED has no way back.
func (r *TicketRepo) Close(ctx context.Context, ticketID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status='CLOSED', updated_at=NOW() WHERE id=$1`, ticketID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// Get fetches a ticket by id. Not-found is a first-class outcome: callers
// must distinguish a deleted ticket from a closed one.
func (r *TicketRepo) Get(ctx context.Context, ticketID int64) (models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, ErrTicketNotFound
	}
	return ticket, err
}

// ListForOwner returns the owner's tickets ordered by last update, newest
// first.
func (r *TicketRepo) ListForOwner(ctx context.Context, ownerToken string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.SelectContext(ctx, &tickets, `SELECT `+ticketColumns+` FROM tickets WHERE owner_token=$1 ORDER BY updated_at DESC`, ownerToken)
	return tickets, err
}
