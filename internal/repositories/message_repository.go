package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"support-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, ticket_id, author_token, author_name, author_avatar, author_role, content, like_count, dislike_count, heart_count, created_at`

// CreateMessageParams carries everything needed to persist a message. The
// author snapshot is denormalized onto the row at write time.
type CreateMessageParams struct {
	TicketID *int64
	Author   models.Identity
	Content  string
}

// MessageRepository defines interactions for room and ticket messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error)
	ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error)
	ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	ClearRoom(ctx context.Context) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with a fresh zero reaction triple.
func (r *MessageRepo) CreateMessage(ctx context.Context, params CreateMessageParams) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (ticket_id, author_token, author_name, author_avatar, author_role, content)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+messageColumns,
		params.TicketID, params.Author.Token, params.Author.Name, params.Author.Avatar, params.Author.Role, params.Content).
		StructScan(&msg)
	return msg, err
}

// ListRoomMessages returns the most recent global-room messages in
// chronological order.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM (
            SELECT ` + messageColumns + ` FROM messages WHERE ticket_id IS NULL ORDER BY id DESC LIMIT $1
        ) recent ORDER BY id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, limit)
	return msgs, err
}

// ListTicketMessages returns the ticket's full history in chronological order.
func (r *MessageRepo) ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE ticket_id=$1 ORDER BY id ASC`, ticketID)
	return msgs, err
}

// DeleteMessage removes a message permanently. Reactions go with it via the
// cascading foreign key.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ClearRoom deletes every global-room message and reports how many were
// removed. Ticket messages are untouched.
func (r *MessageRepo) ClearRoom(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE ticket_id IS NULL`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
