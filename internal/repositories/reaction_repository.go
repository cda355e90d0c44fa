package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"support-service/internal/models"
)

var ErrSelfReaction = errors.New("cannot react to own message")

// ReactionRepository toggles per-participant reactions and keeps the owning
// message's cached counts in sync.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID int64, participantToken string, kind models.ReactionKind) (bool, models.ReactionCounts, error)
}

// ReactionRepo is a sqlx-backed implementation.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle inserts the reaction record if absent and deletes it if present,
// then recomputes the message's cached counts from the reactions table.
// The whole exchange runs in one transaction holding a row lock on the
// message, so concurrent toggles on the same message serialize and the cache
// always matches the true record set. Returns whether the reaction ended up
// applied, plus the fresh counts.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID int64, participantToken string, kind models.ReactionKind) (bool, models.ReactionCounts, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, models.ReactionCounts{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var authorToken string
	err = tx.GetContext(ctx, &authorToken, `SELECT author_token FROM messages WHERE id=$1 FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMessageNotFound
		return false, models.ReactionCounts{}, err
	}
	if err != nil {
		return false, models.ReactionCounts{}, err
	}
	if authorToken == participantToken {
		err = ErrSelfReaction
		return false, models.ReactionCounts{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE message_id=$1 AND participant_token=$2 AND kind=$3`,
		messageID, participantToken, kind)
	if err != nil {
		return false, models.ReactionCounts{}, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, models.ReactionCounts{}, err
	}

	applied := removed == 0
	if applied {
		if _, err = tx.ExecContext(ctx, `INSERT INTO reactions (message_id, participant_token, kind) VALUES ($1, $2, $3)`,
			messageID, participantToken, kind); err != nil {
			return false, models.ReactionCounts{}, err
		}
	}

	// Overwrite the cache with counts taken from the record set. Incrementing
	// in place would drift under concurrent toggles by other participants.
	var counts models.ReactionCounts
	err = tx.QueryRowxContext(ctx, `UPDATE messages SET
            like_count = (SELECT COUNT(*) FROM reactions WHERE message_id=$1 AND kind='like'),
            dislike_count = (SELECT COUNT(*) FROM reactions WHERE message_id=$1 AND kind='dislike'),
            heart_count = (SELECT COUNT(*) FROM reactions WHERE message_id=$1 AND kind='heart')
        WHERE id=$1
        RETURNING like_count, dislike_count, heart_count`, messageID).
		Scan(&counts.Likes, &counts.Dislikes, &counts.Hearts)
	if err != nil {
		return false, models.ReactionCounts{}, err
	}

	if err = tx.Commit(); err != nil {
		return false, models.ReactionCounts{}, err
	}
	return applied, counts, nil
}
