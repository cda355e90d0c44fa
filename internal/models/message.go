package models

import "time"

// ReactionKind is one of the three reactions a participant can apply to a message.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
	ReactionHeart   ReactionKind = "heart"
)

// Valid reports whether the kind is one of the supported reactions.
func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionLike, ReactionDislike, ReactionHeart:
		return true
	}
	return false
}

// ReactionCounts is the cached per-message reaction triple. It is a
// materialized view of the reactions table and is only ever overwritten with
// freshly recomputed values, never incremented in place.
type ReactionCounts struct {
	Likes    int `db:"like_count" json:"likes"`
	Dislikes int `db:"dislike_count" json:"dislikes"`
	Hearts   int `db:"heart_count" json:"hearts"`
}

// Message is a chat message in the global room (TicketID nil) or inside a
// support ticket. Author fields are snapshotted at write time so the message
// keeps its display data even if the author's profile changes later.
type Message struct {
	ID           int64     `db:"id" json:"id"`
	TicketID     *int64    `db:"ticket_id" json:"ticket_id,omitempty"`
	AuthorToken  string    `db:"author_token" json:"author_token"`
	AuthorName   string    `db:"author_name" json:"author_name"`
	AuthorAvatar string    `db:"author_avatar" json:"author_avatar,omitempty"`
	AuthorRole   string    `db:"author_role" json:"author_role"`
	Content      string    `db:"content" json:"content"`
	ReactionCounts
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
