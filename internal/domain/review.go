// internal/domain/review.go
package domain

import (
	"time"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Review is a user's scored opinion of a title. One per (author, title).
type Review struct {
	ID       int64     `json:"id" db:"id"`
	TitleID  int64     `json:"-" db:"title_id"`
	AuthorID int64     `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"` // username, joined on read
	Text     string    `json:"text" db:"text"`
	Score    int       `json:"score" db:"score"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

// OwnerID реализует policy.Owned.
func (r *Review) OwnerID() int64 { return r.AuthorID }

// Comment is attached to a review.
type Comment struct {
	ID       int64     `json:"id" db:"id"`
	ReviewID int64     `json:"-" db:"review_id"`
	AuthorID int64     `json:"-" db:"author_id"`
	Author   string    `json:"author" db:"author"`
	Text     string    `json:"text" db:"text"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
}

func (c *Comment) OwnerID() int64 { return c.AuthorID }

// CreateReviewRequest определяет тело запроса для нового отзыва.
type CreateReviewRequest struct {
	Text  string `json:"text" validate:"required"`
	Score int    `json:"score" validate:"min=1,max=10"`
}

// UpdateReviewRequest определяет тело запроса для обновления отзыва.
type UpdateReviewRequest struct {
	Text  *string `json:"text,omitempty" validate:"omitempty,min=1"`
	Score *int    `json:"score,omitempty" validate:"omitempty,min=1,max=10"`
}

// CommentRequest creates or updates a comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}
