package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"yamdb/internal/domain"
)

// SQLReviewStore реализует ReviewStore поверх sqlx.
type SQLReviewStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewSQLReviewStore(db *sqlx.DB, logger *slog.Logger) (*SQLReviewStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil for SQLReviewStore")
	}
	return &SQLReviewStore{db: db, logger: logger}, nil
}

const reviewSelect = `SELECT r.id, r.title_id, r.author_id, u.username AS author, r.text, r.score, r.pub_date
  FROM reviews r JOIN users u ON u.id = r.author_id`

const commentSelect = `SELECT c.id, c.review_id, c.author_id, u.username AS author, c.text, c.pub_date
  FROM comments c JOIN users u ON u.id = c.author_id`

// CreateReview сохраняет новый отзыв. Уникальность (author, title)
// обеспечивается ограничением uq_review_author_title.
func (s *SQLReviewStore) CreateReview(ctx context.Context, r *domain.Review) error {
	query := s.db.Rebind(`INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES (?, ?, ?, ?, ?) RETURNING id`)

	s.logger.DebugContext(ctx, "Executing Create review query", slog.Int64("titleID", r.TitleID), slog.Int64("authorID", r.AuthorID))
	err := s.db.QueryRowxContext(ctx, query, r.TitleID, r.AuthorID, r.Text, r.Score, r.PubDate).Scan(&r.ID)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "Review creation failed: user has already reviewed this title",
				slog.Int64("authorID", r.AuthorID),
				slog.Int64("titleID", r.TitleID),
				slog.String("constraint", constraintName(err)))
			return ErrDuplicateReview
		}
		if isForeignKeyViolation(err) {
			s.logger.WarnContext(ctx, "Review creation failed: title or author is gone",
				slog.Int64("titleID", r.TitleID), slog.Int64("authorID", r.AuthorID))
			return s.missingParent(ctx, "titles", r.TitleID, ErrTitleNotFound, r.AuthorID)
		}
		s.logger.ErrorContext(ctx, "Failed to create review in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create review: %w", err)
	}
	s.logger.InfoContext(ctx, "Review created successfully in DB", slog.Int64("reviewID", r.ID))
	return nil
}

// GetReview находит отзыв только в пределах заданного произведения.
func (s *SQLReviewStore) GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	var r domain.Review
	err := s.db.GetContext(ctx, &r, s.db.Rebind(reviewSelect+` WHERE r.id = ? AND r.title_id = ?`), reviewID, titleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "Review not found", slog.Int64("reviewID", reviewID), slog.Int64("titleID", titleID))
			return nil, ErrReviewNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get review", slog.Int64("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	r.PubDate = r.PubDate.UTC()
	return &r, nil
}

func (s *SQLReviewStore) ReviewExists(ctx context.Context, titleID, authorID int64) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM reviews WHERE title_id = ? AND author_id = ?`), titleID, authorID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to check review existence", slog.String("error", err.Error()))
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return n > 0, nil
}

// UpdateReview меняет только text и score; автор и произведение неизменны.
func (s *SQLReviewStore) UpdateReview(ctx context.Context, r *domain.Review) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE reviews SET text = ?, score = ? WHERE id = ?`), r.Text, r.Score, r.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update review", slog.Int64("reviewID", r.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update review: %w", err)
	}
	return expectRowsAffected(ctx, s.logger, result, ErrReviewNotFound, slog.Int64("reviewID", r.ID))
}

func (s *SQLReviewStore) DeleteReview(ctx context.Context, reviewID int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reviews WHERE id = ?`), reviewID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete review", slog.Int64("reviewID", reviewID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectRowsAffected(ctx, s.logger, result, ErrReviewNotFound, slog.Int64("reviewID", reviewID))
}

func (s *SQLReviewStore) ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]*domain.Review, int, error) {
	page = page.Normalize()
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM reviews WHERE title_id = ?`), titleID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count reviews", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	reviews := []*domain.Review{}
	query := s.db.Rebind(reviewSelect + ` WHERE r.title_id = ? ORDER BY r.pub_date, r.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &reviews, query, titleID, page.Limit, page.Offset); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list reviews", slog.Int64("titleID", titleID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	for _, r := range reviews {
		r.PubDate = r.PubDate.UTC()
	}
	return reviews, total, nil
}

// --- comments ---

func (s *SQLReviewStore) CreateComment(ctx context.Context, c *domain.Comment) error {
	query := s.db.Rebind(`INSERT INTO comments (review_id, author_id, text, pub_date) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, query, c.ReviewID, c.AuthorID, c.Text, c.PubDate).Scan(&c.ID); err != nil {
		if isForeignKeyViolation(err) {
			s.logger.WarnContext(ctx, "Comment creation failed: review or author is gone",
				slog.Int64("reviewID", c.ReviewID), slog.Int64("authorID", c.AuthorID))
			return s.missingParent(ctx, "reviews", c.ReviewID, ErrReviewNotFound, c.AuthorID)
		}
		s.logger.ErrorContext(ctx, "Failed to create comment", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment находит комментарий только в пределах заданного отзыва.
func (s *SQLReviewStore) GetComment(ctx context.Context, reviewID, commentID int64) (*domain.Comment, error) {
	var c domain.Comment
	err := s.db.GetContext(ctx, &c, s.db.Rebind(commentSelect+` WHERE c.id = ? AND c.review_id = ?`), commentID, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get comment", slog.Int64("commentID", commentID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	c.PubDate = c.PubDate.UTC()
	return &c, nil
}

func (s *SQLReviewStore) UpdateComment(ctx context.Context, c *domain.Comment) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE comments SET text = ? WHERE id = ?`), c.Text, c.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update comment", slog.Int64("commentID", c.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return expectRowsAffected(ctx, s.logger, result, ErrCommentNotFound, slog.Int64("commentID", c.ID))
}

func (s *SQLReviewStore) DeleteComment(ctx context.Context, commentID int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM comments WHERE id = ?`), commentID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete comment", slog.Int64("commentID", commentID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectRowsAffected(ctx, s.logger, result, ErrCommentNotFound, slog.Int64("commentID", commentID))
}

func (s *SQLReviewStore) ListComments(ctx context.Context, reviewID int64, page domain.Page) ([]*domain.Comment, int, error) {
	page = page.Normalize()
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM comments WHERE review_id = ?`), reviewID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count comments", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}
	comments := []*domain.Comment{}
	query := s.db.Rebind(commentSelect + ` WHERE c.review_id = ? ORDER BY c.pub_date, c.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &comments, query, reviewID, page.Limit, page.Offset); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list comments", slog.Int64("reviewID", reviewID), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	for _, c := range comments {
		c.PubDate = c.PubDate.UTC()
	}
	return comments, total, nil
}

// missingParent names the reference behind a foreign key failure. The parent
// row is checked first, then the author, the same order the memory store uses.
func (s *SQLReviewStore) missingParent(ctx context.Context, parentTable string, parentID int64, parentErr error, authorID int64) error {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM ` + parentTable + ` WHERE id = ?`)
	if err := s.db.GetContext(ctx, &n, query, parentID); err != nil || n == 0 {
		return parentErr
	}
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), authorID); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return parentErr
}
