package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"yamdb/internal/clock"
	"yamdb/internal/domain"
	"yamdb/internal/policy"
	"yamdb/internal/store"
)

// ReviewEngine owns reviews and their comments. It enforces one review per
// author and title and the score bounds; the store backs the uniqueness rule
// with a constraint so concurrent creates cannot both succeed.
type ReviewEngine struct {
	catalog  store.CatalogStore
	reviews  store.ReviewStore
	validate *validator.Validate
	clock    clock.Clock
	logger   *slog.Logger
}

func NewReviewEngine(catalog store.CatalogStore, reviews store.ReviewStore, validate *validator.Validate, clk clock.Clock, logger *slog.Logger) *ReviewEngine {
	return &ReviewEngine{catalog: catalog, reviews: reviews, validate: validate, clock: clk, logger: logger}
}

func (e *ReviewEngine) requireTitle(ctx context.Context, titleID int64) error {
	_, err := e.catalog.GetTitle(ctx, titleID)
	return err
}

// CreateReview: title must exist, score must be in range, and the actor must
// not have reviewed the title yet.
func (e *ReviewEngine) CreateReview(ctx context.Context, actor policy.Actor, titleID int64, req domain.CreateReviewRequest) (*domain.Review, error) {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPost); err != nil {
		return nil, err
	}
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, e.validate, &req); err != nil {
		return nil, err
	}
	exists, err := e.reviews.ReviewExists(ctx, titleID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		e.logger.WarnContext(ctx, "Duplicate review rejected", slog.Int64("titleID", titleID), slog.Int64("authorID", actor.UserID))
		return nil, store.ErrDuplicateReview
	}

	r := &domain.Review{
		TitleID:  titleID,
		AuthorID: actor.UserID,
		Text:     req.Text,
		Score:    req.Score,
		PubDate:  clock.Stamp(e.clock),
	}
	if err := e.reviews.CreateReview(ctx, r); err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "Review created", slog.Int64("reviewID", r.ID), slog.Int64("titleID", titleID))
	return e.reviews.GetReview(ctx, titleID, r.ID)
}

func (e *ReviewEngine) GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, err
	}
	return e.reviews.GetReview(ctx, titleID, reviewID)
}

func (e *ReviewEngine) ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]*domain.Review, int, error) {
	if err := e.requireTitle(ctx, titleID); err != nil {
		return nil, 0, err
	}
	return e.reviews.ListReviews(ctx, titleID, page)
}

// UpdateReview changes text and/or score; author, title and pub date stay.
func (e *ReviewEngine) UpdateReview(ctx context.Context, actor policy.Actor, titleID, reviewID int64, req domain.UpdateReviewRequest) (*domain.Review, error) {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	r, err := e.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := checkActOn(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPatch, r); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, e.validate, &req); err != nil {
		return nil, err
	}
	if req.Text != nil {
		r.Text = *req.Text
	}
	if req.Score != nil {
		r.Score = *req.Score
	}
	if err := e.reviews.UpdateReview(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *ReviewEngine) DeleteReview(ctx context.Context, actor policy.Actor, titleID, reviewID int64) error {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	r, err := e.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return err
	}
	if err := checkActOn(policy.OwnerOrStaffOrReadOnly, actor, http.MethodDelete, r); err != nil {
		return err
	}
	if err := e.reviews.DeleteReview(ctx, r.ID); err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Review deleted", slog.Int64("reviewID", r.ID), slog.Int64("actorID", actor.UserID))
	return nil
}

// --- comments ---

// parentReview resolves the review of a comment path; a review that exists
// under another title is reported as not found.
func (e *ReviewEngine) parentReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error) {
	r, err := e.GetReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, fmt.Errorf("review %d under title %d: %w", reviewID, titleID, err)
	}
	return r, nil
}

func (e *ReviewEngine) CreateComment(ctx context.Context, actor policy.Actor, titleID, reviewID int64, req domain.CommentRequest) (*domain.Comment, error) {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPost); err != nil {
		return nil, err
	}
	r, err := e.parentReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, e.validate, &req); err != nil {
		return nil, err
	}
	c := &domain.Comment{
		ReviewID: r.ID,
		AuthorID: actor.UserID,
		Text:     req.Text,
		PubDate:  clock.Stamp(e.clock),
	}
	if err := e.reviews.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return e.reviews.GetComment(ctx, r.ID, c.ID)
}

func (e *ReviewEngine) GetComment(ctx context.Context, titleID, reviewID, commentID int64) (*domain.Comment, error) {
	r, err := e.parentReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	return e.reviews.GetComment(ctx, r.ID, commentID)
}

func (e *ReviewEngine) ListComments(ctx context.Context, titleID, reviewID int64, page domain.Page) ([]*domain.Comment, int, error) {
	r, err := e.parentReview(ctx, titleID, reviewID)
	if err != nil {
		return nil, 0, err
	}
	return e.reviews.ListComments(ctx, r.ID, page)
}

func (e *ReviewEngine) UpdateComment(ctx context.Context, actor policy.Actor, titleID, reviewID, commentID int64, req domain.CommentRequest) (*domain.Comment, error) {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	c, err := e.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if err := checkActOn(policy.OwnerOrStaffOrReadOnly, actor, http.MethodPatch, c); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, e.validate, &req); err != nil {
		return nil, err
	}
	c.Text = req.Text
	if err := e.reviews.UpdateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *ReviewEngine) DeleteComment(ctx context.Context, actor policy.Actor, titleID, reviewID, commentID int64) error {
	if err := checkAct(policy.OwnerOrStaffOrReadOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	c, err := e.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if err := checkActOn(policy.OwnerOrStaffOrReadOnly, actor, http.MethodDelete, c); err != nil {
		return err
	}
	return e.reviews.DeleteComment(ctx, c.ID)
}
