package store

import (
	"context"
	"fmt"

	"yamdb/internal/domain"
)

// Кастомные ошибки хранилища. Each wraps a member of the domain taxonomy.
var (
	ErrUserNotFound      = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("user with this email or username already exists: %w", domain.ErrConflict)
	ErrCategoryNotFound  = fmt.Errorf("category %w", domain.ErrNotFound)
	ErrGenreNotFound     = fmt.Errorf("genre %w", domain.ErrNotFound)
	ErrSlugTaken         = fmt.Errorf("slug is already in use: %w", domain.ErrConflict)
	ErrTitleNotFound     = fmt.Errorf("title %w", domain.ErrNotFound)
	ErrReviewNotFound    = fmt.Errorf("review %w", domain.ErrNotFound)
	ErrDuplicateReview   = fmt.Errorf("user has already reviewed this title: %w", domain.ErrConflict)
	ErrCommentNotFound   = fmt.Errorf("comment %w", domain.ErrNotFound)
	// ErrDanglingReference is returned when a title points at a genre or
	// category that was removed between lookup and write.
	ErrDanglingReference = fmt.Errorf("referenced genre or category does not exist: %w", domain.ErrValidation)
)

// UserStore persists user records. (username, email) and each of them alone
// are unique.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	// GetOrCreate returns the user with exactly this (username, email) pair,
	// creating it when absent. A pair that collides with a different
	// combination fails with ErrUserAlreadyExists.
	GetOrCreate(ctx context.Context, user *domain.User) (*domain.User, bool, error)
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context, params domain.UserListParams) ([]*domain.User, int, error)
}

// CatalogStore persists categories, genres and titles. Deleting a category
// nulls Title.Category; deleting a title cascades to its reviews.
type CatalogStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategory(ctx context.Context, slug string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, slug string) error
	ListCategories(ctx context.Context, params domain.SlugListParams) ([]*domain.Category, int, error)

	CreateGenre(ctx context.Context, g *domain.Genre) error
	GetGenre(ctx context.Context, slug string) (*domain.Genre, error)
	DeleteGenre(ctx context.Context, slug string) error
	ListGenres(ctx context.Context, params domain.SlugListParams) ([]*domain.Genre, int, error)

	CreateTitle(ctx context.Context, t *domain.Title) error
	GetTitle(ctx context.Context, titleID int64) (*domain.Title, error)
	UpdateTitle(ctx context.Context, t *domain.Title) error
	DeleteTitle(ctx context.Context, titleID int64) error
	ListTitles(ctx context.Context, params domain.TitleListParams) ([]*domain.Title, int, error)
}

// ReviewStore persists reviews and comments. (author, title) is unique for
// reviews and enforced by the store itself, not only by callers.
type ReviewStore interface {
	CreateReview(ctx context.Context, r *domain.Review) error
	GetReview(ctx context.Context, titleID, reviewID int64) (*domain.Review, error)
	ReviewExists(ctx context.Context, titleID, authorID int64) (bool, error)
	UpdateReview(ctx context.Context, r *domain.Review) error
	DeleteReview(ctx context.Context, reviewID int64) error
	ListReviews(ctx context.Context, titleID int64, page domain.Page) ([]*domain.Review, int, error)

	CreateComment(ctx context.Context, c *domain.Comment) error
	GetComment(ctx context.Context, reviewID, commentID int64) (*domain.Comment, error)
	UpdateComment(ctx context.Context, c *domain.Comment) error
	DeleteComment(ctx context.Context, commentID int64) error
	ListComments(ctx context.Context, reviewID int64, page domain.Page) ([]*domain.Comment, int, error)
}

// Stores bundles the three stores over one backend.
type Stores struct {
	Users   UserStore
	Catalog CatalogStore
	Reviews ReviewStore
}
