package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"

	"yamdb/internal/clock"
	"yamdb/internal/domain"
	"yamdb/internal/policy"
	"yamdb/internal/store"
)

const maxSlugLength = 50

// CatalogService manages categories, genres and titles. Reads are open to
// everyone; writes require an administrator.
type CatalogService struct {
	catalog  store.CatalogStore
	validate *validator.Validate
	clock    clock.Clock
	logger   *slog.Logger
}

func NewCatalogService(catalog store.CatalogStore, validate *validator.Validate, clk clock.Clock, logger *slog.Logger) *CatalogService {
	return &CatalogService{catalog: catalog, validate: validate, clock: clk, logger: logger}
}

// slugFor returns the requested slug or derives one from the name.
func (s *CatalogService) slugFor(req domain.CreateSlugRequest) (string, error) {
	if req.Slug != "" {
		return req.Slug, nil
	}
	derived := slug.Make(req.Name)
	if len(derived) > maxSlugLength {
		derived = derived[:maxSlugLength]
	}
	if derived == "" {
		return "", domain.NewValidationError("slug", "cannot be derived from the name, set it explicitly")
	}
	return derived, nil
}

func (s *CatalogService) prepareSlugged(ctx context.Context, actor policy.Actor, req domain.CreateSlugRequest) (string, error) {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodPost); err != nil {
		return "", err
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return "", err
	}
	return s.slugFor(req)
}

func (s *CatalogService) ListCategories(ctx context.Context, params domain.SlugListParams) ([]*domain.Category, int, error) {
	return s.catalog.ListCategories(ctx, params)
}

func (s *CatalogService) CreateCategory(ctx context.Context, actor policy.Actor, req domain.CreateSlugRequest) (*domain.Category, error) {
	sl, err := s.prepareSlugged(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	c := &domain.Category{Name: req.Name, Slug: sl}
	if err := s.catalog.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Category created", slog.String("slug", c.Slug))
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, actor policy.Actor, sl string) error {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	return s.catalog.DeleteCategory(ctx, sl)
}

func (s *CatalogService) ListGenres(ctx context.Context, params domain.SlugListParams) ([]*domain.Genre, int, error) {
	return s.catalog.ListGenres(ctx, params)
}

func (s *CatalogService) CreateGenre(ctx context.Context, actor policy.Actor, req domain.CreateSlugRequest) (*domain.Genre, error) {
	sl, err := s.prepareSlugged(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	g := &domain.Genre{Name: req.Name, Slug: sl}
	if err := s.catalog.CreateGenre(ctx, g); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Genre created", slog.String("slug", g.Slug))
	return g, nil
}

func (s *CatalogService) DeleteGenre(ctx context.Context, actor policy.Actor, sl string) error {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	return s.catalog.DeleteGenre(ctx, sl)
}

// --- titles ---

// checkYear enforces 0 < year <= current year.
func (s *CatalogService) checkYear(year int) error {
	current := s.clock.Now().Year()
	if year <= 0 || year > current {
		return domain.NewValidationError("year", fmt.Sprintf("must be between 1 and %d", current))
	}
	return nil
}

// resolveGenres turns slugs into genre rows; unknown slugs are a validation error.
func (s *CatalogService) resolveGenres(ctx context.Context, slugs []string) ([]domain.Genre, error) {
	genres := make([]domain.Genre, 0, len(slugs))
	for _, sl := range slugs {
		g, err := s.catalog.GetGenre(ctx, sl)
		if err != nil {
			if errors.Is(err, store.ErrGenreNotFound) {
				return nil, domain.NewValidationError("genre", fmt.Sprintf("genre %q does not exist", sl))
			}
			return nil, err
		}
		genres = append(genres, *g)
	}
	return genres, nil
}

func (s *CatalogService) resolveCategory(ctx context.Context, sl string) (*domain.Category, error) {
	c, err := s.catalog.GetCategory(ctx, sl)
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			return nil, domain.NewValidationError("category", fmt.Sprintf("category %q does not exist", sl))
		}
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) ListTitles(ctx context.Context, params domain.TitleListParams) ([]*domain.Title, int, error) {
	return s.catalog.ListTitles(ctx, params)
}

func (s *CatalogService) GetTitle(ctx context.Context, titleID int64) (*domain.Title, error) {
	return s.catalog.GetTitle(ctx, titleID)
}

func (s *CatalogService) CreateTitle(ctx context.Context, actor policy.Actor, req domain.CreateTitleRequest) (*domain.Title, error) {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodPost); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return nil, err
	}
	if err := s.checkYear(req.Year); err != nil {
		return nil, err
	}
	genres, err := s.resolveGenres(ctx, req.Genre)
	if err != nil {
		return nil, err
	}
	category, err := s.resolveCategory(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	t := &domain.Title{
		Name:        req.Name,
		Year:        req.Year,
		Description: req.Description,
		Genres:      genres,
		Category:    category,
		CreatedAt:   clock.Stamp(s.clock),
	}
	if err := s.catalog.CreateTitle(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Title created", slog.Int64("titleID", t.ID))
	return s.catalog.GetTitle(ctx, t.ID)
}

func (s *CatalogService) UpdateTitle(ctx context.Context, actor policy.Actor, titleID int64, req domain.UpdateTitleRequest) (*domain.Title, error) {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return nil, err
	}
	t, err := s.catalog.GetTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Year != nil {
		if err := s.checkYear(*req.Year); err != nil {
			return nil, err
		}
		t.Year = *req.Year
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Genre != nil {
		if t.Genres, err = s.resolveGenres(ctx, req.Genre); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if t.Category, err = s.resolveCategory(ctx, *req.Category); err != nil {
			return nil, err
		}
	}
	if err := s.catalog.UpdateTitle(ctx, t); err != nil {
		return nil, err
	}
	return s.catalog.GetTitle(ctx, titleID)
}

func (s *CatalogService) DeleteTitle(ctx context.Context, actor policy.Actor, titleID int64) error {
	if err := checkAct(policy.AdminOrReadOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	if err := s.catalog.DeleteTitle(ctx, titleID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Title deleted", slog.Int64("titleID", titleID))
	return nil
}
