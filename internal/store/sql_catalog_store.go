package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"yamdb/internal/domain"
)

// SQLCatalogStore реализует CatalogStore поверх sqlx.
type SQLCatalogStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewSQLCatalogStore(db *sqlx.DB, logger *slog.Logger) (*SQLCatalogStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil for SQLCatalogStore")
	}
	return &SQLCatalogStore{db: db, logger: logger}, nil
}

// --- categories & genres ---

// Both tables have the same shape, so the helpers below take the table name
// and the not-found sentinel.

func (s *SQLCatalogStore) createSlugged(ctx context.Context, table, name, slug string) (int64, error) {
	query := s.db.Rebind(`INSERT INTO ` + table + ` (name, slug) VALUES (?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, query, name, slug).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "Slug already taken", slog.String("table", table), slog.String("slug", slug))
			return 0, ErrSlugTaken
		}
		s.logger.ErrorContext(ctx, "Failed to insert slugged row", slog.String("table", table), slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}
	return id, nil
}

func (s *SQLCatalogStore) getSlugged(ctx context.Context, table, slug string, dest any, notFound error) error {
	query := s.db.Rebind(`SELECT id, name, slug FROM ` + table + ` WHERE slug = ?`)
	if err := s.db.GetContext(ctx, dest, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		s.logger.ErrorContext(ctx, "Failed to get slugged row", slog.String("table", table), slog.String("error", err.Error()))
		return fmt.Errorf("failed to get %s: %w", table, err)
	}
	return nil
}

func (s *SQLCatalogStore) deleteSlugged(ctx context.Context, table, slug string, notFound error) error {
	s.logger.DebugContext(ctx, "Executing delete by slug", slog.String("table", table), slog.String("slug", slug))
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE slug = ?`), slug)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete slugged row", slog.String("table", table), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete %s: %w", table, err)
	}
	return expectRowsAffected(ctx, s.logger, result, notFound, slog.String("slug", slug))
}

func (s *SQLCatalogStore) listSlugged(ctx context.Context, table string, params domain.SlugListParams, dest any) (int, error) {
	page := params.Page.Normalize()
	where := ""
	var args []any
	if params.Search != "" {
		where = ` WHERE LOWER(name) LIKE ?`
		args = append(args, likePattern(params.Search))
	}
	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM `+table+where), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count slugged rows", slog.String("table", table), slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	query := s.db.Rebind(`SELECT id, name, slug FROM ` + table + where + ` ORDER BY name, id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, dest, query, append(args, page.Limit, page.Offset)...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list slugged rows", slog.String("table", table), slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return total, nil
}

func (s *SQLCatalogStore) CreateCategory(ctx context.Context, c *domain.Category) error {
	id, err := s.createSlugged(ctx, "categories", c.Name, c.Slug)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *SQLCatalogStore) GetCategory(ctx context.Context, slug string) (*domain.Category, error) {
	var c domain.Category
	if err := s.getSlugged(ctx, "categories", slug, &c, ErrCategoryNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory удаляет категорию; titles.category_id обнуляется (ON DELETE SET NULL).
func (s *SQLCatalogStore) DeleteCategory(ctx context.Context, slug string) error {
	return s.deleteSlugged(ctx, "categories", slug, ErrCategoryNotFound)
}

func (s *SQLCatalogStore) ListCategories(ctx context.Context, params domain.SlugListParams) ([]*domain.Category, int, error) {
	out := []*domain.Category{}
	total, err := s.listSlugged(ctx, "categories", params, &out)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *SQLCatalogStore) CreateGenre(ctx context.Context, g *domain.Genre) error {
	id, err := s.createSlugged(ctx, "genres", g.Name, g.Slug)
	if err != nil {
		return err
	}
	g.ID = id
	return nil
}

func (s *SQLCatalogStore) GetGenre(ctx context.Context, slug string) (*domain.Genre, error) {
	var g domain.Genre
	if err := s.getSlugged(ctx, "genres", slug, &g, ErrGenreNotFound); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLCatalogStore) DeleteGenre(ctx context.Context, slug string) error {
	return s.deleteSlugged(ctx, "genres", slug, ErrGenreNotFound)
}

func (s *SQLCatalogStore) ListGenres(ctx context.Context, params domain.SlugListParams) ([]*domain.Genre, int, error) {
	out := []*domain.Genre{}
	total, err := s.listSlugged(ctx, "genres", params, &out)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// --- titles ---

type titleRow struct {
	ID           int64           `db:"id"`
	Name         string          `db:"name"`
	Year         int             `db:"year"`
	Description  sql.NullString  `db:"description"`
	CreatedAt    time.Time       `db:"created_at"`
	CategoryID   sql.NullInt64   `db:"category_id"`
	CategoryName sql.NullString  `db:"category_name"`
	CategorySlug sql.NullString  `db:"category_slug"`
	Rating       sql.NullFloat64 `db:"rating"`
}

func (r titleRow) toDomain() *domain.Title {
	t := &domain.Title{
		ID:        r.ID,
		Name:      r.Name,
		Year:      r.Year,
		CreatedAt: r.CreatedAt.UTC(),
		Genres:    []domain.Genre{},
	}
	if r.Description.Valid {
		d := r.Description.String
		t.Description = &d
	}
	if r.CategoryID.Valid {
		t.Category = &domain.Category{ID: r.CategoryID.Int64, Name: r.CategoryName.String, Slug: r.CategorySlug.String}
	}
	if r.Rating.Valid {
		v := r.Rating.Float64
		t.Rating = &v
	}
	return t
}

// Rating is an aggregate over reviews and is never stored.
const titleSelect = `SELECT t.id, t.name, t.year, t.description, t.created_at, t.category_id,
       c.name AS category_name, c.slug AS category_slug,
       (SELECT AVG(r.score) FROM reviews r WHERE r.title_id = t.id) AS rating
  FROM titles t LEFT JOIN categories c ON c.id = t.category_id`

type genreLink struct {
	TitleID int64 `db:"title_id"`
	domain.Genre
}

func (s *SQLCatalogStore) loadGenres(ctx context.Context, titles []*domain.Title) error {
	if len(titles) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Title, len(titles))
	ids := make([]int64, 0, len(titles))
	for _, t := range titles {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	query, args, err := sqlx.In(`SELECT tg.title_id, g.id, g.name, g.slug
  FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
 WHERE tg.title_id IN (?) ORDER BY g.name, g.id`, ids)
	if err != nil {
		return fmt.Errorf("failed to build genres query: %w", err)
	}
	var links []genreLink
	if err := s.db.SelectContext(ctx, &links, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load title genres", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load genres: %w", err)
	}
	for _, l := range links {
		if t, ok := byID[l.TitleID]; ok {
			t.Genres = append(t.Genres, l.Genre)
		}
	}
	return nil
}

func nullableCategory(t *domain.Title) any {
	if t.Category == nil {
		return nil
	}
	return t.Category.ID
}

func (s *SQLCatalogStore) replaceGenres(ctx context.Context, tx *sqlx.Tx, titleID int64, genres []domain.Genre) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM title_genres WHERE title_id = ?`), titleID); err != nil {
		return fmt.Errorf("failed to clear genres: %w", err)
	}
	seen := make(map[int64]bool, len(genres))
	insert := tx.Rebind(`INSERT INTO title_genres (title_id, genre_id) VALUES (?, ?)`)
	for _, g := range genres {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		if _, err := tx.ExecContext(ctx, insert, titleID, g.ID); err != nil {
			if isForeignKeyViolation(err) {
				return ErrDanglingReference
			}
			return fmt.Errorf("failed to link genre: %w", err)
		}
	}
	return nil
}

// CreateTitle сохраняет произведение вместе с его жанрами в одной транзакции.
func (s *SQLCatalogStore) CreateTitle(ctx context.Context, t *domain.Title) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := tx.Rebind(`INSERT INTO titles (name, year, description, category_id, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err = tx.QueryRowxContext(ctx, query, t.Name, t.Year, t.Description, nullableCategory(t), t.CreatedAt).Scan(&t.ID); err != nil {
		if isForeignKeyViolation(err) {
			return ErrDanglingReference
		}
		s.logger.ErrorContext(ctx, "Failed to insert title", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create title: %w", err)
	}
	if err = s.replaceGenres(ctx, tx, t.ID, t.Genres); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title: %w", err)
	}
	s.logger.InfoContext(ctx, "Title created successfully in DB", slog.Int64("titleID", t.ID))
	return nil
}

func (s *SQLCatalogStore) GetTitle(ctx context.Context, titleID int64) (*domain.Title, error) {
	var row titleRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(titleSelect+` WHERE t.id = ?`), titleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "Title not found in DB", slog.Int64("titleID", titleID))
			return nil, ErrTitleNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get title", slog.Int64("titleID", titleID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	t := row.toDomain()
	if err := s.loadGenres(ctx, []*domain.Title{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTitle перезаписывает поля и набор жанров произведения.
func (s *SQLCatalogStore) UpdateTitle(ctx context.Context, t *domain.Title) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE titles SET name = ?, year = ?, description = ?, category_id = ? WHERE id = ?`),
		t.Name, t.Year, t.Description, nullableCategory(t), t.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrDanglingReference
		}
		s.logger.ErrorContext(ctx, "Failed to update title", slog.Int64("titleID", t.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update title: %w", err)
	}
	if err = expectRowsAffected(ctx, s.logger, result, ErrTitleNotFound, slog.Int64("titleID", t.ID)); err != nil {
		return err
	}
	if err = s.replaceGenres(ctx, tx, t.ID, t.Genres); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit title: %w", err)
	}
	return nil
}

// DeleteTitle удаляет произведение; отзывы и комментарии удаляются каскадно.
func (s *SQLCatalogStore) DeleteTitle(ctx context.Context, titleID int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM titles WHERE id = ?`), titleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete title", slog.Int64("titleID", titleID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete title: %w", err)
	}
	return expectRowsAffected(ctx, s.logger, result, ErrTitleNotFound, slog.Int64("titleID", titleID))
}

func (s *SQLCatalogStore) ListTitles(ctx context.Context, params domain.TitleListParams) ([]*domain.Title, int, error) {
	page := params.Page.Normalize()
	var conds []string
	var args []any
	if params.GenreSlug != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM title_genres tg JOIN genres g ON g.id = tg.genre_id
                WHERE tg.title_id = t.id AND g.slug = ?)`)
		args = append(args, params.GenreSlug)
	}
	if params.CategorySlug != "" {
		conds = append(conds, `c.slug = ?`)
		args = append(args, params.CategorySlug)
	}
	if params.Name != "" {
		conds = append(conds, `LOWER(t.name) LIKE ?`)
		args = append(args, likePattern(params.Name))
	}
	if params.Year != 0 {
		conds = append(conds, `t.year = ?`)
		args = append(args, params.Year)
	}
	where := ""
	if len(conds) > 0 {
		where = ` WHERE ` + strings.Join(conds, ` AND `)
	}

	var total int
	countQuery := s.db.Rebind(`SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id` + where)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count titles", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count titles: %w", err)
	}

	var rows []titleRow
	query := s.db.Rebind(titleSelect + where + ` ORDER BY t.id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, query, append(args, page.Limit, page.Offset)...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list titles", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list titles: %w", err)
	}
	titles := make([]*domain.Title, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.toDomain())
	}
	if err := s.loadGenres(ctx, titles); err != nil {
		return nil, 0, err
	}
	return titles, total, nil
}
