// internal/store/sql_user_store.go
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

const userColumns = `id, username, email, password_hash, first_name, last_name, bio, role, is_active, date_joined, updated_at`

// SQLUserStore реализует UserStore поверх sqlx (PostgreSQL или SQLite).
type SQLUserStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLUserStore создает SQLUserStore. db должен быть уже подключен.
func NewSQLUserStore(db *sqlx.DB, logger *slog.Logger) (*SQLUserStore, error) {
	if db == nil {
		return nil, errors.New("database connection (db) cannot be nil for SQLUserStore")
	}
	return &SQLUserStore{db: db, logger: logger}, nil
}

// Create создает нового пользователя и заполняет user.ID.
func (s *SQLUserStore) Create(ctx context.Context, user *domain.User) error {
	query := s.db.Rebind(`INSERT INTO users (username, email, password_hash, first_name, last_name, bio, role, is_active, date_joined, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	s.logger.DebugContext(ctx, "Executing Create user query", slog.String("email", user.Email), slog.String("username", user.Username))
	err := s.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Bio,
		string(user.Role), user.IsActive, user.DateJoined, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "User already exists (unique constraint violation in DB)",
				slog.String("email", user.Email),
				slog.String("username", user.Username),
				slog.String("constraint_name", constraintName(err)))
			return ErrUserAlreadyExists
		}
		s.logger.ErrorContext(ctx, "Failed to create user in DB", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User created successfully in DB", slog.Int64("userID", user.ID))
	return nil
}

// GetOrCreate ищет пользователя по паре (username, email) и создает его при отсутствии.
func (s *SQLUserStore) GetOrCreate(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	existing, err := s.getByPair(ctx, user.Username, user.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}
	created := *user
	if err := s.Create(ctx, &created); err != nil {
		if !errors.Is(err, ErrUserAlreadyExists) {
			return nil, false, err
		}
		// a concurrent request may have inserted the very same pair
		existing, getErr := s.getByPair(ctx, user.Username, user.Email)
		if getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return &created, true, nil
}

func (s *SQLUserStore) getByPair(ctx context.Context, username, email string) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ? AND email = ?`)
	return s.getOne(ctx, query, slog.String("username", username), username, email)
}

// GetByID находит пользователя по ID.
func (s *SQLUserStore) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getOne(ctx, query, slog.Int64("userID", userID), userID)
}

// GetByUsername находит пользователя по username.
func (s *SQLUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)
	return s.getOne(ctx, query, slog.String("username", username), username)
}

func (s *SQLUserStore) getOne(ctx context.Context, query string, key slog.Attr, args ...any) (*domain.User, error) {
	var user domain.User
	s.logger.DebugContext(ctx, "Executing get user query", key)
	if err := s.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "User not found in DB", key)
			return nil, ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "Failed to get user from DB", key, slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	normalizeUserTimes(&user)
	return &user, nil
}

// Update сохраняет все изменяемые поля пользователя.
func (s *SQLUserStore) Update(ctx context.Context, user *domain.User) error {
	query := s.db.Rebind(`UPDATE users SET username = ?, email = ?, password_hash = ?, first_name = ?, last_name = ?,
              bio = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`)
	s.logger.DebugContext(ctx, "Executing Update user query", slog.Int64("userID", user.ID))
	result, err := s.db.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Bio, string(user.Role), user.IsActive, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.WarnContext(ctx, "Update failed: username or email already exists (DB constraint)", slog.Int64("userID", user.ID), slog.String("constraint", constraintName(err)))
			return ErrUserAlreadyExists
		}
		s.logger.ErrorContext(ctx, "Failed to update user in DB", slog.Int64("userID", user.ID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to update user: %w", err)
	}
	return s.expectOne(ctx, result, ErrUserNotFound, slog.Int64("userID", user.ID))
}

// Delete удаляет пользователя; его отзывы и комментарии удаляются каскадно.
func (s *SQLUserStore) Delete(ctx context.Context, userID int64) error {
	s.logger.DebugContext(ctx, "Executing Delete user query", slog.Int64("userID", userID))
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete user from DB", slog.Int64("userID", userID), slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return s.expectOne(ctx, result, ErrUserNotFound, slog.Int64("userID", userID))
}

// List возвращает пользователей, отсортированных по username.
func (s *SQLUserStore) List(ctx context.Context, params domain.UserListParams) ([]*domain.User, int, error) {
	page := params.Page.Normalize()
	where := ""
	var args []any
	if params.Search != "" {
		where = ` WHERE LOWER(username) LIKE ?`
		args = append(args, likePattern(params.Search))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM users`+where), args...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to count users in DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if total == 0 {
		return []*domain.User{}, 0, nil
	}

	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username LIMIT ? OFFSET ?`)
	users := []*domain.User{}
	if err := s.db.SelectContext(ctx, &users, query, append(args, page.Limit, page.Offset)...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users from DB", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		normalizeUserTimes(u)
	}
	return users, total, nil
}

func (s *SQLUserStore) expectOne(ctx context.Context, result sql.Result, notFound error, key slog.Attr) error {
	return expectRowsAffected(ctx, s.logger, result, notFound, key)
}

func expectRowsAffected(ctx context.Context, logger *slog.Logger, result sql.Result, notFound error, key slog.Attr) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get rows affected", key, slog.String("error", err.Error()))
		return fmt.Errorf("failed to check result: %w", err)
	}
	if rowsAffected == 0 {
		logger.WarnContext(ctx, "No row matched", key, slog.String("error", notFound.Error()))
		return notFound
	}
	return nil
}

func normalizeUserTimes(u *domain.User) {
	u.DateJoined = u.DateJoined.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
}
