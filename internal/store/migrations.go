package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is written once for both drivers; {{id}} and {{ts}} are replaced
// with the driver's auto-increment key and timestamp types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}},
		username VARCHAR(150) NOT NULL,
		email VARCHAR(254) NOT NULL,
		password_hash TEXT NOT NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		role VARCHAR(10) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		date_joined {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		CONSTRAINT uq_users_username UNIQUE (username),
		CONSTRAINT uq_users_email UNIQUE (email),
		CONSTRAINT uq_users_username_email UNIQUE (username, email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id {{id}},
		name VARCHAR(256) NOT NULL,
		slug VARCHAR(50) NOT NULL,
		CONSTRAINT uq_categories_slug UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id {{id}},
		name VARCHAR(256) NOT NULL,
		slug VARCHAR(50) NOT NULL,
		CONSTRAINT uq_genres_slug UNIQUE (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS titles (
		id {{id}},
		name TEXT NOT NULL,
		year INTEGER NOT NULL CHECK (year > 0),
		description TEXT NULL,
		category_id BIGINT NULL REFERENCES categories(id) ON DELETE SET NULL,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS title_genres (
		title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		genre_id BIGINT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
		PRIMARY KEY (title_id, genre_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id {{id}},
		title_id BIGINT NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		score SMALLINT NOT NULL CHECK (score BETWEEN 1 AND 10),
		pub_date {{ts}} NOT NULL,
		CONSTRAINT uq_review_author_title UNIQUE (author_id, title_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_title ON reviews (title_id)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {{id}},
		review_id BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		pub_date {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_pub_date ON comments (pub_date)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_review ON comments (review_id)`,
}

func dialect(driver string) *strings.Replacer {
	if driver == DriverSQLite {
		return strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP")
	}
	return strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ")
}

// Migrate creates missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	r := dialect(db.DriverName())
	if db.DriverName() == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			return fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
