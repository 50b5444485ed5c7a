package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMemory   = "memory"
)

// Open connects to the database, pings it and applies the schema.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("DB connection string (dsn) cannot be empty")
	}
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	logger.Info("Connecting to database", slog.String("driver", driver), slog.String("dsn", redactDSN(dsn)))
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to database.", slog.String("driver", driver))
	return db, nil
}

// sqliteDSN turns on foreign keys for every connection the pool opens;
// cascades and ON DELETE SET NULL depend on it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// NewSQLStores builds all stores over one connection.
func NewSQLStores(db *sqlx.DB, logger *slog.Logger) (Stores, error) {
	users, err := NewSQLUserStore(db, logger)
	if err != nil {
		return Stores{}, err
	}
	catalog, err := NewSQLCatalogStore(db, logger)
	if err != nil {
		return Stores{}, err
	}
	reviews, err := NewSQLReviewStore(db, logger)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Users: users, Catalog: catalog, Reviews: reviews}, nil
}

// redactDSN hides the password of a URL-style DSN for logging.
func redactDSN(dsn string) string {
	at := strings.Index(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || scheme > at {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":********" + dsn[at:]
	}
	return dsn
}

// isUniqueViolation reports a unique/primary key violation from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isForeignKeyViolation reports a reference to a missing parent row.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// constraintName returns the violated constraint when the driver reports it.
func constraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
