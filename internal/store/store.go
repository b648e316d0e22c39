package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/logging"
)

// connectAttempts bounds the startup wait for the database. With the fixed
// delay below this covers roughly a minute of database warm-up.
const (
	connectAttempts = 30
	connectDelay    = 2 * time.Second
)

// Store is the persistence layer. It is safe for concurrent use; all
// methods run short transactions or single statements against the shared
// connection pool.
type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

// New wraps an already-open database handle. Used by tests and by callers
// that manage the pool themselves.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, log: logging.Logger()}
}

// Connect opens a connection pool for the given URI and pings until the
// database answers or the attempt budget is exhausted. The database often
// starts alongside the service, so the first pings are expected to fail.
func Connect(ctx context.Context, uri string) (*Store, error) {
	db, err := sqlx.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := New(db)
	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("database not ready", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("waiting for database: %w", err), closeErr)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// Rollback after Commit is a no-op error; ignored on the happy path.
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// mapConstraint folds constraint violations into the stable taxonomy so
// callers never inspect driver error types.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", fault.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
