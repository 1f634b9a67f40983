package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/errs"
)

// ErrNotUpdated is returned when a conditional update matched no row
var ErrNotUpdated = errors.New("no row matched the update")

// Store bundles the repositories with the connection they run against
type Store struct {
	db       *sqlx.DB
	Topics   *TopicRepository
	Sessions *SessionRepository
	Tasks    *ReviewTaskRepository
	Profiles *ProfileRepository
}

// NewStore creates a store over an open connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		Topics:   NewTopicRepository(),
		Sessions: NewSessionRepository(),
		Tasks:    NewReviewTaskRepository(),
		Profiles: NewProfileRepository(),
	}
}

// DB returns the underlying connection for non-transactional reads
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx runs fn in a serializable transaction. The transaction is committed
// when fn returns nil and rolled back otherwise; fn's error is returned as is.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.run(ctx, s.writeOptions(), fn)
}

// ReadTx runs fn in a read-only transaction so every query sees the same state
func (s *Store) ReadTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.run(ctx, s.readOptions(), fn)
}

// Mutate runs fn in a write transaction and, as its last statement, bumps the
// version counter of the user fn reports as affected. Returns the new version.
func (s *Store) Mutate(ctx context.Context, fn func(tx *sqlx.Tx) (int64, error)) (uint64, error) {
	var version uint64
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := fn(tx)
		if err != nil {
			return err
		}
		version, err = s.Profiles.BumpVersion(ctx, tx, userID)
		return err
	})
	return version, err
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// The sqlite driver ignores isolation options; a single connection with
// immediate transactions already serializes writers.
func (s *Store) writeOptions() *sql.TxOptions {
	if s.db.DriverName() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

func (s *Store) readOptions() *sql.TxOptions {
	if s.db.DriverName() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// IsNotFound reports whether err comes from a lookup that matched no row
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique or primary key constraint failure
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func rowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return ErrNotUpdated
	}
	return nil
}

// Classify maps a storage error to the error taxonomy. Errors that already
// carry a kind are returned unchanged.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errs.KindOf(err) != "":
		return err
	case IsUniqueViolation(err):
		return errs.Wrap(errs.InvalidState, op, err)
	case IsNotFound(err):
		return errs.Wrap(errs.NotFound, op, err)
	}
	return errs.Wrap(errs.Persistence, op, err)
}
