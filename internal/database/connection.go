package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/example/studyplan/internal/config"
)

// Open establishes a connection to the configured database and initializes the schema
func Open(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.DBType {
	case "postgres":
		return OpenPostgres(cfg.DBDSN)
	case "", "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			// Create data directory if it doesn't exist
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return nil, errors.Wrap(err, "failed to create data directory")
			}
			dsn = filepath.Join(cfg.DataDir, "study.db")
		}
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
}

// OpenSQLite opens a sqlite database. Transactions take the write lock on
// BEGIN so concurrent writers serialize instead of failing on upgrade.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL database
func OpenPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(path string) string {
	params := "_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

type dialect struct {
	serial    string
	timestamp string
}

func dialectFor(driver string) dialect {
	if driver == "postgres" {
		return dialect{serial: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ"}
	}
	return dialect{serial: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "TIMESTAMP"}
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	d := dialectFor(db.DriverName())

	statements := []struct {
		name string
		sql  string
	}{
		{"topics", `
			CREATE TABLE IF NOT EXISTS topics (
				id ` + d.serial + `,
				name TEXT NOT NULL UNIQUE,
				area TEXT NOT NULL DEFAULT '',
				tier TEXT NOT NULL
			)`},
		{"profiles", `
			CREATE TABLE IF NOT EXISTS profiles (
				user_id BIGINT PRIMARY KEY,
				daily_goal INTEGER NOT NULL CHECK (daily_goal >= 1),
				xp_total BIGINT NOT NULL DEFAULT 0 CHECK (xp_total >= 0),
				version BIGINT NOT NULL DEFAULT 0,
				reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at ` + d.timestamp + ` NOT NULL,
				updated_at ` + d.timestamp + ` NOT NULL
			)`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id ` + d.serial + `,
				user_id BIGINT NOT NULL REFERENCES profiles(user_id),
				topic_id BIGINT,
				phase TEXT NOT NULL,
				correct INTEGER NOT NULL CHECK (correct >= 0),
				attempted INTEGER NOT NULL CHECK (attempted >= 1),
				ts BIGINT NOT NULL,
				CHECK (correct <= attempted)
			)`},
		{"sessions index", `CREATE INDEX IF NOT EXISTS idx_sessions_user_ts ON sessions(user_id, ts)`},
		{"review_tasks", `
			CREATE TABLE IF NOT EXISTS review_tasks (
				id ` + d.serial + `,
				user_id BIGINT NOT NULL REFERENCES profiles(user_id),
				topic_id BIGINT NOT NULL,
				tier TEXT NOT NULL,
				scheduled_date TEXT NOT NULL,
				status TEXT NOT NULL,
				interval_days INTEGER NOT NULL CHECK (interval_days >= 1),
				streak INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
				rating TEXT,
				created_at ` + d.timestamp + ` NOT NULL,
				completed_at ` + d.timestamp + `
			)`},
		// At most one pending task per (user, topic)
		{"review_tasks pending index", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_review_tasks_one_pending
			ON review_tasks(user_id, topic_id) WHERE status = 'pending'`},
		{"review_tasks due index", `
			CREATE INDEX IF NOT EXISTS idx_review_tasks_due
			ON review_tasks(user_id, status, scheduled_date)`},
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return errors.Wrapf(err, "failed to create %s", stmt.name)
		}
	}
	return nil
}
