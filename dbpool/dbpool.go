// Package dbpool provides a unified database connection manager that
// abstracts away engine-specific details (MySQL, SQLite) and handles retry
// logic and connection pool settings.
//
// All code that needs a *sql.DB should go through DBManager instead of
// calling sql.Open directly. This gives us a single place to:
//   - switch between MySQL and SQLite
//   - add retry/backoff for transient failures
//   - enforce connection pool settings
package dbpool

import (
	"database/sql"
	"fmt"
)

// Engine identifies the database engine to use.
type Engine string

const (
	EngineMySQL  Engine = "mysql"
	EngineSQLite Engine = "sqlite"
)

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	// Engine to use. Defaults to EngineMySQL if empty.
	Engine Engine
	// DSN is the driver connection string. For SQLite this is the file path.
	DSN string
	// MaxRetries overrides the default retry count (0 = use default).
	MaxRetries int
	// RetryBaseMs overrides the base retry interval in milliseconds (0 = use default).
	RetryBaseMs int
}

// Logger is a simple logging function signature.
type Logger func(string)

// DBManager is the central connection manager.
type DBManager struct {
	logger Logger
}

// New creates a new DBManager with the given logger.
func New(logger Logger) *DBManager {
	if logger == nil {
		logger = func(string) {}
	}
	return &DBManager{logger: logger}
}

// Open opens a database connection with the given options.
func (m *DBManager) Open(opts OpenOptions) (*sql.DB, error) {
	eng := opts.Engine
	if eng == "" {
		eng = EngineMySQL
	}

	switch eng {
	case EngineMySQL:
		return m.openMySQL(opts)
	case EngineSQLite:
		return m.openSQLite(opts)
	default:
		return nil, fmt.Errorf("dbpool: unsupported engine %q", eng)
	}
}

// configurePool sets connection pool parameters. Tool calls open their own
// short-lived handles, so a small pool is enough and releases server
// resources quickly.
func configurePool(db *sql.DB) {
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(4)
}

// retryParams returns (maxRetries, baseMs) from opts or defaults.
func retryParams(opts OpenOptions) (int, int) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseMs := opts.RetryBaseMs
	if baseMs <= 0 {
		baseMs = 400
	}
	return maxRetries, baseMs
}
