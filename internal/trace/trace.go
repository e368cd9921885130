// Package trace records the call history of a service for diagnostics.
//
// The trace store is an observability sink only: the runtime never reads
// it back, and service state is never persisted here. It is wired in only
// when a declaration enables diagnostics.
//
// Uses SQLite with WAL mode so the CLI can read a trace while a service
// is still appending to it.
package trace

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Call is one recorded client call.
type Call struct {
	Seq       int64  `json:"seq" yaml:"seq"`
	Service   string `json:"service" yaml:"service"`
	WorkerID  string `json:"worker_id" yaml:"worker_id"`
	Function  string `json:"function" yaml:"function"`
	Mode      string `json:"mode" yaml:"mode"`
	Outcome   string `json:"outcome" yaml:"outcome"` // "ok" or "error"
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedUS int64  `json:"elapsed_us" yaml:"elapsed_us"`
}

// Store appends and reads call records.
type Store struct {
	db  *sql.DB
	seq SeqSource
}

// Open creates or opens a trace database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (a lost trace row is acceptable)
//   - 5-second busy timeout for lock contention
//
// The store's clock resumes from the highest recorded seq, so reopening a
// trace keeps the sequence monotonic. Idempotent - safe to call on an
// existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to trace database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent handle calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var last sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM calls`).Scan(&last); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read last seq: %w", err)
	}

	return &Store{db: db, seq: NewClockAt(last.Int64)}, nil
}

// SetSeqSource replaces the store's clock, for deterministic tests.
func (s *Store) SetSeqSource(src SeqSource) {
	s.seq = src
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one call. The record's Seq is assigned here.
func (s *Store) Append(ctx context.Context, c Call) (int64, error) {
	c.Seq = s.seq.Next()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (seq, service, worker_id, function, mode, outcome, error, elapsed_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Seq,
		c.Service,
		c.WorkerID,
		c.Function,
		c.Mode,
		c.Outcome,
		c.Error,
		c.ElapsedUS,
	)
	if err != nil {
		return 0, fmt.Errorf("append call: %w", err)
	}
	return c.Seq, nil
}

// List returns calls for a service in seq order. An empty service name
// returns every record. Returns an empty slice (not nil) when no records
// match.
func (s *Store) List(ctx context.Context, service string) ([]Call, error) {
	query := `
		SELECT seq, service, worker_id, function, mode, outcome, error, elapsed_us
		FROM calls
	`
	var args []any
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.Seq, &c.Service, &c.WorkerID, &c.Function, &c.Mode, &c.Outcome, &c.Error, &c.ElapsedUS); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}
	return nil
}
