package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"localforge/mcpd/pkg/mcp"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TIMESTAMP NOT NULL,
	method      TEXT NOT NULL,
	tenant_id   TEXT NOT NULL DEFAULT '',
	model_id    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	code        INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_requests_recorded_at ON requests(recorded_at);
CREATE INDEX IF NOT EXISTS idx_requests_tenant ON requests(tenant_id);

CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER PRIMARY KEY
);
`

// Config contains the audit store settings.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns caps open connections to the database.
	MaxOpenConns int

	// MaxIdleConns caps idle connections.
	MaxIdleConns int

	// WALMode enables write-ahead logging for better concurrency.
	WALMode bool

	// BusyTimeout is how long to wait on a locked database.
	BusyTimeout time.Duration

	// QueryLimit caps rows returned by Recent.
	QueryLimit int
}

// DefaultConfig returns the default audit store settings.
func DefaultConfig() *Config {
	return &Config{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		QueryLimit:   100,
	}
}

// Entry is one persisted request record.
type Entry struct {
	ID         int64         `json:"id"`
	RecordedAt time.Time     `json:"recorded_at"`
	Method     string        `json:"method"`
	TenantID   string        `json:"tenant_id,omitempty"`
	ModelID    string        `json:"model_id,omitempty"`
	Status     string        `json:"status"`
	Code       int           `json:"code,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Store is the sqlite-backed request log. It implements mcp.Observer
// so it can be attached straight to the protocol handler.
type Store struct {
	db     *sql.DB
	config *Config
	insert *sql.Stmt
	logger *slog.Logger
}

// NewStore opens (or creates) the audit database and prepares the
// insert path.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database %q: %w", config.Path, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &Store{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_info").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", schemaVersion, version)
	}

	insert, err := s.db.Prepare(`
		INSERT INTO requests (recorded_at, method, tenant_id, model_id, status, code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	s.insert = insert
	return nil
}

// ObserveRequest implements mcp.Observer. A failed insert is logged
// and dropped; the audit log never fails a request.
func (s *Store) ObserveRequest(ctx context.Context, rec mcp.RequestRecord) {
	_, err := s.insert.ExecContext(ctx,
		time.Now().UTC(),
		rec.Method,
		rec.TenantID,
		rec.ModelID,
		rec.Status,
		int(rec.Code),
		rec.Duration.Milliseconds(),
		rec.Error,
	)
	if err != nil {
		s.logger.Error("failed to record request", "method", rec.Method, "error", err)
	}
}

// Recent returns the newest entries, newest first. A non-positive
// limit, or one above the configured cap, uses the cap.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.config.QueryLimit {
		limit = s.config.QueryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, method, tenant_id, model_id, status, code, duration_ms, error
		FROM requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		if err := rows.Scan(&e.ID, &e.RecordedAt, &e.Method, &e.TenantID, &e.ModelID, &e.Status, &e.Code, &durationMs, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before the cutoff and returns the
// number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM requests WHERE recorded_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("audit log pruned", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&n)
	return n, err
}

// Close releases the prepared statements and the database handle.
func (s *Store) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}
