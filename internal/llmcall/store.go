package llmcall

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists LLM call records in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	SessionID string
	Role      string
	PromptKey string
	Provider  string
	Model     string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// OpenStore opens (creating if needed) the call database at path and applies
// pending migrations.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate migrations: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		version := filepath.Base(file)
		if applied[version] {
			continue
		}
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upMigration(string(content))); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
		s.logger.Debug("applied migration", "file", version)
	}
	return nil
}

// upMigration returns the part of a migration before the Down marker.
func upMigration(content string) string {
	if idx := strings.Index(content, "-- +migrate Down"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content), "-- +migrate Up"))
}

// Write inserts call. It implements Sink.
func (s *Store) Write(ctx context.Context, call *Call) error {
	var temp sql.NullFloat64
	if call.Temperature != nil {
		temp = sql.NullFloat64{Float64: *call.Temperature, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_calls (
			id, timestamp, latency_ms, session_id, role, prompt_key, prompt_hash, prompt,
			provider, model, temperature, input_tokens, output_tokens, response, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.Timestamp.UTC().Format(timeLayout), call.LatencyMs,
		call.SessionID, call.Role, call.PromptKey, call.PromptHash, call.Prompt,
		call.Provider, call.Model, temp, call.InputTokens, call.OutputTokens,
		call.Response, call.Success, call.Error,
	)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

const selectColumns = `id, timestamp, latency_ms, session_id, role, prompt_key, prompt_hash, prompt,
	provider, model, temperature, input_tokens, output_tokens, response, success, error`

// Get retrieves a single LLM call by ID. It returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM llm_calls WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	calls, err := scanCalls(rows)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}
	return &calls[0], nil
}

// List retrieves LLM calls matching the filter, oldest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var (
		conditions []string
		args       []any
	)
	eq := func(col, v string) {
		if v != "" {
			conditions = append(conditions, col+" = ?")
			args = append(args, v)
		}
	}
	eq("session_id", filter.SessionID)
	eq("role", filter.Role)
	eq("prompt_key", filter.PromptKey)
	eq("provider", filter.Provider)
	eq("model", filter.Model)
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}
	if filter.After != nil {
		conditions = append(conditions, "timestamp > ?")
		args = append(args, filter.After.UTC().Format(timeLayout))
	}
	if filter.Before != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.Before.UTC().Format(timeLayout))
	}

	query := "SELECT " + selectColumns + " FROM llm_calls"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp, rowid"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return scanCalls(rows)
}

// CountByPromptKey returns call counts grouped by prompt key for a session.
// An empty sessionID counts every call.
func (s *Store) CountByPromptKey(ctx context.Context, sessionID string) (map[string]int, error) {
	query := "SELECT prompt_key, COUNT(*) FROM llm_calls"
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " GROUP BY prompt_key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var (
			c    Call
			ts   string
			temp sql.NullFloat64
		)
		if err := rows.Scan(
			&c.ID, &ts, &c.LatencyMs, &c.SessionID, &c.Role, &c.PromptKey, &c.PromptHash, &c.Prompt,
			&c.Provider, &c.Model, &temp, &c.InputTokens, &c.OutputTokens, &c.Response, &c.Success, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			c.Timestamp = t
		}
		if temp.Valid {
			v := temp.Float64
			c.Temperature = &v
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
