package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"advocat/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// SQLiteStateRepository persists visitor state in a local sqlite file, for
// single instance deployments without redis.
type SQLiteStateRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStateRepository(path string, ttl time.Duration) (*SQLiteStateRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStateRepository{db: db, ttl: ttl, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS visitor_states (
            visitor_id TEXT PRIMARY KEY,
            payload TEXT NOT NULL,
            expires_at INTEGER NOT NULL DEFAULT 0,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS rate_limits (
            key TEXT PRIMARY KEY,
            count INTEGER NOT NULL,
            expires_at INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_visitor_states_expires_at ON visitor_states(expires_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (r *SQLiteStateRepository) GetState(ctx context.Context, visitorID string) (*models.VisitorState, error) {
	var payload string
	var expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM visitor_states WHERE visitor_id = ?`, visitorID,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from sqlite: %w", err)
	}
	if expiresAt > 0 && r.now().UnixNano() > expiresAt {
		return nil, nil
	}

	var state models.VisitorState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (r *SQLiteStateRepository) SetState(ctx context.Context, state *models.VisitorState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	var expiresAt int64
	if r.ttl > 0 {
		expiresAt = r.now().Add(r.ttl).UnixNano()
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO visitor_states (visitor_id, payload, expires_at, updated_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(visitor_id) DO UPDATE SET
            payload = excluded.payload,
            expires_at = excluded.expires_at,
            updated_at = CURRENT_TIMESTAMP`,
		state.VisitorID, string(data), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set state in sqlite: %w", err)
	}
	return nil
}

func (r *SQLiteStateRepository) ClearState(ctx context.Context, visitorID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM visitor_states WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("failed to delete state from sqlite: %w", err)
	}
	return nil
}

func (r *SQLiteStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now().UnixNano()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin rate limit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT count, expires_at FROM rate_limits WHERE key = ?`, key).Scan(&count, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && now > expiresAt):
		count = 1
		expiresAt = now + window.Nanoseconds()
	case err != nil:
		return false, fmt.Errorf("failed to read rate limit: %w", err)
	default:
		count++
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO rate_limits (key, count, expires_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET count = excluded.count, expires_at = excluded.expires_at`,
		key, count, expiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to write rate limit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit rate limit: %w", err)
	}
	return count <= limit, nil
}

// PurgeExpired deletes expired visitor states and rate limit windows.
func (r *SQLiteStateRepository) PurgeExpired(ctx context.Context) (int64, error) {
	now := r.now().UnixNano()
	res, err := r.db.ExecContext(ctx, `DELETE FROM visitor_states WHERE expires_at > 0 AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge states: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE expires_at < ?`, now); err != nil {
		return 0, fmt.Errorf("failed to purge rate limits: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteStateRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteStateRepository) Close() error {
	return r.db.Close()
}
