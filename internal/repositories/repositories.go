package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Well-known client_state keys.
const (
	AuthKey     = "hivefm.spotify.auth"
	LastHiveKey = "hivefm.session.hive"
)

// StateRepository stores JSON documents in client_state.
type StateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewStateRepository creates a new [StateRepository] with the given database connection
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db, now: time.Now}
}

// Get decodes the value at key into v. It reports false when the key is absent.
func (r *StateRepository) Get(ctx context.Context, key string, v any) (bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query client state %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode client state %s: %w", key, err)
	}
	return true, nil
}

// Put upserts v at key.
func (r *StateRepository) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode client state %s: %w", key, err)
	}

	query := `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, string(data), r.now().UTC()); err != nil {
		return fmt.Errorf("failed to write client state %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete client state %s: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last written, or the zero time.
func (r *StateRepository) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM client_state WHERE key = ?`, key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query client state %s: %w", key, err)
	}
	return at, nil
}
