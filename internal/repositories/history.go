package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/hivefm/internal/models"
	"github.com/desertthunder/hivefm/internal/shared"
)

// HistoryRepository records now-playing changes.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new [HistoryRepository] with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts entry, assigning an ID and timestamp when missing.
func (r *HistoryRepository) Record(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.Track.ID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if entry.ID == "" {
		entry.ID = shared.GenerateID()
	}
	if entry.PlayedAt.IsZero() {
		entry.PlayedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO play_history (id, track_id, title, artist, source, hive_id, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Track.ID, entry.Track.Title, entry.Track.Artist,
		entry.Source, nullString(entry.HiveID), entry.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-empty hiveID filters to that hive.
func (r *HistoryRepository) Recent(ctx context.Context, hiveID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, track_id, title, artist, source, hive_id, played_at
		FROM play_history
		WHERE (? = '' OR hive_id = ?)
		ORDER BY played_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, hiveID, hiveID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			e      models.HistoryEntry
			artist sql.NullString
			hive   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Track.ID, &e.Track.Title, &artist, &e.Source, &hive, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Track.Artist = artist.String
		e.HiveID = hive.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Last returns the most recent entry, or nil.
func (r *HistoryRepository) Last(ctx context.Context) (*models.HistoryEntry, error) {
	entries, err := r.Recent(ctx, "", 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Prune deletes entries played before cutoff and returns how many were removed.
func (r *HistoryRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM play_history WHERE played_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
