package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveVideo stores (or replaces) the verification video of an item.
func SaveVideo(ctx context.Context, db *sql.DB, itemID string, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO videos (item_id, data, mime, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET data = excluded.data, mime = excluded.mime,
		 created_at = excluded.created_at`,
		itemID, data, mime, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving video: %w", classify(err))
	}
	return nil
}

// GetVideo returns the stored video bytes and MIME type of an item.
func GetVideo(ctx context.Context, db *sql.DB, itemID string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM videos WHERE item_id = ?`, itemID,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("video for item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting video: %w", err)
	}
	return data, mime, nil
}
