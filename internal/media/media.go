// Package media stores verification videos.
package media

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/odpadki/internal/store"
)

// Store persists verification videos keyed by item id.
type Store interface {
	// Put saves data under key and returns the reference recorded on the item.
	Put(ctx context.Context, key string, data []byte, mime string) (string, error)
	// Get returns a previously stored video.
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// DBStore keeps videos in the SQLite videos table.
type DBStore struct {
	DB *sql.DB
}

// NewDBStore returns a Store backed by db.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{DB: db}
}

// Put saves the video and returns the API path it is served from.
func (s *DBStore) Put(ctx context.Context, key string, data []byte, mime string) (string, error) {
	if err := store.SaveVideo(ctx, s.DB, key, data, mime); err != nil {
		return "", err
	}
	return VideoPath(key), nil
}

// Get loads the video stored under key.
func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	return store.GetVideo(ctx, s.DB, key)
}

// VideoPath is the API path serving the verification video of an item.
func VideoPath(itemID string) string {
	return fmt.Sprintf("/api/items/%s/video", itemID)
}
