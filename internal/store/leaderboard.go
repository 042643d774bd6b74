package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/odpadki/internal/model"
)

// DefaultLeaderboardSize is used by TopN when n <= 0.
const DefaultLeaderboardSize = 10

// TopN returns the n highest-scoring users with points > 0. Ties are broken
// by sign-up time and then by id, the same ordering RankOf counts against.
func TopN(ctx context.Context, db *sql.DB, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE points > 0
		 ORDER BY points DESC, created_at ASC, id ASC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:          len(entries) + 1,
			UserID:        u.ID,
			Name:          u.Name,
			Points:        u.Points,
			ItemsUploaded: u.ItemsUploaded,
		})
	}
	return entries, rows.Err()
}

// RankOf returns the 1-based leaderboard position of a user among all users.
func RankOf(ctx context.Context, db *sql.DB, userID string) (int, error) {
	var rank int
	err := db.QueryRowContext(ctx,
		`SELECT 1 + (
		   SELECT COUNT(*) FROM users o
		   WHERE o.points > u.points
		      OR (o.points = u.points AND o.created_at < u.created_at)
		      OR (o.points = u.points AND o.created_at = u.created_at AND o.id < u.id)
		 )
		 FROM users u WHERE u.id = ?`, userID,
	).Scan(&rank)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("ranking user: %w", err)
	}
	return rank, nil
}
