package model

import "time"

// Post is a community feed entry.
type Post struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	Likes      int       `json:"likes"`
	Dislikes   int       `json:"dislikes"`
	LikedBy    []string  `json:"liked_by"`
	DislikedBy []string  `json:"disliked_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vote values.
const (
	VoteLike    = 1
	VoteDislike = -1
)

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Points        int64  `json:"points"`
	ItemsUploaded int    `json:"items_uploaded"`
}
