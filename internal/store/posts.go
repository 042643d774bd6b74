package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/odpadki/internal/model"
)

// DefaultPostLimit is used by ListPosts when limit <= 0.
const DefaultPostLimit = 50

// CreatePost publishes a post on behalf of a user.
func CreatePost(ctx context.Context, db *sql.DB, userID, authorName, content, imageURL string) (*model.Post, error) {
	id := uuid.NewString()

	_, err := db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, author_name, content, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, authorName, content, nullString(imageURL), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", classify(err))
	}

	return GetPost(ctx, db, id)
}

// GetPost returns a post with its votes.
func GetPost(ctx context.Context, db *sql.DB, id string) (*model.Post, error) {
	p := &model.Post{}
	var imageURL sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, author_name, content, image_url, created_at
		 FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.AuthorName, &p.Content, &imageURL, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}
	p.ImageURL = imageURL.String

	posts := []model.Post{*p}
	if err := loadVotes(ctx, db, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPosts returns up to limit posts, newest first.
func ListPosts(ctx context.Context, db *sql.DB, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = DefaultPostLimit
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, author_name, content, image_url, created_at
		 FROM posts ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		var imageURL sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.AuthorName, &p.Content, &imageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		p.ImageURL = imageURL.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	rows.Close()

	if err := loadVotes(ctx, db, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// VotePost records a like (model.VoteLike) or dislike (model.VoteDislike).
// Repeating the same vote withdraws it; the opposite vote replaces it.
func VotePost(ctx context.Context, db *sql.DB, postID, userID string, vote int) (*model.Post, error) {
	if vote != model.VoteLike && vote != model.VoteDislike {
		return nil, fmt.Errorf("invalid vote %d", vote)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking post: %w", err)
	}

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT vote FROM post_votes WHERE post_id = ? AND user_id = ?`, postID, userID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return nil, fmt.Errorf("getting vote: %w", err)
	}

	if current == vote {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM post_votes WHERE post_id = ? AND user_id = ?`, postID, userID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_votes (post_id, user_id, vote) VALUES (?, ?, ?)
			 ON CONFLICT (post_id, user_id) DO UPDATE SET vote = excluded.vote`,
			postID, userID, vote,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("recording vote: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing vote: %w", classify(err))
	}

	return GetPost(ctx, db, postID)
}

// loadVotes fills the like/dislike sets of posts in place.
func loadVotes(ctx context.Context, db *sql.DB, posts []model.Post) error {
	byID := make(map[string]*model.Post, len(posts))
	for i := range posts {
		posts[i].LikedBy = []string{}
		posts[i].DislikedBy = []string{}
		byID[posts[i].ID] = &posts[i]
	}
	if len(posts) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(posts))
	args := make([]any, 0, len(posts))
	for _, p := range posts {
		placeholders = append(placeholders, "?")
		args = append(args, p.ID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT post_id, user_id, vote FROM post_votes
		 WHERE post_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY rowid`, args...,
	)
	if err != nil {
		return fmt.Errorf("listing votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, userID string
		var vote int
		if err := rows.Scan(&postID, &userID, &vote); err != nil {
			return fmt.Errorf("scanning vote: %w", err)
		}
		p, ok := byID[postID]
		if !ok {
			continue
		}
		if vote == model.VoteLike {
			p.LikedBy = append(p.LikedBy, userID)
		} else {
			p.DislikedBy = append(p.DislikedBy, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating votes: %w", err)
	}

	for _, p := range byID {
		p.Likes = len(p.LikedBy)
		p.Dislikes = len(p.DislikedBy)
	}
	return nil
}
