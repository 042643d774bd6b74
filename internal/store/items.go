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

const itemColumns = `id, user_id, image_url, description, classification, recyclability_score,
	resale_value, disposal_instructions, is_verified, verification_video_url, points_awarded,
	created_at, updated_at`

// DefaultUnverifiedLimit is used by ListUnverifiedItems when limit <= 0.
const DefaultUnverifiedLimit = 20

// NewItem holds the fields of a freshly classified item.
type NewItem struct {
	UserID               string
	ImageURL             string
	Description          string
	Classification       model.Classification
	RecyclabilityScore   int
	ResaleValue          float64
	DisposalInstructions string
}

// ItemUpdate is a partial item update. Nil fields are left unchanged.
type ItemUpdate struct {
	Description          *string
	Classification       *model.Classification
	RecyclabilityScore   *int
	ResaleValue          *float64
	DisposalInstructions *string
}

// CreateItem inserts an unverified item, appends it to the owner's item list
// and bumps the owner's upload count in a single transaction.
func CreateItem(ctx context.Context, db *sql.DB, n NewItem) (*model.Item, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer tx.Rollback()

	if err := userExists(ctx, tx, n.UserID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, user_id, image_url, description, classification,
		 recyclability_score, resale_value, disposal_instructions, is_verified,
		 points_awarded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		id, n.UserID, n.ImageURL, nullString(n.Description), string(n.Classification),
		n.RecyclabilityScore, n.ResaleValue, n.DisposalInstructions, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting item: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_items (user_id, item_id, seq)
		 SELECT ?, ?, COALESCE(MAX(seq), 0) + 1 FROM user_items WHERE user_id = ?`,
		n.UserID, id, n.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("linking item to user: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET items_uploaded = items_uploaded + 1, updated_at = ? WHERE id = ?`,
		now, n.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting upload: %w", classify(err))
	}

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", classify(err))
	}
	return item, nil
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItemsByUser returns every item owned by userID. Order is unspecified.
func ListItemsByUser(ctx context.Context, db *sql.DB, userID string) ([]model.Item, error) {
	if err := userExists(ctx, db, userID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListUnverifiedItems returns up to limit unverified items, newest first.
func ListUnverifiedItems(ctx context.Context, db *sql.DB, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = DefaultUnverifiedLimit
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE is_verified = 0
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing unverified items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// UpdateItem applies a partial update and stamps updated_at.
func UpdateItem(ctx context.Context, db *sql.DB, id string, u ItemUpdate) (*model.Item, error) {
	var sets []string
	var args []any

	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullString(*u.Description))
	}
	if u.Classification != nil {
		sets = append(sets, "classification = ?")
		args = append(args, string(*u.Classification))
	}
	if u.RecyclabilityScore != nil {
		sets = append(sets, "recyclability_score = ?")
		args = append(args, *u.RecyclabilityScore)
	}
	if u.ResaleValue != nil {
		sets = append(sets, "resale_value = ?")
		args = append(args, *u.ResaleValue)
	}
	if u.DisposalInstructions != nil {
		sets = append(sets, "disposal_instructions = ?")
		args = append(args, *u.DisposalInstructions)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := db.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", classify(err))
	}
	if err := expectOne(res, "item "+id); err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// VerifyItem marks an item verified, records the video reference and credits
// the owner with points. Both writes happen in one transaction, and only if
// the item was still unverified; otherwise ErrAlreadyVerified is returned and
// nothing changes.
func VerifyItem(ctx context.Context, db *sql.DB, id, videoRef string, points int64) (*model.Item, error) {
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", classify(err))
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx,
		`UPDATE items SET is_verified = 1, verification_video_url = ?, points_awarded = ?, updated_at = ?
		 WHERE id = ? AND is_verified = 0
		 RETURNING user_id`,
		videoRef, points, now, id,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the item does not exist or someone got there first.
		if _, err := getItem(ctx, tx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("item %s: %w", id, ErrAlreadyVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("verifying item: %w", classify(err))
	}

	if _, err := addPoints(ctx, tx, userID, points); err != nil {
		return nil, err
	}

	item, err := getItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing verification: %w", classify(err))
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// scanItem reads an items row and normalizes it: unknown classifications
// become empty, scores are clamped to 0..100 and money to >= 0.
func scanItem(s scanner) (*model.Item, error) {
	item := &model.Item{}
	var description, videoURL sql.NullString
	var classification string
	if err := s.Scan(&item.ID, &item.UserID, &item.ImageURL, &description, &classification,
		&item.RecyclabilityScore, &item.ResaleValue, &item.DisposalInstructions, &item.IsVerified,
		&videoURL, &item.PointsAwarded, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}

	item.Description = description.String
	item.VerificationVideoURL = videoURL.String
	item.Classification = knownClassification(classification)
	item.RecyclabilityScore = min(max(item.RecyclabilityScore, 0), 100)
	item.ResaleValue = max(item.ResaleValue, 0)
	item.PointsAwarded = max(item.PointsAwarded, 0)
	return item, nil
}

func knownClassification(s string) model.Classification {
	switch c := model.Classification(s); c {
	case model.ClassRecyclable, model.ClassEWaste, model.ClassWaste:
		return c
	}
	return ""
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
