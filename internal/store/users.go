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

const userColumns = `id, name, email, password_hash, role, points, items_uploaded, created_at, updated_at`

// CreateUser creates a new user with zero points and no items.
func CreateUser(ctx context.Context, db *sql.DB, name, email, passwordHash, role string) (*model.User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, strings.ToLower(email), passwordHash, role, now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", classify(err))
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, including the ids of the items they uploaded.
func GetUser(ctx context.Context, db *sql.DB, id string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Items, err = userItemIDs(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail returns a user by email (case-insensitive).
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	u.Items, err = userItemIDs(ctx, db, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users. Item id lists are not loaded.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserName changes a user's display name.
func UpdateUserName(ctx context.Context, db *sql.DB, id, name string) error {
	return updateUser(ctx, db, id, `name = ?`, name)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id, passwordHash string) error {
	return updateUser(ctx, db, id, `password_hash = ?`, passwordHash)
}

// UpdateUserRole changes a user's role.
func UpdateUserRole(ctx context.Context, db *sql.DB, id, role string) error {
	return updateUser(ctx, db, id, `role = ?`, role)
}

func updateUser(ctx context.Context, db *sql.DB, id, set string, value any) error {
	res, err := db.ExecContext(ctx,
		`UPDATE users SET `+set+`, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", classify(err))
	}
	return expectOne(res, "user "+id)
}

// AddPoints credits delta points to a user and returns the new total.
// No range validation is done here; callers decide what a valid delta is.
func AddPoints(ctx context.Context, db *sql.DB, id string, delta int64) (int64, error) {
	return addPoints(ctx, db, id, delta)
}

func addPoints(ctx context.Context, q querier, id string, delta int64) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`UPDATE users SET points = points + ?, updated_at = ? WHERE id = ? RETURNING points`,
		delta, time.Now().UTC(), id,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("adding points: %w", classify(err))
	}
	return total, nil
}

func userExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}
	return nil
}

func userItemIDs(ctx context.Context, q querier, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT item_id FROM user_items WHERE user_id = ? ORDER BY seq`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user items: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanUser reads a users row and normalizes out-of-range values.
func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Points, &u.ItemsUploaded, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	if strings.TrimSpace(u.Name) == "" {
		u.Name = "Anonymous"
	}
	if u.Role != model.RoleAdmin {
		u.Role = model.RoleUser
	}
	u.Points = max(u.Points, 0)
	u.ItemsUploaded = max(u.ItemsUploaded, 0)
	return u, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
