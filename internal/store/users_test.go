package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/odpadki/internal/db"
	"github.com/erazemk/odpadki/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Ana", "Ana@Example.com", "hash123", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %q", user.Email)
	}
	if user.Points != 0 || user.ItemsUploaded != 0 || len(user.Items) != 0 {
		t.Errorf("expected empty account, got %+v", user)
	}

	got, err := GetUserByEmail(ctx, database, "ANA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected id %q, got %q", user.ID, got.ID)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "Ana", "ana@example.com", "h", model.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	_, err := CreateUser(ctx, database, "Other", "ana@example.com", "h", model.RoleUser)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := GetUser(ctx, database, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser: expected ErrNotFound, got %v", err)
	}
	if _, err := GetUserByEmail(ctx, database, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail: expected ErrNotFound, got %v", err)
	}
}

func TestAddPoints(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "Ana", "ana@example.com", "h", model.RoleUser)

	total, err := AddPoints(ctx, database, user.ID, 20)
	if err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	total, err = AddPoints(ctx, database, user.ID, 50)
	if err != nil {
		t.Fatalf("AddPoints: %v", err)
	}
	if total != 70 {
		t.Errorf("expected 70 points, got %d", total)
	}

	if _, err := AddPoints(ctx, database, "missing", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "Ana", "ana@example.com", "old", model.RoleUser)

	if err := UpdateUserName(ctx, database, user.ID, "Ana K."); err != nil {
		t.Fatalf("UpdateUserName: %v", err)
	}
	if err := UpdateUserPassword(ctx, database, user.ID, "new"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	if err := UpdateUserRole(ctx, database, user.ID, model.RoleAdmin); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Name != "Ana K." || got.PasswordHash != "new" || got.Role != model.RoleAdmin {
		t.Errorf("unexpected user after updates: %+v", got)
	}

	if err := UpdateUserName(ctx, database, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScanUserNormalizes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "Ana", "ana@example.com", "h", model.RoleUser)

	// Rows written by older clients may carry blank names or negative totals.
	_, err := database.ExecContext(ctx,
		`UPDATE users SET name = '  ', points = -10, items_uploaded = -1 WHERE id = ?`, user.ID)
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Anonymous" {
		t.Errorf("expected Anonymous, got %q", got.Name)
	}
	if got.Points != 0 || got.ItemsUploaded != 0 {
		t.Errorf("expected clamped counters, got points=%d items=%d", got.Points, got.ItemsUploaded)
	}
}

func TestListUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "Ana", "ana@example.com", "h", model.RoleAdmin)
	CreateUser(ctx, database, "Bor", "bor@example.com", "h", model.RoleUser)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}
