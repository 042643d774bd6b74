package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/erazemk/odpadki/internal/db"
	"github.com/erazemk/odpadki/internal/model"
)

func newTestUser(t *testing.T, database *sql.DB, email string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, "Tester", email, "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func recyclable(userID string) NewItem {
	return NewItem{
		UserID:               userID,
		ImageURL:             "data:image/jpeg;base64,AAAA",
		Description:          "plastic bottle",
		Classification:       model.ClassRecyclable,
		RecyclabilityScore:   85,
		ResaleValue:          2.50,
		DisposalInstructions: "Rinse and place in blue bin",
	}
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")

	item, err := CreateItem(ctx, database, recyclable(user.ID))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	want := &model.Item{
		ID:                   item.ID,
		UserID:               user.ID,
		ImageURL:             "data:image/jpeg;base64,AAAA",
		Description:          "plastic bottle",
		Classification:       model.ClassRecyclable,
		RecyclabilityScore:   85,
		ResaleValue:          2.50,
		DisposalInstructions: "Rinse and place in blue bin",
	}
	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Item{}, "CreatedAt", "UpdatedAt")); diff != "" {
		t.Errorf("GetItem mismatch (-want +got):\n%s", diff)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestCreateItemLinksOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")

	var ids []string
	for range 3 {
		item, err := CreateItem(ctx, database, recyclable(user.ID))
		if err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
		ids = append(ids, item.ID)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ItemsUploaded != len(got.Items) {
		t.Errorf("items_uploaded %d does not match item list length %d", got.ItemsUploaded, len(got.Items))
	}
	if diff := cmp.Diff(ids, got.Items); diff != "" {
		t.Errorf("item list mismatch (-want +got):\n%s", diff)
	}

	items, err := ListItemsByUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("ListItemsByUser: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
}

func TestCreateItemUnknownUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateItem(ctx, database, recyclable("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var n int
	database.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n)
	if n != 0 {
		t.Errorf("expected no items after failed create, got %d", n)
	}
}

func TestItemNotFound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := GetItem(ctx, database, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem: expected ErrNotFound, got %v", err)
	}
	if _, err := ListItemsByUser(ctx, database, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListItemsByUser: expected ErrNotFound, got %v", err)
	}
	if _, err := VerifyItem(ctx, database, "missing", "ref", 20); !errors.Is(err, ErrNotFound) {
		t.Errorf("VerifyItem: expected ErrNotFound, got %v", err)
	}
	desc := "x"
	if _, err := UpdateItem(ctx, database, "missing", ItemUpdate{Description: &desc}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateItem: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateItemPartial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")
	item, _ := CreateItem(ctx, database, recyclable(user.ID))

	class := model.ClassEWaste
	got, err := UpdateItem(ctx, database, item.ID, ItemUpdate{Classification: &class})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got.Classification != model.ClassEWaste {
		t.Errorf("expected E-Waste, got %q", got.Classification)
	}
	if got.Description != item.Description || got.RecyclabilityScore != item.RecyclabilityScore {
		t.Errorf("expected untouched fields to survive, got %+v", got)
	}
	if got.UpdatedAt.Before(item.UpdatedAt) {
		t.Errorf("expected updated_at to move forward")
	}
}

func TestVerifyItemCreditsOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")
	item, _ := CreateItem(ctx, database, recyclable(user.ID))

	verified, err := VerifyItem(ctx, database, item.ID, "/api/items/"+item.ID+"/video", 20)
	if err != nil {
		t.Fatalf("VerifyItem: %v", err)
	}
	if !verified.IsVerified || verified.PointsAwarded != 20 {
		t.Errorf("expected verified item worth 20, got %+v", verified)
	}
	if verified.VerificationVideoURL != "/api/items/"+item.ID+"/video" {
		t.Errorf("unexpected video url %q", verified.VerificationVideoURL)
	}

	_, err = VerifyItem(ctx, database, item.ID, "other", 20)
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}

	owner, _ := GetUser(ctx, database, user.ID)
	if owner.Points != 20 {
		t.Errorf("expected 20 points after repeat verify, got %d", owner.Points)
	}
	again, _ := GetItem(ctx, database, item.ID)
	if again.VerificationVideoURL != verified.VerificationVideoURL {
		t.Errorf("repeat verify changed video url to %q", again.VerificationVideoURL)
	}
}

func TestListUnverifiedItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")

	first, _ := CreateItem(ctx, database, recyclable(user.ID))
	second, _ := CreateItem(ctx, database, recyclable(user.ID))
	third, _ := CreateItem(ctx, database, recyclable(user.ID))
	if _, err := VerifyItem(ctx, database, second.ID, "ref", 20); err != nil {
		t.Fatalf("VerifyItem: %v", err)
	}

	items, err := ListUnverifiedItems(ctx, database, 0)
	if err != nil {
		t.Fatalf("ListUnverifiedItems: %v", err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if diff := cmp.Diff([]string{third.ID, first.ID}, ids); diff != "" {
		t.Errorf("unverified items mismatch (-want +got):\n%s", diff)
	}

	items, _ = ListUnverifiedItems(ctx, database, 1)
	if len(items) != 1 {
		t.Errorf("expected limit to apply, got %d items", len(items))
	}
}

func TestScanItemNormalizes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")
	item, _ := CreateItem(ctx, database, recyclable(user.ID))

	_, err := database.ExecContext(ctx,
		`UPDATE items SET classification = 'Compost', recyclability_score = 140, resale_value = -3
		 WHERE id = ?`, item.ID)
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Classification != "" {
		t.Errorf("expected unknown classification to read as empty, got %q", got.Classification)
	}
	if got.RecyclabilityScore != 100 || got.ResaleValue != 0 {
		t.Errorf("expected clamped values, got score=%d resale=%v", got.RecyclabilityScore, got.ResaleValue)
	}
}
