package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/odpadki/internal/db"
	"github.com/erazemk/odpadki/internal/model"
)

func TestCreateAndListPosts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")

	first, err := CreatePost(ctx, database, user.ID, user.Name, "Sorted my batteries", "")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	second, err := CreatePost(ctx, database, user.ID, user.Name, "Found a repair cafe", "")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	posts, err := ListPosts(ctx, database, 0)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", posts)
	}
	if posts[0].LikedBy == nil || posts[0].DislikedBy == nil {
		t.Error("expected empty, non-nil vote sets")
	}
}

func TestVotePostToggles(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	author := newTestUser(t, database, "ana@example.com")
	voter := newTestUser(t, database, "bor@example.com")
	post, _ := CreatePost(ctx, database, author.ID, author.Name, "hello", "")

	steps := []struct {
		vote     int
		liked    []string
		disliked []string
	}{
		{model.VoteLike, []string{voter.ID}, []string{}},
		{model.VoteLike, []string{}, []string{}},
		{model.VoteDislike, []string{}, []string{voter.ID}},
		{model.VoteLike, []string{voter.ID}, []string{}},
	}

	for i, s := range steps {
		got, err := VotePost(ctx, database, post.ID, voter.ID, s.vote)
		if err != nil {
			t.Fatalf("step %d: VotePost: %v", i, err)
		}
		if diff := cmp.Diff(s.liked, got.LikedBy); diff != "" {
			t.Errorf("step %d: liked_by (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(s.disliked, got.DislikedBy); diff != "" {
			t.Errorf("step %d: disliked_by (-want +got):\n%s", i, diff)
		}
		if got.Likes != len(s.liked) || got.Dislikes != len(s.disliked) {
			t.Errorf("step %d: counts %d/%d do not match sets", i, got.Likes, got.Dislikes)
		}
	}
}

func TestVotePostErrors(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, database, "ana@example.com")
	post, _ := CreatePost(ctx, database, user.ID, user.Name, "hello", "")

	if _, err := VotePost(ctx, database, "missing", user.ID, model.VoteLike); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := VotePost(ctx, database, post.ID, user.ID, 0); err == nil {
		t.Error("expected error for invalid vote")
	}
}
