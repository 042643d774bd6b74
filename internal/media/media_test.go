package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/erazemk/odpadki/internal/db"
	"github.com/erazemk/odpadki/internal/model"
	"github.com/erazemk/odpadki/internal/store"
)

func TestDBStore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, database, "Ana", "ana@example.com", "h", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	item, err := store.CreateItem(ctx, database, store.NewItem{UserID: user.ID, Classification: model.ClassRecyclable})
	if err != nil {
		t.Fatal(err)
	}

	s := NewDBStore(database)
	ref, err := s.Put(ctx, item.ID, []byte("video"), "video/mp4")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "/api/items/"+item.ID+"/video" {
		t.Errorf("unexpected ref %q", ref)
	}

	data, mime, err := s.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "video" || mime != "video/mp4" {
		t.Errorf("got %q %q", data, mime)
	}
}

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	data, ok := f.objects[k]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String(f.types[k]),
	}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
	s := &S3Store{client: fake, bucket: "odpadki", prefix: "prod"}
	ctx := context.Background()

	ref, err := s.Put(ctx, "item-1", []byte("clip"), "video/webm")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "s3://odpadki/prod/videos/item-1" {
		t.Errorf("unexpected ref %q", ref)
	}

	data, mime, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "clip" || mime != "video/webm" {
		t.Errorf("got %q %q", data, mime)
	}

	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
