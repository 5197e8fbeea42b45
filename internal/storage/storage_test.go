package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/MuhammadAbdiel/aora-app/internal/config"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	if err := store.Put(ctx, "files/f1", "video/mp4", strings.NewReader("frames"), 6); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, err := store.Get(ctx, "files/f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "frames" {
		t.Fatalf("unexpected contents %q", data)
	}

	if err := store.Delete(ctx, "files/f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "files/f1"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if err := store.Put(ctx, "", "", strings.NewReader(""), 0); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error when bucket is missing")
	}
}

func TestS3StoragePublicURL(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	store, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{
		Bucket:        "aora",
		Region:        "us-east-1",
		Endpoint:      "http://localhost:9000",
		PublicBaseURL: "https://cdn.aora.test/",
	})
	if err != nil {
		t.Fatalf("new s3 storage: %v", err)
	}

	url, ok := store.PublicURL("/files/f1")
	if !ok || url != "https://cdn.aora.test/files/f1" {
		t.Fatalf("unexpected public url %q %v", url, ok)
	}
}
