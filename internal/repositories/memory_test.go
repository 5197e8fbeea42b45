package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

func TestInMemoryAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAccountRepository()

	account := models.Account{ID: "a1", Email: "alice@example.com", Name: "alice"}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	dup := models.Account{ID: "a2", Email: "ALICE@example.com"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil || fetched.ID != "a1" {
		t.Fatalf("find by email: %+v %v", fetched, err)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDocumentRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"alpha", "beta", "alphabet"} {
		doc := models.Document{
			ID:           title,
			DatabaseID:   "aora",
			CollectionID: "videos",
			Data:         map[string]any{"title": title},
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if err := repo.Create(ctx, models.Document{ID: "beta", DatabaseID: "aora", CollectionID: "videos"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	plan, err := remote.Compile([]remote.Query{remote.Search("title", "alpha"), remote.OrderDesc(models.FieldCreatedAt)})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	docs, err := repo.List(ctx, "aora", "videos", plan)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "alphabet" || docs[1].ID != "alpha" {
		t.Fatalf("unexpected documents: %+v", docs)
	}

	docs[0].Data["title"] = "mutated"
	again, _ := repo.List(ctx, "aora", "videos", plan)
	if again[0].String("title") != "alphabet" {
		t.Fatal("listing must not expose stored document data")
	}
}

func TestInMemoryFileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryFileRepository()

	file := models.File{ID: "f1", BucketID: "files", Name: "clip.mp4"}
	if err := repo.Create(ctx, file); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, file); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := repo.Find(ctx, "other", "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound in other bucket, got %v", err)
	}
	if err := repo.Delete(ctx, "files", "f1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "files", "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildDocumentQuery(t *testing.T) {
	plan, err := remote.Compile([]remote.Query{
		remote.Equal("creator", "u1", "u2"),
		remote.Search("title", "50%_off"),
		remote.OrderDesc(models.FieldCreatedAt),
		remote.Limit(7),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	query, args := buildDocumentQuery("aora", "videos", plan)

	for _, fragment := range []string{
		"database_id = $1 AND collection_id = $2",
		"(data->>$3::TEXT) = ANY($4::TEXT[])",
		"(data->>$5::TEXT) ILIKE $6::TEXT",
		"ORDER BY created_at DESC, created_at ASC, id ASC",
		"LIMIT $7",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected %q in query %q", fragment, query)
		}
	}

	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d: %v", len(args), args)
	}
	if args[2] != "creator" || args[4] != "title" {
		t.Fatalf("attribute names must be bound as parameters: %v", args)
	}
	if args[5] != `%50\%\_off%` {
		t.Fatalf("expected escaped search pattern, got %v", args[5])
	}
	if args[6] != 7 {
		t.Fatalf("expected limit 7, got %v", args[6])
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation must not map to conflict")
	}
	if isUniqueViolation(errors.New("boom")) {
		t.Fatal("plain errors must not map to conflict")
	}
}
