package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/db"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("AORA_SKIP_DB_TESTS") != "" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server, skipping database tests: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requireDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server unavailable")
	}
	resetDatabase(t)
}

func TestPostgresAccountRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	requireDatabase(t)

	repo := NewPostgresAccountRepository(testPool)

	account := models.Account{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		Name:         "alice",
		PasswordHash: "secret-hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}

	dup := account
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, account.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != account.ID || fetched.Name != account.Name || fetched.PasswordHash != account.PasswordHash {
		t.Fatalf("unexpected account fetched: %+v", fetched)
	}

	byID, err := repo.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != account.Email {
		t.Fatalf("unexpected account fetched by id: %+v", byID)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	requireDatabase(t)

	account := createTestAccount(t, NewPostgresAccountRepository(testPool), "owner@example.com")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := models.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Secret:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.Secret)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.AccountID != session.AccountID || loaded.ID != session.ID || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}

	loaded, err = store.Find(ctx, session.Secret)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}
	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt, time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.Secret); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.Secret); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.Secret); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func TestPostgresDocumentRepository_List(t *testing.T) {
	ctx := context.Background()
	requireDatabase(t)

	repo := NewPostgresDocumentRepository(testPool)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	posts := []struct {
		title   string
		creator string
	}{
		{"Sunrise over hills", "u1"},
		{"City at night", "u2"},
		{"Sunset 100%", "u1"},
	}
	for i, p := range posts {
		doc := models.Document{
			ID:           fmt.Sprintf("doc-%d", i),
			DatabaseID:   "aora",
			CollectionID: "videos",
			Data:         map[string]any{"title": p.title, "creator": p.creator},
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, doc); err != nil {
			t.Fatalf("create document %d: %v", i, err)
		}
	}

	dup := models.Document{ID: "doc-0", DatabaseID: "aora", CollectionID: "videos", Data: map[string]any{}}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
	}

	list := func(queries ...remote.Query) []string {
		t.Helper()
		plan, err := remote.Compile(queries)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		docs, err := repo.List(ctx, "aora", "videos", plan)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		return ids
	}

	assertIDs(t, list(), "doc-0", "doc-1", "doc-2")
	assertIDs(t, list(remote.OrderDesc(models.FieldCreatedAt)), "doc-2", "doc-1", "doc-0")
	assertIDs(t, list(remote.Equal("creator", "u1"), remote.OrderDesc(models.FieldCreatedAt)), "doc-2", "doc-0")
	assertIDs(t, list(remote.Search("title", "SUN")), "doc-0", "doc-2")
	assertIDs(t, list(remote.Search("title", "100%")), "doc-2")
	assertIDs(t, list(remote.Equal("$id", "doc-1", "doc-2")), "doc-1", "doc-2")
	assertIDs(t, list(remote.OrderDesc(models.FieldCreatedAt), remote.Limit(1)), "doc-2")

	plan, _ := remote.Compile(nil)
	docs, err := repo.List(ctx, "aora", "users", plan)
	if err != nil {
		t.Fatalf("list empty collection: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestPostgresFileRepository_CreateFindDelete(t *testing.T) {
	ctx := context.Background()
	requireDatabase(t)

	repo := NewPostgresFileRepository(testPool)
	file := models.File{
		ID:        uuid.NewString(),
		BucketID:  "files",
		AccountID: "account-1",
		Name:      "clip.mp4",
		MimeType:  "video/mp4",
		Size:      1024,
		CreatedAt: time.Now().UTC(),
	}

	if err := repo.Create(ctx, file); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := repo.Create(ctx, file); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate file, got %v", err)
	}

	loaded, err := repo.Find(ctx, file.BucketID, file.ID)
	if err != nil {
		t.Fatalf("find file: %v", err)
	}
	if loaded.Name != file.Name || loaded.AccountID != file.AccountID || loaded.MimeType != file.MimeType || loaded.Size != file.Size {
		t.Fatalf("unexpected file loaded: %+v", loaded)
	}

	if err := repo.Delete(ctx, file.BucketID, file.ID); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if err := repo.Delete(ctx, file.BucketID, file.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := db.Migrate(ctx, pool, filepath.Join("..", "..", "migrations"))
	return err
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE files, documents, sessions, accounts CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestAccount(t *testing.T, repo *PostgresAccountRepository, email string) models.Account {
	t.Helper()
	account := models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "password-hash",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return account
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, got)
		}
	}
}

func timesClose(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
