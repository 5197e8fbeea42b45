package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/MuhammadAbdiel/aora-app/internal/auth"
	"github.com/MuhammadAbdiel/aora-app/internal/backend"
	"github.com/MuhammadAbdiel/aora-app/internal/handlers"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/repositories"
	objstorage "github.com/MuhammadAbdiel/aora-app/internal/storage"
)

type fixture struct {
	server   *httptest.Server
	sessions *auth.InMemorySessionStore
	objects  *objstorage.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: auth.NewInMemorySessionStore(),
		objects:  objstorage.NewMemoryStorage(),
	}
	router := mux.NewRouter()
	handlers.RegisterRoutes(router, handlers.Dependencies{
		Accounts:  repositories.NewInMemoryAccountRepository(),
		Sessions:  auth.NewManager(time.Hour, f.sessions),
		Documents: repositories.NewInMemoryDocumentRepository(),
		Files:     repositories.NewInMemoryFileRepository(),
		Objects:   f.objects,
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) client(t *testing.T, store SessionStore) *Client {
	t.Helper()
	c, err := New(Config{Endpoint: f.server.URL + "/v1", ProjectID: "aora", Platform: "com.test.aora", Sessions: store})
	require.NoError(t, err)
	return c
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "/v1"} {
		_, err := New(Config{Endpoint: endpoint})
		require.Error(t, err, "endpoint %q", endpoint)
	}
}

func TestAccountSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &MemorySessionStore{}
	rc := f.client(t, store).Remote()

	_, err := rc.Accounts.Get(ctx)
	require.ErrorIs(t, err, remote.ErrUnauthorized)

	account, err := rc.Accounts.Create(ctx, remote.UniqueID, "alice@x.com", "secret1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.Equal(t, "alice", account.Name)

	_, err = rc.Accounts.Create(ctx, remote.UniqueID, "alice@x.com", "secret1", "alice")
	require.ErrorIs(t, err, remote.ErrConflict)

	_, err = rc.Accounts.CreateEmailPasswordSession(ctx, "alice@x.com", "wrong")
	require.ErrorIs(t, err, remote.ErrInvalidCredentials)

	first, err := rc.Accounts.CreateEmailPasswordSession(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	secret, _ := store.Load()
	require.Equal(t, first.Secret, secret)

	got, err := rc.Accounts.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)

	second, err := rc.Accounts.CreateEmailPasswordSession(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)
	require.Equal(t, 1, f.sessions.Len(), "signing in again must replace the previous session")

	require.NoError(t, rc.Accounts.DeleteSession(ctx, remote.CurrentSession))
	secret, _ = store.Load()
	require.Empty(t, secret)
	require.Equal(t, 0, f.sessions.Len())

	_, err = rc.Accounts.Get(ctx)
	require.ErrorIs(t, err, remote.ErrUnauthorized)
}

func TestDeleteSessionClearsStaleSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &MemorySessionStore{}
	require.NoError(t, store.Save("revoked-elsewhere"))
	rc := f.client(t, store).Remote()

	err := rc.Accounts.DeleteSession(ctx, remote.CurrentSession)
	require.ErrorIs(t, err, remote.ErrUnauthorized)
	secret, _ := store.Load()
	require.Empty(t, secret)
}

func TestDocumentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rc := f.client(t, nil).Remote()

	_, err := rc.Databases.CreateDocument(ctx, "aora", "videos", remote.UniqueID, map[string]any{"title": "x"})
	require.ErrorIs(t, err, remote.ErrUnauthorized)

	_, err = rc.Accounts.Create(ctx, remote.UniqueID, "bob@x.com", "secret1", "bob")
	require.NoError(t, err)
	_, err = rc.Accounts.CreateEmailPasswordSession(ctx, "bob@x.com", "secret1")
	require.NoError(t, err)

	for _, title := range []string{"Sunset timelapse", "City lights", "Sunrise"} {
		doc, err := rc.Databases.CreateDocument(ctx, "aora", "videos", remote.UniqueID, map[string]any{"title": title, "creator": "bob"})
		require.NoError(t, err)
		require.Equal(t, "videos", doc.CollectionID)
		require.Equal(t, title, doc.String("title"))
		require.False(t, doc.CreatedAt.IsZero())
	}

	list, err := rc.Databases.ListDocuments(ctx, "aora", "videos", remote.Search("title", "sun"))
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)

	list, err = rc.Databases.ListDocuments(ctx, "aora", "videos", remote.Limit(1))
	require.NoError(t, err)
	require.Len(t, list.Documents, 1)

	_, err = rc.Databases.ListDocuments(ctx, "aora", "videos", remote.Query{Method: "regex", Attribute: "title"})
	require.ErrorIs(t, err, remote.ErrInvalidArgument)
}

func TestFilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rc := f.client(t, nil).Remote()

	_, err := rc.Accounts.Create(ctx, remote.UniqueID, "carol@x.com", "secret1", "carol")
	require.NoError(t, err)
	_, err = rc.Accounts.CreateEmailPasswordSession(ctx, "carol@x.com", "secret1")
	require.NoError(t, err)

	file, err := rc.Storage.CreateFile(ctx, "files", "clip", remote.Asset{
		Name:     "clip.mp4",
		MimeType: "video/mp4",
		Size:     5,
		Body:     strings.NewReader("video"),
	})
	require.NoError(t, err)
	require.Equal(t, "clip", file.ID)
	require.Equal(t, "video/mp4", file.MimeType)
	require.Equal(t, int64(5), file.Size)
	require.Equal(t, 1, f.objects.Len())

	_, err = rc.Storage.CreateFile(ctx, "files", "clip", remote.Asset{Name: "clip.mp4", Body: strings.NewReader("again")})
	require.ErrorIs(t, err, remote.ErrConflict)

	viewURL := rc.Storage.FileViewURL("files", "clip")
	require.True(t, strings.HasPrefix(viewURL, f.server.URL+"/v1/storage/buckets/files/files/clip/view"), viewURL)
	resp, err := http.Get(viewURL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "video", string(body))

	require.NoError(t, rc.Storage.DeleteFile(ctx, "files", "clip"))
	require.ErrorIs(t, rc.Storage.DeleteFile(ctx, "files", "clip"), remote.ErrNotFound)
	require.Equal(t, 0, f.objects.Len())
}

func TestServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/v1"
	srv.Close()

	c, err := New(Config{Endpoint: endpoint, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.Remote().Accounts.Get(context.Background())
	require.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestCanceledContextIsReturned(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client(t, nil).Remote().Accounts.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFileSessionStore(t *testing.T) {
	store := &FileSessionStore{Path: filepath.Join(t.TempDir(), "nested", "session.json")}

	secret, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, secret)

	require.NoError(t, store.Save("s3cr3t"))
	reopened := &FileSessionStore{Path: store.Path}
	secret, err = reopened.Load()
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", secret)

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear())
	secret, err = store.Load()
	require.NoError(t, err)
	require.Empty(t, secret)
}

func TestBackendClientOverREST(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client := backend.NewClient(f.client(t, nil).Remote(), backend.Config{
		DatabaseID:        "aora",
		UserCollectionID:  "users",
		VideoCollectionID: "videos",
		BucketID:          "files",
	})

	profile, err := client.CreateAccountAndProfile(ctx, "dana", "dana@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "dana", profile.Username)

	probe := client.ProbeCurrentProfile(ctx)
	require.Equal(t, backend.ProbeAuthenticated, probe.Outcome)
	require.Equal(t, profile.AccountID, probe.Profile.AccountID)

	post, err := client.UploadPost(ctx, backend.UploadInput{
		Title:     "First clip",
		Prompt:    "a cat surfing",
		CreatorID: profile.ID,
		Video:     remote.Asset{Name: "clip.mp4", MimeType: "video/mp4", Size: 4, Body: strings.NewReader("clip")},
		Thumbnail: remote.Asset{Name: "thumb.png", MimeType: "image/png", Size: 5, Body: strings.NewReader("thumb")},
	})
	require.NoError(t, err)
	require.Contains(t, post.Video, "/storage/buckets/files/files/")
	require.Contains(t, post.Thumbnail, "width=2000")
	require.Equal(t, 2, f.objects.Len())

	mine, err := client.ListPostsByCreator(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Creator)
	require.Equal(t, "dana", mine[0].Creator.Username)

	found, err := client.SearchPosts(ctx, "first")
	require.NoError(t, err)
	require.Equal(t, []string{post.ID}, postIDs(found))

	require.NoError(t, client.SignOut(ctx))
	require.Equal(t, backend.ProbeNoSession, client.ProbeCurrentProfile(ctx).Outcome)
}

func postIDs(posts []models.VideoPost) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}
