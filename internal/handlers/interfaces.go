package handlers

import (
	"context"
	"io"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// AccountStore captures the persistence operations required by the account handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// SessionManager issues, resolves and revokes account sessions.
type SessionManager interface {
	Create(ctx context.Context, accountID string) (models.Session, error)
	Resolve(ctx context.Context, secret string) (models.Session, error)
	Revoke(ctx context.Context, secret string) error
}

// DocumentStore captures persistence for collection documents.
type DocumentStore interface {
	Create(ctx context.Context, doc models.Document) error
	List(ctx context.Context, databaseID, collectionID string, plan remote.Plan) ([]models.Document, error)
}

// FileStore records metadata for uploaded files.
type FileStore interface {
	Create(ctx context.Context, file models.File) error
	Find(ctx context.Context, bucketID, fileID string) (models.File, error)
	Delete(ctx context.Context, bucketID, fileID string) error
}

// ObjectStore holds the contents of uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// publicURLer is implemented by object stores whose objects are directly reachable.
type publicURLer interface {
	PublicURL(key string) (string, bool)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
