// Package remote defines the fixed operation set of the hosted identity, document and
// file service that the Aora client talks to.
package remote

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// CurrentSession addresses the session held by the calling client.
const CurrentSession = "current"

// UniqueID asks the service to generate an identifier on the caller's behalf.
const UniqueID = "unique()"

// ResolveID returns id, or a freshly generated identifier when id is empty or UniqueID.
func ResolveID(id string) string {
	if id == "" || id == UniqueID {
		return uuid.NewString()
	}
	return id
}

// Accounts manages the calling client's account and session.
type Accounts interface {
	Create(ctx context.Context, accountID, email, password, name string) (models.Account, error)
	Get(ctx context.Context) (models.Account, error)
	CreateEmailPasswordSession(ctx context.Context, email, password string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Databases stores and queries documents grouped into collections.
type Databases interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]any) (models.Document, error)
	ListDocuments(ctx context.Context, databaseID, collectionID string, queries ...Query) (DocumentList, error)
}

// Storage holds uploaded files and renders their public URLs.
type Storage interface {
	CreateFile(ctx context.Context, bucketID, fileID string, asset Asset) (models.File, error)
	DeleteFile(ctx context.Context, bucketID, fileID string) error
	FileViewURL(bucketID, fileID string) string
	FilePreviewURL(bucketID, fileID string, opts PreviewOptions) string
}

// Avatars renders generated avatar images.
type Avatars interface {
	InitialsURL(name string) string
}

// Client groups the services exposed by one connection to the backend.
type Client struct {
	Accounts  Accounts
	Databases Databases
	Storage   Storage
	Avatars   Avatars
}

// DocumentList is the result of a document listing.
type DocumentList struct {
	Total     int
	Documents []models.Document
}

// Asset is a local file queued for upload.
type Asset struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// PreviewOptions controls the transformation applied to an image preview.
type PreviewOptions struct {
	Width   int
	Height  int
	Gravity string
	Quality int
}

// Values encodes the options as URL query parameters, omitting zero values.
func (o PreviewOptions) Values() url.Values {
	v := url.Values{}
	if o.Width > 0 {
		v.Set("width", strconv.Itoa(o.Width))
	}
	if o.Height > 0 {
		v.Set("height", strconv.Itoa(o.Height))
	}
	if o.Gravity != "" {
		v.Set("gravity", o.Gravity)
	}
	if o.Quality > 0 {
		v.Set("quality", strconv.Itoa(o.Quality))
	}
	return v
}
