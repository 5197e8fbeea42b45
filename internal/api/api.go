// Package api defines the JSON wire format spoken between the Aora REST client and the
// self-hosted backing service.
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

const (
	// SessionHeader carries the session secret of an authenticated client.
	SessionHeader = "X-Aora-Session"
	// ProjectHeader names the backend project a request targets.
	ProjectHeader = "X-Aora-Project"
	// QueriesParam is repeated once per JSON-encoded query on document listings.
	QueriesParam = "queries[]"
)

// Error types reported in Error.Type.
const (
	TypeUnauthorized       = "user_unauthorized"
	TypeInvalidCredentials = "user_invalid_credentials"
	TypeNotFound           = "not_found"
	TypeConflict           = "conflict"
	TypeInvalidArgument    = "invalid_argument"
	TypeRateLimited        = "rate_limited"
	TypeInternal           = "internal_error"
)

// Error is the body of every non-2xx response.
type Error struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// Err maps a response error onto the remote error taxonomy.
func (e Error) Err() error {
	var sentinel error
	switch {
	case e.Type == TypeInvalidCredentials:
		sentinel = remote.ErrInvalidCredentials
	case e.Code == http.StatusUnauthorized || e.Type == TypeUnauthorized:
		sentinel = remote.ErrUnauthorized
	case e.Code == http.StatusNotFound:
		sentinel = remote.ErrNotFound
	case e.Code == http.StatusConflict:
		sentinel = remote.ErrConflict
	case e.Code == http.StatusBadRequest:
		sentinel = remote.ErrInvalidArgument
	default:
		sentinel = remote.ErrUnavailable
	}
	if e.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, e.Message)
}

// CreateAccountRequest is the body of POST /v1/account.
type CreateAccountRequest struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// CreateSessionRequest is the body of POST /v1/account/sessions/email.
type CreateSessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateDocumentRequest is the body of POST .../documents.
type CreateDocumentRequest struct {
	DocumentID string         `json:"documentId"`
	Data       map[string]any `json:"data"`
}

// Account is the public view of an account.
type Account struct {
	ID        string    `json:"$id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"$createdAt"`
}

// NewAccount renders an account without its credentials.
func NewAccount(a models.Account) Account {
	return Account{ID: a.ID, Email: a.Email, Name: a.Name, CreatedAt: a.CreatedAt}
}

// Model converts the wire form back into a domain account.
func (a Account) Model() models.Account {
	return models.Account{ID: a.ID, Email: a.Email, Name: a.Name, CreatedAt: a.CreatedAt}
}

// Session is a created session. Secret is only populated on creation.
type Session struct {
	ID        string    `json:"$id"`
	UserID    string    `json:"userId"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"$createdAt"`
	Expire    time.Time `json:"expire"`
}

// NewSession renders s including its secret.
func NewSession(s models.Session) Session {
	return Session{ID: s.ID, UserID: s.AccountID, Secret: s.Secret, CreatedAt: s.CreatedAt, Expire: s.ExpiresAt}
}

// Model converts the wire form back into a domain session.
func (s Session) Model() models.Session {
	return models.Session{ID: s.ID, AccountID: s.UserID, Secret: s.Secret, CreatedAt: s.CreatedAt, ExpiresAt: s.Expire}
}

// File is the metadata of an uploaded file.
type File struct {
	ID           string    `json:"$id"`
	BucketID     string    `json:"bucketId"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	SizeOriginal int64     `json:"sizeOriginal"`
	CreatedAt    time.Time `json:"$createdAt"`
}

// NewFile renders file metadata.
func NewFile(f models.File) File {
	return File{ID: f.ID, BucketID: f.BucketID, Name: f.Name, MimeType: f.MimeType, SizeOriginal: f.Size, CreatedAt: f.CreatedAt}
}

// Model converts the wire form back into domain file metadata.
func (f File) Model() models.File {
	return models.File{ID: f.ID, BucketID: f.BucketID, Name: f.Name, MimeType: f.MimeType, Size: f.SizeOriginal, CreatedAt: f.CreatedAt}
}

// DocumentList is the body of a document listing.
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Document is a document flattened into one object: system attributes are prefixed
// with '$' and sit beside the user data.
type Document map[string]any

const (
	attrID           = "$id"
	attrDatabaseID   = "$databaseId"
	attrCollectionID = "$collectionId"
	attrCreatedAt    = "$createdAt"
	attrUpdatedAt    = "$updatedAt"
)

// NewDocument flattens doc for the wire.
func NewDocument(doc models.Document) Document {
	out := make(Document, len(doc.Data)+5)
	for k, v := range doc.Data {
		out[k] = v
	}
	out[attrID] = doc.ID
	out[attrDatabaseID] = doc.DatabaseID
	out[attrCollectionID] = doc.CollectionID
	out[attrCreatedAt] = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	out[attrUpdatedAt] = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

// Model splits system attributes back out of the flattened form.
func (d Document) Model() (models.Document, error) {
	doc := models.Document{Data: make(map[string]any, len(d))}
	for k, v := range d {
		if !strings.HasPrefix(k, "$") {
			doc.Data[k] = v
		}
	}
	doc.ID, _ = d[attrID].(string)
	doc.DatabaseID, _ = d[attrDatabaseID].(string)
	doc.CollectionID, _ = d[attrCollectionID].(string)

	var err error
	if doc.CreatedAt, err = parseTime(d[attrCreatedAt]); err != nil {
		return models.Document{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if doc.UpdatedAt, err = parseTime(d[attrUpdatedAt]); err != nil {
		return models.Document{}, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return doc, nil
}

func parseTime(v any) (time.Time, error) {
	s, _ := v.(string)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
