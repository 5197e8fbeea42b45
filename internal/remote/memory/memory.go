// Package memory provides an in-process implementation of the remote service, used by
// tests and by local development without a running backend.
package memory

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// Operation names passed to a FaultFunc.
const (
	OpCreateAccount  = "account.create"
	OpGetAccount     = "account.get"
	OpCreateSession  = "session.create"
	OpDeleteSession  = "session.delete"
	OpCreateDocument = "documents.create"
	OpListDocuments  = "documents.list"
	OpCreateFile     = "files.create"
	OpDeleteFile     = "files.delete"
)

// FaultFunc lets tests fail an operation. target is the collection id for document
// operations, the asset or file name for file operations and the email for account
// operations.
type FaultFunc func(op, target string) error

// Service holds the shared state of an in-memory backend. Multiple clients may connect
// to the same Service, each with its own current session.
type Service struct {
	URLs       remote.URLBuilder
	SessionTTL time.Duration
	Fault      FaultFunc

	mu        sync.Mutex
	now       func() time.Time
	accounts  map[string]models.Account
	byEmail   map[string]string
	sessions  map[string]models.Session
	documents map[string][]models.Document
	files     map[string]storedFile
}

type storedFile struct {
	meta models.File
	data []byte
}

// NewService constructs an empty in-memory backend.
func NewService(urls remote.URLBuilder) *Service {
	return &Service{
		URLs:       urls,
		SessionTTL: 365 * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
		accounts:   make(map[string]models.Account),
		byEmail:    make(map[string]string),
		sessions:   make(map[string]models.Session),
		documents:  make(map[string][]models.Document),
		files:      make(map[string]storedFile),
	}
}

// WithNowFunc overrides the clock. Useful for tests.
func (s *Service) WithNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// NewClient returns a client bound to this service with no active session.
func (s *Service) NewClient() *Client {
	return &Client{svc: s}
}

// Remote exposes c through the remote service interfaces.
func (c *Client) Remote() remote.Client {
	return remote.Client{Accounts: c, Databases: c, Storage: c, Avatars: c}
}

// SessionCount reports how many sessions are active across all clients.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// DocumentCount reports how many documents a collection holds.
func (s *Service) DocumentCount(databaseID, collectionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.documents[collectionKey(databaseID, collectionID)])
}

// FileCount reports how many files a bucket holds.
func (s *Service) FileCount(bucketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.files {
		if f.meta.BucketID == bucketID {
			n++
		}
	}
	return n
}

// ExpireSessions invalidates every active session, as the backend would on expiry.
func (s *Service) ExpireSessions() {
	s.mu.Lock()
	s.sessions = make(map[string]models.Session)
	s.mu.Unlock()
}

func (s *Service) fault(op, target string) error {
	if s.Fault == nil {
		return nil
	}
	return s.Fault(op, target)
}

// Client is one device's connection to a Service.
type Client struct {
	svc *Service

	mu     sync.Mutex
	secret string
}

// Create registers a new account.
func (c *Client) Create(_ context.Context, accountID, email, password, name string) (models.Account, error) {
	s := c.svc
	if err := s.fault(OpCreateAccount, email); err != nil {
		return models.Account{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.Account{}, fmt.Errorf("%w: email and password are required", remote.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return models.Account{}, remote.ErrConflict
	}
	id := remote.ResolveID(accountID)
	if _, exists := s.accounts[id]; exists {
		return models.Account{}, remote.ErrConflict
	}

	account := models.Account{
		ID:           id,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	s.accounts[id] = account
	s.byEmail[email] = id

	account.PasswordHash = ""
	return account, nil
}

// Get returns the account of the client's current session.
func (c *Client) Get(_ context.Context) (models.Account, error) {
	s := c.svc
	if err := s.fault(OpGetAccount, ""); err != nil {
		return models.Account{}, err
	}

	secret := c.currentSecret()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.lookupLocked(secret)
	if !ok {
		return models.Account{}, remote.ErrUnauthorized
	}
	account, ok := s.accounts[session.AccountID]
	if !ok {
		return models.Account{}, remote.ErrUnauthorized
	}
	account.PasswordHash = ""
	return account, nil
}

// CreateEmailPasswordSession authenticates the client. A session already held by the
// client is replaced.
func (c *Client) CreateEmailPasswordSession(_ context.Context, email, password string) (models.Session, error) {
	s := c.svc
	if err := s.fault(OpCreateSession, email); err != nil {
		return models.Session{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	id, ok := s.byEmail[email]
	account := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		return models.Session{}, remote.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Session{}, remote.ErrInvalidCredentials
	}

	secret, err := randomSecret()
	if err != nil {
		return models.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, c.secret)

	now := s.now()
	session := models.Session{
		ID:        remote.ResolveID(remote.UniqueID),
		AccountID: account.ID,
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(s.SessionTTL),
	}
	s.sessions[secret] = session
	c.secret = secret

	return session, nil
}

// DeleteSession removes the client's current session. Only remote.CurrentSession and
// the id of the current session are accepted.
func (c *Client) DeleteSession(_ context.Context, sessionID string) error {
	s := c.svc
	if err := s.fault(OpDeleteSession, sessionID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.lookupLocked(c.secret)
	if !ok {
		c.secret = ""
		return remote.ErrUnauthorized
	}
	if sessionID != remote.CurrentSession && sessionID != session.ID {
		return remote.ErrNotFound
	}

	delete(s.sessions, c.secret)
	c.secret = ""
	return nil
}

// CreateDocument stores a document in a collection. Writes require a session.
func (c *Client) CreateDocument(_ context.Context, databaseID, collectionID, documentID string, data map[string]any) (models.Document, error) {
	s := c.svc
	if err := s.fault(OpCreateDocument, collectionID); err != nil {
		return models.Document{}, err
	}

	secret := c.currentSecret()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupLocked(secret); !ok {
		return models.Document{}, remote.ErrUnauthorized
	}

	key := collectionKey(databaseID, collectionID)
	id := remote.ResolveID(documentID)
	for _, existing := range s.documents[key] {
		if existing.ID == id {
			return models.Document{}, remote.ErrConflict
		}
	}

	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}

	now := s.now()
	doc := models.Document{
		ID:           id,
		DatabaseID:   databaseID,
		CollectionID: collectionID,
		Data:         copied,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.documents[key] = append(s.documents[key], doc)
	return doc, nil
}

// ListDocuments returns documents of a collection matching queries.
func (c *Client) ListDocuments(_ context.Context, databaseID, collectionID string, queries ...remote.Query) (remote.DocumentList, error) {
	s := c.svc
	if err := s.fault(OpListDocuments, collectionID); err != nil {
		return remote.DocumentList{}, err
	}

	plan, err := remote.Compile(queries)
	if err != nil {
		return remote.DocumentList{}, err
	}

	s.mu.Lock()
	docs := append([]models.Document(nil), s.documents[collectionKey(databaseID, collectionID)]...)
	s.mu.Unlock()

	matched := plan.Apply(docs)
	return remote.DocumentList{Total: len(matched), Documents: matched}, nil
}

// CreateFile stores an uploaded asset in a bucket.
func (c *Client) CreateFile(_ context.Context, bucketID, fileID string, asset remote.Asset) (models.File, error) {
	s := c.svc
	if err := s.fault(OpCreateFile, asset.Name); err != nil {
		return models.File{}, err
	}
	if asset.Body == nil {
		return models.File{}, fmt.Errorf("%w: asset body is required", remote.ErrInvalidArgument)
	}

	data, err := io.ReadAll(asset.Body)
	if err != nil {
		return models.File{}, fmt.Errorf("read asset %s: %w", asset.Name, err)
	}

	secret := c.currentSecret()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.lookupLocked(secret)
	if !ok {
		return models.File{}, remote.ErrUnauthorized
	}

	id := remote.ResolveID(fileID)
	key := fileKey(bucketID, id)
	if _, exists := s.files[key]; exists {
		return models.File{}, remote.ErrConflict
	}

	meta := models.File{
		ID:        id,
		BucketID:  bucketID,
		AccountID: session.AccountID,
		Name:      asset.Name,
		MimeType:  asset.MimeType,
		Size:      int64(len(data)),
		CreatedAt: s.now(),
	}
	s.files[key] = storedFile{meta: meta, data: data}
	return meta, nil
}

// DeleteFile removes a file from a bucket. Only the uploading account may delete it.
func (c *Client) DeleteFile(_ context.Context, bucketID, fileID string) error {
	s := c.svc
	if err := s.fault(OpDeleteFile, fileID); err != nil {
		return err
	}

	secret := c.currentSecret()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.lookupLocked(secret)
	if !ok {
		return remote.ErrUnauthorized
	}
	key := fileKey(bucketID, fileID)
	if f, ok := s.files[key]; !ok || f.meta.AccountID != session.AccountID {
		return remote.ErrNotFound
	}
	delete(s.files, key)
	return nil
}

// FileContents returns the bytes of a stored file.
func (s *Service) FileContents(bucketID, fileID string) (*bytes.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileKey(bucketID, fileID)]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return bytes.NewReader(f.data), nil
}

// FileViewURL returns the public view URL of a file.
func (c *Client) FileViewURL(bucketID, fileID string) string {
	return c.svc.URLs.FileView(bucketID, fileID)
}

// FilePreviewURL returns the public preview URL of an image file.
func (c *Client) FilePreviewURL(bucketID, fileID string, opts remote.PreviewOptions) string {
	return c.svc.URLs.FilePreview(bucketID, fileID, opts)
}

// InitialsURL returns the avatar URL for name.
func (c *Client) InitialsURL(name string) string {
	return c.svc.URLs.Initials(name)
}

func (c *Client) currentSecret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret
}

func (s *Service) lookupLocked(secret string) (models.Session, bool) {
	if secret == "" {
		return models.Session{}, false
	}
	session, ok := s.sessions[secret]
	if !ok {
		return models.Session{}, false
	}
	if session.Expired(s.now()) {
		delete(s.sessions, secret)
		return models.Session{}, false
	}
	return session, true
}

func collectionKey(databaseID, collectionID string) string {
	return databaseID + "/" + collectionID
}

func fileKey(bucketID, fileID string) string {
	return bucketID + "/" + fileID
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

var (
	_ remote.Accounts  = (*Client)(nil)
	_ remote.Databases = (*Client)(nil)
	_ remote.Storage   = (*Client)(nil)
	_ remote.Avatars   = (*Client)(nil)
)
