package repositories

import (
	"context"
	"strings"
	"sync"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// InMemoryAccountRepository implements AccountRepository for tests and `serve --memory`.
type InMemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

// NewInMemoryAccountRepository returns an empty account repository.
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{accounts: make(map[string]models.Account)}
}

// Create stores a new account. Emails are unique, compared case-insensitively.
func (r *InMemoryAccountRepository) Create(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return ErrConflict
		}
	}
	r.accounts[account.ID] = account
	return nil
}

// FindByEmail fetches an account by email.
func (r *InMemoryAccountRepository) FindByEmail(_ context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return models.Account{}, ErrNotFound
}

// FindByID fetches an account by identifier.
func (r *InMemoryAccountRepository) FindByID(_ context.Context, id string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return account, nil
}

// InMemoryDocumentRepository implements DocumentRepository with per-collection slices
// kept in insertion order.
type InMemoryDocumentRepository struct {
	mu          sync.RWMutex
	collections map[string][]models.Document
}

// NewInMemoryDocumentRepository returns an empty document repository.
func NewInMemoryDocumentRepository() *InMemoryDocumentRepository {
	return &InMemoryDocumentRepository{collections: make(map[string][]models.Document)}
}

// Create appends a document to its collection.
func (r *InMemoryDocumentRepository) Create(_ context.Context, doc models.Document) error {
	key := doc.DatabaseID + "/" + doc.CollectionID

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.collections[key] {
		if existing.ID == doc.ID {
			return ErrConflict
		}
	}
	r.collections[key] = append(r.collections[key], copyDocument(doc))
	return nil
}

// List evaluates plan against the collection.
func (r *InMemoryDocumentRepository) List(_ context.Context, databaseID, collectionID string, plan remote.Plan) ([]models.Document, error) {
	r.mu.RLock()
	docs := make([]models.Document, 0, len(r.collections[databaseID+"/"+collectionID]))
	for _, doc := range r.collections[databaseID+"/"+collectionID] {
		docs = append(docs, copyDocument(doc))
	}
	r.mu.RUnlock()

	return plan.Apply(docs), nil
}

func copyDocument(doc models.Document) models.Document {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}
	doc.Data = data
	return doc
}

// InMemoryFileRepository implements FileRepository with a map.
type InMemoryFileRepository struct {
	mu    sync.RWMutex
	files map[string]models.File
}

// NewInMemoryFileRepository returns an empty file repository.
func NewInMemoryFileRepository() *InMemoryFileRepository {
	return &InMemoryFileRepository{files: make(map[string]models.File)}
}

// Create records a file.
func (r *InMemoryFileRepository) Create(_ context.Context, file models.File) error {
	key := ObjectKey(file.BucketID, file.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[key]; ok {
		return ErrConflict
	}
	r.files[key] = file
	return nil
}

// Find loads the metadata of a file.
func (r *InMemoryFileRepository) Find(_ context.Context, bucketID, fileID string) (models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, ok := r.files[ObjectKey(bucketID, fileID)]
	if !ok {
		return models.File{}, ErrNotFound
	}
	return file, nil
}

// Delete removes the metadata of a file.
func (r *InMemoryFileRepository) Delete(_ context.Context, bucketID, fileID string) error {
	key := ObjectKey(bucketID, fileID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[key]; !ok {
		return ErrNotFound
	}
	delete(r.files, key)
	return nil
}

var _ AccountRepository = (*InMemoryAccountRepository)(nil)
var _ DocumentRepository = (*InMemoryDocumentRepository)(nil)
var _ FileRepository = (*InMemoryFileRepository)(nil)
