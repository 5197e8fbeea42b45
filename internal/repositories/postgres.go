package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MuhammadAbdiel/aora-app/internal/db"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account. Emails are unique.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, email, name, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, account.ID, account.Email, account.Name, account.PasswordHash, account.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByEmail fetches an account by its email address.
func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, `
        SELECT id, email, name, password_hash, created_at
        FROM accounts
        WHERE email = $1
    `, email)
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, `
        SELECT id, email, name, password_hash, created_at
        FROM accounts
        WHERE id = $1
    `, id)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, query string, arg string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var account models.Account
	row := conn.QueryRow(ctx, query, arg)
	if err := row.Scan(&account.ID, &account.Email, &account.Name, &account.PasswordHash, &account.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account: %w", err)
	}
	account.CreatedAt = account.CreatedAt.UTC()
	return account, nil
}

// PostgresDocumentRepository stores documents as JSONB rows.
type PostgresDocumentRepository struct {
	pool db.Pool
}

// NewPostgresDocumentRepository constructs a document repository backed by PostgreSQL.
func NewPostgresDocumentRepository(pool db.Pool) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{pool: pool}
}

// Create inserts a document. Identifiers are unique within a collection.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc models.Document) error {
	data, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO documents (database_id, collection_id, id, data, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, doc.DatabaseID, doc.CollectionID, doc.ID, data, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}

	return nil
}

// List returns the documents of a collection matching plan.
func (r *PostgresDocumentRepository) List(ctx context.Context, databaseID, collectionID string, plan remote.Plan) ([]models.Document, error) {
	query, args := buildDocumentQuery(databaseID, collectionID, plan)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var (
			doc  models.Document
			data []byte
		)
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(data, &doc.Data); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
		}
		doc.DatabaseID = databaseID
		doc.CollectionID = collectionID
		doc.CreatedAt = doc.CreatedAt.UTC()
		doc.UpdatedAt = doc.UpdatedAt.UTC()
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// buildDocumentQuery compiles plan into a parameterized SELECT. Attribute names are
// always bound as parameters, never interpolated.
func buildDocumentQuery(databaseID, collectionID string, plan remote.Plan) (string, []any) {
	args := []any{databaseID, collectionID}
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	column := func(attr string) string {
		switch attr {
		case "$id":
			return "id"
		case models.FieldCreatedAt:
			return "created_at"
		case "$updatedAt":
			return "updated_at"
		}
		return fmt.Sprintf("(data->>%s::TEXT)", bind(attr))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE database_id = $1 AND collection_id = $2`)

	for _, attr := range sortedKeys(plan.Equal) {
		col := column(attr)
		fmt.Fprintf(&b, " AND %s = ANY(%s::TEXT[])", textColumn(col), bind(plan.Equal[attr]))
	}
	for _, attr := range sortedKeys(plan.Search) {
		col := column(attr)
		fmt.Fprintf(&b, " AND %s ILIKE %s::TEXT", textColumn(col), bind("%"+escapeLike(plan.Search[attr])+"%"))
	}

	b.WriteString(" ORDER BY ")
	for _, attr := range plan.OrderDesc {
		fmt.Fprintf(&b, "%s DESC, ", column(attr))
	}
	b.WriteString("created_at ASC, id ASC")

	limit := plan.Limit
	if limit <= 0 {
		limit = remote.DefaultListLimit
	}
	fmt.Fprintf(&b, " LIMIT %s", bind(limit))

	return b.String(), args
}

// textColumn casts system timestamp columns so they compare against string values.
func textColumn(col string) string {
	if col == "created_at" || col == "updated_at" {
		return col + "::TEXT"
	}
	return col
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PostgresFileRepository records uploaded file metadata in PostgreSQL.
type PostgresFileRepository struct {
	pool db.Pool
}

// NewPostgresFileRepository constructs a file repository backed by PostgreSQL.
func NewPostgresFileRepository(pool db.Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

// Create records a file. Identifiers are unique within a bucket.
func (r *PostgresFileRepository) Create(ctx context.Context, file models.File) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO files (bucket_id, id, account_id, name, mime_type, size, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, file.BucketID, file.ID, file.AccountID, file.Name, file.MimeType, file.Size, file.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert file: %w", err)
	}

	return nil
}

// Find loads the metadata of a file.
func (r *PostgresFileRepository) Find(ctx context.Context, bucketID, fileID string) (models.File, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.File{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT bucket_id, id, account_id, name, mime_type, size, created_at
        FROM files
        WHERE bucket_id = $1 AND id = $2
    `, bucketID, fileID)

	var (
		file      models.File
		createdAt time.Time
	)
	if err := row.Scan(&file.BucketID, &file.ID, &file.AccountID, &file.Name, &file.MimeType, &file.Size, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.File{}, ErrNotFound
		}
		return models.File{}, fmt.Errorf("select file: %w", err)
	}
	file.CreatedAt = createdAt.UTC()
	return file, nil
}

// Delete removes the metadata of a file.
func (r *PostgresFileRepository) Delete(ctx context.Context, bucketID, fileID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM files
        WHERE bucket_id = $1 AND id = $2
    `, bucketID, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
var _ DocumentRepository = (*PostgresDocumentRepository)(nil)
var _ FileRepository = (*PostgresFileRepository)(nil)
