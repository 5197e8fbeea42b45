package repositories

import (
	"context"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// DocumentRepository stores schemaless documents grouped by database and collection.
type DocumentRepository interface {
	Create(ctx context.Context, doc models.Document) error
	List(ctx context.Context, databaseID, collectionID string, plan remote.Plan) ([]models.Document, error)
}
