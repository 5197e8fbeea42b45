package repositories

import (
	"context"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// FileRepository records metadata for files whose contents live in object storage.
type FileRepository interface {
	Create(ctx context.Context, file models.File) error
	Find(ctx context.Context, bucketID, fileID string) (models.File, error)
	Delete(ctx context.Context, bucketID, fileID string) error
}

// ObjectKey returns the object storage key holding the contents of a file.
func ObjectKey(bucketID, fileID string) string {
	return bucketID + "/" + fileID
}
