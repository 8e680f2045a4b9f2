// internal/storage/store.go
package storage

import (
	"context"
	"errors"

	"meal-journal/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTransient       = errors.New("store unavailable")
)

// DocumentStore holds one JSON document per participant. There is no partial
// update: every write carries the entire document.
type DocumentStore interface {
	Create(ctx context.Context, participantID string, doc models.Document) error
	Read(ctx context.Context, participantID string) (models.Document, error)
	Replace(ctx context.Context, participantID string, doc models.Document) error
	Delete(ctx context.Context, participantID string) error
}
