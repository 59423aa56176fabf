package storage

import (
	"context"
	"errors"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// ErrNotFound is returned when no extraction is cached for a document ID.
var ErrNotFound = errors.New("document not found")

// Store caches whole-document extraction results so that reloading the same
// PDF does not call the extraction service again. Reviewed transactions are
// never written here.
type Store interface {
	// StoreExtraction caches the extraction of a document under docID,
	// replacing any previous entry.
	StoreExtraction(ctx context.Context, docID string, data *models.VisualData, sourceInfo *models.SourceInfo) error

	// GetExtraction returns the cached extraction for docID or ErrNotFound.
	GetExtraction(ctx context.Context, docID string) (*models.VisualData, error)

	// DocumentExists reports whether an extraction is cached for docID
	DocumentExists(ctx context.Context, docID string) (bool, error)

	// ListDocuments returns every cached document, newest first
	ListDocuments(ctx context.Context) ([]models.DocumentInfo, error)

	// DeleteDocument removes a cached extraction and all its pages
	DeleteDocument(ctx context.Context, docID string) error

	// Close closes the database connection
	Close() error
}
