package audit

import (
	"context"
	"errors"

	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// Extractor turns an uploaded document into page images, words and any
// transactions found automatically. Implementations return either a
// complete result or an error, never both.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*models.VisualData, error)
}

// Parser turns selected words, in page order, into transactions.
type Parser interface {
	ParseSelection(ctx context.Context, words []models.Word) ([]models.Transaction, error)
}

// CachingExtractor serves repeated uploads of the same bytes from the store.
type CachingExtractor struct {
	next  Extractor
	store storage.Store
	log   logger.Logger
}

// NewCachingExtractor wraps next with store.
func NewCachingExtractor(next Extractor, store storage.Store, log logger.Logger) *CachingExtractor {
	return &CachingExtractor{next: next, store: store, log: log.Named("cache")}
}

// Extract returns the cached extraction for data or calls the wrapped
// extractor and caches its result. Cache failures never fail the upload.
func (c *CachingExtractor) Extract(ctx context.Context, filename string, data []byte) (*models.VisualData, error) {
	docID := storage.GenerateDocumentID(data)

	cached, err := c.store.GetExtraction(ctx, docID)
	switch {
	case err == nil:
		c.log.Info("Using cached extraction for %s (%s)", filename, docID)
		if filename != "" {
			cached.Filename = filename
		}
		return cached, nil
	case !errors.Is(err, storage.ErrNotFound):
		c.log.Warn("Failed to read extraction cache for %s: %v", docID, err)
	}

	result, err := c.next.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	if err := c.store.StoreExtraction(ctx, docID, result, &models.SourceInfo{Filename: filename}); err != nil {
		c.log.Warn("Failed to cache extraction for %s: %v", docID, err)
	}
	return result, nil
}
