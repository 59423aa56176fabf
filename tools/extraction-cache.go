package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

type ExtractionCacheQuery struct {
	DeleteID string `json:"delete_id,omitempty" jsonschema:"remove this document from the cache before listing"`
}

type ExtractionCacheResponse struct {
	Documents []models.DocumentInfo `json:"documents"`
	Deleted   string                `json:"deleted,omitempty"`
}

func ExtractionCacheTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ExtractionCacheQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "extraction-cache",
		Description: "List statements whose extraction results are cached, optionally removing one so the next upload is extracted again.",
		InputSchema: inputschema,
	}
}

func ExtractionCacheToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ExtractionCacheQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *ExtractionCacheResponse, error) {
	log.Info("extraction-cache tool called")

	resp := &ExtractionCacheResponse{}
	if query.DeleteID != "" {
		if err := store.DeleteDocument(ctx, query.DeleteID); err != nil {
			log.Error("extraction-cache tool failed: %v", err)
			return nil, nil, err
		}
		resp.Deleted = query.DeleteID
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		log.Error("extraction-cache tool failed: %v", err)
		return nil, nil, err
	}
	resp.Documents = docs
	return nil, resp, nil
}
