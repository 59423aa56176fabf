package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/render"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
)

type DocumentLoadQuery struct {
	ZoteroID string `json:"zotero_id,omitempty"`
	URL      string `json:"url,omitempty"`
	RawData  []byte `json:"raw_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type DocumentLoadResponse struct {
	DocumentID       string             `json:"document_id"`
	Filename         string             `json:"filename"`
	PageCount        int                `json:"page_count"`
	TransactionCount int                `json:"transaction_count"`
	ResourcePaths    []string           `json:"resource_paths"`
	Placements       []render.Placement `json:"placements,omitempty"`
}

func DocumentLoadTool() *mcp.Tool {
	inputschema, err := jsonschema.For[DocumentLoadQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "document-load",
		Description: "Load a credit card statement PDF (raw bytes, URL or Zotero attachment key) into the audit session. The statement is sent to the extraction service, which returns page images and positioned words; any transactions it finds are added to the review list. Replaces the previously loaded statement.",
		InputSchema: inputschema,
	}
}

func DocumentLoadToolHandler(ctx context.Context, req *mcp.CallToolRequest, query DocumentLoadQuery, session *audit.Session, creds documents.ZoteroCredentials, log logger.Logger) (*mcp.CallToolResult, *DocumentLoadResponse, error) {
	log.Info("document-load tool called")

	doc, pages, err := documents.Load(ctx, documents.Source{
		RawData:  query.RawData,
		Filename: query.Filename,
		URL:      query.URL,
		ZoteroID: query.ZoteroID,
	}, creds)
	if err != nil {
		log.Error("document-load tool failed: %v", err)
		return nil, nil, err
	}
	log.Debug("Read %s with %d pages", doc.Filename, pages)

	info, err := session.LoadDocument(ctx, doc)
	if err != nil {
		log.Error("document-load tool failed: %v", err)
		return nil, nil, err
	}

	return nil, &DocumentLoadResponse{
		DocumentID:       info.DocumentID,
		Filename:         info.Filename,
		PageCount:        info.PageCount,
		TransactionCount: len(session.Transactions()),
		ResourcePaths:    storage.CalculateResourcePaths(session.Document()),
		Placements:       session.Placements(),
	}, nil
}
