package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/backend"
	"github.com/Epistemic-Technology/invoice-audit/internal/config"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/llm"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/render"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
	"github.com/Epistemic-Technology/invoice-audit/resources"
	"github.com/Epistemic-Technology/invoice-audit/tools"
)

// Deps are the long-lived objects shared by the MCP and HTTP front ends.
type Deps struct {
	Session *audit.Session
	Store   storage.Store
	Zotero  documents.ZoteroCredentials
}

// Close releases the extraction cache.
func (d *Deps) Close() error {
	return d.Store.Close()
}

// NewDeps connects the extraction service, the selection parser and the
// extraction cache described by cfg into a session.
func NewDeps(cfg config.Config, log logger.Logger) (*Deps, error) {
	client, err := backend.NewClient(cfg.BackendURL, log, backend.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	if err != nil {
		return nil, err
	}

	var parser audit.Parser = client
	if cfg.Parser == config.ParserOpenAI {
		p, err := llm.NewSelectionParser(cfg.OpenAIAPIKey, log)
		if err != nil {
			return nil, err
		}
		parser = p
	}
	log.Info("Extracting with %s, parsing selections with %s", client.BaseURL(), cfg.Parser)

	store, err := initializeStorage(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	session := audit.NewSession(audit.NewCachingExtractor(client, store, log), parser, log, audit.Options{
		Policy:        cfg.Policy(),
		MinSelection:  cfg.MinSelection,
		ViewportWidth: cfg.ViewportWidth,
		Renderer:      render.NewRenderer(render.DefaultOptions()),
	})

	return &Deps{
		Session: session,
		Store:   store,
		Zotero:  documents.ZoteroCredentials{APIKey: cfg.ZoteroAPIKey, LibraryID: cfg.ZoteroLibraryID},
	}, nil
}

func CreateServer(deps *Deps, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "invoice-audit", Version: "v0.1.0"}, nil)

	session := deps.Session
	auditResourceHandler := resources.NewAuditResourceHandler(session)

	mcp.AddTool(server, tools.DocumentLoadTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.DocumentLoadQuery) (*mcp.CallToolResult, *tools.DocumentLoadResponse, error) {
		return tools.DocumentLoadToolHandler(ctx, req, query, session, deps.Zotero, log)
	})

	mcp.AddTool(server, tools.DocumentResetTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.DocumentResetQuery) (*mcp.CallToolResult, *tools.DocumentResetResponse, error) {
		return tools.DocumentResetToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.PageLayoutTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.PageLayoutQuery) (*mcp.CallToolResult, *tools.PageLayoutResponse, error) {
		return tools.PageLayoutToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.ViewportResizeTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ViewportResizeQuery) (*mcp.CallToolResult, *tools.ViewportResizeResponse, error) {
		return tools.ViewportResizeToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.SelectionDragTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.SelectionDragQuery) (*mcp.CallToolResult, *tools.SelectionDragResponse, error) {
		return tools.SelectionDragToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.RegionSelectTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.RegionSelectQuery) (*mcp.CallToolResult, *tools.RegionSelectResponse, error) {
		return tools.RegionSelectToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.TransactionsListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.TransactionsListQuery) (*mcp.CallToolResult, *tools.TransactionsListResponse, error) {
		return tools.TransactionsListToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.TransactionUpdateTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.TransactionUpdateQuery) (*mcp.CallToolResult, *tools.TransactionUpdateResponse, error) {
		return tools.TransactionUpdateToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.TransactionDeleteTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.TransactionDeleteQuery) (*mcp.CallToolResult, *tools.TransactionDeleteResponse, error) {
		return tools.TransactionDeleteToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.AuditReviewTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AuditReviewQuery) (*mcp.CallToolResult, *audit.Review, error) {
		return tools.AuditReviewToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.AuditViewTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.AuditViewQuery) (*mcp.CallToolResult, *tools.AuditViewResponse, error) {
		return tools.AuditViewToolHandler(ctx, req, query, session, log)
	})

	mcp.AddTool(server, tools.ExtractionCacheTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ExtractionCacheQuery) (*mcp.CallToolResult, *tools.ExtractionCacheResponse, error) {
		return tools.ExtractionCacheToolHandler(ctx, req, query, deps.Store, log)
	})

	readResource := func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return auditResourceHandler.ReadResource(ctx, req.Params.URI)
	}

	server.AddResource(&mcp.Resource{
		URI:         "audit://state",
		Name:        "audit-state",
		Description: "Session state: current screen, interaction mode, loaded statement and page scales",
		MIMEType:    "application/json",
	}, readResource)

	server.AddResource(&mcp.Resource{
		URI:         "audit://transactions",
		Name:        "audit-transactions",
		Description: "Transactions under review, in the order they were added",
		MIMEType:    "application/json",
	}, readResource)

	server.AddResource(&mcp.Resource{
		URI:         "audit://review",
		Name:        "audit-review",
		Description: "Item count and total value of the transactions under review",
		MIMEType:    "application/json",
	}, readResource)

	// Template for page metadata
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "audit://pages/{page}",
		Name:        "audit-page",
		Description: "Native size and positioned words of a statement page (1-indexed)",
		MIMEType:    "application/json",
	}, readResource)

	// Template for page images
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "audit://pages/{page}/image",
		Name:        "audit-page-image",
		Description: "Page raster with the boxes of transactions found on it highlighted",
		MIMEType:    "image/jpeg",
	}, readResource)

	return server
}

// initializeStorage opens the extraction cache, creating its directory.
func initializeStorage(dbPath string, log logger.Logger) (storage.Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
