package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type DocumentResetQuery struct{}

type DocumentResetResponse struct {
	State audit.Snapshot `json:"state"`
}

func DocumentResetTool() *mcp.Tool {
	inputschema, err := jsonschema.For[DocumentResetQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "document-reset",
		Description: "Unload the current statement and discard every transaction under review. Requests still in flight finish but their results are dropped.",
		InputSchema: inputschema,
	}
}

func DocumentResetToolHandler(ctx context.Context, req *mcp.CallToolRequest, query DocumentResetQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *DocumentResetResponse, error) {
	log.Info("document-reset tool called")
	session.Reset()
	return nil, &DocumentResetResponse{State: session.State()}, nil
}
