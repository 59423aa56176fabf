package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

type TransactionsListQuery struct {
	// Page limits highlights to one page; 0 skips them.
	Page int `json:"page,omitempty" jsonschema:"also return on-screen highlight boxes for transactions found on this page"`
}

type TransactionsListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Highlights   []audit.Highlight    `json:"highlights,omitempty"`
}

func TransactionsListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[TransactionsListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "transactions-list",
		Description: "List the transactions under review in the order they were added.",
		InputSchema: inputschema,
	}
}

func TransactionsListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query TransactionsListQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *TransactionsListResponse, error) {
	log.Debug("transactions-list tool called")
	resp := &TransactionsListResponse{Transactions: session.Transactions()}
	if query.Page > 0 {
		resp.Highlights = session.HighlightBoxes(query.Page)
	}
	return nil, resp, nil
}
