package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type TransactionDeleteQuery struct {
	ID int64 `json:"id"`
}

type TransactionDeleteResponse struct {
	Deleted          int64 `json:"deleted"`
	TransactionCount int   `json:"transaction_count"`
}

func TransactionDeleteTool() *mcp.Tool {
	inputschema, err := jsonschema.For[TransactionDeleteQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "transaction-delete",
		Description: "Remove a transaction from the review list, for example a duplicate produced by selecting the same lines twice.",
		InputSchema: inputschema,
	}
}

func TransactionDeleteToolHandler(ctx context.Context, req *mcp.CallToolRequest, query TransactionDeleteQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *TransactionDeleteResponse, error) {
	log.Info("transaction-delete tool called for %d", query.ID)
	if err := session.DeleteTransaction(query.ID); err != nil {
		log.Error("transaction-delete tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &TransactionDeleteResponse{Deleted: query.ID, TransactionCount: len(session.Transactions())}, nil
}
