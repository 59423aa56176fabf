package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

type TransactionUpdateQuery struct {
	ID    int64  `json:"id"`
	Field string `json:"field" jsonschema:"one of date, description, value, installment"`
	Value string `json:"value"`
}

type TransactionUpdateResponse struct {
	Transaction models.Transaction `json:"transaction"`
}

func TransactionUpdateTool() *mcp.Tool {
	inputschema, err := jsonschema.For[TransactionUpdateQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "transaction-update",
		Description: "Edit one field (date, description, value or installment) of a transaction under review.",
		InputSchema: inputschema,
	}
}

func TransactionUpdateToolHandler(ctx context.Context, req *mcp.CallToolRequest, query TransactionUpdateQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *TransactionUpdateResponse, error) {
	log.Info("transaction-update tool called for %d.%s", query.ID, query.Field)
	tx, err := session.UpdateTransaction(query.ID, query.Field, query.Value)
	if err != nil {
		log.Error("transaction-update tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &TransactionUpdateResponse{Transaction: tx}, nil
}
