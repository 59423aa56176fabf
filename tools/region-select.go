package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type RegionSelectQuery struct {
	Page   int     `json:"page"`
	X      float64 `json:"x" jsonschema:"left edge of the selection in screen pixels"`
	Y      float64 `json:"y" jsonschema:"top edge of the selection in screen pixels"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type RegionSelectResponse struct {
	Resolution       audit.Resolution `json:"resolution"`
	TransactionCount int              `json:"transaction_count"`
}

func RegionSelectTool() *mcp.Tool {
	inputschema, err := jsonschema.For[RegionSelectQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "region-select",
		Description: "Select a screen rectangle on a page, whatever the interaction mode, and parse the words under it into transactions. Negative sizes are normalized. Returns the document-space rectangle, the words selected and the transactions added.",
		InputSchema: inputschema,
	}
}

func RegionSelectToolHandler(ctx context.Context, req *mcp.CallToolRequest, query RegionSelectQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *RegionSelectResponse, error) {
	log.Info("region-select tool called on page %d", query.Page)

	rect := geometry.NormalizeDrag(
		geometry.Point{X: query.X, Y: query.Y},
		geometry.Point{X: query.X + query.Width, Y: query.Y + query.Height},
	)
	res, err := session.ResolveSelection(ctx, query.Page, rect)
	if err != nil {
		log.Error("region-select tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &RegionSelectResponse{Resolution: res, TransactionCount: len(session.Transactions())}, nil
}
