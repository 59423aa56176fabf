package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type SelectionDragQuery struct {
	Page int `json:"page" jsonschema:"page the drag started on"`
	// Points is the pointer path: the first point is where the drag
	// started and the last where it was released.
	Points []geometry.Point `json:"points" jsonschema:"pointer positions in screen space, from press to release"`
}

type SelectionDragResponse struct {
	Resolution       audit.Resolution `json:"resolution"`
	TransactionCount int              `json:"transaction_count"`
}

func SelectionDragTool() *mcp.Tool {
	inputschema, err := jsonschema.For[SelectionDragQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "selection-drag",
		Description: "Replay a pointer drag over a page image in select mode. The drag rectangle is converted to page coordinates, the words whose centers fall inside it are sent to the parser, and the transactions it returns are appended to the review list. Drags smaller than the minimum size, or in scroll mode, are ignored.",
		InputSchema: inputschema,
	}
}

func SelectionDragToolHandler(ctx context.Context, req *mcp.CallToolRequest, query SelectionDragQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *SelectionDragResponse, error) {
	log.Info("selection-drag tool called on page %d", query.Page)
	if len(query.Points) < 2 {
		return nil, nil, errors.New("a drag needs at least a start and an end point")
	}

	if !session.BeginDrag(query.Page, query.Points[0]) {
		state := session.State()
		reason := "interaction mode is " + string(state.Mode)
		if !state.Loaded {
			reason = "no document loaded"
		}
		return nil, &SelectionDragResponse{
			Resolution:       audit.Resolution{Outcome: audit.OutcomeIgnored, Page: query.Page, Reason: reason},
			TransactionCount: state.TransactionCount,
		}, nil
	}
	for _, p := range query.Points[1:] {
		session.MoveDrag(p)
	}

	res, err := session.EndDrag(ctx)
	if err != nil {
		log.Error("selection-drag tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &SelectionDragResponse{Resolution: res, TransactionCount: len(session.Transactions())}, nil
}
