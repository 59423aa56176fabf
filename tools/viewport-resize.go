package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/render"
)

type ViewportResizeQuery struct {
	Width float64 `json:"width" jsonschema:"new viewport width in pixels"`
}

type ViewportResizeResponse struct {
	Placements []render.Placement `json:"placements"`
	Pages      []audit.PageState  `json:"pages"`
}

func ViewportResizeTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ViewportResizeQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "viewport-resize",
		Description: "Change the viewport width. The built-in renderer lays the pages out again and every page scale is recomputed.",
		InputSchema: inputschema,
	}
}

func ViewportResizeToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ViewportResizeQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *ViewportResizeResponse, error) {
	log.Info("viewport-resize tool called: %vpx", query.Width)
	placements, err := session.Resize(query.Width)
	if err != nil {
		log.Error("viewport-resize tool failed: %v", err)
		return nil, nil, err
	}
	return nil, &ViewportResizeResponse{Placements: placements, Pages: session.State().Pages}, nil
}
