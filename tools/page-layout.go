package tools

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/layout"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type PageGeometryInput struct {
	Page           int     `json:"page" jsonschema:"page number, starting at 1"`
	X              float64 `json:"x" jsonschema:"left edge of the page image on screen"`
	Y              float64 `json:"y" jsonschema:"top edge of the page image on screen"`
	DisplayedWidth float64 `json:"displayed_width" jsonschema:"rendered width of the page image in pixels"`
}

type PageLayoutQuery struct {
	Pages []PageGeometryInput `json:"pages"`
	// Replace drops the geometry of pages not listed, as after a resize.
	Replace bool `json:"replace,omitempty" jsonschema:"replace the whole layout instead of updating the listed pages"`
}

type PageLayoutResponse struct {
	Pages []audit.PageState `json:"pages"`
}

func PageLayoutTool() *mcp.Tool {
	inputschema, err := jsonschema.For[PageLayoutQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "page-layout",
		Description: "Report where page images were drawn by the client: the on-screen origin and displayed width of each page. Scale factors are recomputed from these and the native page widths. Use replace=true after a viewport resize.",
		InputSchema: inputschema,
	}
}

func PageLayoutToolHandler(ctx context.Context, req *mcp.CallToolRequest, query PageLayoutQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *PageLayoutResponse, error) {
	log.Info("page-layout tool called for %d pages", len(query.Pages))
	if len(query.Pages) == 0 && !query.Replace {
		return nil, nil, errors.New("no pages provided")
	}

	geoms := make(map[int]layout.PageGeometry, len(query.Pages))
	for _, p := range query.Pages {
		geoms[p.Page] = layout.PageGeometry{
			Origin:         geometry.Point{X: p.X, Y: p.Y},
			DisplayedWidth: p.DisplayedWidth,
		}
	}

	var err error
	if query.Replace {
		err = session.ReportLayout(geoms)
	} else {
		for page, g := range geoms {
			if err = session.ImageLoaded(page, g); err != nil {
				break
			}
		}
	}
	if err != nil {
		log.Error("page-layout tool failed: %v", err)
		return nil, nil, err
	}

	return nil, &PageLayoutResponse{Pages: session.State().Pages}, nil
}
