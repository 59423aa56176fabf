package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type AuditViewQuery struct {
	View       string `json:"view,omitempty" jsonschema:"audit or review"`
	Mode       string `json:"mode,omitempty" jsonschema:"scroll or select; drags only select in select mode"`
	DrawerOpen *bool  `json:"drawer_open,omitempty"`
}

type AuditViewResponse struct {
	State audit.Snapshot `json:"state"`
}

func AuditViewTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AuditViewQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "audit-view",
		Description: "Read or change the session state: the current screen (audit or review), the interaction mode (scroll or select) and whether the transaction drawer is open. Omitted fields are left unchanged.",
		InputSchema: inputschema,
	}
}

func AuditViewToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AuditViewQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *AuditViewResponse, error) {
	log.Debug("audit-view tool called")

	if query.View != "" {
		view, err := audit.ParseView(query.View)
		if err != nil {
			return nil, nil, err
		}
		session.SetView(view)
	}
	if query.Mode != "" {
		mode, err := audit.ParseMode(query.Mode)
		if err != nil {
			return nil, nil, err
		}
		session.SetMode(mode)
	}
	if query.DrawerOpen != nil {
		session.SetDrawer(*query.DrawerOpen)
	}

	return nil, &AuditViewResponse{State: session.State()}, nil
}
