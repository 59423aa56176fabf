package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
)

type AuditReviewQuery struct{}

func AuditReviewTool() *mcp.Tool {
	inputschema, err := jsonschema.For[AuditReviewQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "audit-review",
		Description: "Summarize the review list: item count and total value in Brazilian reais. Values that cannot be read count as zero and are reported separately.",
		InputSchema: inputschema,
	}
}

func AuditReviewToolHandler(ctx context.Context, req *mcp.CallToolRequest, query AuditReviewQuery, session *audit.Session, log logger.Logger) (*mcp.CallToolResult, *audit.Review, error) {
	log.Debug("audit-review tool called")
	review := session.Review()

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("%d items, total %s (%d unreadable values)", review.Count, review.FormattedTotal, review.Unreadable),
			},
		},
	}
	return result, &review, nil
}
