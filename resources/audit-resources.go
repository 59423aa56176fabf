package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/render"
)

const scheme = "audit://"

// highlightTint is the amber used to mark transactions on page images.
var highlightTint = color.NRGBA{R: 245, G: 158, B: 11, A: 255}

// AuditResourceHandler serves the state of an audit session as MCP
// resources.
type AuditResourceHandler struct {
	session *audit.Session
}

// NewAuditResourceHandler creates a new audit resource handler
func NewAuditResourceHandler(session *audit.Session) *AuditResourceHandler {
	return &AuditResourceHandler{session: session}
}

// ReadResource reads a specific resource by URI
func (h *AuditResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// Parse URI: audit://state, audit://transactions, audit://pages/N[/image]
	if !strings.HasPrefix(uri, scheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", scheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, scheme), "/")

	var v any
	switch parts[0] {
	case "state":
		v = h.session.State()
	case "transactions":
		v = h.session.Transactions()
	case "review":
		v = h.session.Review()
	case "pages":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid URI, missing page number")
		}
		page, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", parts[1])
		}
		if len(parts) > 2 {
			if parts[2] != "image" {
				return nil, fmt.Errorf("unknown page resource: %s", parts[2])
			}
			return h.pageImage(uri, page)
		}
		meta, ok := h.session.Page(page)
		if !ok {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		v = meta
	default:
		return nil, fmt.Errorf("unknown resource type: %s", parts[0])
	}

	content, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

// pageImage returns the page raster as JPEG with the boxes of the
// transactions found on it highlighted.
func (h *AuditResourceHandler) pageImage(uri string, page int) (*mcp.ReadResourceResult, error) {
	raster, ok := h.session.PageImage(page)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	meta, ok := h.session.Page(page)
	if !ok || meta.Width <= 0 {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	img, err := render.Decode(raster)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page %d: %w", page, err)
	}

	// document points to image pixels
	ratio := float64(img.Bounds().Dx()) / meta.Width
	var rects []image.Rectangle
	for _, tx := range h.session.Transactions() {
		if tx.Box == nil || tx.Box.Page != page {
			continue
		}
		rects = append(rects, image.Rect(
			int(math.Floor(tx.Box.X0*ratio)),
			int(math.Floor(tx.Box.Top*ratio)),
			int(math.Ceil(tx.Box.X1*ratio)),
			int(math.Ceil(tx.Box.Bottom*ratio)),
		))
	}
	if len(rects) > 0 {
		img = render.Highlight(img, rects, highlightTint, 0.35)
	}

	data, err := render.EncodeJPEG(img, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", page, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "image/jpeg",
				Blob:     data,
			},
		},
	}, nil
}
