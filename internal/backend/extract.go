package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// extractResponse is the wire shape of /process_visual.
type extractResponse struct {
	Status       string            `json:"status"`
	Filename     string            `json:"filename"`
	Error        string            `json:"error"`
	VisualData   *wireVisualData   `json:"visual_data"`
	Transactions []wireTransaction `json:"transactions"`
}

type wireVisualData struct {
	Images       []models.PageImage `json:"images"`
	TextMap      []models.PageMeta  `json:"text_map"`
	Transactions []wireTransaction  `json:"transactions"`
}

// Extract uploads a document and returns its rendered pages and word map.
func (c *Client) Extract(ctx context.Context, filename string, data []byte) (*models.VisualData, error) {
	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}
	if filename == "" {
		filename = "document.pdf"
	}

	c.log.Info("Uploading %s (%d bytes) for extraction", filename, len(data))

	var resp extractResponse
	err := c.do(ctx, extractPath, func(ctx context.Context) (*http.Request, error) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(extractPath), body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		c.log.Error("Extraction failed: %v", err)
		return nil, err
	}

	visual, err := resp.payload()
	if err != nil {
		c.log.Error("Extraction failed: %v", err)
		return nil, err
	}

	c.log.Info("Extraction returned %d pages, %d images, %d transactions",
		len(visual.TextMap), len(visual.Images), len(visual.Transactions))
	return visual, nil
}

// payload validates a decoded response and returns its success payload.
func (r *extractResponse) payload() (*models.VisualData, error) {
	if r.Error != "" {
		return nil, &ServiceError{Endpoint: extractPath, Message: r.Error}
	}
	if r.Status != "" && !strings.EqualFold(r.Status, "success") {
		return nil, &ServiceError{Endpoint: extractPath, Message: fmt.Sprintf("unexpected status %q", r.Status)}
	}
	if r.VisualData == nil {
		return nil, &ServiceError{Endpoint: extractPath, Message: "response has no visual_data"}
	}
	if len(r.VisualData.TextMap) == 0 {
		return nil, &ServiceError{Endpoint: extractPath, Message: "response has no pages"}
	}

	seen := make(map[int]bool, len(r.VisualData.TextMap))
	for _, p := range r.VisualData.TextMap {
		if p.Page < 1 {
			return nil, &ServiceError{Endpoint: extractPath, Message: fmt.Sprintf("invalid page number %d", p.Page)}
		}
		if seen[p.Page] {
			return nil, &ServiceError{Endpoint: extractPath, Message: fmt.Sprintf("duplicate page %d", p.Page)}
		}
		seen[p.Page] = true
	}

	visual := &models.VisualData{
		Filename: r.Filename,
		Images:   r.VisualData.Images,
		TextMap:  r.VisualData.TextMap,
	}
	// Auto-extracted records may sit inside visual_data or at the top level.
	for _, tx := range r.VisualData.Transactions {
		visual.Transactions = append(visual.Transactions, tx.model())
	}
	for _, tx := range r.Transactions {
		visual.Transactions = append(visual.Transactions, tx.model())
	}
	return visual, nil
}
