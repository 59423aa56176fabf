package documents

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageCount validates a PDF with pdfcpu and returns its page count.
func PageCount(data []byte) (int, error) {
	if DetectDocumentType(data) != "pdf" {
		return 0, ErrNotPDF
	}
	conf := model.NewDefaultConfiguration()
	pdfContext, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF: %w", err)
	}
	if pdfContext.PageCount == 0 {
		return 0, fmt.Errorf("invalid PDF: no pages")
	}
	return pdfContext.PageCount, nil
}
