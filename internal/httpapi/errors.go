package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/backend"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, audit.ErrBusy), errors.Is(err, audit.ErrStaleDocument), errors.Is(err, audit.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, audit.ErrTransactionNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, audit.ErrUnknownField), errors.Is(err, documents.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, documents.ErrNotPDF):
		return http.StatusUnsupportedMediaType
	case backend.IsServiceError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error with the matching status.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
