// Package httpapi exposes an audit session over HTTP for browser front
// ends.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
)

type handler struct {
	session *audit.Session
	store   storage.Store
	creds   documents.ZoteroCredentials
	log     logger.Logger
}

// NewRouter builds the routes for session. store may be nil, in which
// case the cache routes are not registered.
func NewRouter(session *audit.Session, store storage.Store, creds documents.ZoteroCredentials, log logger.Logger) *gin.Engine {
	h := &handler{session: session, store: store, creds: creds, log: log.Named("http")}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger)

	r.GET("/state", h.getState)
	r.PUT("/state", h.putState)

	r.POST("/documents", h.loadDocument)
	r.DELETE("/documents", h.resetDocument)

	r.GET("/pages/:page", h.getPage)
	r.GET("/pages/:page/highlights", h.getHighlights)
	r.PUT("/pages/:page/geometry", h.putGeometry)
	r.PUT("/layout", h.putLayout)
	r.POST("/viewport", h.resizeViewport)

	r.POST("/selections", h.createSelection)

	r.GET("/transactions", h.listTransactions)
	r.PATCH("/transactions/:id", h.updateTransaction)
	r.DELETE("/transactions/:id", h.deleteTransaction)
	r.GET("/review", h.getReview)

	if store != nil {
		r.GET("/cache", h.listCache)
		r.DELETE("/cache/:id", h.deleteCache)
	}
	return r
}

func (h *handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Debug("%s %s %d (%s)", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
}
