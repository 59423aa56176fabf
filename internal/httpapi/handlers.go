package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/layout"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
)

type stateRequest struct {
	View       string `json:"view"`
	Mode       string `json:"mode"`
	DrawerOpen *bool  `json:"drawer_open"`
}

type documentRequest struct {
	URL      string `json:"url"`
	ZoteroID string `json:"zotero_id"`
	Filename string `json:"filename"`
}

type geometryRequest struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	DisplayedWidth float64 `json:"displayed_width" binding:"required,gt=0"`
}

type layoutRequest struct {
	Pages map[string]geometryRequest `json:"pages" binding:"required"`
}

type viewportRequest struct {
	Width float64 `json:"width" binding:"required,gt=0"`
}

// selectionRequest is either a rectangle or a pointer path; a path is
// replayed as a drag and so only selects in select mode.
type selectionRequest struct {
	Page   int              `json:"page" binding:"required,gt=0"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Width  float64          `json:"width"`
	Height float64          `json:"height"`
	Points []geometry.Point `json:"points"`
}

type updateRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (h *handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.State())
}

func (h *handler) putState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.View != "" {
		view, err := audit.ParseView(req.View)
		if err != nil {
			badRequest(c, err)
			return
		}
		h.session.SetView(view)
	}
	if req.Mode != "" {
		mode, err := audit.ParseMode(req.Mode)
		if err != nil {
			badRequest(c, err)
			return
		}
		h.session.SetMode(mode)
	}
	if req.DrawerOpen != nil {
		h.session.SetDrawer(*req.DrawerOpen)
	}
	c.JSON(http.StatusOK, h.session.State())
}

// loadDocument accepts a multipart upload in the "file" field or a JSON
// body naming a URL or Zotero attachment.
func (h *handler) loadDocument(c *gin.Context) {
	var src documents.Source
	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			badRequest(c, err)
			return
		}
		src = documents.Source{RawData: data, Filename: fh.Filename}
	} else {
		var req documentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		src = documents.Source{URL: req.URL, ZoteroID: req.ZoteroID, Filename: req.Filename}
	}

	doc, _, err := documents.Load(c.Request.Context(), src, h.creds)
	if err != nil {
		h.fail(c, err)
		return
	}
	info, err := h.session.LoadDocument(c.Request.Context(), doc)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"document":       info,
		"resource_paths": storage.CalculateResourcePaths(h.session.Document()),
		"placements":     h.session.Placements(),
		"state":          h.session.State(),
	})
}

func (h *handler) resetDocument(c *gin.Context) {
	h.session.Reset()
	c.JSON(http.StatusOK, h.session.State())
}

func pageParam(c *gin.Context) (int, bool) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		badRequest(c, fmt.Errorf("invalid page %q", c.Param("page")))
		return 0, false
	}
	return page, true
}

func (h *handler) getPage(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	meta, found := h.session.Page(page)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("page %d not loaded", page)})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *handler) getHighlights(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "highlights": h.session.HighlightBoxes(page)})
}

func (h *handler) putGeometry(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}
	var req geometryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g := layout.PageGeometry{Origin: geometry.Point{X: req.X, Y: req.Y}, DisplayedWidth: req.DisplayedWidth}
	if err := h.session.ImageLoaded(page, g); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.State().Pages)
}

func (h *handler) putLayout(c *gin.Context) {
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	geoms := make(map[int]layout.PageGeometry, len(req.Pages))
	for key, g := range req.Pages {
		page, err := strconv.Atoi(key)
		if err != nil || page < 1 {
			badRequest(c, fmt.Errorf("invalid page %q", key))
			return
		}
		if g.DisplayedWidth <= 0 {
			badRequest(c, fmt.Errorf("page %d: displayed_width must be positive", page))
			return
		}
		geoms[page] = layout.PageGeometry{Origin: geometry.Point{X: g.X, Y: g.Y}, DisplayedWidth: g.DisplayedWidth}
	}
	if err := h.session.ReportLayout(geoms); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.State().Pages)
}

func (h *handler) resizeViewport(c *gin.Context) {
	var req viewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	placements, err := h.session.Resize(req.Width)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"placements": placements, "pages": h.session.State().Pages})
}

func (h *handler) createSelection(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		res audit.Resolution
		err error
	)
	switch {
	case len(req.Points) == 1:
		badRequest(c, errors.New("a drag needs at least a start and an end point"))
		return
	case len(req.Points) > 1:
		if !h.session.BeginDrag(req.Page, req.Points[0]) {
			res = audit.Resolution{Outcome: audit.OutcomeIgnored, Page: req.Page, Reason: "drags only select in select mode"}
			break
		}
		for _, p := range req.Points[1:] {
			h.session.MoveDrag(p)
		}
		res, err = h.session.EndDrag(c.Request.Context())
	default:
		rect := geometry.NormalizeDrag(
			geometry.Point{X: req.X, Y: req.Y},
			geometry.Point{X: req.X + req.Width, Y: req.Y + req.Height},
		)
		res, err = h.session.ResolveSelection(c.Request.Context(), req.Page, rect)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if len(res.Added) > 0 {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *handler) listTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transactions": h.session.Transactions()})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid transaction id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *handler) updateTransaction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tx, err := h.session.UpdateTransaction(id, req.Field, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *handler) deleteTransaction(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.session.DeleteTransaction(id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) getReview(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Review())
}

func (h *handler) listCache(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *handler) deleteCache(c *gin.Context) {
	if err := h.store.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
