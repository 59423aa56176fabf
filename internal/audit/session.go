// Package audit holds the state of one invoice review: the loaded
// statement, the page scales, the gesture in progress and the list of
// transactions under review.
package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/layout"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/internal/render"
	"github.com/Epistemic-Technology/invoice-audit/internal/storage"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// Options tune a session.
type Options struct {
	Policy        geometry.Policy
	MinSelection  float64
	ViewportWidth float64
	// Renderer lays pages out on load and resize. Without one the client
	// must report page geometry itself.
	Renderer *render.Renderer
}

// DefaultOptions selects by word centroid, rejects gestures under 10px and
// lays pages out for an 800px viewport.
func DefaultOptions() Options {
	return Options{
		Policy:        geometry.PolicyCenter,
		MinSelection:  geometry.MinSelectionSize,
		ViewportWidth: 800,
		Renderer:      render.NewRenderer(render.DefaultOptions()),
	}
}

type drag struct {
	page  int
	start geometry.Point
	rect  geometry.ScreenRect
}

// Session is safe for concurrent use. Collaborator calls run without the
// lock held; results are applied only if the document they were made for
// is still current.
type Session struct {
	extractor Extractor
	parser    Parser
	opts      Options
	log       logger.Logger

	mu           sync.Mutex
	generation   uint64
	doc          *models.VisualData
	docID        string
	tracker      *layout.Tracker
	placements   []render.Placement
	view         View
	mode         Mode
	drawerOpen   bool
	uploading    bool
	resolving    bool
	drag         *drag
	transactions []models.Transaction
	nextID       int64
}

// NewSession creates an empty session.
func NewSession(extractor Extractor, parser Parser, log logger.Logger, opts Options) *Session {
	if opts.MinSelection < 0 {
		opts.MinSelection = 0
	}
	return &Session{
		extractor: extractor,
		parser:    parser,
		opts:      opts,
		log:       log.Named("audit"),
		tracker:   layout.NewTracker(),
		view:      ViewAudit,
		mode:      ModeScroll,
	}
}

// LoadDocument uploads a document to the extraction service and, on
// success, replaces the loaded document. On failure the session keeps
// whatever it had before.
func (s *Session) LoadDocument(ctx context.Context, doc models.DocumentData) (models.DocumentInfo, error) {
	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return models.DocumentInfo{}, ErrBusy
	}
	s.uploading = true
	gen := s.generation
	s.mu.Unlock()

	s.log.Info("Extracting %s (%d bytes)", doc.Filename, len(doc.Data))
	data, err := s.extractor.Extract(ctx, doc.Filename, doc.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Warn("Discarding extraction of %s: session was reset", doc.Filename)
		return models.DocumentInfo{}, ErrStaleDocument
	}
	s.uploading = false
	if err != nil {
		s.log.Error("Extraction of %s failed: %v", doc.Filename, err)
		return models.DocumentInfo{}, err
	}
	if data == nil || len(data.TextMap) == 0 {
		return models.DocumentInfo{}, errors.New("extraction returned no pages")
	}
	if data.Filename == "" {
		data.Filename = doc.Filename
	}

	s.bumpGeneration()
	s.doc = data
	s.docID = storage.GenerateDocumentID(doc.Data)
	s.tracker.Load(data.TextMap)
	s.view = ViewAudit
	s.mode = ModeScroll
	s.drawerOpen = false
	s.transactions = nil
	for _, tx := range data.Transactions {
		s.transactions = append(s.transactions, s.assignID(tx))
	}
	s.layoutLocked()

	s.log.Info("Loaded %s: %d pages, %d extracted transactions", data.Filename, len(data.TextMap), len(s.transactions))
	return models.DocumentInfo{
		DocumentID: s.docID,
		Filename:   data.Filename,
		PageCount:  len(data.TextMap),
		SourceInfo: models.SourceInfo{Filename: doc.Filename},
	}, nil
}

// Reset unloads the document and forgets every transaction. Requests in
// flight complete but their results are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpGeneration()
	s.uploading = false
	s.doc = nil
	s.docID = ""
	s.tracker.Clear()
	s.placements = nil
	s.view = ViewAudit
	s.mode = ModeScroll
	s.drawerOpen = false
	s.transactions = nil
	s.log.Info("Session reset")
}

// bumpGeneration invalidates in-flight requests. A pending selection can
// no longer be applied, so the busy flag it holds is released too.
func (s *Session) bumpGeneration() {
	s.generation++
	s.resolving = false
	s.drag = nil
}

func (s *Session) assignID(tx models.Transaction) models.Transaction {
	s.nextID++
	tx.ID = s.nextID
	return tx
}

// layoutLocked lays the pages out with the built-in renderer, if any.
func (s *Session) layoutLocked() {
	if s.opts.Renderer == nil || s.doc == nil || s.opts.ViewportWidth <= 0 {
		return
	}
	placements, err := s.opts.Renderer.Layout(s.doc.Images, s.opts.ViewportWidth)
	if err != nil {
		s.log.Warn("Failed to lay out pages: %v", err)
		return
	}
	s.placements = placements
	s.tracker.Resize(render.Geometries(placements))
}

// ImageLoaded records the on-screen geometry of a page image reported by
// the client and refreshes the scales.
func (s *Session) ImageLoaded(page int, g layout.PageGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	s.tracker.ImageLoaded(page, g)
	return nil
}

// ReportLayout replaces the geometry of every page with a client-measured
// layout, as after a viewport resize.
func (s *Session) ReportLayout(geoms map[int]layout.PageGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	s.tracker.Resize(geoms)
	return nil
}

// Resize changes the viewport width and lays the pages out again with the
// built-in renderer. With no document loaded only the width is recorded.
func (s *Session) Resize(viewportWidth float64) ([]render.Placement, error) {
	if viewportWidth <= 0 {
		return nil, errors.New("viewport width must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.ViewportWidth = viewportWidth
	if s.doc == nil {
		return nil, nil
	}
	if s.opts.Renderer == nil {
		return nil, errors.New("no renderer configured; report page geometry instead")
	}
	s.layoutLocked()
	return append([]render.Placement(nil), s.placements...), nil
}

// Placements returns the built-in layout of the loaded pages.
func (s *Session) Placements() []render.Placement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]render.Placement(nil), s.placements...)
}

// SetView switches between the audit and review screens.
func (s *Session) SetView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// SetMode switches between scrolling and selecting.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	if m == ModeScroll {
		s.drag = nil
	}
}

// SetDrawer opens or closes the transaction drawer.
func (s *Session) SetDrawer(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawerOpen = open
}

// Page returns the extraction metadata of a loaded page.
func (s *Session) Page(page int) (models.PageMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return models.PageMeta{}, false
	}
	meta, ok := s.doc.Page(page)
	if !ok {
		return models.PageMeta{}, false
	}
	return *meta, true
}

// PageImage returns the raster of a loaded page.
func (s *Session) PageImage(page int) (models.PageImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return models.PageImage{}, false
	}
	img, ok := s.doc.Image(page)
	if !ok {
		return models.PageImage{}, false
	}
	return *img, true
}

// Document returns the loaded extraction, or nil.
func (s *Session) Document() *models.VisualData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// State returns a snapshot of the session.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		View:             s.view,
		Mode:             s.mode,
		DrawerOpen:       s.drawerOpen,
		Uploading:        s.uploading,
		Resolving:        s.resolving,
		Loaded:           s.doc != nil,
		DocumentID:       s.docID,
		ViewportWidth:    s.opts.ViewportWidth,
		TransactionCount: len(s.transactions),
	}
	if s.drag != nil {
		snap.Drag = &DragState{Page: s.drag.page, Rect: s.drag.rect}
	}
	if s.doc == nil {
		return snap
	}

	snap.Filename = s.doc.Filename
	for _, page := range s.tracker.Pages() {
		meta, _ := s.doc.Page(page)
		_, hasImage := s.doc.Image(page)
		ps := PageState{Page: page, NativeWidth: meta.Width, WordCount: len(meta.Words), HasImage: hasImage}
		if scale, ok := s.tracker.Scale(page); ok {
			ps.Scale = &scale
		}
		if g, ok := s.tracker.Geometry(page); ok {
			ps.Geometry = &g
		}
		snap.Pages = append(snap.Pages, ps)
	}
	return snap
}
