// Package layout keeps the per-page scale factors between rendered page
// images and their native document width.
package layout

import (
	"sort"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// PageGeometry is what the rendering layer knows about a drawn page image.
type PageGeometry struct {
	Origin         geometry.Point `json:"origin"`
	DisplayedWidth float64        `json:"displayed_width"`
}

// Tracker maps page numbers to displayed_width / native_width.
//
// Tracker is not safe for concurrent use; the audit session serializes
// access to it.
type Tracker struct {
	loaded   bool
	native   map[int]float64
	geometry map[int]PageGeometry
	scales   map[int]float64
}

// NewTracker returns an empty tracker with no document loaded.
func NewTracker() *Tracker {
	return &Tracker{
		native:   make(map[int]float64),
		geometry: make(map[int]PageGeometry),
		scales:   make(map[int]float64),
	}
}

// Load records the native widths of a newly loaded document and forgets
// everything known about the previous one.
func (t *Tracker) Load(pages []models.PageMeta) {
	t.Clear()
	for _, p := range pages {
		t.native[p.Page] = p.Width
	}
	t.loaded = true
}

// Clear unloads the document.
func (t *Tracker) Clear() {
	t.loaded = false
	t.native = make(map[int]float64)
	t.geometry = make(map[int]PageGeometry)
	t.scales = make(map[int]float64)
}

// Loaded reports whether a document is loaded.
func (t *Tracker) Loaded() bool {
	return t.loaded
}

// SetGeometry records the rendered geometry of a page without recomputing.
// Pages that are not part of the loaded document are ignored.
func (t *Tracker) SetGeometry(page int, g PageGeometry) {
	if !t.loaded {
		return
	}
	if _, ok := t.native[page]; !ok {
		return
	}
	t.geometry[page] = g
}

// ImageLoaded handles a page image finishing loading.
func (t *Tracker) ImageLoaded(page int, g PageGeometry) {
	t.SetGeometry(page, g)
	t.Recompute()
}

// Resize handles a viewport resize: every page's geometry is replaced by
// the new layout, then scales are recomputed. Pages missing from geoms
// lose their geometry.
func (t *Tracker) Resize(geoms map[int]PageGeometry) {
	if !t.loaded {
		return
	}
	t.geometry = make(map[int]PageGeometry, len(geoms))
	for page, g := range geoms {
		t.SetGeometry(page, g)
	}
	t.Recompute()
}

// Recompute rebuilds the scale map. Pages lacking either a rendered width
// or a native width stay absent.
func (t *Tracker) Recompute() {
	if !t.loaded {
		return
	}
	scales := make(map[int]float64, len(t.native))
	for page, native := range t.native {
		g, ok := t.geometry[page]
		if !ok || native <= 0 || g.DisplayedWidth <= 0 {
			continue
		}
		scales[page] = g.DisplayedWidth / native
	}
	t.scales = scales
}

// Scale returns the current scale factor of a page.
func (t *Tracker) Scale(page int) (float64, bool) {
	s, ok := t.scales[page]
	return s, ok
}

// Geometry returns the last geometry recorded for a page.
func (t *Tracker) Geometry(page int) (PageGeometry, bool) {
	g, ok := t.geometry[page]
	return g, ok
}

// Scales returns a copy of the scale map.
func (t *Tracker) Scales() map[int]float64 {
	out := make(map[int]float64, len(t.scales))
	for page, s := range t.scales {
		out[page] = s
	}
	return out
}

// Pages lists the loaded page numbers in ascending order.
func (t *Tracker) Pages() []int {
	pages := make([]int, 0, len(t.native))
	for page := range t.native {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// NativeWidth returns the native width of a page.
func (t *Tracker) NativeWidth(page int) (float64, bool) {
	w, ok := t.native[page]
	return w, ok
}
