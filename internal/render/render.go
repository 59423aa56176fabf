// Package render lays page images out in a vertical column the way the
// review client draws them, and produces resized page rasters.
package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/layout"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// ErrNoImageData is returned for pages whose raster is missing.
var ErrNoImageData = errors.New("page has no image data")

// Options describes the page column.
type Options struct {
	// MaxContentWidth caps the column width in screen pixels.
	MaxContentWidth float64
	// PaddingX is kept free on both sides of the column.
	PaddingX float64
	// PaddingTop is the space above the first page.
	PaddingTop float64
	// Gap separates consecutive pages.
	Gap float64
}

// DefaultOptions matches the review client: a centered 768px column, 8px
// side padding, 96px above the first page and 24px between pages.
func DefaultOptions() Options {
	return Options{MaxContentWidth: 768, PaddingX: 8, PaddingTop: 96, Gap: 24}
}

// Placement is where one page image ends up on screen.
type Placement struct {
	Page     int                 `json:"page"`
	Geometry layout.PageGeometry `json:"geometry"`
	Height   float64             `json:"height"`
}

// Renderer computes page placements for a viewport.
type Renderer struct {
	opts Options
}

// NewRenderer returns a renderer using opts.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// ContentWidth is the displayed width of every page in a viewport.
func (r *Renderer) ContentWidth(viewportWidth float64) float64 {
	w := viewportWidth
	if r.opts.MaxContentWidth > 0 && w > r.opts.MaxContentWidth {
		w = r.opts.MaxContentWidth
	}
	return w - 2*r.opts.PaddingX
}

// Layout stacks the page images top to bottom in the order given. Pages
// whose dimensions cannot be determined are skipped: they never report a
// geometry, so they stay unmeasurable.
func (r *Renderer) Layout(images []models.PageImage, viewportWidth float64) ([]Placement, error) {
	content := r.ContentWidth(viewportWidth)
	if content <= 0 {
		return nil, fmt.Errorf("viewport %vpx is too narrow", viewportWidth)
	}
	left := (viewportWidth - content) / 2

	placements := make([]Placement, 0, len(images))
	y := r.opts.PaddingTop
	for _, img := range images {
		w, h, err := Dimensions(img)
		if err != nil || w == 0 {
			continue
		}
		height := content * float64(h) / float64(w)
		placements = append(placements, Placement{
			Page: img.Page,
			Geometry: layout.PageGeometry{
				Origin:         geometry.Point{X: left, Y: y},
				DisplayedWidth: content,
			},
			Height: height,
		})
		y += height + r.opts.Gap
	}
	return placements, nil
}

// Geometries indexes placements by page for the scale tracker.
func Geometries(placements []Placement) map[int]layout.PageGeometry {
	geoms := make(map[int]layout.PageGeometry, len(placements))
	for _, p := range placements {
		geoms[p.Page] = p.Geometry
	}
	return geoms
}

// Dimensions returns the pixel size of a page image, from the extraction
// payload when present and from the encoded raster otherwise.
func Dimensions(img models.PageImage) (int, int, error) {
	if img.Width > 0 && img.Height > 0 {
		return img.Width, img.Height, nil
	}
	raw, err := decodeDataURI(img.Data)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read page %d image header: %w", img.Page, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode returns the raster of a page image.
func Decode(img models.PageImage) (image.Image, error) {
	raw, err := decodeDataURI(img.Data)
	if err != nil {
		return nil, err
	}
	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page %d image: %w", img.Page, err)
	}
	return src, nil
}

// Highlight tints rectangles of src, given in the raster's pixel space.
func Highlight(src image.Image, rects []image.Rectangle, tint color.NRGBA, opacity float64) image.Image {
	dst := imaging.Clone(src)
	bounds := src.Bounds()
	for _, rect := range rects {
		rect = rect.Intersect(bounds)
		if rect.Empty() {
			continue
		}
		patch := imaging.New(rect.Dx(), rect.Dy(), tint)
		dst = imaging.Overlay(dst, patch, rect.Min, opacity)
	}
	return dst
}

// EncodeJPEG resizes src to width pixels (keeping its aspect ratio; zero
// keeps the original size) and encodes it as JPEG.
func EncodeJPEG(src image.Image, width int) ([]byte, error) {
	if width > 0 && width != src.Bounds().Dx() {
		src = imaging.Resize(src, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDataURI accepts "data:image/jpeg;base64,..." or bare base64.
func decodeDataURI(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrNoImageData
	}
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		if !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("data URI is not base64 encoded")
		}
		payload = s[comma+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return raw, nil
}

// EncodeDataURI wraps JPEG bytes as a data URI.
func EncodeDataURI(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
