// Package geometry maps screen-space selection rectangles onto document
// space and picks the words they cover.
//
// Document space matches the extraction service: points, origin at the
// top-left of the page, y growing downwards. Screen space is the pixel
// space of the surface the page images are drawn on.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// MinSelectionSize is the smallest gesture, in screen pixels on each axis,
// that counts as a selection.
const MinSelectionSize = 10.0

// ErrNonPositiveScale is returned when a transform is asked to use a scale
// that is zero, negative or not a number.
var ErrNonPositiveScale = errors.New("scale factor must be positive")

// Point is a screen-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenRect is a normalized screen-space rectangle; Width and Height are
// never negative.
type ScreenRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NormalizeDrag builds the rectangle spanned by a drag from start to
// current, whatever the drag direction.
func NormalizeDrag(start, current Point) ScreenRect {
	return ScreenRect{
		X:      math.Min(start.X, current.X),
		Y:      math.Min(start.Y, current.Y),
		Width:  math.Abs(current.X - start.X),
		Height: math.Abs(current.Y - start.Y),
	}
}

// Degenerate reports whether the rectangle is too small on either axis to
// be treated as a selection.
func (r ScreenRect) Degenerate(min float64) bool {
	return r.Width < min || r.Height < min
}

// DocRect is a rectangle in document space.
type DocRect struct {
	X0     float64 `json:"x0"`
	Top    float64 `json:"top"`
	X1     float64 `json:"x1"`
	Bottom float64 `json:"bottom"`
}

// ContainsPoint reports whether (x, y) lies inside r, bounds included.
func (r DocRect) ContainsPoint(x, y float64) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Top && y <= r.Bottom
}

// Intersects reports whether b touches r.
func (r DocRect) Intersects(b Box) bool {
	return !(b.X1 < r.X0 || b.X0 > r.X1 || b.Bottom < r.Top || b.Top > r.Bottom)
}

// Box is a word bounding box in document space.
type Box struct {
	X0     float64
	Top    float64
	X1     float64
	Bottom float64
}

// BoxOf returns the bounding box of a word.
func BoxOf(w models.Word) Box {
	return Box{X0: w.X0, Top: w.Top, X1: w.X1, Bottom: w.Bottom}
}

// Center returns the centroid of the box.
func (b Box) Center() (float64, float64) {
	return b.X0 + (b.X1-b.X0)/2, b.Top + (b.Bottom-b.Top)/2
}

// Valid reports whether the box has positive extent on both axes.
func (b Box) Valid() bool {
	return b.X0 < b.X1 && b.Top < b.Bottom
}

// ToDocument converts a screen rectangle into document space using the
// on-screen origin of the page image and the page's scale factor.
func ToDocument(r ScreenRect, origin Point, scale float64) (DocRect, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return DocRect{}, fmt.Errorf("%w: %v", ErrNonPositiveScale, scale)
	}
	return DocRect{
		X0:     (r.X - origin.X) / scale,
		Top:    (r.Y - origin.Y) / scale,
		X1:     (r.X + r.Width - origin.X) / scale,
		Bottom: (r.Y + r.Height - origin.Y) / scale,
	}, nil
}

// ToScreen is the inverse of ToDocument.
func ToScreen(d DocRect, origin Point, scale float64) (ScreenRect, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return ScreenRect{}, fmt.Errorf("%w: %v", ErrNonPositiveScale, scale)
	}
	return ScreenRect{
		X:      d.X0*scale + origin.X,
		Y:      d.Top*scale + origin.Y,
		Width:  (d.X1 - d.X0) * scale,
		Height: (d.Bottom - d.Top) * scale,
	}, nil
}

// Policy decides which words a document rectangle selects.
type Policy int

const (
	// PolicyCenter selects words whose centroid lies inside the rectangle.
	PolicyCenter Policy = iota
	// PolicyOverlap selects every word whose box touches the rectangle.
	PolicyOverlap
)

func (p Policy) String() string {
	switch p {
	case PolicyCenter:
		return "center"
	case PolicyOverlap:
		return "overlap"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a configuration value onto a Policy. Empty selects the
// default center policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center", "centre":
		return PolicyCenter, nil
	case "overlap":
		return PolicyOverlap, nil
	default:
		return PolicyCenter, fmt.Errorf("unknown selection policy: %q", s)
	}
}

// Selects reports whether the policy picks box b for rectangle r.
func (p Policy) Selects(r DocRect, b Box) bool {
	if p == PolicyOverlap {
		return r.Intersects(b)
	}
	cx, cy := b.Center()
	return r.ContainsPoint(cx, cy)
}

// SelectWords returns the words picked by the policy, in page order.
func SelectWords(words []models.Word, r DocRect, policy Policy) []models.Word {
	var selected []models.Word
	for _, w := range words {
		if policy.Selects(r, BoxOf(w)) {
			selected = append(selected, w)
		}
	}
	return selected
}
