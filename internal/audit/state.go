package audit

import (
	"errors"
	"fmt"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/internal/layout"
)

var (
	// ErrNoDocument is returned by operations that need a loaded document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrBusy is returned while an upload or selection is already in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrTransactionNotFound is returned for unknown transaction IDs.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrStaleDocument is returned when the document was reset or replaced
	// while a request was in flight; its result has been discarded.
	ErrStaleDocument = errors.New("document changed while the request was in flight")
	// ErrUnknownField is returned when editing a field transactions lack.
	ErrUnknownField = errors.New("unknown transaction field")
)

// View is the screen the user is on.
type View string

const (
	ViewAudit  View = "audit"
	ViewReview View = "review"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewAudit, ViewReview:
		return View(s), nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Mode decides what a drag on a page does.
type Mode string

const (
	// ModeScroll ignores drags.
	ModeScroll Mode = "scroll"
	// ModeSelect turns drags into selections.
	ModeSelect Mode = "select"
)

// ParseMode validates an interaction mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeScroll, ModeSelect:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown interaction mode %q", s)
}

// PageState describes one loaded page.
type PageState struct {
	Page        int                  `json:"page"`
	NativeWidth float64              `json:"native_width"`
	WordCount   int                  `json:"word_count"`
	HasImage    bool                 `json:"has_image"`
	Scale       *float64             `json:"scale,omitempty"`
	Geometry    *layout.PageGeometry `json:"geometry,omitempty"`
}

// DragState is the gesture in progress.
type DragState struct {
	Page int                 `json:"page"`
	Rect geometry.ScreenRect `json:"rect"`
}

// Snapshot is a copy of the session state for display.
type Snapshot struct {
	View             View        `json:"view"`
	Mode             Mode        `json:"mode"`
	DrawerOpen       bool        `json:"drawer_open"`
	Uploading        bool        `json:"uploading"`
	Resolving        bool        `json:"resolving"`
	Loaded           bool        `json:"loaded"`
	DocumentID       string      `json:"document_id,omitempty"`
	Filename         string      `json:"filename,omitempty"`
	ViewportWidth    float64     `json:"viewport_width,omitempty"`
	Pages            []PageState `json:"pages,omitempty"`
	TransactionCount int         `json:"transaction_count"`
	Drag             *DragState  `json:"drag,omitempty"`
}
