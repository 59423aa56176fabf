package audit

import (
	"context"
	"fmt"

	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// Outcome classifies a finished selection.
type Outcome string

const (
	// OutcomeIgnored means nothing was attempted: no document, the page is
	// not measurable yet, or the gesture was too small.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeEmpty means no word fell inside the selection. The parser was
	// not called.
	OutcomeEmpty Outcome = "empty"
	// OutcomeMerged means the parser answered and its records, if any,
	// were appended.
	OutcomeMerged Outcome = "merged"
)

// Resolution reports what a selection did.
type Resolution struct {
	Outcome Outcome              `json:"outcome"`
	Reason  string               `json:"reason,omitempty"`
	Page    int                  `json:"page"`
	Rect    *geometry.DocRect    `json:"document_rect,omitempty"`
	Words   []models.Word        `json:"words,omitempty"`
	Added   []models.Transaction `json:"added,omitempty"`
}

func ignored(page int, format string, v ...any) Resolution {
	return Resolution{Outcome: OutcomeIgnored, Page: page, Reason: fmt.Sprintf(format, v...)}
}

// BeginDrag starts a gesture on a page. Drags only start in select mode on
// a loaded document; it reports whether one started.
func (s *Session) BeginDrag(page int, at geometry.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeSelect || s.doc == nil {
		return false
	}
	s.drag = &drag{page: page, start: at, rect: geometry.NormalizeDrag(at, at)}
	return true
}

// MoveDrag updates the gesture in progress and returns its rectangle.
func (s *Session) MoveDrag(to geometry.Point) (geometry.ScreenRect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return geometry.ScreenRect{}, false
	}
	s.drag.rect = geometry.NormalizeDrag(s.drag.start, to)
	return s.drag.rect, true
}

// EndDrag finishes the gesture and resolves it. A selection already in
// flight makes it return ErrBusy without dispatching.
func (s *Session) EndDrag(ctx context.Context) (Resolution, error) {
	s.mu.Lock()
	d := s.drag
	s.drag = nil
	busy := s.resolving
	s.mu.Unlock()

	if d == nil {
		return ignored(0, "no drag in progress"), nil
	}
	if d.rect.Degenerate(s.opts.MinSelection) {
		return ignored(d.page, "selection smaller than %vpx", s.opts.MinSelection), nil
	}
	if busy {
		return Resolution{}, ErrBusy
	}
	return s.ResolveSelection(ctx, d.page, d.rect)
}

// ResolveSelection maps a screen rectangle drawn on a page to the words
// under it and hands them to the parser. Parsed records are appended in
// the order received; on any failure the transaction list is left as it
// was.
func (s *Session) ResolveSelection(ctx context.Context, page int, rect geometry.ScreenRect) (Resolution, error) {
	s.mu.Lock()
	if s.resolving {
		s.mu.Unlock()
		return Resolution{}, ErrBusy
	}
	res, words, ok := s.selectLocked(page, rect)
	if !ok {
		s.mu.Unlock()
		s.log.Debug("Selection on page %d: %s %s", page, res.Outcome, res.Reason)
		return res, nil
	}
	s.resolving = true
	gen := s.generation
	s.mu.Unlock()

	s.log.Debug("Parsing %d words selected on page %d", len(words), page)
	txs, err := s.parser.ParseSelection(ctx, words)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.log.Warn("Discarding selection on page %d: document changed", page)
		return Resolution{}, ErrStaleDocument
	}
	s.resolving = false
	if err != nil {
		s.log.Error("Selection parse on page %d failed: %v", page, err)
		return Resolution{}, err
	}

	added := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		added = append(added, s.assignID(tx))
	}
	s.transactions = append(s.transactions, added...)
	if len(added) > 0 {
		s.drawerOpen = true
		s.mode = ModeScroll
	}

	s.log.Info("Selection on page %d added %d transactions", page, len(added))
	res.Outcome = OutcomeMerged
	res.Added = added
	return res, nil
}

// selectLocked runs the synchronous part of a selection. ok is false when
// there is nothing to send to the parser.
func (s *Session) selectLocked(page int, rect geometry.ScreenRect) (Resolution, []models.Word, bool) {
	if s.doc == nil {
		return ignored(page, "no document loaded"), nil, false
	}
	meta, found := s.doc.Page(page)
	if !found {
		return ignored(page, "page %d has no metadata", page), nil, false
	}
	scale, found := s.tracker.Scale(page)
	if !found {
		return ignored(page, "page %d is not measured yet", page), nil, false
	}
	g, found := s.tracker.Geometry(page)
	if !found {
		return ignored(page, "page %d has no geometry", page), nil, false
	}
	if rect.Degenerate(s.opts.MinSelection) {
		return ignored(page, "selection smaller than %vpx", s.opts.MinSelection), nil, false
	}

	docRect, err := geometry.ToDocument(rect, g.Origin, scale)
	if err != nil {
		return ignored(page, "%v", err), nil, false
	}
	words := geometry.SelectWords(meta.Words, docRect, s.opts.Policy)
	res := Resolution{Page: page, Rect: &docRect, Words: words}
	if len(words) == 0 {
		res.Outcome = OutcomeEmpty
		return res, nil, false
	}
	sent := make([]models.Word, len(words))
	copy(sent, words)
	return res, sent, true
}
