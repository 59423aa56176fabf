package audit

import (
	"fmt"

	"github.com/Epistemic-Technology/invoice-audit/internal/currency"
	"github.com/Epistemic-Technology/invoice-audit/internal/geometry"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

// Editable transaction fields.
const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldValue       = "value"
	FieldInstallment = "installment"
)

// Transactions returns a copy of the list under review, in order.
func (s *Session) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.transactions...)
}

// Transaction returns one record by ID.
func (s *Session) Transaction(id int64) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Transaction{}, fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	return s.transactions[i], nil
}

// UpdateTransaction edits one field of a record and returns the result.
func (s *Session) UpdateTransaction(id int64, field, value string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Transaction{}, fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	tx := s.transactions[i]
	switch field {
	case FieldDate:
		tx.Date = value
	case FieldDescription:
		tx.Description = value
	case FieldValue:
		tx.Value = value
	case FieldInstallment:
		tx.Installment = value
	default:
		return models.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	s.transactions[i] = tx
	return tx, nil
}

// DeleteTransaction removes a record.
func (s *Session) DeleteTransaction(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	remaining := make([]models.Transaction, 0, len(s.transactions)-1)
	remaining = append(remaining, s.transactions[:i]...)
	s.transactions = append(remaining, s.transactions[i+1:]...)
	return nil
}

func (s *Session) indexOf(id int64) int {
	for i, tx := range s.transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// Review summarizes the list for the review screen.
type Review struct {
	Count          int                  `json:"count"`
	Total          currency.Cents       `json:"total_cents"`
	FormattedTotal string               `json:"total"`
	Unreadable     int                  `json:"unreadable_values"`
	Transactions   []models.Transaction `json:"transactions"`
}

// Review totals the transactions. Values that cannot be read count as
// zero and are reported in Unreadable.
func (s *Session) Review() Review {
	txs := s.Transactions()
	values := make([]string, len(txs))
	for i, tx := range txs {
		values[i] = tx.Value
	}
	total, unreadable := currency.Sum(values)
	return Review{
		Count:          len(txs),
		Total:          total,
		FormattedTotal: currency.Format(total),
		Unreadable:     unreadable,
		Transactions:   txs,
	}
}

// Highlight is an on-screen rectangle marking where a transaction was
// found.
type Highlight struct {
	TransactionID int64               `json:"transaction_id"`
	Rect          geometry.ScreenRect `json:"rect"`
}

// HighlightBoxes maps the source boxes of transactions found on a page to
// screen space. It returns nothing while the page is not measured.
func (s *Session) HighlightBoxes(page int) []Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil
	}
	scale, ok := s.tracker.Scale(page)
	if !ok {
		return nil
	}
	g, ok := s.tracker.Geometry(page)
	if !ok {
		return nil
	}

	var highlights []Highlight
	for _, tx := range s.transactions {
		if tx.Box == nil || tx.Box.Page != page {
			continue
		}
		d := geometry.DocRect{X0: tx.Box.X0, Top: tx.Box.Top, X1: tx.Box.X1, Bottom: tx.Box.Bottom}
		rect, err := geometry.ToScreen(d, g.Origin, scale)
		if err != nil {
			continue
		}
		highlights = append(highlights, Highlight{TransactionID: tx.ID, Rect: rect})
	}
	return highlights
}
