package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

type parseRequest struct {
	Words []models.Word `json:"words"`
}

// parseResponse is the wire shape of /parse_selection.
type parseResponse struct {
	Count        int               `json:"count"`
	Transactions []wireTransaction `json:"transactions"`
	Error        string            `json:"error"`
}

// wireTransaction tolerates the loose typing of the service: ids and
// values arrive as numbers or strings depending on the code path.
type wireTransaction struct {
	ID          looseID           `json:"id"`
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Installment string            `json:"installment"`
	Value       looseString       `json:"value"`
	Box         *models.SourceBox `json:"box"`
}

func (w wireTransaction) model() models.Transaction {
	return models.Transaction{
		SourceID:    int64(w.ID),
		Date:        w.Date,
		Description: w.Description,
		Installment: w.Installment,
		Value:       string(w.Value),
		Box:         w.Box,
	}
}

type looseID int64

func (id *looseID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*id = looseID(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*id = looseID(int64(f))
		return nil
	}
	// Opaque string ids carry no meaning for us
	*id = 0
	return nil
}

type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

// ParseSelection sends the selected words, in page order, to the parsing
// endpoint and returns the transactions it recognised. An empty slice is a
// valid result.
func (c *Client) ParseSelection(ctx context.Context, words []models.Word) ([]models.Transaction, error) {
	if len(words) == 0 {
		return nil, errors.New("no words to parse")
	}

	c.log.Debug("Parsing selection of %d words", len(words))

	var resp parseResponse
	err := c.do(ctx, parsePath, func(ctx context.Context) (*http.Request, error) {
		return jsonRequest(ctx, c.url(parsePath), parseRequest{Words: words})
	}, &resp)
	if err != nil {
		c.log.Error("Selection parse failed: %v", err)
		return nil, err
	}
	if resp.Error != "" {
		err := &ServiceError{Endpoint: parsePath, Message: resp.Error}
		c.log.Error("Selection parse failed: %v", err)
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		transactions = append(transactions, tx.model())
	}

	c.log.Debug("Selection parse returned %d transactions", len(transactions))
	return transactions, nil
}
