package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Epistemic-Technology/invoice-audit/internal/backend"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

const openAIEndpoint = "openai:responses"

// lineTolerance is how far apart, in points, two word tops may be and
// still belong to the same statement line.
const lineTolerance = 6.0

var (
	// selectionSchema is the structured output contract for a parsed selection.
	selectionSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"transactions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"date":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"installment": map[string]any{"type": "string"},
						"value":       map[string]any{"type": "string"},
					},
					"required":             []string{"date", "description", "installment", "value"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"transactions"},
		"additionalProperties": false,
	}
)

const selectionPrompt = `The following lines were selected by a user on a credit card statement (fatura). Each line is a row of words read left to right.

Extract every line that is a financial transaction into the "transactions" array:
- "value": the amount exactly as printed in Brazilian format, e.g. "1.234,56" or "-50,00". Drop any "R$" prefix. Join a detached minus sign to the number.
- "date": the transaction date as printed (dd/mm or dd/mm/yyyy), or "" if none.
- "installment": the installment marker such as "03/10", or "" if none. Do not confuse it with the date.
- "description": the merchant or description text with the date, value and installment removed.

Skip lines without a monetary value (headers, totals labels, page furniture). Do not invent transactions.

Lines:
`

// SelectionParser turns selected words into transactions with an OpenAI
// model. It satisfies the same contract as the backend parse endpoint.
type SelectionParser struct {
	client  openai.Client
	model   shared.ChatModel
	limiter *backend.Limiter
	log     logger.Logger
}

// NewSelectionParser creates a parser using apiKey. Extra request options
// (base URL, HTTP client) are passed through to the OpenAI client.
func NewSelectionParser(apiKey string, log logger.Logger, opts ...option.RequestOption) (*SelectionParser, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &SelectionParser{
		client:  openai.NewClient(opts...),
		model:   shared.ChatModelGPT5Mini,
		limiter: backend.NewLimiter(backend.DefaultLimits()),
		log:     log.Named("llm"),
	}, nil
}

// ParseSelection sends the words, grouped into lines, to the model.
func (p *SelectionParser) ParseSelection(ctx context.Context, words []models.Word) ([]models.Transaction, error) {
	if len(words) == 0 {
		return nil, errors.New("no words to parse")
	}

	lines := GroupLines(words, lineTolerance)
	p.log.Debug("Calling OpenAI API for %d words in %d lines", len(words), len(lines))

	response, err := backend.Call(ctx, p.limiter, p.log, func(ctx context.Context) (*responses.Response, error) {
		resp, err := p.client.Responses.New(ctx, responses.ResponseNewParams{
			Model: p.model,
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentParamOfInputText(selectionPrompt + strings.Join(lines, "\n")),
						},
						"user",
					),
				},
			},
			Text: responses.ResponseTextConfigParam{
				Format: responses.ResponseFormatTextConfigParamOfJSONSchema("parsed_selection", selectionSchema),
			},
		})
		if err != nil {
			return nil, wrapAPIError(err)
		}
		return resp, nil
	})
	if err != nil {
		p.log.Error("OpenAI selection parse failed: %v", err)
		return nil, err
	}

	transactions, err := decodeSelection(response.OutputText())
	if err != nil {
		p.log.Error("OpenAI returned an unusable selection: %v", err)
		return nil, err
	}
	p.log.Info("OpenAI parsed %d transactions", len(transactions))
	return transactions, nil
}

// wrapAPIError maps OpenAI API failures onto *backend.ServiceError so the
// shared retry policy applies to throttling.
func wrapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &backend.ServiceError{Endpoint: openAIEndpoint, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &backend.ServiceError{Endpoint: openAIEndpoint, Err: err}
}

func decodeSelection(output string) ([]models.Transaction, error) {
	var result struct {
		Transactions []struct {
			Date        string `json:"date"`
			Description string `json:"description"`
			Installment string `json:"installment"`
			Value       string `json:"value"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		return nil, &backend.ServiceError{Endpoint: openAIEndpoint, Message: "invalid structured output", Err: err}
	}

	transactions := make([]models.Transaction, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		if strings.TrimSpace(tx.Value) == "" {
			continue
		}
		transactions = append(transactions, models.Transaction{
			Date:        strings.TrimSpace(tx.Date),
			Description: strings.TrimSpace(tx.Description),
			Installment: strings.TrimSpace(tx.Installment),
			Value:       strings.TrimSpace(tx.Value),
		})
	}
	return transactions, nil
}

// GroupLines clusters words into text lines: words are sorted by top, a new
// line starts when a word's top is more than tolerance away from the first
// word of the current line, and each line is read left to right.
func GroupLines(words []models.Word, tolerance float64) []string {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]models.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top < sorted[j].Top })

	var rows [][]models.Word
	current := []models.Word{sorted[0]}
	baseTop := sorted[0].Top
	for _, w := range sorted[1:] {
		if abs(w.Top-baseTop) <= tolerance {
			current = append(current, w)
			continue
		}
		rows = append(rows, current)
		current = []models.Word{w}
		baseTop = w.Top
	}
	rows = append(rows, current)

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X0 < row[j].X0 })
		texts := make([]string, 0, len(row))
		for _, w := range row {
			texts = append(texts, w.Text)
		}
		line := strings.TrimSpace(strings.Join(texts, " "))
		if len(line) > 1 {
			lines = append(lines, line)
		}
	}
	return lines
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// String identifies the parser in logs.
func (p *SelectionParser) String() string {
	return fmt.Sprintf("openai(%s)", p.model)
}
