package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Epistemic-Technology/invoice-audit/internal/backend"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

func getAPIKey(t *testing.T) string {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	return apiKey
}

func statementWords() []models.Word {
	return []models.Word{
		{Text: "45,90", X0: 650, Top: 151, X1: 700, Bottom: 170},
		{Text: "PADARIA", X0: 300, Top: 150, X1: 340, Bottom: 170},
		{Text: "12/03", X0: 40, Top: 149, X1: 70, Bottom: 170},
		{Text: "13/03", X0: 40, Top: 180, X1: 70, Bottom: 200},
		{Text: "LOJA", X0: 300, Top: 181, X1: 330, Bottom: 200},
		{Text: "03/10", X0: 500, Top: 181, X1: 530, Bottom: 200},
		{Text: "199,00", X0: 650, Top: 180, X1: 700, Bottom: 200},
		{Text: "x", X0: 10, Top: 400, X1: 12, Bottom: 410},
	}
}

func TestGroupLines(t *testing.T) {
	lines := GroupLines(statementWords(), lineTolerance)

	expected := []string{
		"12/03 PADARIA 45,90",
		"13/03 LOJA 03/10 199,00",
	}
	if len(lines) != len(expected) {
		t.Fatalf("Expected %d lines, got %d: %q", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], expected[i])
		}
	}
}

func TestGroupLines_DoesNotMutateInput(t *testing.T) {
	words := statementWords()
	GroupLines(words, lineTolerance)
	if words[0].Text != "45,90" {
		t.Errorf("input reordered: %+v", words[0])
	}
}

func TestGroupLines_Empty(t *testing.T) {
	if lines := GroupLines(nil, lineTolerance); lines != nil {
		t.Errorf("Expected nil, got %q", lines)
	}
}

func TestDecodeSelection(t *testing.T) {
	output := `{"transactions": [
		{"date": "12/03", "description": " PADARIA ", "installment": "", "value": "45,90"},
		{"date": "", "description": "TOTAL", "installment": "", "value": ""},
		{"date": "13/03", "description": "LOJA", "installment": "03/10", "value": "199,00"}
	]}`

	txs, err := decodeSelection(output)
	if err != nil {
		t.Fatalf("decodeSelection failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions (valueless dropped), got %d", len(txs))
	}
	if txs[0].Description != "PADARIA" || txs[1].Installment != "03/10" {
		t.Errorf("unexpected transactions: %+v", txs)
	}
}

func TestDecodeSelection_Invalid(t *testing.T) {
	_, err := decodeSelection("not json")
	if !backend.IsServiceError(err) {
		t.Errorf("Expected *backend.ServiceError, got %v", err)
	}
}

func TestWrapAPIError_PlainError(t *testing.T) {
	err := wrapAPIError(errors.New("dial tcp: connection refused"))
	var se *backend.ServiceError
	if !errors.As(err, &se) || se.Retryable() {
		t.Errorf("Expected non-retryable ServiceError, got %v", err)
	}
}

func TestNewSelectionParser_RequiresKey(t *testing.T) {
	if _, err := NewSelectionParser("", logger.NewNoOpLogger()); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestParseSelection_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	apiKey := getAPIKey(t)
	parser, err := NewSelectionParser(apiKey, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("NewSelectionParser failed: %v", err)
	}

	txs, err := parser.ParseSelection(context.Background(), statementWords())
	if err != nil {
		t.Fatalf("ParseSelection failed: %v", err)
	}

	t.Logf("Parsed %d transactions", len(txs))
	if len(txs) != 2 {
		t.Errorf("Expected 2 transactions, got %d: %+v", len(txs), txs)
	}
	for i, tx := range txs {
		if tx.Value == "" || tx.Description == "" {
			t.Errorf("Transaction %d incomplete: %+v", i, tx)
		}
	}
}
