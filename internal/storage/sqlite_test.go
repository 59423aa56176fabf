package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleExtraction() *models.VisualData {
	return &models.VisualData{
		Filename: "fatura.pdf",
		Images: []models.PageImage{
			{Page: 1, Width: 1190, Height: 1684, Data: "data:image/jpeg;base64,AAAA"},
			{Page: 2, Width: 1190, Height: 1684, Data: "data:image/jpeg;base64,BBBB"},
		},
		TextMap: []models.PageMeta{
			{Page: 1, Width: 595, Height: 842, Words: []models.Word{
				{Text: "PADARIA", X0: 300, Top: 150, X1: 340, Bottom: 170},
				{Text: "45,90", X0: 650, Top: 150, X1: 700, Bottom: 170},
			}},
			{Page: 2, Width: 595, Height: 842, Words: []models.Word{}},
		},
		Transactions: []models.Transaction{
			{SourceID: 7, Date: "12/03", Description: "PADARIA", Value: "45,90",
				Box: &models.SourceBox{Page: 1, X0: 40, Top: 149, X1: 700, Bottom: 170}},
			{Date: "13/03", Description: "LOJA", Installment: "03/10", Value: "199,00"},
		},
	}
}

func TestStoreAndGetExtraction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docID := GenerateDocumentID([]byte("%PDF-1.4 fatura"))
	err := store.StoreExtraction(ctx, docID, sampleExtraction(), &models.SourceInfo{URL: "https://example.com/fatura.pdf"})
	if err != nil {
		t.Fatalf("StoreExtraction failed: %v", err)
	}

	got, err := store.GetExtraction(ctx, docID)
	if err != nil {
		t.Fatalf("GetExtraction failed: %v", err)
	}

	if got.Filename != "fatura.pdf" {
		t.Errorf("Filename = %q", got.Filename)
	}
	if len(got.TextMap) != 2 || len(got.Images) != 2 {
		t.Fatalf("Expected 2 pages and 2 images, got %d and %d", len(got.TextMap), len(got.Images))
	}
	page, ok := got.Page(1)
	if !ok || page.Width != 595 || len(page.Words) != 2 || page.Words[1].Text != "45,90" {
		t.Errorf("unexpected page 1: %+v", page)
	}
	if img, ok := got.Image(2); !ok || img.Data != "data:image/jpeg;base64,BBBB" {
		t.Errorf("unexpected image 2: %+v", img)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(got.Transactions))
	}
	if got.Transactions[0].Box == nil || got.Transactions[0].Box.X1 != 700 || got.Transactions[0].SourceID != 7 {
		t.Errorf("unexpected first transaction: %+v", got.Transactions[0])
	}
	if got.Transactions[1].Box != nil || got.Transactions[1].Installment != "03/10" {
		t.Errorf("unexpected second transaction: %+v", got.Transactions[1])
	}
}

func TestStoreExtraction_Replaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.StoreExtraction(ctx, "doc", sampleExtraction(), nil); err != nil {
		t.Fatalf("StoreExtraction failed: %v", err)
	}
	smaller := &models.VisualData{
		Filename: "fatura.pdf",
		TextMap:  []models.PageMeta{{Page: 1, Width: 600}},
	}
	if err := store.StoreExtraction(ctx, "doc", smaller, nil); err != nil {
		t.Fatalf("second StoreExtraction failed: %v", err)
	}

	got, err := store.GetExtraction(ctx, "doc")
	if err != nil {
		t.Fatalf("GetExtraction failed: %v", err)
	}
	if len(got.TextMap) != 1 || len(got.Images) != 0 || len(got.Transactions) != 0 {
		t.Errorf("old rows survived: %+v", got)
	}
}

func TestGetExtraction_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetExtraction(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListAndDeleteDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.StoreExtraction(ctx, "a", sampleExtraction(), &models.SourceInfo{ZoteroID: "ABCD1234"}); err != nil {
		t.Fatalf("StoreExtraction failed: %v", err)
	}
	if err := store.StoreExtraction(ctx, "b", &models.VisualData{TextMap: []models.PageMeta{{Page: 1, Width: 595}}}, &models.SourceInfo{Filename: "b.pdf"}); err != nil {
		t.Fatalf("StoreExtraction failed: %v", err)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].DocumentID != "b" || docs[0].Filename != "b.pdf" || docs[0].PageCount != 1 {
		t.Errorf("unexpected newest document: %+v", docs[0])
	}
	if docs[1].SourceInfo.ZoteroID != "ABCD1234" || docs[1].PageCount != 2 {
		t.Errorf("unexpected oldest document: %+v", docs[1])
	}

	if err := store.DeleteDocument(ctx, "a"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	exists, err := store.DocumentExists(ctx, "a")
	if err != nil || exists {
		t.Errorf("document a still exists (err=%v)", err)
	}
	if err := store.DeleteDocument(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestGenerateDocumentID(t *testing.T) {
	a := GenerateDocumentID([]byte("one"))
	b := GenerateDocumentID([]byte("one"))
	c := GenerateDocumentID([]byte("two"))
	if a != b {
		t.Error("same bytes produced different IDs")
	}
	if a == c {
		t.Error("different bytes produced the same ID")
	}
	if !strings.HasPrefix(a, "sha256_") || len(a) != len("sha256_")+64 {
		t.Errorf("unexpected ID format %q", a)
	}
}

func TestCalculateResourcePaths(t *testing.T) {
	paths := CalculateResourcePaths(sampleExtraction())
	want := []string{"audit://state", "audit://transactions", "audit://review", "audit://pages/1", "audit://pages/2", "audit://pages/{page}/image"}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
