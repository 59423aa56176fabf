package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/invoice-audit/internal/audit"
	"github.com/Epistemic-Technology/invoice-audit/internal/documents"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/models"
)

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, filename string, data []byte) (*models.VisualData, error) {
	return &models.VisualData{
		Filename: filename,
		Images:   []models.PageImage{{Page: 1, Width: 2000, Height: 2800, Data: "data:image/jpeg;base64,AAAA"}},
		TextMap: []models.PageMeta{{Page: 1, Width: 1000, Words: []models.Word{
			{Text: "12/03", X0: 210, Top: 150, X1: 250, Bottom: 170},
			{Text: "PADARIA", X0: 300, Top: 150, X1: 340, Bottom: 170},
			{Text: "45,90", X0: 650, Top: 150, X1: 700, Bottom: 170},
		}}},
	}, nil
}

type fakeParser struct {
	words []models.Word
}

func (p *fakeParser) ParseSelection(ctx context.Context, words []models.Word) ([]models.Transaction, error) {
	p.words = words
	return []models.Transaction{{Date: "12/03", Description: "PADARIA", Value: "45,90"}}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeParser) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	parser := &fakeParser{}
	opts := audit.DefaultOptions()
	opts.Renderer = nil
	session := audit.NewSession(fakeExtractor{}, parser, logger.NewNoOpLogger(), opts)
	return NewRouter(session, nil, documents.ZoteroCredentials{}, logger.NewNoOpLogger()), parser
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	pdf, err := os.ReadFile("../documents/testdata/statement.pdf")
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "fatura.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write(pdf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuditFlow(t *testing.T) {
	r, parser := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/state", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"loaded":false`) {
		t.Fatalf("GET /state = %d %s", w.Code, w.Body.String())
	}

	if w := upload(t, r); w.Code != http.StatusCreated {
		t.Fatalf("POST /documents = %d %s", w.Code, w.Body.String())
	}

	// before the page is measured a selection does nothing
	w = do(t, r, http.MethodPost, "/selections", `{"page":1,"x":120,"y":70,"width":200,"height":60}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"outcome":"ignored"`) {
		t.Errorf("unmeasured selection = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/pages/1/geometry", `{"x":20,"y":20,"displayed_width":500}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"scale":0.5`) {
		t.Fatalf("PUT geometry = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPost, "/selections", `{"page":1,"x":120,"y":70,"width":200,"height":60}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /selections = %d %s", w.Code, w.Body.String())
	}
	var res audit.Resolution
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad resolution: %v", err)
	}
	if res.Outcome != audit.OutcomeMerged || len(res.Added) != 1 {
		t.Errorf("unexpected resolution: %+v", res)
	}
	if len(parser.words) != 2 || parser.words[0].Text != "12/03" || parser.words[1].Text != "PADARIA" {
		t.Errorf("parser received %+v", parser.words)
	}
	id := res.Added[0].ID

	w = do(t, r, http.MethodPatch, "/transactions/"+itoa(id), `{"field":"value","value":"50,10"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"50,10"`) {
		t.Errorf("PATCH = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPatch, "/transactions/"+itoa(id), `{"field":"amount","value":"1,00"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("PATCH unknown field = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/review", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total_cents":5010`) {
		t.Errorf("GET /review = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodDelete, "/transactions/"+itoa(id), ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodGet, "/transactions", "")
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "PADARIA") {
		t.Errorf("list after delete = %s", w.Body.String())
	}
}

func TestDragRequiresSelectMode(t *testing.T) {
	r, _ := newTestRouter(t)
	upload(t, r)
	do(t, r, http.MethodPut, "/pages/1/geometry", `{"x":20,"y":20,"displayed_width":500}`)

	drag := `{"page":1,"points":[{"x":320,"y":130},{"x":200,"y":100},{"x":120,"y":70}]}`
	w := do(t, r, http.MethodPost, "/selections", drag)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"outcome":"ignored"`) {
		t.Errorf("drag in scroll mode = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodPut, "/state", `{"mode":"select"}`); w.Code != http.StatusOK {
		t.Fatalf("PUT /state = %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/selections", drag)
	if w.Code != http.StatusCreated {
		t.Fatalf("drag in select mode = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/state", "")
	if !strings.Contains(w.Body.String(), `"mode":"scroll"`) || !strings.Contains(w.Body.String(), `"drawer_open":true`) {
		t.Errorf("state after merge = %s", w.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"geometry without document", http.MethodPut, "/pages/1/geometry", `{"displayed_width":500}`, http.StatusConflict},
		{"geometry without width", http.MethodPut, "/pages/1/geometry", `{"x":1}`, http.StatusBadRequest},
		{"bad page", http.MethodPut, "/pages/zero/geometry", `{"displayed_width":500}`, http.StatusBadRequest},
		{"document without source", http.MethodPost, "/documents", `{}`, http.StatusBadRequest},
		{"unknown transaction", http.MethodPatch, "/transactions/99", `{"field":"value","value":"1,00"}`, http.StatusNotFound},
		{"bad transaction id", http.MethodDelete, "/transactions/abc", "", http.StatusBadRequest},
		{"unknown view", http.MethodPut, "/state", `{"view":"settings"}`, http.StatusBadRequest},
		{"single point drag", http.MethodPost, "/selections", `{"page":1,"points":[{"x":1,"y":1}]}`, http.StatusBadRequest},
		{"page not loaded", http.MethodGet, "/pages/3", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
