package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Epistemic-Technology/zotero/zotero"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// maxDocumentSize caps uploads; statements are a handful of pages.
const maxDocumentSize = 50 << 20

var (
	// ErrNoSource is returned when a request names no document source.
	ErrNoSource = errors.New("no document provided")
	// ErrNotPDF is returned for documents that are not PDFs.
	ErrNotPDF = errors.New("document is not a PDF")
)

// ZoteroCredentials authenticate attachment downloads.
type ZoteroCredentials struct {
	APIKey    string
	LibraryID string
}

// Source names exactly one place to read a document from.
type Source struct {
	RawData  []byte
	Filename string
	URL      string
	ZoteroID string
}

// DetectDocumentType determines the type of document from its magic bytes.
func DetectDocumentType(data []byte) string {
	trimmed := bytes.TrimLeft(data, "\x00\t\r\n ")
	if bytes.HasPrefix(trimmed, []byte("%PDF")) {
		return "pdf"
	}
	if len(data) >= 4 && data[0] == 0x50 && data[1] == 0x4B {
		return "zip"
	}
	return "unknown"
}

// Load fetches the document named by src, checks that it is a readable PDF
// and returns it with its page count.
func Load(ctx context.Context, src Source, creds ZoteroCredentials) (models.DocumentData, int, error) {
	var (
		data     []byte
		filename = src.Filename
		err      error
	)

	switch {
	case len(src.RawData) > 0:
		data = src.RawData
	case src.URL != "":
		data, err = GetFromURL(ctx, src.URL)
		if err != nil {
			return models.DocumentData{}, 0, fmt.Errorf("failed to fetch %s: %w", src.URL, err)
		}
		if filename == "" {
			filename = path.Base(strings.SplitN(src.URL, "?", 2)[0])
		}
	case src.ZoteroID != "":
		data, err = GetFromZotero(ctx, src.ZoteroID, creds)
		if err != nil {
			return models.DocumentData{}, 0, fmt.Errorf("failed to fetch Zotero attachment %s: %w", src.ZoteroID, err)
		}
		if filename == "" {
			filename = src.ZoteroID + ".pdf"
		}
	default:
		return models.DocumentData{}, 0, ErrNoSource
	}

	if len(data) > maxDocumentSize {
		return models.DocumentData{}, 0, fmt.Errorf("document too large: %d bytes", len(data))
	}

	pages, err := PageCount(data)
	if err != nil {
		return models.DocumentData{}, 0, err
	}

	if filename == "" || filename == "." || filename == "/" {
		filename = "document.pdf"
	}
	return models.DocumentData{Filename: filename, Data: data, Type: "pdf"}, pages, nil
}

// GetFromURL fetches document data from a URL
func GetFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
}

// GetFromZotero fetches an attachment file from a Zotero library
func GetFromZotero(ctx context.Context, zoteroID string, creds ZoteroCredentials) ([]byte, error) {
	if creds.APIKey == "" || creds.LibraryID == "" {
		return nil, errors.New("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID are required")
	}
	client := zotero.NewClient(creds.LibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(creds.APIKey))
	return client.File(ctx, zoteroID)
}
