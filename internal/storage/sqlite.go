package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would open a fresh empty database
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT,
		page_count INTEGER NOT NULL,
		zotero_id TEXT,
		url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pages (
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		width REAL,
		height REAL,
		words TEXT,
		image TEXT,
		image_width INTEGER,
		image_height INTEGER,
		PRIMARY KEY (document_id, page_number),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS extracted_transactions (
		document_id TEXT NOT NULL,
		tx_index INTEGER NOT NULL,
		source_id INTEGER,
		date TEXT,
		description TEXT,
		installment TEXT,
		value TEXT,
		box TEXT,
		PRIMARY KEY (document_id, tx_index),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_zotero_id ON documents(zotero_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type pageRow struct {
	meta  *models.PageMeta
	image *models.PageImage
}

// StoreExtraction caches an extraction result under docID
func (s *SQLiteStore) StoreExtraction(ctx context.Context, docID string, data *models.VisualData, sourceInfo *models.SourceInfo) error {
	if data == nil {
		return fmt.Errorf("no extraction to store for %s", docID)
	}
	if sourceInfo == nil {
		sourceInfo = &models.SourceInfo{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDocument(ctx, tx, docID); err != nil {
		return err
	}

	filename := data.Filename
	if filename == "" {
		filename = sourceInfo.Filename
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, page_count, zotero_id, url)
		VALUES (?, ?, ?, ?, ?)
	`, docID, filename, len(data.TextMap), sourceInfo.ZoteroID, sourceInfo.URL)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	// Store pages; metadata and images share a row per page number
	rows := make(map[int]*pageRow)
	for i := range data.TextMap {
		p := &data.TextMap[i]
		rows[p.Page] = &pageRow{meta: p}
	}
	for i := range data.Images {
		img := &data.Images[i]
		if r, ok := rows[img.Page]; ok {
			r.image = img
		} else {
			rows[img.Page] = &pageRow{image: img}
		}
	}
	for page, r := range rows {
		var (
			width, height sql.NullFloat64
			words, image  sql.NullString
			imgW, imgH    sql.NullInt64
		)
		if r.meta != nil {
			wordsJSON, err := json.Marshal(r.meta.Words)
			if err != nil {
				return fmt.Errorf("failed to marshal words for page %d: %w", page, err)
			}
			width = sql.NullFloat64{Float64: r.meta.Width, Valid: true}
			height = sql.NullFloat64{Float64: r.meta.Height, Valid: true}
			words = sql.NullString{String: string(wordsJSON), Valid: true}
		}
		if r.image != nil {
			image = sql.NullString{String: r.image.Data, Valid: true}
			imgW = sql.NullInt64{Int64: int64(r.image.Width), Valid: true}
			imgH = sql.NullInt64{Int64: int64(r.image.Height), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pages (document_id, page_number, width, height, words, image, image_width, image_height)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, docID, page, width, height, words, image, imgW, imgH)
		if err != nil {
			return fmt.Errorf("failed to insert page %d: %w", page, err)
		}
	}

	// Store transactions found by the extraction service
	for i, t := range data.Transactions {
		var box sql.NullString
		if t.Box != nil {
			boxJSON, err := json.Marshal(t.Box)
			if err != nil {
				return fmt.Errorf("failed to marshal box for transaction %d: %w", i, err)
			}
			box = sql.NullString{String: string(boxJSON), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO extracted_transactions (document_id, tx_index, source_id, date, description, installment, value, box)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, docID, i, t.SourceID, t.Date, t.Description, t.Installment, t.Value, box)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExtraction retrieves a cached extraction by document ID
func (s *SQLiteStore) GetExtraction(ctx context.Context, docID string) (*models.VisualData, error) {
	var data models.VisualData
	var filename sql.NullString

	err := s.db.QueryRowContext(ctx, `SELECT filename FROM documents WHERE id = ?`, docID).Scan(&filename)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	data.Filename = filename.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT page_number, width, height, words, image, image_width, image_height
		FROM pages
		WHERE document_id = ?
		ORDER BY page_number
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			page          int
			width, height sql.NullFloat64
			words, image  sql.NullString
			imgW, imgH    sql.NullInt64
		)
		if err := rows.Scan(&page, &width, &height, &words, &image, &imgW, &imgH); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		if words.Valid {
			meta := models.PageMeta{Page: page, Width: width.Float64, Height: height.Float64}
			if err := json.Unmarshal([]byte(words.String), &meta.Words); err != nil {
				return nil, fmt.Errorf("failed to unmarshal words for page %d: %w", page, err)
			}
			data.TextMap = append(data.TextMap, meta)
		}
		if image.Valid {
			data.Images = append(data.Images, models.PageImage{
				Page:   page,
				Width:  int(imgW.Int64),
				Height: int(imgH.Int64),
				Data:   image.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}
	// release the connection before the next query; :memory: stores have one
	rows.Close()

	txs, err := s.getTransactions(ctx, docID)
	if err != nil {
		return nil, err
	}
	data.Transactions = txs

	return &data, nil
}

func (s *SQLiteStore) getTransactions(ctx context.Context, docID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, date, description, installment, value, box
		FROM extracted_transactions
		WHERE document_id = ?
		ORDER BY tx_index
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var box sql.NullString
		if err := rows.Scan(&t.SourceID, &t.Date, &t.Description, &t.Installment, &t.Value, &box); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if box.Valid {
			t.Box = &models.SourceBox{}
			if err := json.Unmarshal([]byte(box.String), t.Box); err != nil {
				return nil, fmt.Errorf("failed to unmarshal box: %w", err)
			}
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// DocumentExists checks whether an extraction is cached for docID
func (s *SQLiteStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return count > 0, nil
}

// ListDocuments returns a list of all cached documents
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]models.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, page_count, zotero_id, url
		FROM documents
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var documents []models.DocumentInfo
	for rows.Next() {
		var doc models.DocumentInfo
		var filename, zoteroID, url sql.NullString
		if err := rows.Scan(&doc.DocumentID, &filename, &doc.PageCount, &zoteroID, &url); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Filename = filename.String
		doc.SourceInfo = models.SourceInfo{ZoteroID: zoteroID.String, URL: url.String, Filename: filename.String}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// DeleteDocument removes a document and all associated data
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check document existence: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err := deleteDocument(ctx, tx, docID); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteDocument removes rows explicitly; foreign key enforcement is off by
// default in SQLite so ON DELETE CASCADE cannot be relied on.
func deleteDocument(ctx context.Context, tx *sql.Tx, docID string) error {
	for _, table := range []string{"extracted_transactions", "pages"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id = ?`, docID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GenerateDocumentID derives a cache key from the document bytes, so the
// same PDF maps to the same entry whatever its filename or source.
func GenerateDocumentID(data []byte) string {
	return fmt.Sprintf("sha256_%x", sha256.Sum256(data))
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
