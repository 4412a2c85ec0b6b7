// Package catalog keeps a SQLite record of every ingested document.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// Catalog stores document records: which sources were ingested, how many
// pages and chunks each produced, and when. The passages themselves live in
// the vector store; the catalog only powers status reporting and listing.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocument inserts or replaces a document record. Re-ingesting the same
// document ID updates the existing record.
func (c *Catalog) RecordDocument(ctx context.Context, rec *models.DocumentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, source, page_count, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.PageCount, rec.ChunkCount, rec.CreatedAt,
	)
	return err
}

// DeleteDocument removes a document record by ID. Deleting a missing record
// is not an error.
func (c *Catalog) DeleteDocument(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// GetDocument returns a document record by ID.
func (c *Catalog) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	err := c.db.QueryRowContext(ctx,
		`SELECT id, source, page_count, chunk_count, created_at FROM documents WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Source, &rec.PageCount, &rec.ChunkCount, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListDocuments returns all records in ingestion order.
func (c *Catalog) ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, source, page_count, chunk_count, created_at FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*models.DocumentRecord
	for rows.Next() {
		var rec models.DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.PageCount, &rec.ChunkCount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountDocuments returns the number of ingested documents.
func (c *Catalog) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the total number of chunks across all documents.
func (c *Catalog) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(chunk_count), 0) FROM documents`).Scan(&n)
	return n, err
}

// Clear removes all document records.
func (c *Catalog) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
