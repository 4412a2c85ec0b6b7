// Package models defines core data structures for documents, passages, and queries.
package models

import "time"

// PageUnknown marks a passage whose source page could not be determined.
const PageUnknown = 0

// Passage is a chunk of document text with provenance, the unit of retrieval.
// Passages are immutable once created and owned by the store that indexed them.
type Passage struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
	PageNumber     int    `json:"page_number"` // 1-based; PageUnknown when unavailable
	ChunkIndex     int    `json:"chunk_index"`
}

// Page is one page of an ingested document. Number is 1-based; PageUnknown
// when the source format has no page structure.
type Page struct {
	Number int    `json:"number,omitempty"`
	Text   string `json:"text"`
}

// DocumentInput is a document submitted for ingestion, already extracted to text.
type DocumentInput struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Pages  []Page `json:"pages"`
}

// DocumentRecord is a catalog entry for an ingested document.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}
