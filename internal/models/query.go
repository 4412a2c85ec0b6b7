package models

// QueryRequest is a question posed against the indexed documents.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryAnswer is the response to a query: the generated answer plus one
// citation string per retrieved passage, in retrieval order.
type QueryAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// IngestResult reports the outcome of an ingestion batch.
type IngestResult struct {
	IndexedChunks int      `json:"indexed_chunks"`
	Documents     []string `json:"documents"`
}
