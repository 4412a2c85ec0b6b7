// Package ingest turns documents into embedded passages in the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/catalog"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/lifecycle"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// ErrNoDocuments is returned when an ingestion batch contains no documents.
var ErrNoDocuments = errors.New("no documents provided")

// Ingestor chunks, embeds, and indexes documents. Embeddings for a batch are
// computed before the store lock is taken, so slow capability calls never
// block concurrent queries; the append itself is all-or-nothing.
type Ingestor struct {
	manager   *lifecycle.Manager
	embedder  embedding.Embedder
	catalog   *catalog.Catalog
	splitCfg  chunker.SplitConfig
	extractor *extract.Extractor
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output (documents ingested, chunk counts, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an ingestor with the given dependencies.
// extractor may be nil; then IngestFile is unavailable.
func NewIngestor(
	manager *lifecycle.Manager,
	embedder embedding.Embedder,
	cat *catalog.Catalog,
	cfg *config.QueryConfig,
	extractor *extract.Extractor,
	opts ...Option,
) *Ingestor {
	ing := &Ingestor{
		manager:   manager,
		embedder:  embedder,
		catalog:   cat,
		splitCfg:  SplitConfigFrom(cfg),
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// SplitConfigFrom builds the chunking config from the query settings.
func SplitConfigFrom(cfg *config.QueryConfig) chunker.SplitConfig {
	return chunker.SplitConfig{
		MaxChunkSize: cfg.ChunkSize,
		Overlap:      cfg.ChunkOverlap,
		Separators:   append([]string(nil), cfg.Separators...),
	}
}

// IngestDocuments chunks and indexes a batch of already-extracted documents.
// override, when non-nil, replaces the configured split settings for this
// batch. The whole batch either lands in the store or none of it does.
func (ing *Ingestor) IngestDocuments(ctx context.Context, docs []models.DocumentInput, override *chunker.SplitConfig) (*models.IngestResult, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	splitCfg := ing.splitCfg
	if override != nil {
		splitCfg = *override
	}
	ch, err := chunker.NewChunker(splitCfg)
	if err != nil {
		return nil, err
	}

	var passages []models.Passage
	records := make([]models.DocumentRecord, 0, len(docs))
	sources := make([]string, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if doc.ID == "" {
			doc.ID = uuid.New().String()
		}
		if doc.Source == "" {
			doc.Source = doc.ID
		}
		chunks := ch.Chunk(doc.ID, doc.Source, doc.Pages)
		passages = append(passages, chunks...)
		records = append(records, models.DocumentRecord{
			ID:         doc.ID,
			Source:     doc.Source,
			PageCount:  len(doc.Pages),
			ChunkCount: len(chunks),
		})
		sources = append(sources, doc.Source)
		if ing.logger != nil {
			ing.logger.Debug("document chunked",
				zap.String("id", doc.ID),
				zap.String("source", doc.Source),
				zap.Int("chunks", len(chunks)))
		}
	}

	var entries []vector.Entry
	if len(passages) > 0 {
		texts := make([]string, len(passages))
		for i, p := range passages {
			texts[i] = p.Text
		}
		// Embeddings are generated before any store lock is taken.
		vectors, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		entries = make([]vector.Entry, len(passages))
		for i := range passages {
			entries[i] = vector.Entry{Passage: passages[i], Vector: vectors[i]}
		}
	}

	// Catalog records go in before the store append. The append is the
	// durable step; if it fails, the cheap SQLite records are deleted again
	// so a retry starts from a clean slate either way.
	if ing.catalog != nil {
		for i := range records {
			if err := ing.catalog.RecordDocument(ctx, &records[i]); err != nil {
				ing.unrecord(ctx, records[:i])
				return nil, fmt.Errorf("failed to record document: %w", err)
			}
		}
	}

	if len(entries) > 0 {
		if err := ing.manager.Append(entries); err != nil {
			if ing.catalog != nil {
				ing.unrecord(ctx, records)
			}
			return nil, fmt.Errorf("failed to index passages: %w", err)
		}
	}
	return &models.IngestResult{IndexedChunks: len(passages), Documents: sources}, nil
}

// unrecord deletes catalog records written for a batch that failed to index.
// Best effort: a delete failure is logged, not returned, so the original
// ingestion error stays visible to the caller.
func (ing *Ingestor) unrecord(ctx context.Context, records []models.DocumentRecord) {
	for i := range records {
		if err := ing.catalog.DeleteDocument(ctx, records[i].ID); err != nil && ing.logger != nil {
			ing.logger.Warn("failed to remove catalog record after indexing failure",
				zap.String("id", records[i].ID),
				zap.Error(err))
		}
	}
}

// IngestFile extracts the file at path and ingests it as one document. The
// document ID is derived from the absolute path so re-ingesting the same file
// updates the same catalog record.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	if ing.extractor == nil {
		return nil, errors.New("no extractor configured")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	pages, err := ing.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}
	doc := models.DocumentInput{
		ID:     FileDocID(absPath),
		Source: filepath.Base(absPath),
		Pages:  pages,
	}
	return ing.IngestDocuments(ctx, []models.DocumentInput{doc}, nil)
}

// FileDocID returns a stable document ID for a file path.
func FileDocID(absPath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(absPath))
	base := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	return fmt.Sprintf("file_%s_%x", sanitizeID(base), h.Sum64())
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
