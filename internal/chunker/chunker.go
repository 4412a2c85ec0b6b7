// Package chunker splits extracted document text into overlapping passages.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrInvalidSplitConfig is returned when the split configuration would make
// chunking loop forever or produce no progress.
var ErrInvalidSplitConfig = errors.New("invalid split config")

// SplitConfig controls how text is split into passages. Separators are tried
// in priority order; a trailing "" separator means raw character splitting.
type SplitConfig struct {
	MaxChunkSize int
	Overlap      int
	Separators   []string
}

// Validate checks the config before any text is processed.
func (cfg SplitConfig) Validate() error {
	if cfg.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidSplitConfig, cfg.MaxChunkSize)
	}
	if cfg.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidSplitConfig, cfg.Overlap)
	}
	if cfg.MaxChunkSize <= cfg.Overlap {
		return fmt.Errorf("%w: max chunk size %d must exceed overlap %d", ErrInvalidSplitConfig, cfg.MaxChunkSize, cfg.Overlap)
	}
	return nil
}

// Chunker splits page-structured text into overlapping passages with provenance.
// Chunking is deterministic: the same input and config always yield the same passages.
type Chunker struct {
	cfg SplitConfig
}

// NewChunker creates a chunker after validating cfg.
func NewChunker(cfg SplitConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits the pages of a document into passages. Passage IDs are derived
// from docID and the chunk index so re-ingesting the same document yields the
// same IDs. Empty input produces no passages.
func (c *Chunker) Chunk(docID, source string, pages []models.Page) []models.Passage {
	var passages []models.Passage
	idx := 0
	for _, page := range pages {
		for _, text := range c.splitText(page.Text, c.cfg.Separators) {
			passages = append(passages, models.Passage{
				ID:             fmt.Sprintf("%s_%d", docID, idx),
				Text:           text,
				SourceDocument: source,
				PageNumber:     page.Number,
				ChunkIndex:     idx,
			})
			idx++
		}
	}
	return passages
}

// splitText recursively splits text: the first separator found in the text is
// used to break it apart, oversized pieces are split again with the remaining
// separators, and small pieces are merged back up to MaxChunkSize with Overlap
// characters of shared context between adjacent chunks.
func (c *Chunker) splitText(text string, separators []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.cfg.MaxChunkSize {
		return []string{strings.TrimSpace(text)}
	}
	sep, rest := nextSeparator(text, separators)
	if sep == "" {
		return c.splitFixed(text)
	}
	return c.merge(strings.SplitAfter(text, sep), rest)
}

// nextSeparator returns the first separator present in text and the separators
// after it. An empty separator (or none matching) selects raw character splitting.
func nextSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// merge packs parts into chunks of at most MaxChunkSize. When a chunk is
// emitted, its last Overlap characters are carried into the next chunk so
// meaning at the boundary is not lost. Parts that alone exceed MaxChunkSize
// are split recursively with the remaining separators.
func (c *Chunker) merge(parts []string, separators []string) []string {
	max := c.cfg.MaxChunkSize
	var chunks []string
	cur := ""      // pending chunk; may begin with overlap carried from the previous one
	fresh := false // whether cur holds content not yet emitted
	emit := func() {
		if t := strings.TrimSpace(cur); t != "" {
			chunks = append(chunks, t)
		}
		cur = overlapTail(cur, c.cfg.Overlap)
		fresh = false
	}
	for _, p := range parts {
		if len(p) > max {
			if fresh {
				emit()
			}
			cur = ""
			fresh = false
			chunks = append(chunks, c.splitText(p, separators)...)
			continue
		}
		if fresh && len(cur)+len(p) > max {
			emit()
		}
		// Shrink the carried overlap so the next chunk stays under max.
		for !fresh && cur != "" && len(cur)+len(p) > max {
			_, size := utf8.DecodeRuneInString(cur)
			cur = cur[size:]
		}
		cur += p
		fresh = true
	}
	if fresh {
		if t := strings.TrimSpace(cur); t != "" {
			chunks = append(chunks, t)
		}
	}
	return chunks
}

// splitFixed splits text into fixed-size windows of MaxChunkSize runes
// stepping by MaxChunkSize-Overlap, used when no separator applies.
func (c *Chunker) splitFixed(text string) []string {
	step := c.cfg.MaxChunkSize - c.cfg.Overlap
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + c.cfg.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if t := strings.TrimSpace(string(runes[i:end])); t != "" {
			chunks = append(chunks, t)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// overlapTail returns the last n bytes of s, advanced to a rune boundary.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}
