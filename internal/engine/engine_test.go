package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/lifecycle"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// fixedEmbedder returns preset vectors by text, for precise ranking tests.
type fixedEmbedder struct {
	dims    int
	vectors map[string][]float32
	err     error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dims), nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return f.dims }
func (f *fixedEmbedder) Close() error    { return nil }

func seededManager(t *testing.T) *lifecycle.Manager {
	t.Helper()
	m := lifecycle.NewManager(filepath.Join(t.TempDir(), "passages.idx"), 2)
	err := m.Append([]vector.Entry{
		{Passage: models.Passage{ID: "p0", Text: "annual leave is twenty days", SourceDocument: "leave.pdf", PageNumber: 4}, Vector: []float32{1, 0}},
		{Passage: models.Passage{ID: "p1", Text: "office hours are nine to five", SourceDocument: "hours.pdf", PageNumber: 2}, Vector: []float32{0, 1}},
		{Passage: models.Passage{ID: "p2", Text: "carry-over needs approval", SourceDocument: "leave.pdf"}, Vector: []float32{0.7, 0.7}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAnswer_emptyQuestion(t *testing.T) {
	e := NewEngine(seededManager(t), &fixedEmbedder{dims: 2}, &generation.MockGenerator{Answer: "x"}, 3)
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := e.Answer(context.Background(), q); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("question %q: got %v", q, err)
		}
	}
}

func TestAnswer_embeddingFailureIsFatal(t *testing.T) {
	emb := &fixedEmbedder{dims: 2, err: embedding.ErrUnavailable}
	gen := &generation.MockGenerator{Answer: "x"}
	e := NewEngine(seededManager(t), emb, gen, 3)
	_, err := e.Answer(context.Background(), "how much leave do I get?")
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Fatalf("got %v", err)
	}
	if len(gen.Prompts) != 0 {
		t.Error("generation must not run when the question cannot be embedded")
	}
}

func TestAnswer_retrievalOrderAndCitations(t *testing.T) {
	question := "how much annual leave?"
	emb := &fixedEmbedder{dims: 2, vectors: map[string][]float32{question: {1, 0.1}}}
	gen := &generation.MockGenerator{Answer: "Twenty days."}
	e := NewEngine(seededManager(t), emb, gen, 2)

	ans, err := e.Answer(context.Background(), question)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "Twenty days." {
		t.Errorf("answer = %q", ans.Answer)
	}
	wantSources := []string{"page 4 from leave.pdf", "page unknown from leave.pdf"}
	if len(ans.Sources) != 2 || ans.Sources[0] != wantSources[0] || ans.Sources[1] != wantSources[1] {
		t.Errorf("sources = %v, want %v", ans.Sources, wantSources)
	}
	if len(gen.Prompts) != 1 {
		t.Fatalf("prompts = %d", len(gen.Prompts))
	}
	prompt := gen.Prompts[0]
	if !strings.Contains(prompt, question) {
		t.Error("prompt should contain the question")
	}
	first := strings.Index(prompt, "annual leave is twenty days")
	second := strings.Index(prompt, "carry-over needs approval")
	if first == -1 || second == -1 || first > second {
		t.Errorf("passages missing or out of ranked order in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "office hours") {
		t.Error("prompt should only contain the top-k passages")
	}
}

func TestAnswer_emptyStoreGivesNoResultsAnswer(t *testing.T) {
	m := lifecycle.NewManager(filepath.Join(t.TempDir(), "passages.idx"), 2)
	gen := &generation.MockGenerator{Answer: "x"}
	e := NewEngine(m, &fixedEmbedder{dims: 2}, gen, 3)

	ans, err := e.Answer(context.Background(), "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != noResultsAnswer {
		t.Errorf("answer = %q", ans.Answer)
	}
	if ans.Sources == nil || len(ans.Sources) != 0 {
		t.Errorf("sources should be empty, got %v", ans.Sources)
	}
	if len(gen.Prompts) != 0 {
		t.Error("generation must not run without retrieved passages")
	}
}

func TestAnswer_storeLoadFailureIsInternal(t *testing.T) {
	// The snapshot path is a directory, so the lazy load fails with an I/O
	// error rather than an empty store.
	m := lifecycle.NewManager(t.TempDir(), 2)
	gen := &generation.MockGenerator{Answer: "x"}
	e := NewEngine(m, &fixedEmbedder{dims: 2}, gen, 3)

	_, err := e.Answer(context.Background(), "anything?")
	if err == nil {
		t.Fatal("expected an error from the unloadable store")
	}
	if errors.Is(err, ErrEmptyQuestion) || errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, vector.ErrInvalidK) {
		t.Errorf("load failure misreported as a caller error: %v", err)
	}
	if len(gen.Prompts) != 0 {
		t.Error("generation must not run when retrieval fails")
	}
}

func TestAnswer_generationFailureKeepsCitations(t *testing.T) {
	question := "how much annual leave?"
	emb := &fixedEmbedder{dims: 2, vectors: map[string][]float32{question: {1, 0.1}}}
	gen := &generation.MockGenerator{Err: generation.ErrUnavailable}
	e := NewEngine(seededManager(t), emb, gen, 2)

	ans, err := e.Answer(context.Background(), question)
	if err != nil {
		t.Fatalf("generation failure must not surface as an error, got %v", err)
	}
	if ans.Answer != generationFailedAnswer {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 2 || ans.Sources[0] != "page 4 from leave.pdf" {
		t.Errorf("citations should survive generation failure, got %v", ans.Sources)
	}
}

func TestAnswer_generationTimeoutKeepsCitations(t *testing.T) {
	question := "leave?"
	emb := &fixedEmbedder{dims: 2, vectors: map[string][]float32{question: {1, 0}}}
	gen := &generation.MockGenerator{Err: generation.ErrTimeout}
	e := NewEngine(seededManager(t), emb, gen, 1)

	ans, err := e.Answer(context.Background(), question)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != generationFailedAnswer || len(ans.Sources) != 1 {
		t.Errorf("got %+v", ans)
	}
}

func TestCitation(t *testing.T) {
	got := Citation(models.Passage{SourceDocument: "hr.pdf", PageNumber: 12})
	if got != "page 12 from hr.pdf" {
		t.Errorf("citation = %q", got)
	}
	got = Citation(models.Passage{SourceDocument: "notes.txt", PageNumber: models.PageUnknown})
	if got != "page unknown from notes.txt" {
		t.Errorf("citation = %q", got)
	}
}
