package vector

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func passage(id string) models.Passage {
	return models.Passage{ID: id, Text: "text for " + id, SourceDocument: "doc.pdf", PageNumber: 1}
}

func newTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "passages.idx"), dims)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_endToEndRanking(t *testing.T) {
	s := newTestStore(t, 2)
	err := s.Add([]Entry{
		{Passage: passage("a"), Vector: []float32{1, 0}},
		{Passage: passage("b"), Vector: []float32{0, 1}},
		{Passage: passage("c"), Vector: []float32{0.7, 0.7}},
	})
	if err != nil {
		t.Fatal(err)
	}
	results, err := s.Search([]float32{1, 0.1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Passage.ID != "a" || results[1].Passage.ID != "c" {
		t.Errorf("ranking = %s, %s; want a, c", results[0].Passage.ID, results[1].Passage.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestStore_searchDeterministic(t *testing.T) {
	s := newTestStore(t, 3)
	_ = s.Add([]Entry{
		{Passage: passage("a"), Vector: []float32{1, 0, 0}},
		{Passage: passage("b"), Vector: []float32{0.9, 0.1, 0}},
		{Passage: passage("c"), Vector: []float32{0, 1, 0}},
	})
	first, err := s.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.Search([]float32{1, 0, 0}, 3)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated search should return identical results")
	}
}

func TestStore_tiesBrokenByInsertionOrder(t *testing.T) {
	s := newTestStore(t, 2)
	_ = s.Add([]Entry{
		{Passage: passage("first"), Vector: []float32{0, 1}},
		{Passage: passage("second"), Vector: []float32{0, 1}},
		{Passage: passage("third"), Vector: []float32{0, 2}}, // same direction, same cosine
	})
	results, err := s.Search([]float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{results[0].Passage.ID, results[1].Passage.ID, results[2].Passage.ID}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tie order = %v, want %v", got, want)
	}
}

func TestStore_kLargerThanStore(t *testing.T) {
	s := newTestStore(t, 2)
	_ = s.Add([]Entry{
		{Passage: passage("a"), Vector: []float32{1, 0}},
		{Passage: passage("b"), Vector: []float32{0, 1}},
	})
	results, err := s.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want all 2", len(results))
	}
}

func TestStore_emptySearch(t *testing.T) {
	s := newTestStore(t, 2)
	results, err := s.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty store should return empty result, got %d", len(results))
	}
}

func TestStore_invalidK(t *testing.T) {
	s := newTestStore(t, 2)
	if _, err := s.Search([]float32{1, 0}, 0); !errors.Is(err, ErrInvalidK) {
		t.Errorf("k=0: got %v", err)
	}
	if _, err := s.Search([]float32{1, 0}, -3); !errors.Is(err, ErrInvalidK) {
		t.Errorf("k=-3: got %v", err)
	}
}

func TestStore_queryDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 3)
	if _, err := s.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v", err)
	}
}

func TestStore_addAllOrNothing(t *testing.T) {
	s := newTestStore(t, 2)
	_ = s.Add([]Entry{{Passage: passage("a"), Vector: []float32{1, 0}}})
	err := s.Add([]Entry{
		{Passage: passage("b"), Vector: []float32{0, 1}},
		{Passage: passage("bad"), Vector: []float32{0, 1, 2}}, // wrong dimension
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Size() != 1 {
		t.Errorf("failed batch must not change the store; size = %d", s.Size())
	}
}

func TestStore_persistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.idx")
	s, err := New(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		{Passage: models.Passage{ID: "p0", Text: "vacation", SourceDocument: "hr.pdf", PageNumber: 4, ChunkIndex: 0}, Vector: []float32{1, 0}},
		{Passage: models.Passage{ID: "p1", Text: "sick leave", SourceDocument: "hr.pdf", PageNumber: 9, ChunkIndex: 1}, Vector: []float32{0, 1}},
		{Passage: models.Passage{ID: "p2", Text: "remote work", SourceDocument: "it.pdf", ChunkIndex: 2}, Vector: []float32{0.7, 0.7}},
	}
	if err := s.Add(entries); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Search([]float32{1, 0.1}, 3)

	loaded, err := LoadOrCreate(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Persisted() {
		t.Error("loaded store should be persisted")
	}
	after, err := loaded.Search([]float32{1, 0.1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rankings differ after reload:\nbefore %+v\nafter  %+v", before, after)
	}
	if after[0].Passage.SourceDocument != "hr.pdf" || after[0].Passage.PageNumber != 4 {
		t.Errorf("provenance lost: %+v", after[0].Passage)
	}
}

func TestStore_writeThroughAfterPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.idx")
	s, _ := New(path, 2)
	_ = s.Add([]Entry{{Passage: passage("a"), Vector: []float32{1, 0}}})
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}
	// After Persist, Add must reach disk without another Persist call.
	if err := s.Add([]Entry{{Passage: passage("b"), Vector: []float32{0, 1}}}); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadOrCreate(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Errorf("write-through missed an entry; size = %d", loaded.Size())
	}
}

func TestLoadOrCreate_dimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.idx")
	s, _ := New(path, 2)
	_ = s.Add([]Entry{{Passage: passage("a"), Vector: []float32{1, 0}}})
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreate(path, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLoadOrCreate_freshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.idx")
	s, err := LoadOrCreate(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Size() != 0 || s.Persisted() {
		t.Errorf("fresh store: size=%d persisted=%v", s.Size(), s.Persisted())
	}
}

func TestStore_clearErasesDurableState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passages.idx")
	s, _ := New(path, 2)
	_ = s.Add([]Entry{{Passage: passage("a"), Vector: []float32{1, 0}}})
	if err := s.Persist(); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 0 {
		t.Errorf("size after clear = %d", s.Size())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("durable state should be erased")
	}
	reloaded, err := LoadOrCreate(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Size() != 0 {
		t.Errorf("reloaded size = %d", reloaded.Size())
	}
}
