package embedding

import (
	"context"
	"sync"
	"testing"
)

func TestEmbeddingCache_LRU(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if _, ok := c.Get("a"); !ok {
		t.Error("a should be cached")
	}
	c.Set("c", []float32{3}) // evicts b (a was touched more recently)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be cached")
	}
}

func TestEmbeddingCache_concurrentHits(t *testing.T) {
	c := NewEmbeddingCache(8)
	keys := []string{"a", "b", "c", "d"}
	for i, k := range keys {
		c.Set(k, []float32{float32(i)})
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := keys[(g+i)%len(keys)]
				if _, ok := c.Get(k); !ok {
					t.Errorf("%s should be cached", k)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestEmbeddingCache_updateExisting(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	v, ok := c.Get("a")
	if !ok || v[0] != 9 {
		t.Errorf("got %v, %v", v, ok)
	}
}

// countingEmbedder counts how many texts hit the inner embedder.
type countingEmbedder struct {
	*MockEmbedder
	calls int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls += len(texts)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.MockEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_batchServesHits(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4)}
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	if _, err := cached.EmbedBatch(ctx, []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d", inner.calls)
	}
	vectors, err := cached.EmbedBatch(ctx, []string{"x", "z", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 3 {
		t.Errorf("only the miss should reach the inner embedder, calls = %d", inner.calls)
	}
	want, _ := inner.MockEmbedder.Embed(ctx, "x")
	for i := range want {
		if vectors[0][i] != want[i] {
			t.Fatal("cached vector differs from embedder output")
		}
	}
}

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "same text")
	b, _ := e.Embed(ctx, "same text")
	other, _ := e.Embed(ctx, "different text")
	if len(a) != 8 {
		t.Fatalf("dimension = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}
