// File path: internal/retrieval/engine_test.go
package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/vector"
)

func TestFuseBoostLaw(t *testing.T) {
	primary := []kb.Chunk{
		{ID: "a", Similarity: 0.9},
		{ID: "b", Similarity: 0.4},
	}
	secondary := []kb.Chunk{
		{ID: "b", Similarity: 0.7},
		{ID: "c", Similarity: 0.8},
	}
	fused := Fuse(primary, secondary, 15)
	if len(fused) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(fused))
	}
	byID := map[string]Fused{}
	for _, entry := range fused {
		byID[entry.ID] = entry
	}
	if byID["b"].Boost != 2 {
		t.Fatalf("overlap chunk boost = %d, want 2", byID["b"].Boost)
	}
	if byID["b"].Similarity != 0.7 {
		t.Fatalf("overlap chunk keeps max similarity, got %v", byID["b"].Similarity)
	}
	if byID["a"].Boost != 1 || byID["c"].Boost != 1 {
		t.Fatal("single-branch chunks must have boost 1")
	}
	// Boosted first, then by similarity.
	if fused[0].ID != "b" {
		t.Fatalf("boosted chunk must lead, got %s", fused[0].ID)
	}
	if fused[1].ID != "a" || fused[2].ID != "c" {
		t.Fatalf("boost-1 entries must sort by similarity: %s, %s", fused[1].ID, fused[2].ID)
	}
}

func TestFuseStableForEqualKeys(t *testing.T) {
	primary := []kb.Chunk{
		{ID: "x", Similarity: 0.5},
		{ID: "y", Similarity: 0.5},
		{ID: "z", Similarity: 0.5},
	}
	fused := Fuse(primary, nil, 15)
	for i, want := range []string{"x", "y", "z"} {
		if fused[i].ID != want {
			t.Fatalf("equal-key order not preserved at %d: got %s", i, fused[i].ID)
		}
	}
}

func TestFuseTruncates(t *testing.T) {
	primary := make([]kb.Chunk, 20)
	for i := range primary {
		primary[i] = kb.Chunk{ID: string(rune('a' + i))}
	}
	if got := len(Fuse(primary, nil, 15)); got != 15 {
		t.Fatalf("expected truncation to 15, got %d", got)
	}
}

func TestQualityFloorFallback(t *testing.T) {
	chunks := []kb.Chunk{
		{ID: "1", Similarity: 0.45},
		{ID: "2", Similarity: 0.40},
		{ID: "3", Similarity: 0.35},
		{ID: "4", Similarity: 0.30},
		{ID: "5", Similarity: 0.25},
		{ID: "6", Similarity: 0.20},
		{ID: "7", Similarity: 0.15},
	}
	kept, degraded := ApplyQualityFloor(chunks, 0.50, 5)
	if !degraded {
		t.Fatal("expected degraded result")
	}
	if len(kept) != 5 {
		t.Fatalf("expected min(5, n) fallback, got %d", len(kept))
	}
	for i, want := range []string{"1", "2", "3", "4", "5"} {
		if kept[i].ID != want {
			t.Fatalf("fallback must keep pre-filter order, slot %d = %s", i, kept[i].ID)
		}
	}

	// Fewer candidates than the fallback count.
	kept, degraded = ApplyQualityFloor(chunks[:3], 0.50, 5)
	if !degraded || len(kept) != 3 {
		t.Fatalf("expected all 3 low candidates back, got %d degraded=%v", len(kept), degraded)
	}
}

func TestQualityFloorKeepsPassing(t *testing.T) {
	chunks := []kb.Chunk{
		{ID: "hi", Similarity: 0.82},
		{ID: "low", Similarity: 0.31},
	}
	kept, degraded := ApplyQualityFloor(chunks, 0.50, 5)
	if degraded {
		t.Fatal("should not degrade when a candidate passes")
	}
	if len(kept) != 1 || kept[0].ID != "hi" {
		t.Fatalf("unexpected kept set: %+v", kept)
	}
}

type fakeLexical struct {
	fulltext  []kb.Chunk
	phrase    []kb.Chunk
	substring []kb.Chunk
	err       error

	phraseCalls    int
	substringCalls int
	fulltextCalls  int
}

func (f *fakeLexical) FulltextSearch(ctx context.Context, query string, limit int) ([]kb.Chunk, error) {
	f.fulltextCalls++
	return f.fulltext, f.err
}

func (f *fakeLexical) PhraseSearch(ctx context.Context, phrase string, limit int) ([]kb.Chunk, error) {
	f.phraseCalls++
	return f.phrase, f.err
}

func (f *fakeLexical) SubstringSearch(ctx context.Context, text string, limit int) ([]kb.Chunk, error) {
	f.substringCalls++
	return f.substring, f.err
}

type fakeVectors struct {
	hits      []vector.Hit
	err       error
	available bool
}

func (f *fakeVectors) Available() bool    { return f.available }
func (f *fakeVectors) Collection() string { return "test" }
func (f *fakeVectors) EnsureCollection(ctx context.Context, dim int) error {
	return nil
}
func (f *fakeVectors) UpsertChunks(ctx context.Context, chunks []kb.Chunk, vectors [][]float32) error {
	return nil
}
func (f *fakeVectors) Query(ctx context.Context, v []float32, floor float64, limit int) ([]vector.Hit, error) {
	return f.hits, f.err
}

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(input))
	for i := range input {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func TestSearchPhraseFallsBackToSubstring(t *testing.T) {
	lex := &fakeLexical{substring: []kb.Chunk{{ID: "sub-hit", Similarity: 0.9}}}
	vec := &fakeVectors{available: true}
	engine := NewEngine(lex, vec, &fakeEmbedder{}, Config{})

	result, err := engine.Search(context.Background(), `what is "reasonable wear and tear"?`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if lex.phraseCalls != 1 || lex.substringCalls != 1 {
		t.Fatalf("expected phrase then substring, got %d/%d", lex.phraseCalls, lex.substringCalls)
	}
	if result.Intent.Intent != kb.IntentPhraseLookup {
		t.Fatalf("intent = %s", result.Intent.Intent)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "sub-hit" {
		t.Fatalf("unexpected chunks: %+v", result.Chunks)
	}
}

func TestSearchDegradesToVectorOnLexicalFailure(t *testing.T) {
	lex := &fakeLexical{err: errors.New("index offline")}
	vec := &fakeVectors{
		available: true,
		hits: []vector.Hit{
			{Chunk: kb.Chunk{ID: "v1"}, Similarity: 0.83},
			{Chunk: kb.Chunk{ID: "v2"}, Similarity: 0.61},
		},
	}
	engine := NewEngine(lex, vec, &fakeEmbedder{}, Config{})

	result, err := engine.Search(context.Background(), "where can I find the deposit rules")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Chunks) != 2 || result.Chunks[0].ID != "v1" {
		t.Fatalf("expected vector-only results, got %+v", result.Chunks)
	}
	if result.Degraded {
		t.Fatal("vector hits above floor must not flag degradation")
	}
}

func TestSearchSurvivesEverythingFailing(t *testing.T) {
	lex := &fakeLexical{err: errors.New("down")}
	vec := &fakeVectors{available: true, err: errors.New("down")}
	engine := NewEngine(lex, vec, &fakeEmbedder{}, Config{})

	result, err := engine.Search(context.Background(), "notice requirements for rent increases")
	if err != nil {
		t.Fatalf("search must not hard-fail: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("expected empty result, got %d", len(result.Chunks))
	}
}

func TestSearchSemanticKeepsVectorPrimary(t *testing.T) {
	lex := &fakeLexical{fulltext: []kb.Chunk{{ID: "ft", Similarity: 0}}}
	vec := &fakeVectors{
		available: true,
		hits:      []vector.Hit{{Chunk: kb.Chunk{ID: "v"}, Similarity: 0.72}},
	}
	engine := NewEngine(lex, vec, &fakeEmbedder{}, Config{})

	result, err := engine.Search(context.Background(), "my tenant left the unit damaged")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if result.Intent.Intent != kb.IntentSemantic {
		t.Fatalf("intent = %s", result.Intent.Intent)
	}
	if lex.fulltextCalls != 1 {
		t.Fatal("semantic intent must still run the fulltext supplement")
	}
	if len(result.Chunks) == 0 || result.Chunks[0].ID != "v" {
		t.Fatalf("vector hit must lead: %+v", result.Chunks)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	engine := NewEngine(&fakeLexical{}, &fakeVectors{}, &fakeEmbedder{}, Config{})
	if _, err := engine.Search(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}
