// File path: internal/retrieval/engine.go
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/vector"
)

// Lexical is the keyword-side search contract, satisfied by the SQLite store.
type Lexical interface {
	FulltextSearch(ctx context.Context, query string, limit int) ([]kb.Chunk, error)
	PhraseSearch(ctx context.Context, phrase string, limit int) ([]kb.Chunk, error)
	SubstringSearch(ctx context.Context, text string, limit int) ([]kb.Chunk, error)
}

// Embedder turns query text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

// Engine runs the hybrid knowledge search: classify the query, fan out to the
// strategy's search branches concurrently, fuse, then quality-filter. A
// failing branch contributes an empty list; retrieval never hard-fails
// because one backend is down.
type Engine struct {
	lexical  Lexical
	vectors  vector.Store
	embedder Embedder
	cfg      Config
}

// Result is the outcome of one hybrid search. Degraded is set when the
// quality floor rejected every candidate and the raw top results were
// returned instead.
type Result struct {
	Query    string            `json:"query"`
	Intent   kb.Classification `json:"intent"`
	Chunks   []kb.Chunk        `json:"chunks"`
	Degraded bool              `json:"degraded"`
}

func NewEngine(lexical Lexical, vectors vector.Store, embedder Embedder, cfg Config) *Engine {
	return &Engine{
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		cfg:      DefaultConfig().Merge(cfg),
	}
}

// Search executes the full hybrid pipeline for one query.
func (e *Engine) Search(ctx context.Context, query string) (Result, error) {
	if e == nil {
		return Result{}, errors.New("retrieval engine not initialised")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{}, errors.New("query required")
	}
	cls := kb.Classify(trimmed)

	var lexicalHits, vectorHits []kb.Chunk
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		lexicalHits = e.lexicalBranch(groupCtx, cls, trimmed)
		return nil
	})
	group.Go(func() error {
		vectorHits = e.vectorBranch(groupCtx, trimmed)
		return nil
	})
	group.Wait()

	fused := e.combine(cls.Intent, lexicalHits, vectorHits)
	chunks, degraded := ApplyQualityFloor(fusedChunks(fused), e.cfg.QualityFloor, e.cfg.FallbackCount)
	return Result{
		Query:    trimmed,
		Intent:   cls,
		Chunks:   chunks,
		Degraded: degraded,
	}, nil
}

// combine applies the per-intent fusion rules. Lexical results lead for
// lookup intents; semantic queries keep vector-primary ordering with the
// fulltext supplement folded in.
func (e *Engine) combine(intent kb.Intent, lexicalHits, vectorHits []kb.Chunk) []Fused {
	switch intent {
	case kb.IntentPhraseLookup, kb.IntentSectionLookup:
		if len(lexicalHits) == 0 {
			return Fuse(vectorHits, nil, e.cfg.MaxResults)
		}
		return Fuse(lexicalHits, vectorHits, e.cfg.MaxResults)
	case kb.IntentKeyword:
		return Fuse(lexicalHits, vectorHits, e.cfg.MaxResults)
	default:
		return Fuse(vectorHits, lexicalHits, e.cfg.MaxResults)
	}
}

// lexicalBranch dispatches the intent's keyword-side search. Errors and
// panics degrade to an empty branch so the vector side still answers.
func (e *Engine) lexicalBranch(ctx context.Context, cls kb.Classification, query string) (hits []kb.Chunk) {
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("retrieval: lexical dispatch panicked", "intent", cls.Intent, "panic", fmt.Sprint(r))
			hits = nil
		}
	}()
	if e.lexical == nil {
		return nil
	}
	branchCtx, cancel := context.WithTimeout(ctx, e.cfg.BranchTimeout)
	defer cancel()

	var err error
	switch cls.Intent {
	case kb.IntentPhraseLookup:
		hits, err = e.lexical.PhraseSearch(branchCtx, cls.Phrase, e.cfg.LexicalLimit)
		if err == nil && len(hits) == 0 {
			hits, err = e.lexical.SubstringSearch(branchCtx, cls.Phrase, e.cfg.LexicalLimit)
		}
	case kb.IntentSectionLookup:
		target := cls.Section
		if target == "" {
			target = query
		}
		hits, err = e.lexical.SubstringSearch(branchCtx, target, e.cfg.LexicalLimit)
	case kb.IntentKeyword, kb.IntentSemantic:
		hits, err = e.lexical.FulltextSearch(branchCtx, query, e.cfg.LexicalLimit)
	default:
		return nil
	}
	if err != nil {
		common.Logger().Warn("retrieval: lexical branch failed", "intent", cls.Intent, "error", err)
		return nil
	}
	return hits
}

// vectorBranch embeds the query and runs the dense search at the candidate
// floor. Any failure yields an empty branch.
func (e *Engine) vectorBranch(ctx context.Context, query string) []kb.Chunk {
	if e.vectors == nil || e.embedder == nil {
		return nil
	}
	if !e.vectors.Available() {
		common.Logger().Warn("retrieval: vector store unavailable")
		return nil
	}
	branchCtx, cancel := context.WithTimeout(ctx, e.cfg.BranchTimeout)
	defer cancel()

	vectors, err := e.embedder.Embed(branchCtx, []string{query})
	if err != nil || len(vectors) == 0 {
		common.Logger().Warn("retrieval: query embedding failed", "error", err)
		return nil
	}
	hits, err := e.vectors.Query(branchCtx, vectors[0], e.cfg.CandidateFloor, e.cfg.CandidateCount)
	if err != nil {
		common.Logger().Warn("retrieval: vector search failed", "error", err)
		return nil
	}
	chunks := make([]kb.Chunk, 0, len(hits))
	for _, hit := range hits {
		chunk := hit.Chunk
		chunk.Similarity = hit.Similarity
		chunks = append(chunks, chunk)
	}
	return chunks
}
