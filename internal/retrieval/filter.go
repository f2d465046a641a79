// File path: internal/retrieval/filter.go
package retrieval

import (
	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/kb"
)

// ApplyQualityFloor keeps chunks at or above the similarity floor. When every
// candidate falls below it, the first fallbackCount candidates pass through
// in their pre-filter order instead — a low-confidence answer with sources
// beats an empty one. The second return reports that degradation happened.
func ApplyQualityFloor(chunks []kb.Chunk, floor float64, fallbackCount int) ([]kb.Chunk, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	logSimilarityDistribution(chunks, floor)

	kept := make([]kb.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Similarity >= floor {
			kept = append(kept, chunk)
		}
	}
	if len(kept) > 0 {
		return kept, false
	}
	if fallbackCount <= 0 {
		fallbackCount = defaultFallbackCount
	}
	if fallbackCount > len(chunks) {
		fallbackCount = len(chunks)
	}
	fallback := make([]kb.Chunk, fallbackCount)
	copy(fallback, chunks[:fallbackCount])
	return fallback, true
}

func logSimilarityDistribution(chunks []kb.Chunk, floor float64) {
	min, max := chunks[0].Similarity, chunks[0].Similarity
	sum := 0.0
	for _, chunk := range chunks {
		if chunk.Similarity < min {
			min = chunk.Similarity
		}
		if chunk.Similarity > max {
			max = chunk.Similarity
		}
		sum += chunk.Similarity
	}
	common.Logger().Debug("retrieval: similarity distribution",
		"count", len(chunks),
		"min", min,
		"avg", sum/float64(len(chunks)),
		"max", max,
		"floor", floor,
	)
}
