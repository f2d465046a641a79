// File path: internal/retrieval/fusion.go
package retrieval

import (
	"sort"

	"github.com/cascadia-pm/backoffice/internal/kb"
)

// Fused pairs a chunk with the number of search branches that surfaced it.
// A chunk found by both dense and lexical search is stronger evidence of
// relevance than a single-branch hit with a higher raw similarity.
type Fused struct {
	kb.Chunk
	Boost int `json:"boost"`
}

// Fuse merges two ranked lists, deduplicating by chunk id. A chunk present in
// both lists gets boost 2 and keeps the maximum similarity seen. The merged
// list is ordered by boost descending then similarity descending; ties keep
// primary-list-first arrival order. The result is truncated to maxResults.
func Fuse(primary, secondary []kb.Chunk, maxResults int) []Fused {
	merged := make([]Fused, 0, len(primary)+len(secondary))
	index := make(map[string]int, len(primary)+len(secondary))

	for _, chunk := range primary {
		if at, seen := index[chunk.ID]; seen {
			if chunk.Similarity > merged[at].Similarity {
				merged[at].Similarity = chunk.Similarity
			}
			continue
		}
		index[chunk.ID] = len(merged)
		merged = append(merged, Fused{Chunk: chunk, Boost: 1})
	}
	for _, chunk := range secondary {
		if at, seen := index[chunk.ID]; seen {
			merged[at].Boost = 2
			if chunk.Similarity > merged[at].Similarity {
				merged[at].Similarity = chunk.Similarity
			}
			continue
		}
		index[chunk.ID] = len(merged)
		merged = append(merged, Fused{Chunk: chunk, Boost: 1})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Boost != merged[j].Boost {
			return merged[i].Boost > merged[j].Boost
		}
		return merged[i].Similarity > merged[j].Similarity
	})

	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

func fusedChunks(fused []Fused) []kb.Chunk {
	chunks := make([]kb.Chunk, 0, len(fused))
	for _, entry := range fused {
		chunks = append(chunks, entry.Chunk)
	}
	return chunks
}
