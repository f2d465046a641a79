// File path: internal/api/kb_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/kb"
)

func (s *Server) handleKBSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing q parameter"))
		return
	}
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("search unavailable"))
		return
	}
	result, err := s.searcher.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleKBAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("question required"))
		return
	}
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("assistant unavailable"))
		return
	}
	answer, err := s.assistant.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleKBImport loads statute chunks into the lexical index, then embeds and
// pushes them to the vector store when one is reachable. Vector indexing is
// best effort; the lexical index alone still serves lookups.
func (s *Server) handleKBImport(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req importChunksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	chunks := make([]kb.Chunk, 0, len(req.Chunks))
	for _, chunk := range req.Chunks {
		if strings.TrimSpace(chunk.ID) == "" || strings.TrimSpace(chunk.Content) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("chunk id and content required"))
			return
		}
		chunk.SourceType = kb.ParseSourceType(string(chunk.SourceType))
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no chunks provided"))
		return
	}
	if err := s.store.UpsertChunks(r.Context(), chunks); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	logger.Info("kb: chunks imported", "count", len(chunks))

	resp := importChunksResponse{Imported: len(chunks)}
	indexed, err := s.indexChunks(r, chunks)
	if err != nil {
		resp.Warning = fmt.Sprintf("vector indexing skipped: %v", err)
		logger.Warn("kb: vector indexing skipped", "error", err)
	} else {
		resp.Indexed = indexed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) indexChunks(r *http.Request, chunks []kb.Chunk) (int, error) {
	if s.vectors == nil || s.embedder == nil {
		return 0, fmt.Errorf("no vector backend configured")
	}
	if !s.vectors.Available() {
		return 0, fmt.Errorf("vector store unavailable")
	}
	contents := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, chunk.Content)
	}
	vectors, err := s.embedder.Embed(r.Context(), contents)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d vs %d", len(vectors), len(chunks))
	}
	if len(vectors) > 0 {
		if err := s.vectors.EnsureCollection(r.Context(), len(vectors[0])); err != nil {
			return 0, fmt.Errorf("ensure collection: %w", err)
		}
	}
	if err := s.vectors.UpsertChunks(r.Context(), chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}
	return len(chunks), nil
}
