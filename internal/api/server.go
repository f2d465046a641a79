// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/cascadia-pm/backoffice/internal/chat"
	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/comps"
	"github.com/cascadia-pm/backoffice/internal/config"
	"github.com/cascadia-pm/backoffice/internal/rent"
	"github.com/cascadia-pm/backoffice/internal/retrieval"
	"github.com/cascadia-pm/backoffice/internal/store"
	"github.com/cascadia-pm/backoffice/internal/vector"
)

// KnowledgeSearcher runs the hybrid statute search.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) (retrieval.Result, error)
}

// QuestionAnswerer produces grounded chat answers.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

// RentAnalyzer runs the comp-based rent recommendation.
type RentAnalyzer interface {
	Analyze(ctx context.Context, subject comps.SubjectProperty) (rent.Analysis, error)
}

type Server struct {
	router    chi.Router
	store     *store.Store
	searcher  KnowledgeSearcher
	assistant QuestionAnswerer
	analyzer  RentAnalyzer
	vectors   vector.Store
	embedder  retrieval.Embedder
	market    config.Market
}

func NewServer(st *store.Store, searcher KnowledgeSearcher, assistant QuestionAnswerer, analyzer RentAnalyzer, vectors vector.Store, embedder retrieval.Embedder, market config.Market) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		store:     st,
		searcher:  searcher,
		assistant: assistant,
		analyzer:  analyzer,
		vectors:   vectors,
		embedder:  embedder,
		market:    market,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Get("/v1/logs", s.handleLogs)

	s.router.Get("/v1/kb/search", s.handleKBSearch)
	s.router.Post("/v1/kb/ask", s.handleKBAsk)
	s.router.Post("/v1/kb/import", s.handleKBImport)

	s.router.Get("/v1/comps", s.handleListComps)
	s.router.Post("/v1/comps", s.handleCreateComp)
	s.router.Get("/v1/comps/{id}", s.handleGetComp)
	s.router.Put("/v1/comps/{id}", s.handleUpdateComp)
	s.router.Delete("/v1/comps/{id}", s.handleDeleteComp)
	s.router.Post("/v1/comps/sync", s.handleSyncComps)
	s.router.Post("/v1/comps/import", s.handleImportCompsCSV)

	s.router.Get("/v1/baselines", s.handleListBaselines)
	s.router.Post("/v1/baselines", s.handleUpsertBaseline)
	s.router.Delete("/v1/baselines/{id}", s.handleDeleteBaseline)

	s.router.Post("/v1/rent/analyze", s.handleRentAnalyze)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
