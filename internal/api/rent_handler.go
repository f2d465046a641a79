// File path: internal/api/rent_handler.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

func (s *Server) handleRentAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Subject.Town) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("subject town required"))
		return
	}
	if !s.market.Services(req.Subject.Town) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("town %q is not serviced", req.Subject.Town))
		return
	}
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("rent analysis unavailable"))
		return
	}
	analysis, err := s.analyzer.Analyze(r.Context(), req.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}
