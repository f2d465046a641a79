// File path: internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cascadia-pm/backoffice/internal/chat"
	"github.com/cascadia-pm/backoffice/internal/comps"
	"github.com/cascadia-pm/backoffice/internal/config"
	"github.com/cascadia-pm/backoffice/internal/kb"
	"github.com/cascadia-pm/backoffice/internal/rent"
	"github.com/cascadia-pm/backoffice/internal/retrieval"
	"github.com/cascadia-pm/backoffice/internal/store"
)

type stubSearcher struct {
	result retrieval.Result
	err    error
}

func (s *stubSearcher) Search(ctx context.Context, query string) (retrieval.Result, error) {
	return s.result, s.err
}

type stubAssistant struct {
	answer chat.Answer
	err    error
}

func (s *stubAssistant) Ask(ctx context.Context, question string) (chat.Answer, error) {
	return s.answer, s.err
}

type stubAnalyzer struct {
	analysis rent.Analysis
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, subject comps.SubjectProperty) (rent.Analysis, error) {
	return s.analysis, s.err
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	market, err := config.LoadMarket()
	if err != nil {
		t.Fatalf("load market: %v", err)
	}
	searcher := &stubSearcher{result: retrieval.Result{
		Query:  "q",
		Chunks: []kb.Chunk{{ID: "c1", Similarity: 0.7}},
	}}
	assistant := &stubAssistant{answer: chat.Answer{Answer: "grounded reply"}}
	analyzer := &stubAnalyzer{analysis: rent.Analysis{RecommendedMid: 1500, Notes: []string{"base"}}}
	return NewServer(st, searcher, assistant, analyzer, nil, nil, market), st
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestKBSearchRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := doJSON(t, srv, http.MethodGet, "/v1/kb/search", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec := doJSON(t, srv, http.MethodGet, "/v1/kb/search?q=deposit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result retrieval.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].ID != "c1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestKBAsk(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/v1/kb/ask", askRequest{Question: "how long for deposits?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var answer chat.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if answer.Answer != "grounded reply" {
		t.Fatalf("unexpected answer: %q", answer.Answer)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/v1/kb/ask", askRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty question, got %d", rec.Code)
	}
}

func TestKBImportStoresChunks(t *testing.T) {
	srv, st := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/v1/kb/import", importChunksRequest{Chunks: []kb.Chunk{
		{ID: "ors-90.300-0", Content: "deposit text", SourceType: kb.SourceStatute, SourceSection: "90.300"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp importChunksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Imported != 1 {
		t.Fatalf("imported = %d", resp.Imported)
	}
	if resp.Warning == "" {
		t.Fatal("expected warning with no vector backend configured")
	}
	count, err := st.ChunkCount(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("chunk count = %d err = %v", count, err)
	}
}

func TestCompLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	create := doJSON(t, srv, http.MethodPost, "/v1/comps", comps.RentalComp{
		Town: "Eugene", Address: "100 Oak St", Bedrooms: 2, MonthlyRent: 1500,
		PropertyType: comps.PropertyApartment,
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", create.Code, create.Body.String())
	}
	var created comps.RentalComp
	if err := json.Unmarshal(create.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	path := fmt.Sprintf("/v1/comps/%d", created.ID)
	if rec := doJSON(t, srv, http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}

	created.MonthlyRent = 1600
	if rec := doJSON(t, srv, http.MethodPut, path, created); rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	list := doJSON(t, srv, http.MethodGet, "/v1/comps?towns=Eugene&bedrooms=2", nil)
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), "100 Oak St") {
		t.Fatalf("list = %d: %s", list.Code, list.Body.String())
	}

	if rec := doJSON(t, srv, http.MethodDelete, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCompCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/v1/comps", comps.RentalComp{Town: "Eugene"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSyncRejectsManualSource(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/v1/comps/sync", syncCompsRequest{Source: comps.SourceManual})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCSVImport(t *testing.T) {
	srv, _ := newTestServer(t)
	csvBody := strings.Join([]string{
		"town,address,bedrooms,bathrooms,sqft,property_type,amenities,monthly_rent,comp_date",
		"Eugene,200 Pine St,2,1,900,apartment,parking;laundry,1450,2026-05-01",
		"Eugene,202 Pine St,notanumber,1,900,apartment,,1450,2026-05-01",
		"Springfield,10 Main St,3,2,1300,sfr,garage,1900,2026-06-15",
	}, "\n")
	req := httptest.NewRequest(http.MethodPost, "/v1/comps/import", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", rec.Code, rec.Body.String())
	}
	var resp importCompsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Imported != 2 || resp.Skipped != 1 {
		t.Fatalf("imported/skipped = %d/%d, want 2/1", resp.Imported, resp.Skipped)
	}
	if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0], "line 3") {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
}

func TestBaselineUpsertAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	fmr := 1480.0
	rec := doJSON(t, srv, http.MethodPost, "/v1/baselines", store.Baseline{
		AreaName: "Eugene-Springfield, OR MSA", Bedrooms: 2, FMRRent: &fmr, DataYear: 2026,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert = %d: %s", rec.Code, rec.Body.String())
	}
	list := doJSON(t, srv, http.MethodGet, "/v1/baselines?area=Eugene-Springfield,+OR+MSA", nil)
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), "1480") {
		t.Fatalf("list = %d: %s", list.Code, list.Body.String())
	}
}

func TestRentAnalyzeChecksServicedTowns(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/v1/rent/analyze", analyzeRequest{
		Subject: comps.SubjectProperty{Town: "Portland", Bedrooms: 2},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unserviced town, got %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/rent/analyze", analyzeRequest{
		Subject: comps.SubjectProperty{Town: "Eugene", Bedrooms: 2},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze = %d: %s", rec.Code, rec.Body.String())
	}
	var analysis rent.Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if analysis.RecommendedMid != 1500 {
		t.Fatalf("mid = %d", analysis.RecommendedMid)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/v1/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logs") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
