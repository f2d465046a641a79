// File path: internal/api/comps_handler.go
package api

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/comps"
	"github.com/cascadia-pm/backoffice/internal/store"
)

func (s *Server) handleListComps(w http.ResponseWriter, r *http.Request) {
	filter, err := compFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.store.ListComps(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comps": results, "count": len(results)})
}

func (s *Server) handleGetComp(w http.ResponseWriter, r *http.Request) {
	id, err := compID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comp, err := s.store.CompByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Errorf("comp %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

func (s *Server) handleCreateComp(w http.ResponseWriter, r *http.Request) {
	var comp comps.RentalComp
	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := validateComp(&comp); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if comp.DataSource == "" {
		comp.DataSource = comps.SourceManual
	}
	if err := s.store.InsertComp(r.Context(), &comp); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

func (s *Server) handleUpdateComp(w http.ResponseWriter, r *http.Request) {
	id, err := compID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var comp comps.RentalComp
	if err := json.NewDecoder(r.Body).Decode(&comp); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	comp.ID = id
	if err := validateComp(&comp); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.UpdateComp(r.Context(), comp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Errorf("comp %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

func (s *Server) handleDeleteComp(w http.ResponseWriter, r *http.Request) {
	id, err := compID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.DeleteComp(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Errorf("comp %d not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

func (s *Server) handleSyncComps(w http.ResponseWriter, r *http.Request) {
	var req syncCompsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Source == "" || req.Source == comps.SourceManual {
		writeError(w, http.StatusBadRequest, fmt.Errorf("sync requires a non-manual source"))
		return
	}
	written, err := s.store.ReplaceSourceComps(r.Context(), req.Source, req.Comps)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	common.Logger().Info("comps: source synced", "source", req.Source, "written", written)
	writeJSON(w, http.StatusOK, syncCompsResponse{Source: req.Source, Written: written})
}

// handleImportCompsCSV ingests a CSV body of manual comps. Rows that fail
// validation are skipped and reported; valid rows still import.
func (s *Server) handleImportCompsCSV(w http.ResponseWriter, r *http.Request) {
	reader := csv.NewReader(r.Body)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read csv header: %w", err))
		return
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"town", "address", "bedrooms", "monthly_rent"} {
		if _, ok := columns[required]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("csv missing required column %q", required))
			return
		}
	}

	resp := importCompsResponse{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			resp.Skipped++
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		comp, err := compFromRecord(columns, record)
		if err != nil {
			resp.Skipped++
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if err := s.store.InsertComp(r.Context(), &comp); err != nil {
			resp.Skipped++
			resp.Errors = append(resp.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		resp.Imported++
	}
	common.Logger().Info("comps: csv import finished", "imported", resp.Imported, "skipped", resp.Skipped)
	writeJSON(w, http.StatusOK, resp)
}

func compFromRecord(columns map[string]int, record []string) (comps.RentalComp, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	comp := comps.RentalComp{
		Town:       field("town"),
		Address:    field("address"),
		ZipCode:    field("zip_code"),
		DataSource: comps.SourceManual,
	}
	if source := field("data_source"); source != "" {
		comp.DataSource = comps.DataSource(strings.ToLower(source))
	}
	comp.PropertyType = comps.PropertyType(strings.ToLower(field("property_type")))
	if comp.PropertyType == "" {
		comp.PropertyType = comps.PropertyOther
	}
	if amenities := field("amenities"); amenities != "" {
		for _, amenity := range strings.Split(amenities, ";") {
			if trimmed := strings.TrimSpace(amenity); trimmed != "" {
				comp.Amenities = append(comp.Amenities, trimmed)
			}
		}
	}
	comp.ExternalID = field("external_id")

	var err error
	if comp.Bedrooms, err = strconv.Atoi(field("bedrooms")); err != nil {
		return comps.RentalComp{}, fmt.Errorf("bedrooms: %w", err)
	}
	if raw := field("bathrooms"); raw != "" {
		if comp.Bathrooms, err = strconv.ParseFloat(raw, 64); err != nil {
			return comps.RentalComp{}, fmt.Errorf("bathrooms: %w", err)
		}
	}
	if raw := field("sqft"); raw != "" {
		if comp.Sqft, err = strconv.Atoi(raw); err != nil {
			return comps.RentalComp{}, fmt.Errorf("sqft: %w", err)
		}
	}
	if comp.MonthlyRent, err = strconv.ParseFloat(field("monthly_rent"), 64); err != nil {
		return comps.RentalComp{}, fmt.Errorf("monthly_rent: %w", err)
	}
	if raw := field("comp_date"); raw != "" {
		if comp.CompDate, err = time.Parse("2006-01-02", raw); err != nil {
			return comps.RentalComp{}, fmt.Errorf("comp_date: %w", err)
		}
	} else {
		comp.CompDate = time.Now().UTC()
	}
	if err := validateComp(&comp); err != nil {
		return comps.RentalComp{}, err
	}
	return comp, nil
}

func validateComp(comp *comps.RentalComp) error {
	if strings.TrimSpace(comp.Town) == "" {
		return fmt.Errorf("town required")
	}
	if strings.TrimSpace(comp.Address) == "" {
		return fmt.Errorf("address required")
	}
	if comp.Bedrooms < 0 {
		return fmt.Errorf("bedrooms must be >= 0")
	}
	if comp.MonthlyRent <= 0 {
		return fmt.Errorf("monthly_rent must be > 0")
	}
	if comp.PropertyType == "" {
		comp.PropertyType = comps.PropertyOther
	}
	if comp.CompDate.IsZero() {
		comp.CompDate = time.Now().UTC()
	}
	return nil
}

func compID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid comp id %q", raw)
	}
	return id, nil
}

func compFilterFromQuery(r *http.Request) (store.CompFilter, error) {
	filter := store.CompFilter{}
	query := r.URL.Query()
	if towns := query.Get("towns"); towns != "" {
		for _, town := range strings.Split(towns, ",") {
			if trimmed := strings.TrimSpace(town); trimmed != "" {
				filter.Towns = append(filter.Towns, trimmed)
			}
		}
	}
	if raw := query.Get("bedrooms"); raw != "" {
		bedrooms, err := strconv.Atoi(raw)
		if err != nil {
			return store.CompFilter{}, fmt.Errorf("invalid bedrooms %q", raw)
		}
		filter.Bedrooms = &bedrooms
	}
	for key, target := range map[string]*float64{"min_rent": &filter.MinRent, "max_rent": &filter.MaxRent} {
		if raw := query.Get(key); raw != "" {
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return store.CompFilter{}, fmt.Errorf("invalid %s %q", key, raw)
			}
			*target = value
		}
	}
	for key, target := range map[string]*int{"min_sqft": &filter.MinSqft, "max_sqft": &filter.MaxSqft, "limit": &filter.Limit} {
		if raw := query.Get(key); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil {
				return store.CompFilter{}, fmt.Errorf("invalid %s %q", key, raw)
			}
			*target = value
		}
	}
	for key, target := range map[string]*time.Time{"date_from": &filter.DateFrom, "date_to": &filter.DateTo} {
		if raw := query.Get(key); raw != "" {
			value, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return store.CompFilter{}, fmt.Errorf("invalid %s %q", key, raw)
			}
			*target = value
		}
	}
	return filter, nil
}
