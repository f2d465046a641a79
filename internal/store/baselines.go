// File path: internal/store/baselines.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Baseline is a published market rent figure for an area and bedroom count,
// typically a HUD Fair Market Rent. Nil pointers mean the year's publication
// lacked that figure.
type Baseline struct {
	ID         int64    `db:"id" json:"id"`
	AreaName   string   `db:"area_name" json:"area_name"`
	County     string   `db:"county" json:"county,omitempty"`
	Bedrooms   int      `db:"bedrooms" json:"bedrooms"`
	FMRRent    *float64 `db:"fmr_rent" json:"fmr_rent,omitempty"`
	MedianRent *float64 `db:"median_rent" json:"median_rent,omitempty"`
	DataYear   int      `db:"data_year" json:"data_year"`
	Source     string   `db:"source" json:"source"`
}

const baselineColumns = `id, area_name, county, bedrooms, fmr_rent, median_rent, data_year, source`

// UpsertBaseline writes a baseline, replacing a prior row for the same area,
// bedroom count, and data year.
func (s *Store) UpsertBaseline(ctx context.Context, baseline Baseline) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	if strings.TrimSpace(baseline.AreaName) == "" {
		return errors.New("baseline area name required")
	}
	if baseline.DataYear <= 0 {
		return errors.New("baseline data year required")
	}
	const stmt = `INSERT INTO baselines (area_name, county, bedrooms, fmr_rent, median_rent, data_year, source)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(area_name, bedrooms, data_year) DO UPDATE SET
                        county = excluded.county,
                        fmr_rent = excluded.fmr_rent,
                        median_rent = excluded.median_rent,
                        source = excluded.source,
                        updated_at = CURRENT_TIMESTAMP`
	source := baseline.Source
	if source == "" {
		source = "hud"
	}
	if _, err := s.db.ExecContext(ctx, stmt,
		baseline.AreaName, baseline.County, baseline.Bedrooms,
		baseline.FMRRent, baseline.MedianRent, baseline.DataYear, source,
	); err != nil {
		return fmt.Errorf("upsert baseline %s/%d: %w", baseline.AreaName, baseline.Bedrooms, err)
	}
	return nil
}

// BaselineFor returns the freshest baseline for an area and bedroom count,
// preferring years that actually published an FMR figure. It returns
// sql.ErrNoRows when the area is unknown.
func (s *Store) BaselineFor(ctx context.Context, areaName string, bedrooms int) (Baseline, error) {
	if s == nil || s.db == nil {
		return Baseline{}, errors.New("store not initialised")
	}
	var row Baseline
	stmt := fmt.Sprintf(`SELECT %s FROM baselines
                WHERE area_name = ? COLLATE NOCASE AND bedrooms = ?
                ORDER BY (fmr_rent IS NOT NULL) DESC, data_year DESC LIMIT 1`, baselineColumns)
	if err := s.db.GetContext(ctx, &row, stmt, areaName, bedrooms); err != nil {
		return Baseline{}, err
	}
	return row, nil
}

// ListBaselines returns every baseline for an area, or all baselines when the
// area is empty, newest year first.
func (s *Store) ListBaselines(ctx context.Context, areaName string) ([]Baseline, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	rows := []Baseline{}
	if strings.TrimSpace(areaName) == "" {
		stmt := fmt.Sprintf(`SELECT %s FROM baselines ORDER BY area_name, bedrooms, data_year DESC`, baselineColumns)
		if err := s.db.SelectContext(ctx, &rows, stmt); err != nil {
			return nil, fmt.Errorf("list baselines: %w", err)
		}
		return rows, nil
	}
	stmt := fmt.Sprintf(`SELECT %s FROM baselines
                WHERE area_name = ? COLLATE NOCASE
                ORDER BY bedrooms, data_year DESC`, baselineColumns)
	if err := s.db.SelectContext(ctx, &rows, stmt, areaName); err != nil {
		return nil, fmt.Errorf("list baselines %s: %w", areaName, err)
	}
	return rows, nil
}

// DeleteBaseline removes one baseline row.
func (s *Store) DeleteBaseline(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM baselines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete baseline %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete baseline %d: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
