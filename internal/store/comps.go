// File path: internal/store/comps.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cascadia-pm/backoffice/internal/comps"
)

const compDateLayout = "2006-01-02"

const compColumns = `id, town, address, zip_code, bedrooms, bathrooms, sqft,
                property_type, amenities, monthly_rent, rent_per_sqft, data_source,
                comp_date, external_id`

type compRow struct {
	ID           int64          `db:"id"`
	Town         string         `db:"town"`
	Address      string         `db:"address"`
	ZipCode      string         `db:"zip_code"`
	Bedrooms     int            `db:"bedrooms"`
	Bathrooms    float64        `db:"bathrooms"`
	Sqft         int            `db:"sqft"`
	PropertyType string         `db:"property_type"`
	Amenities    string         `db:"amenities"`
	MonthlyRent  float64        `db:"monthly_rent"`
	RentPerSqft  float64        `db:"rent_per_sqft"`
	DataSource   string         `db:"data_source"`
	CompDate     string         `db:"comp_date"`
	ExternalID   sql.NullString `db:"external_id"`
}

func (r compRow) toComp() comps.RentalComp {
	compDate, _ := time.Parse(compDateLayout, r.CompDate)
	comp := comps.RentalComp{
		ID:           r.ID,
		Town:         r.Town,
		Address:      r.Address,
		ZipCode:      r.ZipCode,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Sqft:         r.Sqft,
		PropertyType: comps.PropertyType(r.PropertyType),
		Amenities:    splitAmenities(r.Amenities),
		MonthlyRent:  r.MonthlyRent,
		RentPerSqft:  r.RentPerSqft,
		DataSource:   comps.DataSource(r.DataSource),
		CompDate:     compDate,
		ExternalID:   r.ExternalID.String,
	}
	comp.DeriveRentPerSqft()
	return comp
}

func rowsToComps(rows []compRow) []comps.RentalComp {
	out := make([]comps.RentalComp, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toComp())
	}
	return out
}

func splitAmenities(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	amenities := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			amenities = append(amenities, trimmed)
		}
	}
	return amenities
}

func joinAmenities(amenities []string) string {
	cleaned := make([]string, 0, len(amenities))
	for _, amenity := range amenities {
		if trimmed := strings.TrimSpace(amenity); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

func externalIDValue(id string) any {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return id
}

// CompFilter narrows ListComps. Zero values mean "no constraint".
type CompFilter struct {
	Towns    []string
	Bedrooms *int
	DateFrom time.Time
	DateTo   time.Time
	MinRent  float64
	MaxRent  float64
	MinSqft  int
	MaxSqft  int
	Limit    int
}

// InsertComp persists a new comp and fills in its assigned id.
func (s *Store) InsertComp(ctx context.Context, comp *comps.RentalComp) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	if comp == nil {
		return errors.New("comp required")
	}
	comp.DeriveRentPerSqft()
	const stmt = `INSERT INTO comps (town, address, zip_code, bedrooms, bathrooms, sqft,
                        property_type, amenities, monthly_rent, rent_per_sqft, data_source,
                        comp_date, external_id)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, stmt,
		comp.Town, comp.Address, comp.ZipCode, comp.Bedrooms, comp.Bathrooms, comp.Sqft,
		string(comp.PropertyType), joinAmenities(comp.Amenities), comp.MonthlyRent,
		comp.RentPerSqft, string(comp.DataSource), comp.CompDate.Format(compDateLayout),
		externalIDValue(comp.ExternalID),
	)
	if err != nil {
		return fmt.Errorf("insert comp: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert comp id: %w", err)
	}
	comp.ID = id
	return nil
}

// UpdateComp rewrites a comp in place. It returns sql.ErrNoRows when the id is
// unknown.
func (s *Store) UpdateComp(ctx context.Context, comp comps.RentalComp) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	comp.DeriveRentPerSqft()
	const stmt = `UPDATE comps SET town = ?, address = ?, zip_code = ?, bedrooms = ?,
                        bathrooms = ?, sqft = ?, property_type = ?, amenities = ?,
                        monthly_rent = ?, rent_per_sqft = ?, data_source = ?, comp_date = ?,
                        external_id = ?, updated_at = CURRENT_TIMESTAMP
                WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt,
		comp.Town, comp.Address, comp.ZipCode, comp.Bedrooms, comp.Bathrooms, comp.Sqft,
		string(comp.PropertyType), joinAmenities(comp.Amenities), comp.MonthlyRent,
		comp.RentPerSqft, string(comp.DataSource), comp.CompDate.Format(compDateLayout),
		externalIDValue(comp.ExternalID), comp.ID,
	)
	if err != nil {
		return fmt.Errorf("update comp %d: %w", comp.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update comp %d: %w", comp.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteComp removes a comp, returning sql.ErrNoRows when nothing matched.
func (s *Store) DeleteComp(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM comps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comp %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comp %d: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompByID fetches a single comp.
func (s *Store) CompByID(ctx context.Context, id int64) (comps.RentalComp, error) {
	if s == nil || s.db == nil {
		return comps.RentalComp{}, errors.New("store not initialised")
	}
	var row compRow
	stmt := fmt.Sprintf(`SELECT %s FROM comps WHERE id = ?`, compColumns)
	if err := s.db.GetContext(ctx, &row, stmt, id); err != nil {
		return comps.RentalComp{}, err
	}
	return row.toComp(), nil
}

// ListComps returns comps matching the filter, newest first.
func (s *Store) ListComps(ctx context.Context, filter CompFilter) ([]comps.RentalComp, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	clauses := []string{"1 = 1"}
	args := []any{}
	if len(filter.Towns) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Towns)), ", ")
		clauses = append(clauses, fmt.Sprintf("town COLLATE NOCASE IN (%s)", placeholders))
		for _, town := range filter.Towns {
			args = append(args, town)
		}
	}
	if filter.Bedrooms != nil {
		clauses = append(clauses, "bedrooms = ?")
		args = append(args, *filter.Bedrooms)
	}
	if !filter.DateFrom.IsZero() {
		clauses = append(clauses, "comp_date >= ?")
		args = append(args, filter.DateFrom.Format(compDateLayout))
	}
	if !filter.DateTo.IsZero() {
		clauses = append(clauses, "comp_date <= ?")
		args = append(args, filter.DateTo.Format(compDateLayout))
	}
	if filter.MinRent > 0 {
		clauses = append(clauses, "monthly_rent >= ?")
		args = append(args, filter.MinRent)
	}
	if filter.MaxRent > 0 {
		clauses = append(clauses, "monthly_rent <= ?")
		args = append(args, filter.MaxRent)
	}
	if filter.MinSqft > 0 {
		clauses = append(clauses, "sqft >= ?")
		args = append(args, filter.MinSqft)
	}
	if filter.MaxSqft > 0 {
		clauses = append(clauses, "sqft <= ?")
		args = append(args, filter.MaxSqft)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	args = append(args, limit)
	stmt := fmt.Sprintf(`SELECT %s FROM comps WHERE %s ORDER BY comp_date DESC, id DESC LIMIT ?`,
		compColumns, strings.Join(clauses, " AND "))
	rows := []compRow{}
	if err := s.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("list comps: %w", err)
	}
	return rowsToComps(rows), nil
}

// CandidateComps fetches the scoring pool for a subject: same town, bedrooms
// inside the window, capped and newest first so the cap keeps recent data.
func (s *Store) CandidateComps(ctx context.Context, town string, minBedrooms, maxBedrooms, limit int) ([]comps.RentalComp, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	if limit <= 0 {
		limit = comps.PoolFetchCap
	}
	stmt := fmt.Sprintf(`SELECT %s FROM comps
                WHERE town = ? COLLATE NOCASE AND bedrooms BETWEEN ? AND ?
                ORDER BY comp_date DESC, id DESC LIMIT ?`, compColumns)
	rows := []compRow{}
	if err := s.db.SelectContext(ctx, &rows, stmt, town, minBedrooms, maxBedrooms, limit); err != nil {
		return nil, fmt.Errorf("candidate comps: %w", err)
	}
	return rowsToComps(rows), nil
}

// ReplaceSourceComps swaps out every comp for a synced source in one
// transaction, so readers never observe a half-applied sync. It returns the
// number of comps written.
func (s *Store) ReplaceSourceComps(ctx context.Context, source comps.DataSource, incoming []comps.RentalComp) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store not initialised")
	}
	if source == comps.SourceManual {
		return 0, errors.New("manual comps are not synced")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin comp sync: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comps WHERE data_source = ? AND external_id IS NOT NULL`, string(source)); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear synced comps: %w", err)
	}
	const stmt = `INSERT INTO comps (town, address, zip_code, bedrooms, bathrooms, sqft,
                        property_type, amenities, monthly_rent, rent_per_sqft, data_source,
                        comp_date, external_id)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	written := 0
	for _, comp := range incoming {
		if strings.TrimSpace(comp.ExternalID) == "" {
			tx.Rollback()
			return 0, fmt.Errorf("synced comp %q missing external id", comp.Address)
		}
		comp.DeriveRentPerSqft()
		if _, err := tx.ExecContext(ctx, stmt,
			comp.Town, comp.Address, comp.ZipCode, comp.Bedrooms, comp.Bathrooms, comp.Sqft,
			string(comp.PropertyType), joinAmenities(comp.Amenities), comp.MonthlyRent,
			comp.RentPerSqft, string(source), comp.CompDate.Format(compDateLayout),
			comp.ExternalID,
		); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sync comp %s: %w", comp.ExternalID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit comp sync: %w", err)
	}
	return written, nil
}
