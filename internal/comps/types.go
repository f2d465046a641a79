// File path: internal/comps/types.go
package comps

import "time"

// DataSource identifies how a comp entered the system. Synced sources carry
// an external id used for replace-on-sync; manual entries never do.
type DataSource string

const (
	SourceAppFolio   DataSource = "appfolio"
	SourceManual     DataSource = "manual"
	SourceRentometer DataSource = "rentometer"
	SourceHUDFMR     DataSource = "hud_fmr"
	SourceZillow     DataSource = "zillow"
)

type PropertyType string

const (
	PropertySFR          PropertyType = "sfr"
	PropertyTownhouse    PropertyType = "townhouse"
	PropertyDuplex       PropertyType = "duplex"
	PropertyCondo        PropertyType = "condo"
	PropertyApartment    PropertyType = "apartment"
	PropertyManufactured PropertyType = "manufactured"
	PropertyOther        PropertyType = "other"
)

// RentalComp is an observed comparable rental data point. Zero values for
// Bathrooms, Sqft, and RentPerSqft mean "not recorded"; the scorer skips the
// corresponding factors rather than guessing.
type RentalComp struct {
	ID           int64        `json:"id"`
	Town         string       `json:"town"`
	Address      string       `json:"address"`
	ZipCode      string       `json:"zip_code,omitempty"`
	Bedrooms     int          `json:"bedrooms"`
	Bathrooms    float64      `json:"bathrooms,omitempty"`
	Sqft         int          `json:"sqft,omitempty"`
	PropertyType PropertyType `json:"property_type"`
	Amenities    []string     `json:"amenities,omitempty"`
	MonthlyRent  float64      `json:"monthly_rent"`
	RentPerSqft  float64      `json:"rent_per_sqft,omitempty"`
	DataSource   DataSource   `json:"data_source"`
	CompDate     time.Time    `json:"comp_date"`
	ExternalID   string       `json:"external_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at,omitempty"`
}

// DeriveRentPerSqft fills RentPerSqft from rent and square footage when both
// are known and the value was not supplied.
func (c *RentalComp) DeriveRentPerSqft() {
	if c.RentPerSqft == 0 && c.Sqft > 0 && c.MonthlyRent > 0 {
		c.RentPerSqft = c.MonthlyRent / float64(c.Sqft)
	}
}

// SubjectProperty is the query input to a rent analysis. It is never
// persisted.
type SubjectProperty struct {
	Town         string       `json:"town"`
	Address      string       `json:"address,omitempty"`
	Bedrooms     int          `json:"bedrooms"`
	Bathrooms    float64      `json:"bathrooms,omitempty"`
	Sqft         int          `json:"sqft,omitempty"`
	PropertyType PropertyType `json:"property_type"`
	Amenities    []string     `json:"amenities,omitempty"`
	CurrentRent  float64      `json:"current_rent,omitempty"`
}

// ScoredComp annotates a comp with its similarity score for ranking.
type ScoredComp struct {
	RentalComp
	Score int `json:"score"`
}
