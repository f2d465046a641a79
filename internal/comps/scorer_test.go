// File path: internal/comps/scorer_test.go
package comps

import (
	"testing"
	"time"
)

func TestScoreMaximumPracticalScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	subject := SubjectProperty{
		Town:         "Bend",
		Bedrooms:     2,
		Bathrooms:    1,
		Sqft:         900,
		PropertyType: PropertyApartment,
		Amenities:    []string{"washer_dryer", "garage", "yard", "ac"},
	}
	comp := RentalComp{
		Town:         "Bend",
		Bedrooms:     2,
		Bathrooms:    1,
		Sqft:         950,
		PropertyType: PropertyApartment,
		Amenities:    []string{"washer_dryer", "garage", "yard", "ac"},
		MonthlyRent:  1500,
		CompDate:     now.AddDate(0, -2, 0),
	}
	// 10 town + 10 beds + 5 baths + 5 type + 5 sqft + 3 recency + 3 amenities
	if got := Score(subject, comp, now); got != 41 {
		t.Fatalf("expected max practical score 41, got %d", got)
	}
}

func TestScoreBucketsAreExclusive(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	subject := SubjectProperty{Town: "Bend", Bedrooms: 3, Bathrooms: 2, Sqft: 1200}

	cases := []struct {
		name string
		comp RentalComp
		want int
	}{
		{
			name: "bedrooms off by one",
			comp: RentalComp{Town: "Bend", Bedrooms: 2},
			want: 13,
		},
		{
			name: "bedrooms off by two scores nothing",
			comp: RentalComp{Town: "Bend", Bedrooms: 5},
			want: 10,
		},
		{
			name: "bathrooms within half point",
			comp: RentalComp{Town: "Redmond", Bedrooms: 3, Bathrooms: 2.5},
			want: 12,
		},
		{
			name: "sqft in looser band",
			comp: RentalComp{Town: "Redmond", Bedrooms: 3, Sqft: 1560},
			want: 12,
		},
		{
			name: "sqft beyond forty percent",
			comp: RentalComp{Town: "Redmond", Bedrooms: 3, Sqft: 2000},
			want: 10,
		},
		{
			name: "stale comp gets no recency points",
			comp: RentalComp{Town: "Redmond", Bedrooms: 3, CompDate: now.AddDate(0, -8, 0)},
			want: 10,
		},
		{
			name: "six month old comp gets one point",
			comp: RentalComp{Town: "Redmond", Bedrooms: 3, CompDate: now.AddDate(0, -5, 0)},
			want: 11,
		},
	}
	for _, tc := range cases {
		if got := Score(subject, tc.comp, now); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScoreSkipsAbsentOptionalFields(t *testing.T) {
	now := time.Now()
	subject := SubjectProperty{Town: "Sisters", Bedrooms: 1}
	comp := RentalComp{Town: "Sisters", Bedrooms: 1, Bathrooms: 1, Sqft: 700}
	// Subject has no bathrooms or sqft recorded, so only town and bedrooms
	// can score.
	if got := Score(subject, comp, now); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}

func TestAmenityOverlapCapped(t *testing.T) {
	now := time.Now()
	subject := SubjectProperty{
		Town:      "Bend",
		Bedrooms:  2,
		Amenities: []string{"a", "b", "c", "d", "e"},
	}
	comp := RentalComp{
		Town:      "La Pine",
		Bedrooms:  0,
		Amenities: []string{"A", "b", "C", "d", "e"},
	}
	if got := Score(subject, comp, now); got != maxAmenityPoints {
		t.Fatalf("expected amenity score capped at %d, got %d", maxAmenityPoints, got)
	}
}

func TestRankIsStableForEqualScores(t *testing.T) {
	now := time.Now()
	subject := SubjectProperty{Town: "Bend", Bedrooms: 2}
	pool := []RentalComp{
		{ID: 1, Town: "Bend", Bedrooms: 2, MonthlyRent: 1400},
		{ID: 2, Town: "Bend", Bedrooms: 2, MonthlyRent: 1600},
		{ID: 3, Town: "Bend", Bedrooms: 2, MonthlyRent: 1500},
		{ID: 4, Town: "Redmond", Bedrooms: 2, MonthlyRent: 1300},
	}
	ranked := Rank(subject, pool, now)
	if len(ranked) != 4 {
		t.Fatalf("expected 4 ranked comps, got %d", len(ranked))
	}
	for i, wantID := range []int64{1, 2, 3, 4} {
		if ranked[i].ID != wantID {
			t.Fatalf("position %d: expected comp %d, got %d", i, wantID, ranked[i].ID)
		}
	}
}

func TestRankOrdersExactMatchFirst(t *testing.T) {
	now := time.Now()
	subject := SubjectProperty{
		Town:         "Bend",
		Bedrooms:     2,
		Bathrooms:    1,
		Sqft:         900,
		PropertyType: PropertyApartment,
	}
	pool := []RentalComp{
		{ID: 10, Town: "Bend", Bedrooms: 3, MonthlyRent: 1900, CompDate: now.AddDate(0, -1, 0)},
		{ID: 11, Town: "Bend", Bedrooms: 2, Bathrooms: 1, Sqft: 900, PropertyType: PropertyApartment, MonthlyRent: 1500, CompDate: now.AddDate(0, -2, 0)},
	}
	ranked := SelectComparables(subject, pool, now)
	if ranked[0].ID != 11 {
		t.Fatalf("expected exact match first, got comp %d", ranked[0].ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected strict score ordering, got %d vs %d", ranked[0].Score, ranked[1].Score)
	}
}

func TestBedroomWindowClampsAtZero(t *testing.T) {
	window := BedroomWindow(0)
	if len(window) != 2 || window[0] != 0 || window[1] != 1 {
		t.Fatalf("unexpected window for studio: %v", window)
	}
	window = BedroomWindow(2)
	if len(window) != 3 || window[0] != 1 || window[2] != 3 {
		t.Fatalf("unexpected window: %v", window)
	}
}
