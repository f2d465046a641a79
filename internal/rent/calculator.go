// File path: internal/rent/calculator.go
package rent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cascadia-pm/backoffice/internal/common"
	"github.com/cascadia-pm/backoffice/internal/comps"
	"github.com/cascadia-pm/backoffice/internal/config"
	"github.com/cascadia-pm/backoffice/internal/listings"
	"github.com/cascadia-pm/backoffice/internal/store"
)

// CompSource provides the candidate pool and HUD baselines, satisfied by the
// SQLite store.
type CompSource interface {
	CandidateComps(ctx context.Context, town string, minBedrooms, maxBedrooms, limit int) ([]comps.RentalComp, error)
	BaselineFor(ctx context.Context, areaName string, bedrooms int) (store.Baseline, error)
}

// CompStats summarises the comparable set used for a recommendation.
type CompStats struct {
	Count          int     `json:"count"`
	MinRent        float64 `json:"min_rent"`
	MaxRent        float64 `json:"max_rent"`
	MedianRent     float64 `json:"median_rent"`
	AvgRent        float64 `json:"avg_rent"`
	AvgSqft        float64 `json:"avg_sqft,omitempty"`
	AvgRentPerSqft float64 `json:"avg_rent_per_sqft,omitempty"`
}

// Analysis is the full output of one rent recommendation run. Notes records
// every adjustment in the order it was applied; reports reproduce it
// verbatim.
type Analysis struct {
	ID              string                `json:"id"`
	Subject         comps.SubjectProperty `json:"subject"`
	Stats           CompStats             `json:"stats"`
	Comparables     []comps.ScoredComp    `json:"comparable_comps"`
	Listings        []listings.Listing    `json:"competing_listings,omitempty"`
	RecommendedLow  int                   `json:"recommended_low"`
	RecommendedMid  int                   `json:"recommended_mid"`
	RecommendedHigh int                   `json:"recommended_high"`
	Notes           []string              `json:"notes"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// Calculator runs the comp-based rent recommendation pipeline. The listings
// provider is optional; when nil or failing the blend step is skipped.
type Calculator struct {
	source   CompSource
	listings listings.Provider
	market   config.Market
}

func NewCalculator(source CompSource, provider listings.Provider, market config.Market) *Calculator {
	return &Calculator{source: source, listings: provider, market: market}
}

// Analyze fetches the candidate pool, baseline, and competing listings
// concurrently, then scores, ranks, and prices the subject.
func (c *Calculator) Analyze(ctx context.Context, subject comps.SubjectProperty) (Analysis, error) {
	if c == nil || c.source == nil {
		return Analysis{}, errors.New("rent calculator not initialised")
	}
	if strings.TrimSpace(subject.Town) == "" {
		return Analysis{}, errors.New("subject town required")
	}
	if subject.Bedrooms < 0 {
		return Analysis{}, errors.New("subject bedrooms must be >= 0")
	}

	var (
		pool        []comps.RentalComp
		baseline    *store.Baseline
		competition []listings.Listing
	)
	window := comps.BedroomWindow(subject.Bedrooms)
	minBeds, maxBeds := window[0], window[len(window)-1]
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		fetched, err := c.source.CandidateComps(groupCtx, subject.Town, minBeds, maxBeds, comps.PoolFetchCap)
		if err != nil {
			return fmt.Errorf("fetch candidate comps: %w", err)
		}
		pool = fetched
		return nil
	})
	group.Go(func() error {
		area := c.market.HUDAreaFor(subject.Town)
		row, err := c.source.BaselineFor(groupCtx, area, subject.Bedrooms)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			common.Logger().Warn("rent: baseline lookup failed", "area", area, "error", err)
			return nil
		}
		baseline = &row
		return nil
	})
	group.Go(func() error {
		if c.listings == nil {
			return nil
		}
		fetched, err := c.listings.Fetch(groupCtx, subject.Town, subject.Bedrooms)
		if err != nil {
			common.Logger().Warn("rent: competing listings unavailable", "town", subject.Town, "error", err)
			return nil
		}
		competition = fetched
		return nil
	})
	if err := group.Wait(); err != nil {
		return Analysis{}, err
	}

	comparables := comps.SelectComparables(subject, pool, time.Now())
	recommendation := c.computeRecommendation(subject, comparables, baseline, competition)

	return Analysis{
		ID:              uuid.NewString(),
		Subject:         subject,
		Stats:           summarize(comparables),
		Comparables:     comparables,
		Listings:        competition,
		RecommendedLow:  recommendation.low,
		RecommendedMid:  recommendation.mid,
		RecommendedHigh: recommendation.high,
		Notes:           recommendation.notes,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

type recommendation struct {
	low, mid, high int
	notes          []string
}

// computeRecommendation applies the pricing steps in a fixed order, each one
// mutating the running value and appending a note.
func (c *Calculator) computeRecommendation(subject comps.SubjectProperty, comparables []comps.ScoredComp, baseline *store.Baseline, competition []listings.Listing) recommendation {
	if len(comparables) == 0 {
		note := fmt.Sprintf("No comparable rentals found in %s for %d bedrooms; no recommendation possible.", subject.Town, subject.Bedrooms)
		return recommendation{notes: []string{note}}
	}

	rents := make([]float64, 0, len(comparables))
	for _, comp := range comparables {
		rents = append(rents, comp.MonthlyRent)
	}
	medianRent := Median(rents)
	p60 := Percentile(rents, 60)
	recommended := 0.6*medianRent + 0.4*p60
	notes := []string{fmt.Sprintf(
		"Base estimate $%.0f from %d comparables: 60%% of median rent $%.0f plus 40%% of 60th percentile $%.0f.",
		recommended, len(comparables), medianRent, p60,
	)}

	recommended, notes = c.applySqftAdjustment(subject, comparables, recommended, notes)
	recommended, notes = c.applyTypePremium(subject, comparables, recommended, notes)
	notes = c.checkBaselineFloor(subject, baseline, recommended, notes)
	recommended, notes = blendListings(recommended, competition, notes)

	return recommendation{
		low:   int(math.Round(recommended * 0.95)),
		mid:   int(math.Round(recommended)),
		high:  int(math.Round(recommended * 1.05)),
		notes: notes,
	}
}

// applySqftAdjustment nudges the estimate when the subject is meaningfully
// larger or smaller than the comparable average. Half weight: size explains
// some of a rent gap, not all of it.
func (c *Calculator) applySqftAdjustment(subject comps.SubjectProperty, comparables []comps.ScoredComp, recommended float64, notes []string) (float64, []string) {
	if subject.Sqft <= 0 {
		return recommended, notes
	}
	sqfts := make([]float64, 0, len(comparables))
	perSqft := make([]float64, 0, len(comparables))
	for _, comp := range comparables {
		if comp.Sqft > 0 {
			sqfts = append(sqfts, float64(comp.Sqft))
		}
		if comp.RentPerSqft > 0 {
			perSqft = append(perSqft, comp.RentPerSqft)
		}
	}
	avgSqft := Mean(sqfts)
	avgPerSqft := Mean(perSqft)
	if avgSqft <= 0 || avgPerSqft <= 0 {
		return recommended, notes
	}
	delta := float64(subject.Sqft) - avgSqft
	if math.Abs(delta) <= 100 {
		return recommended, notes
	}
	adjustment := delta * avgPerSqft * 0.5
	recommended += adjustment
	notes = append(notes, fmt.Sprintf(
		"Adjusted %s$%.0f for size: subject %d sqft vs comparable average %.0f sqft at $%.2f/sqft.",
		signPrefix(adjustment), math.Abs(adjustment), subject.Sqft, avgSqft, avgPerSqft,
	))
	return recommended, notes
}

// applyTypePremium compares the subject's property type premium to the
// comparable mix and applies the difference when it exceeds the deadband.
func (c *Calculator) applyTypePremium(subject comps.SubjectProperty, comparables []comps.ScoredComp, recommended float64, notes []string) (float64, []string) {
	subjectMult := c.market.MultiplierFor(subject.PropertyType)
	mults := make([]float64, 0, len(comparables))
	for _, comp := range comparables {
		mults = append(mults, c.market.MultiplierFor(comp.PropertyType))
	}
	avgMult := Mean(mults)
	deadband := c.market.MultiplierDeadband
	if deadband <= 0 {
		deadband = 0.02
	}
	diff := subjectMult - avgMult
	if math.Abs(diff) <= deadband {
		return recommended, notes
	}
	adjustment := recommended * diff
	recommended += adjustment
	notes = append(notes, fmt.Sprintf(
		"Applied %s property type adjustment of %s$%.0f (%s %.2f vs comparable mix %.2f).",
		string(subject.PropertyType), signPrefix(adjustment), math.Abs(adjustment), subject.PropertyType, subjectMult, avgMult,
	))
	return recommended, notes
}

// checkBaselineFloor is advisory only. A recommendation below the published
// FMR gets a note; the value is never clamped upward.
func (c *Calculator) checkBaselineFloor(subject comps.SubjectProperty, baseline *store.Baseline, recommended float64, notes []string) []string {
	if baseline == nil || baseline.FMRRent == nil {
		return notes
	}
	fmr := *baseline.FMRRent
	if recommended >= fmr {
		return notes
	}
	return append(notes, fmt.Sprintf(
		"Recommendation $%.0f is below the %d HUD Fair Market Rent of $%.0f for %s (%d BR); the market may support more.",
		recommended, baseline.DataYear, fmr, baseline.AreaName, subject.Bedrooms,
	))
}

// blendListings mixes in active competition at 20% weight.
func blendListings(recommended float64, competition []listings.Listing, notes []string) (float64, []string) {
	if len(competition) == 0 {
		return recommended, notes
	}
	prices := make([]float64, 0, len(competition))
	for _, listing := range competition {
		if listing.Price > 0 {
			prices = append(prices, listing.Price)
		}
	}
	if len(prices) == 0 {
		return recommended, notes
	}
	medianPrice := Median(prices)
	recommended = recommended*0.8 + medianPrice*0.2
	notes = append(notes, fmt.Sprintf(
		"Blended with %d active listings (median asking $%.0f) at 80/20 weighting.",
		len(prices), medianPrice,
	))
	return recommended, notes
}

func summarize(comparables []comps.ScoredComp) CompStats {
	stats := CompStats{Count: len(comparables)}
	if len(comparables) == 0 {
		return stats
	}
	rents := make([]float64, 0, len(comparables))
	sqfts := make([]float64, 0, len(comparables))
	perSqft := make([]float64, 0, len(comparables))
	stats.MinRent = comparables[0].MonthlyRent
	for _, comp := range comparables {
		rents = append(rents, comp.MonthlyRent)
		if comp.MonthlyRent < stats.MinRent {
			stats.MinRent = comp.MonthlyRent
		}
		if comp.MonthlyRent > stats.MaxRent {
			stats.MaxRent = comp.MonthlyRent
		}
		if comp.Sqft > 0 {
			sqfts = append(sqfts, float64(comp.Sqft))
		}
		if comp.RentPerSqft > 0 {
			perSqft = append(perSqft, comp.RentPerSqft)
		}
	}
	stats.MedianRent = Median(rents)
	stats.AvgRent = Mean(rents)
	stats.AvgSqft = Mean(sqfts)
	stats.AvgRentPerSqft = Mean(perSqft)
	return stats
}

func signPrefix(value float64) string {
	if value < 0 {
		return "-"
	}
	return "+"
}
