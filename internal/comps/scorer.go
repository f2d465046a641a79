// File path: internal/comps/scorer.go
package comps

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	// PoolFetchCap bounds how many candidate rows are pulled from the
	// store before scoring.
	PoolFetchCap = 500
	// TopComparables is how many ranked comps feed the rent calculator.
	TopComparables = 15

	maxAmenityPoints = 3
)

// BedroomWindow returns the candidate-pool bedroom filter for a subject:
// one below through one above, clamped at zero.
func BedroomWindow(bedrooms int) []int {
	low := bedrooms - 1
	if low < 0 {
		low = 0
	}
	window := make([]int, 0, 3)
	for b := low; b <= bedrooms+1; b++ {
		window = append(window, b)
	}
	return window
}

// Score assigns the additive similarity score for ranking a comp against a
// subject. Each factor contributes at most one bucket, most specific first.
// Missing optional fields skip their factor entirely.
func Score(subject SubjectProperty, comp RentalComp, now time.Time) int {
	score := 0

	if subject.Town != "" && strings.EqualFold(comp.Town, subject.Town) {
		score += 10
	}

	switch delta := abs(comp.Bedrooms - subject.Bedrooms); delta {
	case 0:
		score += 10
	case 1:
		score += 3
	}

	if subject.Bathrooms > 0 && comp.Bathrooms > 0 {
		delta := math.Abs(comp.Bathrooms - subject.Bathrooms)
		if delta == 0 {
			score += 5
		} else if delta <= 0.5 {
			score += 2
		}
	}

	if comp.PropertyType != "" && comp.PropertyType == subject.PropertyType {
		score += 5
	}

	if subject.Sqft > 0 && comp.Sqft > 0 {
		relative := math.Abs(float64(comp.Sqft-subject.Sqft)) / float64(subject.Sqft)
		if relative <= 0.20 {
			score += 5
		} else if relative <= 0.40 {
			score += 2
		}
	}

	if !comp.CompDate.IsZero() {
		age := now.Sub(comp.CompDate)
		if age <= 3*30*24*time.Hour {
			score += 3
		} else if age <= 6*30*24*time.Hour {
			score += 1
		}
	}

	if overlap := amenityOverlap(subject.Amenities, comp.Amenities); overlap > 0 {
		if overlap > maxAmenityPoints {
			overlap = maxAmenityPoints
		}
		score += overlap
	}

	return score
}

// Rank scores every comp and returns a new slice sorted by score descending.
// The sort is stable: equal-score comps keep their retrieval order, which
// downstream consumers rely on for reproducible reports.
func Rank(subject SubjectProperty, pool []RentalComp, now time.Time) []ScoredComp {
	ranked := make([]ScoredComp, 0, len(pool))
	for _, comp := range pool {
		ranked = append(ranked, ScoredComp{RentalComp: comp, Score: Score(subject, comp, now)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// SelectComparables ranks the pool and keeps the top comparables.
func SelectComparables(subject SubjectProperty, pool []RentalComp, now time.Time) []ScoredComp {
	ranked := Rank(subject, pool, now)
	if len(ranked) > TopComparables {
		ranked = ranked[:TopComparables]
	}
	return ranked
}

func amenityOverlap(subject, comp []string) int {
	if len(subject) == 0 || len(comp) == 0 {
		return 0
	}
	tags := make(map[string]struct{}, len(subject))
	for _, tag := range subject {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized != "" {
			tags[normalized] = struct{}{}
		}
	}
	overlap := 0
	seen := make(map[string]struct{}, len(comp))
	for _, tag := range comp {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		if _, ok := tags[normalized]; ok {
			overlap++
		}
	}
	return overlap
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
