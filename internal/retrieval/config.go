// File path: internal/retrieval/config.go
package retrieval

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults below are behavioral contracts carried over from production
// tuning, exposed as configuration rather than re-tuned.
const (
	defaultMaxResults     = 15
	defaultQualityFloor   = 0.50
	defaultFallbackCount  = 5
	defaultCandidateFloor = 0.30
	defaultCandidateCount = 15
	defaultLexicalLimit   = 15
	defaultBranchTimeout  = 10 * time.Second
)

// Config carries the retrieval engine's thresholds. CandidateFloor is the
// loose similarity floor used when gathering the vector pool; QualityFloor is
// the strict floor applied to the fused result.
type Config struct {
	MaxResults     int
	QualityFloor   float64
	FallbackCount  int
	CandidateFloor float64
	CandidateCount int
	LexicalLimit   int
	BranchTimeout  time.Duration
}

// Merge overlays non-zero fields of other onto a copy of c.
func (c Config) Merge(other Config) Config {
	merged := c
	if other.MaxResults > 0 {
		merged.MaxResults = other.MaxResults
	}
	if other.QualityFloor > 0 {
		merged.QualityFloor = other.QualityFloor
	}
	if other.FallbackCount > 0 {
		merged.FallbackCount = other.FallbackCount
	}
	if other.CandidateFloor > 0 {
		merged.CandidateFloor = other.CandidateFloor
	}
	if other.CandidateCount > 0 {
		merged.CandidateCount = other.CandidateCount
	}
	if other.LexicalLimit > 0 {
		merged.LexicalLimit = other.LexicalLimit
	}
	if other.BranchTimeout > 0 {
		merged.BranchTimeout = other.BranchTimeout
	}
	return merged
}

// LoadConfig builds a Config from defaults overlaid with RETRIEVAL_*
// environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	var overlay Config
	var err error
	if overlay.MaxResults, err = envInt("RETRIEVAL_MAX_RESULTS"); err != nil {
		return Config{}, err
	}
	if overlay.QualityFloor, err = envFloat("RETRIEVAL_QUALITY_FLOOR"); err != nil {
		return Config{}, err
	}
	if overlay.FallbackCount, err = envInt("RETRIEVAL_FALLBACK_COUNT"); err != nil {
		return Config{}, err
	}
	if overlay.CandidateFloor, err = envFloat("RETRIEVAL_CANDIDATE_FLOOR"); err != nil {
		return Config{}, err
	}
	if overlay.CandidateCount, err = envInt("RETRIEVAL_CANDIDATE_COUNT"); err != nil {
		return Config{}, err
	}
	if overlay.LexicalLimit, err = envInt("RETRIEVAL_LEXICAL_LIMIT"); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("RETRIEVAL_BRANCH_TIMEOUT")); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse RETRIEVAL_BRANCH_TIMEOUT: %w", err)
		}
		overlay.BranchTimeout = timeout
	}
	return cfg.Merge(overlay), nil
}

// DefaultConfig returns the production threshold set.
func DefaultConfig() Config {
	return Config{
		MaxResults:     defaultMaxResults,
		QualityFloor:   defaultQualityFloor,
		FallbackCount:  defaultFallbackCount,
		CandidateFloor: defaultCandidateFloor,
		CandidateCount: defaultCandidateCount,
		LexicalLimit:   defaultLexicalLimit,
		BranchTimeout:  defaultBranchTimeout,
	}
}

func envInt(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func envFloat(key string) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
