// File path: internal/config/market.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cascadia-pm/backoffice/internal/comps"
)

// Market describes the towns the company services and the market constants
// the rent engine depends on: HUD area mapping and property type premiums.
type Market struct {
	ServicedTowns []string `yaml:"serviced_towns"`
	// HUDAreas maps a town (case-insensitive) to the HUD Fair Market Rent
	// area its baselines are published under.
	HUDAreas map[string]string `yaml:"hud_areas"`
	// TypeMultipliers are the rent premiums and discounts applied per
	// property type relative to the comp pool.
	TypeMultipliers map[string]float64 `yaml:"type_multipliers"`
	// MultiplierDeadband suppresses the type adjustment when the subject
	// and pool multipliers are within this distance of each other.
	MultiplierDeadband float64 `yaml:"multiplier_deadband"`
}

// Merge overlays non-zero fields of other onto a copy of m.
func (m Market) Merge(other Market) Market {
	merged := m
	if len(other.ServicedTowns) > 0 {
		merged.ServicedTowns = other.ServicedTowns
	}
	if len(other.HUDAreas) > 0 {
		merged.HUDAreas = other.HUDAreas
	}
	if len(other.TypeMultipliers) > 0 {
		merged.TypeMultipliers = other.TypeMultipliers
	}
	if other.MultiplierDeadband > 0 {
		merged.MultiplierDeadband = other.MultiplierDeadband
	}
	return merged
}

// LoadMarket builds the market configuration from defaults overlaid with an
// optional YAML file named by MARKET_CONFIG_FILE.
func LoadMarket() (Market, error) {
	market := defaultMarket()
	path := strings.TrimSpace(os.Getenv("MARKET_CONFIG_FILE"))
	if path == "" {
		return market, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Market{}, fmt.Errorf("read market config: %w", err)
	}
	var fromFile Market
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return Market{}, fmt.Errorf("parse market config: %w", err)
	}
	return market.Merge(fromFile), nil
}

// Services reports whether a town is in the serviced list. An empty list
// means every town is serviced.
func (m Market) Services(town string) bool {
	if len(m.ServicedTowns) == 0 {
		return true
	}
	for _, serviced := range m.ServicedTowns {
		if strings.EqualFold(serviced, town) {
			return true
		}
	}
	return false
}

// HUDAreaFor resolves the FMR area for a town, falling back to the town name
// itself when no alias is configured.
func (m Market) HUDAreaFor(town string) string {
	for alias, area := range m.HUDAreas {
		if strings.EqualFold(alias, town) {
			return area
		}
	}
	return town
}

// MultiplierFor returns the configured premium for a property type. Unknown
// types rate as neutral.
func (m Market) MultiplierFor(propertyType comps.PropertyType) float64 {
	if value, ok := m.TypeMultipliers[string(propertyType)]; ok && value > 0 {
		return value
	}
	if value, ok := m.TypeMultipliers[string(comps.PropertyOther)]; ok && value > 0 {
		return value
	}
	return 1.0
}

func defaultMarket() Market {
	return Market{
		ServicedTowns: []string{
			"Eugene", "Springfield", "Salem", "Corvallis", "Albany", "Cottage Grove",
		},
		HUDAreas: map[string]string{
			"eugene":        "Eugene-Springfield, OR MSA",
			"springfield":   "Eugene-Springfield, OR MSA",
			"cottage grove": "Lane County, OR",
			"salem":         "Salem, OR MSA",
			"corvallis":     "Corvallis, OR MSA",
			"albany":        "Albany-Lebanon, OR MSA",
		},
		TypeMultipliers: map[string]float64{
			string(comps.PropertySFR):          1.05,
			string(comps.PropertyTownhouse):    1.02,
			string(comps.PropertyDuplex):       1.00,
			string(comps.PropertyCondo):        0.98,
			string(comps.PropertyApartment):    0.95,
			string(comps.PropertyManufactured): 0.90,
			string(comps.PropertyOther):        1.00,
		},
		MultiplierDeadband: 0.02,
	}
}
