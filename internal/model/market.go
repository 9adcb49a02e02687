package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// keyRegex matches: {STATE}-{LINE}
// Example: TX-auto, CA-homeowners
var keyRegex = regexp.MustCompile(`^([A-Z]{2})-([a-z][a-z_]*)$`)

var ErrInvalidMarketKey = errors.New("model: invalid market key")

// MarketKey identifies one (state, line) market.
type MarketKey struct {
	State string `json:"state"`
	Line  string `json:"line"`
}

func (k MarketKey) String() string {
	return k.State + "-" + k.Line
}

// Less orders keys by state, then line.
func (k MarketKey) Less(o MarketKey) bool {
	if k.State != o.State {
		return k.State < o.State
	}
	return k.Line < o.Line
}

// ParseMarketKey parses and validates a key in {STATE}-{line} form.
func ParseMarketKey(s string) (MarketKey, error) {
	m := keyRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return MarketKey{}, fmt.Errorf("%w: %q (expected {STATE}-{line})", ErrInvalidMarketKey, s)
	}
	return MarketKey{State: m[1], Line: m[2]}, nil
}

// MarketCondition is the derived, turn-scoped description of one market.
// It is computed once per turn and shared read-only by every competitor.
type MarketCondition struct {
	Key                  MarketKey     `json:"key"`
	Turn                 int           `json:"turn"`
	Phase                EconomicPhase `json:"phase"`
	BaseDemand           float64       `json:"base_demand"`      // addressable policies this turn
	ReferencePrice       float64       `json:"reference_price"`  // annual premium at which utility is neutral
	PriceElasticity      float64       `json:"price_elasticity"` // mean effective exponent across competitors
	CompetitiveIntensity float64       `json:"competitive_intensity"`
	AverageGenerosity    float64       `json:"average_generosity"` // policy-weighted tier generosity
	OutsideShare         float64       `json:"outside_share"`
	Competitors          int           `json:"competitors"`
	PoliciesWritten      int64         `json:"policies_written"`
}
