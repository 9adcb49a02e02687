package claims

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// Catastrophe is one regional event drawn for the turn.
//
// Correlation across companies comes from region grouping: every state in
// the region shares the same surge, so all companies with exposure there are
// hit simultaneously. Regions play the role of a coarse spatial prefix:
// two markets are correlated exactly when their states share a region.
type Catastrophe struct {
	Region string   `json:"region"`
	States []string `json:"states"`
	Lines  []string `json:"lines,omitempty"` // empty = every line
	Surge  float64  `json:"surge"`           // frequency multiplier, ≥ 1
}

// Affects reports whether the catastrophe hits a market.
func (c Catastrophe) Affects(key model.MarketKey) bool {
	if !contains(c.States, key.State) {
		return false
	}
	return len(c.Lines) == 0 || contains(c.Lines, key.Line)
}

// SurgeFor returns the combined frequency multiplier of every catastrophe
// affecting key, and whether any did.
func SurgeFor(key model.MarketKey, cats []Catastrophe) (float64, bool) {
	surge, hit := 1.0, false
	for _, c := range cats {
		if c.Affects(key) {
			surge *= c.Surge
			hit = true
		}
	}
	return surge, hit
}

// Catastrophes draws the turn's regional events from the turn-level stream.
// The result is shared read-only by every company's claims draw.
func (g *Generator) Catastrophes(r *rand.Rand) []Catastrophe {
	var out []Catastrophe
	for _, region := range g.bundle.Catastrophe.Regions {
		if r.Float64() >= region.Probability {
			continue
		}
		states := g.bundle.StatesInRegion(region.Code)
		if len(states) == 0 {
			continue
		}
		surge := distuv.Uniform{Min: region.SurgeMin, Max: region.SurgeMax, Src: r}.Rand()
		out = append(out, Catastrophe{
			Region: region.Code,
			States: states,
			Lines:  append([]string(nil), region.Lines...),
			Surge:  surge,
		})
	}
	return out
}

// Stress is the market-stress contribution of the turn's catastrophes.
func Stress(b *config.Bundle, cats []Catastrophe) float64 {
	return b.Catastrophe.StressPerEvent * float64(len(cats))
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
