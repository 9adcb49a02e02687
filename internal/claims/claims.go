// Package claims draws weekly claim counts and amounts per (company, state,
// line) exposure.
//
// Frequency per exposure is
//
//	λ = policies × annual_frequency / weeks × selection(tier)
//	    × exp(adverse × (generosity(tier) − market_generosity)) × surge
//
// and severity has mean
//
//	base_severity × state_cost × (1 + moral_hazard × (1 − cost_sharing(tier)))
//
// Count and severity distributions are chosen by the parameter bundle.
package claims

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

var (
	// ErrInvalidParameters is returned when an exposure or its configured
	// parameters fall outside their numeric domain.
	ErrInvalidParameters = errors.New("claims: invalid parameters")
)

// Exposure is one company's book in one market for the turn.
type Exposure struct {
	CompanyID        string
	Key              model.MarketKey
	Tier             model.Tier
	Policies         int64
	MarketGenerosity float64 // same-turn policy-weighted average of the market
}

// Outcome is the claims experience of one exposure.
type Outcome struct {
	Key          model.MarketKey `json:"key"`
	Count        int64           `json:"count"`
	Amount       decimal.Decimal `json:"amount"`
	Lambda       float64         `json:"lambda"`
	MeanSeverity float64         `json:"mean_severity"`
	Surge        float64         `json:"surge"`
	Catastrophe  bool            `json:"catastrophe"`
}

// Generator produces claims from bundle parameters. It holds no mutable
// state; randomness comes from the stream passed to each call.
type Generator struct {
	bundle *config.Bundle
	params config.Claims
	weeks  float64
}

// NewGenerator creates a generator from a validated bundle.
func NewGenerator(b *config.Bundle) *Generator {
	return &Generator{bundle: b, params: b.Claims, weeks: float64(b.Economy.WeeksPerYear)}
}

// Frequency returns the expected claim count λ for an exposure, before any
// catastrophe surge.
func (g *Generator) Frequency(e Exposure) (float64, error) {
	line, ok := g.bundle.Line(e.Key.Line)
	if !ok {
		return 0, fmt.Errorf("%w: unknown line %q", ErrInvalidParameters, e.Key.Line)
	}
	tier, ok := g.bundle.Tier(e.Tier)
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidParameters, e.Tier)
	}
	if e.Policies < 0 {
		return 0, fmt.Errorf("%w: %s has %d policies in %s", ErrInvalidParameters, e.CompanyID, e.Policies, e.Key)
	}
	if !finite(e.MarketGenerosity) {
		return 0, fmt.Errorf("%w: market generosity %v", ErrInvalidParameters, e.MarketGenerosity)
	}
	adverse := math.Exp(g.params.AdverseSelectionStrength * (tier.Generosity - e.MarketGenerosity))
	return float64(e.Policies) * line.BaseFrequency / g.weeks * tier.SelectionMultiplier * adverse, nil
}

// MeanSeverity returns the expected cost of one claim.
func (g *Generator) MeanSeverity(e Exposure) (float64, error) {
	line, ok := g.bundle.Line(e.Key.Line)
	if !ok {
		return 0, fmt.Errorf("%w: unknown line %q", ErrInvalidParameters, e.Key.Line)
	}
	state, ok := g.bundle.State(e.Key.State)
	if !ok {
		return 0, fmt.Errorf("%w: unknown state %q", ErrInvalidParameters, e.Key.State)
	}
	tier, ok := g.bundle.Tier(e.Tier)
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidParameters, e.Tier)
	}
	moralHazard := 1 + g.params.MoralHazardStrength*(1-tier.CostSharing)
	return line.BaseSeverity * state.CostModifier * moralHazard, nil
}

// Generate draws the turn's claims for one exposure. A zero-policy exposure
// yields exactly zero claims and consumes no random draws.
func (g *Generator) Generate(e Exposure, cats []Catastrophe, r *rand.Rand) (Outcome, error) {
	out := Outcome{Key: e.Key, Amount: decimal.Zero, Surge: 1}

	lambda, err := g.Frequency(e)
	if err != nil {
		return out, err
	}
	mean, err := g.MeanSeverity(e)
	if err != nil {
		return out, err
	}
	out.MeanSeverity = mean
	if e.Policies == 0 {
		return out, nil
	}

	surge, hit := SurgeFor(e.Key, cats)
	lambda *= surge
	out.Lambda, out.Surge, out.Catastrophe = lambda, surge, hit
	if !finite(lambda) || lambda < 0 || !finite(mean) || mean < 0 {
		return out, fmt.Errorf("%w: λ=%v severity=%v for %s", ErrInvalidParameters, lambda, mean, e.Key)
	}
	if lambda == 0 || mean == 0 {
		return out, nil
	}

	line, _ := g.bundle.Line(e.Key.Line)
	count, err := g.drawCount(lambda, line, r)
	if err != nil {
		return out, err
	}
	out.Count = count
	if count == 0 {
		return out, nil
	}

	amount, err := g.drawAmount(count, mean, line, r)
	if err != nil {
		return out, err
	}
	out.Amount = decimal.NewFromFloat(amount).Round(2)
	return out, nil
}

func (g *Generator) drawCount(lambda float64, line config.Line, r *rand.Rand) (int64, error) {
	switch g.params.FrequencyDistribution {
	case config.DistPoisson:
		return int64(distuv.Poisson{Lambda: lambda, Src: r}.Rand()), nil
	case config.DistNegativeBinomial:
		// Gamma–Poisson mixture: mean λ, variance λ + λ²/r.
		k := line.Dispersion
		if !(k > 0) {
			return 0, fmt.Errorf("%w: dispersion %v for %s", ErrInvalidParameters, k, line.Code)
		}
		mixed := distuv.Gamma{Alpha: k, Beta: k / lambda, Src: r}.Rand()
		if !(mixed > 0) {
			return 0, nil
		}
		return int64(distuv.Poisson{Lambda: mixed, Src: r}.Rand()), nil
	default:
		return 0, fmt.Errorf("%w: frequency distribution %q", ErrInvalidParameters, g.params.FrequencyDistribution)
	}
}

// drawAmount sums count severity draws. Counts above the configured cap are
// sampled and scaled up.
func (g *Generator) drawAmount(count int64, mean float64, line config.Line, r *rand.Rand) (float64, error) {
	var draw func() float64
	switch g.params.SeverityDistribution {
	case config.DistLogNormal:
		sigma := line.SeveritySigma
		if !(sigma > 0) {
			return 0, fmt.Errorf("%w: severity sigma %v for %s", ErrInvalidParameters, sigma, line.Code)
		}
		d := distuv.LogNormal{Mu: math.Log(mean) - sigma*sigma/2, Sigma: sigma, Src: r}
		draw = d.Rand
	case config.DistPareto:
		alpha := line.ParetoAlpha
		if !(alpha > 1) {
			return 0, fmt.Errorf("%w: pareto alpha %v for %s", ErrInvalidParameters, alpha, line.Code)
		}
		d := distuv.Pareto{Xm: mean * (alpha - 1) / alpha, Alpha: alpha, Src: r}
		draw = d.Rand
	default:
		return 0, fmt.Errorf("%w: severity distribution %q", ErrInvalidParameters, g.params.SeverityDistribution)
	}

	n := count
	if limit := int64(g.params.MaxSeverityDraws); limit > 0 && n > limit {
		n = limit
	}
	var sum float64
	for i := int64(0); i < n; i++ {
		sum += draw()
	}
	total := sum * float64(count) / float64(n)
	if !finite(total) || total < 0 {
		return 0, fmt.Errorf("%w: claim total %v", ErrInvalidParameters, total)
	}
	return total, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
