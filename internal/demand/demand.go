// Package demand allocates each (state, line) market among competing
// companies.
//
// Allocation is one joint multinomial-logit computation per market. Each
// competitor's utility is
//
//	u_i = -α_i·ln(p_i/p_ref) + ln(volume(tier_i)) + retention_i + brand_i
//
// with α_i = elasticity_exponent × tier elasticity multiplier. An outside
// good with utility u_0 (no purchase) absorbs demand that aggregate price
// levels leave unmet, so a lone company still loses customers when it
// overprices. Shares are the softmax over {u_0, u_1, ..., u_n} and always
// sum to 1 with the outside share.
package demand

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

var (
	// ErrPriceOutOfBounds is returned for a non-positive price or one whose
	// multiplier lies outside the configured band. Decision validation
	// rejects such prices upstream, so reaching it is a programming error.
	ErrPriceOutOfBounds = errors.New("demand: price outside validated bounds")

	// ErrUnknownTier is returned for a tier missing from the bundle.
	ErrUnknownTier = errors.New("demand: unknown tier")

	// ErrInvalidMarket is returned for a market with a non-positive
	// reference price or negative demand.
	ErrInvalidMarket = errors.New("demand: invalid market parameters")
)

// multiplierTolerance absorbs cent rounding of stored prices.
const multiplierTolerance = 1e-4

// Market is one (state, line) market for one turn.
type Market struct {
	Key            model.MarketKey
	Turn           int
	Phase          model.EconomicPhase
	ReferencePrice float64 // annual premium at which price utility is zero
	Demand         float64 // addressable policies
}

// Competitor is one company's offering in the market.
type Competitor struct {
	CompanyID     string
	Price         float64 // annual premium
	BasePrice     float64 // premium at multiplier 1.0
	Tier          model.Tier
	TenureTurns   int
	PriorPolicies int64
	PriorShare    float64
	Brand         float64 // 0–100, 50 is neutral
}

// Share is one competitor's allocation.
type Share struct {
	CompanyID string  `json:"company_id"`
	Share     float64 `json:"share"`
	Policies  int64   `json:"policies"`
	Utility   float64 `json:"utility"`
}

// Allocation is the joint outcome of one market.
type Allocation struct {
	Shares       []Share // competitor order
	OutsideShare float64
	Condition    model.MarketCondition
}

// Allocator computes market shares from bundle parameters. It is stateless
// and safe for concurrent use.
type Allocator struct {
	params config.Demand
	tiers  map[model.Tier]config.Tier
}

// NewAllocator creates an allocator from a validated bundle.
func NewAllocator(b *config.Bundle) *Allocator {
	tiers := make(map[model.Tier]config.Tier, len(b.Tiers))
	for _, t := range b.Tiers {
		tiers[t.Name] = t
	}
	return &Allocator{params: b.Demand, tiers: tiers}
}

// CheckPrice verifies a competitor's price lies inside the multiplier band.
func (a *Allocator) CheckPrice(c Competitor) error {
	if !(c.Price > 0) || !(c.BasePrice > 0) || math.IsInf(c.Price, 0) || math.IsInf(c.BasePrice, 0) {
		return fmt.Errorf("%w: %s priced %v on base %v", ErrPriceOutOfBounds, c.CompanyID, c.Price, c.BasePrice)
	}
	mult := c.Price / c.BasePrice
	if mult < a.params.MinMultiplier-multiplierTolerance || mult > a.params.MaxMultiplier+multiplierTolerance {
		return fmt.Errorf("%w: %s multiplier %.4f outside [%.2f, %.2f]",
			ErrPriceOutOfBounds, c.CompanyID, mult, a.params.MinMultiplier, a.params.MaxMultiplier)
	}
	return nil
}

// elasticity returns α for a tier.
func (a *Allocator) elasticity(t model.Tier) (float64, error) {
	tp, ok := a.tiers[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return a.params.ElasticityExponent * tp.ElasticityMultiplier, nil
}

// Utility is the logit desirability of one competitor.
func (a *Allocator) Utility(m Market, c Competitor) (float64, error) {
	if err := a.CheckPrice(c); err != nil {
		return 0, err
	}
	alpha, err := a.elasticity(c.Tier)
	if err != nil {
		return 0, err
	}
	tp := a.tiers[c.Tier]

	u := -alpha*math.Log(c.Price/m.ReferencePrice) + math.Log(tp.VolumeMultiplier)
	u += a.retention(c)
	u += a.params.BrandWeight * (c.Brand - 50) / 50
	return u, nil
}

// BrandStrength is the CEO's pull on customers: the mean of market acumen
// and leadership, 50 when neither attribute is set.
func BrandStrength(ceo map[string]int) float64 {
	var sum, n float64
	for _, attr := range []string{model.AttrMarketAcumen, model.AttrLeadership} {
		if v, ok := ceo[attr]; ok {
			sum += float64(v)
			n++
		}
	}
	if n == 0 {
		return 50
	}
	return sum / n
}

// retention rewards tenure; a company with no prior policies pays the full
// new-entrant penalty and earns no tenure bonus.
func (a *Allocator) retention(c Competitor) float64 {
	if c.PriorPolicies <= 0 {
		return -a.params.NewEntrantPenalty
	}
	tenure := c.TenureTurns
	if tenure > a.params.TenureCap {
		tenure = a.params.TenureCap
	}
	return a.params.TenureBonus * float64(tenure)
}

// Allocate runs the joint logit for one market.
//
// Competitors whose utilities differ only through price form a class. Each
// class member's attraction e^u is scaled by its prior share relative to the
// class mean, so members tied on price split the tie in proportion to prior
// share, or equally when the class has no prior share. The weight does not
// depend on price, which keeps every share non-increasing in its own price.
func (a *Allocator) Allocate(m Market, cs []Competitor) (Allocation, error) {
	if !(m.ReferencePrice > 0) || m.Demand < 0 || math.IsNaN(m.Demand) || math.IsInf(m.Demand, 0) {
		return Allocation{}, fmt.Errorf("%w: %s reference %v demand %v", ErrInvalidMarket, m.Key, m.ReferencePrice, m.Demand)
	}
	cond := model.MarketCondition{
		Key:            m.Key,
		Turn:           m.Turn,
		Phase:          m.Phase,
		BaseDemand:     m.Demand,
		ReferencePrice: m.ReferencePrice,
		OutsideShare:   1,
		Competitors:    len(cs),
	}
	if len(cs) == 0 {
		return Allocation{OutsideShare: 1, Condition: cond}, nil
	}

	utilities := make([]float64, len(cs)+1)
	utilities[0] = a.params.OutsideUtility
	alphas := make([]float64, len(cs))
	for i, c := range cs {
		u, err := a.Utility(m, c)
		if err != nil {
			return Allocation{}, err
		}
		utilities[i+1] = u
		alphas[i], _ = a.elasticity(c.Tier)
	}

	attraction := make([]float64, len(utilities))
	copy(attraction, utilities)
	for i, w := range a.priorWeights(cs) {
		attraction[i+1] += math.Log(w)
	}

	probs := softmax(attraction)
	shares := probs[1:]

	alloc := Allocation{Shares: make([]Share, len(cs)), OutsideShare: probs[0]}
	var written int64
	var insured float64
	for i, c := range cs {
		policies := int64(math.Floor(shares[i] * m.Demand))
		alloc.Shares[i] = Share{CompanyID: c.CompanyID, Share: shares[i], Policies: policies, Utility: utilities[i+1]}
		written += policies
		insured += shares[i]
	}

	var hhi float64
	if insured > 0 {
		for _, s := range shares {
			w := s / insured
			hhi += w * w
		}
	}

	cond.OutsideShare = probs[0]
	cond.PriceElasticity = stat.Mean(alphas, nil)
	cond.CompetitiveIntensity = 1 - hhi
	cond.AverageGenerosity = a.averageGenerosity(cs, alloc.Shares)
	cond.PoliciesWritten = written
	alloc.Condition = cond
	return alloc, nil
}

// averageGenerosity is the policy-weighted tier generosity of the market,
// falling back to share weights when no whole policy was written.
func (a *Allocator) averageGenerosity(cs []Competitor, shares []Share) float64 {
	gen := make([]float64, len(cs))
	policyW := make([]float64, len(cs))
	shareW := make([]float64, len(cs))
	var totalPolicies float64
	for i, c := range cs {
		gen[i] = a.tiers[c.Tier].Generosity
		policyW[i] = float64(shares[i].Policies)
		shareW[i] = shares[i].Share
		totalPolicies += policyW[i]
	}
	if totalPolicies > 0 {
		return stat.Mean(gen, policyW)
	}
	return stat.Mean(gen, shareW)
}

type classKey struct {
	tier    model.Tier
	tenure  int
	entrant bool
	brand   float64
}

// priorWeights returns each competitor's attraction weight: prior share over
// the mean prior share of its class. Members without prior share count as the
// class mean; a class with no prior share at all weighs 1.
func (a *Allocator) priorWeights(cs []Competitor) []float64 {
	weights := make([]float64, len(cs))
	classes := make(map[classKey][]int)
	for i, c := range cs {
		weights[i] = 1
		k := classKey{tier: c.Tier, entrant: c.PriorPolicies <= 0, brand: c.Brand}
		if !k.entrant {
			k.tenure = min(c.TenureTurns, a.params.TenureCap)
		}
		classes[k] = append(classes[k], i)
	}
	for _, idx := range classes {
		if len(idx) < 2 {
			continue
		}
		var sum float64
		var n int
		for _, i := range idx {
			if p := cs[i].PriorShare; p > 0 && !math.IsInf(p, 0) {
				sum += p
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		for _, i := range idx {
			if p := cs[i].PriorShare; p > 0 && !math.IsInf(p, 0) {
				weights[i] = p / mean
			}
		}
	}
	return weights
}
