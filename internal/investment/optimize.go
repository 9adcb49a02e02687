// Package investment models a company's invested portfolio: how its actual
// characteristics drift toward the CFO's target, what the CFO believes about
// them, the returns they really earn, and forced liquidation under stress.
//
// Skill only ever touches beliefs and sale ordering. True returns are a
// function of actual characteristics and are drawn from a stream that is
// independent of every perception draw.
package investment

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
	// ErrInvalidInput is returned for non-finite characteristics or a
	// negative portfolio value.
	ErrInvalidInput = errors.New("investment: invalid input")
)

// Engine runs portfolio operations from bundle parameters.
type Engine struct {
	params config.Investment
	bundle *config.Bundle
}

// NewEngine creates an engine from a validated bundle.
func NewEngine(b *config.Bundle) *Engine {
	return &Engine{params: b.Investment, bundle: b}
}

// OptimizeInput is one company's portfolio going into the turn.
type OptimizeInput struct {
	CompanyID string
	Target    model.Characteristics
	Actual    model.Characteristics
	Value     decimal.Decimal
	Skill     int // CFO skill 0–100, ignored when HasCFO is false
	HasCFO    bool
	Phase     model.EconomicPhase
}

// Outcome is the portfolio after the turn's rebalance and return draw.
type Outcome struct {
	Actual          model.Characteristics
	Perceived       model.Characteristics
	ExpectedReturn  float64 // weekly, on actual characteristics
	PerceivedReturn float64 // weekly, on perceived characteristics
	Volatility      float64
	ActualReturn    float64
	Income          decimal.Decimal // Value × ActualReturn
	MarginCall      decimal.Decimal // cash due because of a drawdown, zero if none
	NoiseFraction   float64
}

// NoiseFraction is the half-width of perception noise as a fraction of the
// 0–100 scale: h(s) = min + (max−min)·(1−s/100)^exponent. Without a CFO the
// zero-skill width is scaled by the no-CFO penalty.
func (e *Engine) NoiseFraction(skill int, hasCFO bool) float64 {
	n := e.params.Noise
	if !hasCFO {
		return n.MaxFraction * n.NoCFOPenalty
	}
	s := math.Min(math.Max(float64(skill), 0), 100)
	return n.MinFraction + (n.MaxFraction-n.MinFraction)*math.Pow(1-s/100, n.Exponent)
}

// Rebalance moves each actual slider toward its target by at most the
// per-turn adjustment cap.
func (e *Engine) Rebalance(actual, target model.Characteristics) model.Characteristics {
	a, t := actual.Values(), target.Values()
	step := e.params.MaxAdjustment
	for i := range a {
		delta := t[i] - a[i]
		if delta > step {
			delta = step
		}
		if delta < -step {
			delta = -step
		}
		a[i] += delta
	}
	return model.CharacteristicsFrom(a).Clamp()
}

// Perceive returns actual plus fresh uniform noise of half-width h·100 on
// every slider, clamped to the scale.
func (e *Engine) Perceive(actual model.Characteristics, skill int, hasCFO bool, r *rand.Rand) model.Characteristics {
	width := e.NoiseFraction(skill, hasCFO) * 100
	noise := distuv.Uniform{Min: -width, Max: width, Src: r}
	v := actual.Values()
	for i := range v {
		v[i] += noise.Rand()
	}
	return model.CharacteristicsFrom(v).Clamp()
}

// ExpectedReturn is the weekly expected return of a portfolio with
// characteristics c in the given phase.
func (e *Engine) ExpectedReturn(c model.Characteristics, phase model.EconomicPhase) float64 {
	r := e.params.Returns
	mu := r.BaseWeekly +
		r.RiskPremium*c.Risk/100 +
		r.TermPremium*c.Duration/100 +
		r.CreditSpread*c.Credit/100 -
		r.LiquidityCost*c.Liquidity/100
	if p, ok := e.bundle.Phase(phase); ok {
		mu += p.ReturnShift
	}
	return mu
}

// Volatility is the weekly standard deviation of returns.
func (e *Engine) Volatility(c model.Characteristics) float64 {
	r := e.params.Returns
	return (r.BaseVolatility + r.RiskVolatility*c.Risk/100) * (1 - r.DiversificationBenefit*c.Diversification/100)
}

// Optimize rebalances the portfolio, redraws the CFO's perception from the
// perception stream and draws the realised return from the returns stream.
func (e *Engine) Optimize(in OptimizeInput, perception, returns *rand.Rand) (Outcome, error) {
	for _, c := range []model.Characteristics{in.Target, in.Actual} {
		for _, x := range c.Values() {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return Outcome{}, fmt.Errorf("%w: %s characteristics %+v", ErrInvalidInput, in.CompanyID, c)
			}
		}
	}
	if in.Value.IsNegative() {
		return Outcome{}, fmt.Errorf("%w: %s portfolio value %s", ErrInvalidInput, in.CompanyID, in.Value)
	}

	out := Outcome{Income: decimal.Zero, MarginCall: decimal.Zero}
	out.Actual = e.Rebalance(in.Actual, in.Target.Clamp())
	out.NoiseFraction = e.NoiseFraction(in.Skill, in.HasCFO)
	out.Perceived = e.Perceive(out.Actual, in.Skill, in.HasCFO, perception)
	out.ExpectedReturn = e.ExpectedReturn(out.Actual, in.Phase)
	out.PerceivedReturn = e.ExpectedReturn(out.Perceived, in.Phase)
	out.Volatility = e.Volatility(out.Actual)

	ret := out.ExpectedReturn
	if out.Volatility > 0 {
		ret = distuv.Normal{Mu: out.ExpectedReturn, Sigma: out.Volatility, Src: returns}.Rand()
	}
	out.ActualReturn = ret
	out.Income = in.Value.Mul(decimal.NewFromFloat(ret)).Round(2)

	if ret < -e.params.Returns.MarginCallDrawdown {
		loss := out.Income.Neg()
		out.MarginCall = loss.Mul(decimal.NewFromFloat(e.params.Returns.MarginCallRatio)).Round(2)
	}
	return out, nil
}
