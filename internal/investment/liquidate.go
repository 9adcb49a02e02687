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
	// ErrInvalidRequest is returned for a non-positive liquidation amount.
	ErrInvalidRequest = errors.New("investment: invalid liquidation request")

	// ErrInvalidTransition is returned when the liquidation state machine is
	// driven out of order.
	ErrInvalidTransition = errors.New("investment: invalid liquidation transition")
)

const (
	// minBucketWeight keeps every configured bucket holding some assets.
	minBucketWeight = 0.01
	cent            = 0.005
)

// Phase is the per-company liquidation state.
type Phase int

const (
	Stable Phase = iota
	Liquidating
	ResolvedRaised
	ResolvedExhausted
)

func (p Phase) String() string {
	switch p {
	case Stable:
		return "stable"
	case Liquidating:
		return "liquidating"
	case ResolvedRaised:
		return "resolved_raised"
	case ResolvedExhausted:
		return "resolved_exhausted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Liquidation tracks one company's state machine for the turn.
type Liquidation struct {
	phase Phase
}

// Phase returns the current state.
func (l *Liquidation) Phase() Phase { return l.phase }

func (l *Liquidation) transition(to Phase) error {
	ok := false
	switch l.phase {
	case Stable:
		ok = to == Liquidating
	case Liquidating:
		ok = to == ResolvedRaised || to == ResolvedExhausted
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.phase, to)
	}
	l.phase = to
	return nil
}

// Request asks the engine to raise cash by selling portfolio assets.
type Request struct {
	CompanyID string
	Turn      int
	EventID   string
	Trigger   model.LiquidationTrigger
	Required  decimal.Decimal
	Actual    model.Characteristics
	Value     decimal.Decimal
	Skill     int
	HasCFO    bool
	Stress    float64 // process-wide market stress for the turn
}

// Result is a completed liquidation.
type Result struct {
	Event     model.LiquidationEvent
	Remaining decimal.Decimal // portfolio value left after sales and markdowns
	Phase     Phase
}

// Holding is the value held in one asset bucket.
type Holding struct {
	Bucket config.Bucket
	Value  float64
}

// Holdings splits a portfolio of the given value into the configured asset
// buckets. A bucket's weight is its base plus each loading scaled by the
// matching slider, floored at a small positive weight.
func (e *Engine) Holdings(c model.Characteristics, value float64) []Holding {
	weights := make([]float64, len(e.params.Buckets))
	var total float64
	for i, b := range e.params.Buckets {
		w := b.Base +
			b.RiskLoading*c.Risk/100 +
			b.DurationLoading*c.Duration/100 +
			b.LiquidityLoading*c.Liquidity/100 +
			b.CreditLoading*c.Credit/100 +
			b.DiversificationLoading*c.Diversification/100
		weights[i] = math.Max(w, minBucketWeight)
		total += weights[i]
	}
	out := make([]Holding, len(weights))
	for i, b := range e.params.Buckets {
		out[i] = Holding{Bucket: b, Value: value * weights[i] / total}
	}
	return out
}

// SelectionQuality maps CFO skill to q ∈ [0, 1]: 0 at or below the low
// threshold, 1 at or above the high threshold, linear between.
func (e *Engine) SelectionQuality(skill int, hasCFO bool) float64 {
	if !hasCFO {
		return 0
	}
	lo, hi := e.params.Liquidation.LowSkillThreshold, e.params.Liquidation.HighSkillThreshold
	switch {
	case skill <= lo:
		return 0
	case skill >= hi:
		return 1
	}
	return float64(skill-lo) / float64(hi-lo)
}

// sale carries the knobs that distinguish a real liquidation from the
// optimal benchmark.
type sale struct {
	quality   float64
	perceived []float64
	panic     bool
	r         *rand.Rand
}

type saleResult struct {
	steps    []model.LiquidationStep
	raised   float64
	cost     float64 // book value sold minus proceeds
	markdown float64
	left     float64
}

// Liquidate sells assets until Required is raised or the portfolio is
// exhausted. Exhaustion is a normal outcome, not an error.
func (e *Engine) Liquidate(req Request, r *rand.Rand) (Result, error) {
	if !req.Required.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s required %s", ErrInvalidRequest, req.CompanyID, req.Required)
	}
	if req.Value.IsNegative() || math.IsNaN(req.Stress) || req.Stress < 0 {
		return Result{}, fmt.Errorf("%w: %s value %s stress %v", ErrInvalidRequest, req.CompanyID, req.Value, req.Stress)
	}

	var lq Liquidation
	if err := lq.transition(Liquidating); err != nil {
		return Result{}, err
	}

	value := req.Value.InexactFloat64()
	required := req.Required.InexactFloat64()
	holdings := e.Holdings(req.Actual, value)

	// Perceived liquidity of each bucket, drawn once per event.
	width := e.NoiseFraction(req.Skill, req.HasCFO)
	noise := distuv.Uniform{Min: -width, Max: width, Src: r}
	perceived := make([]float64, len(holdings))
	for i, h := range holdings {
		perceived[i] = clamp01(h.Bucket.Liquidity + noise.Rand())
	}

	q := e.SelectionQuality(req.Skill, req.HasCFO)
	actual := e.sell(holdings, required, req.Stress, sale{quality: q, perceived: perceived, panic: true, r: r})

	trueLiq := make([]float64, len(holdings))
	for i, h := range holdings {
		trueLiq[i] = h.Bucket.Liquidity
	}
	optimal := e.sell(holdings, required, req.Stress, sale{quality: 1, perceived: trueLiq})

	ev := model.LiquidationEvent{
		ID:           req.EventID,
		CompanyID:    req.CompanyID,
		Turn:         req.Turn,
		Trigger:      req.Trigger,
		Required:     req.Required,
		Steps:        actual.steps,
		Raised:       money(actual.raised),
		RealizedCost: money(actual.cost + actual.markdown),
		OptimalCost:  money(optimal.cost + optimal.markdown),
		Markdown:     money(actual.markdown),
		SkillUsed:    req.Skill,
		Stress:       req.Stress,
	}
	if !req.HasCFO {
		ev.SkillUsed = 0
	}

	next := ResolvedRaised
	ev.Resolution = model.ResolutionRaised
	if actual.raised < required-cent {
		next = ResolvedExhausted
		ev.Resolution = model.ResolutionExhausted
	} else if ev.Raised.LessThan(req.Required) {
		ev.Raised = req.Required
	}
	if err := lq.transition(next); err != nil {
		return Result{}, err
	}
	return Result{Event: ev, Remaining: money(actual.left), Phase: lq.Phase()}, nil
}

// sell runs one liquidation over a private copy of holdings.
func (e *Engine) sell(initial []Holding, required, stress float64, s sale) saleResult {
	p := e.params.Liquidation
	left := make([]float64, len(initial))
	sold := make([]float64, len(initial))
	for i, h := range initial {
		left[i] = h.Value
	}

	var res saleResult
	urgency := p.Panic.Urgency
	for res.raised < required-cent {
		i := e.pick(initial, left, s)
		if i < 0 {
			break
		}
		h := initial[i]
		chunk := math.Min(left[i], math.Max(h.Value*p.ChunkFraction, cent))
		fraction := (sold[i] + chunk) / h.Value
		liq := h.Bucket.Liquidity

		scale := (1 - liq) * fraction * (1 + stress)
		impact := p.ImpactCoefficient * scale
		info := p.InformationCoefficient * scale
		discount := impact + info
		if s.panic && s.quality < 1 {
			pd := p.Panic.Discount * (1 - s.quality) * urgency
			if p.Panic.Mode == config.PanicMultiplicative {
				discount = 1 - (1-discount)*(1-pd)
			} else {
				discount += pd
			}
			discount += p.PerceptionErrorCoefficient * math.Abs(s.perceived[i]-liq) * (1 - s.quality)
			urgency *= 1 - p.Panic.UrgencyDecay
		}
		discount = math.Min(math.Max(discount, 0), p.MaxDiscount)

		proceeds := chunk * (1 - discount)
		if need := required - res.raised; proceeds > need {
			chunk = need / (1 - discount)
			proceeds = need
		}
		left[i] -= chunk
		sold[i] += chunk
		res.raised += proceeds
		res.cost += chunk - proceeds

		// The information discount is permanent: unsold holdings in the
		// bucket are marked down with it.
		if left[i] > 0 {
			md := left[i] * math.Min(info, p.MaxDiscount)
			left[i] -= md
			res.markdown += md
		}
		if left[i] < cent {
			left[i] = 0
		}

		res.steps = append(res.steps, model.LiquidationStep{
			Bucket:             h.Bucket.Name,
			BookValue:          money(chunk),
			Proceeds:           money(proceeds),
			Discount:           discount,
			TrueLiquidity:      liq,
			PerceivedLiquidity: s.perceived[i],
		})
	}
	for _, v := range left {
		res.left += v
	}
	return res
}

// pick chooses the next bucket to sell from, or -1 when nothing is left.
// With probability q the choice follows true liquidity; otherwise it is a
// draw weighted by perceived liquidity.
func (e *Engine) pick(initial []Holding, left []float64, s sale) int {
	best := -1
	for i := range initial {
		if left[i] <= 0 {
			continue
		}
		if best < 0 || initial[i].Bucket.Liquidity > initial[best].Bucket.Liquidity {
			best = i
		}
	}
	if best < 0 || s.quality >= 1 {
		return best
	}
	if s.quality > 0 && s.r.Float64() < s.quality {
		return best
	}
	weights := make([]float64, len(initial))
	for i := range initial {
		if left[i] > 0 {
			weights[i] = math.Max(s.perceived[i], minBucketWeight)
		}
	}
	return int(distuv.NewCategorical(weights, s.r).Rand())
}

func clamp01(x float64) float64 {
	return math.Min(math.Max(x, 0), 1)
}

func money(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(2)
}
