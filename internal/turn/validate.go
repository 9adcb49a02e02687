package turn

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/expansion"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// ValidateDecision checks d against the company it is for. It returns a
// *ValidationError naming the first offending field, or nil.
func ValidateDecision(b *config.Bundle, c *model.CompanyState, d model.Decision, turn int) error {
	if d.CompanyID != c.ID {
		return invalid(c.ID, "company_id", "decision is for %q", d.CompanyID)
	}
	if d.Turn != turn {
		return invalid(c.ID, "turn", "decision is for turn %d, resolving %d", d.Turn, turn)
	}
	lo, hi := b.Demand.MinMultiplier, b.Demand.MaxMultiplier

	priced := map[model.MarketKey]bool{}
	for _, p := range d.Pricing {
		key := model.MarketKey{State: p.State, Line: p.Line}
		if c.Product(key) == nil {
			return invalid(c.ID, "pricing", "no product in %s", key)
		}
		if priced[key] {
			return invalid(c.ID, "pricing", "%s priced twice", key)
		}
		priced[key] = true
		if !inBand(p.Multiplier, lo, hi) {
			return invalid(c.ID, "pricing", "%s multiplier %v outside [%v, %v]", key, p.Multiplier, lo, hi)
		}
	}

	for _, s := range d.TierSwitches {
		key := model.MarketKey{State: s.State, Line: s.Line}
		if c.Product(key) == nil {
			return invalid(c.ID, "tier_switches", "no product in %s", key)
		}
		if _, ok := b.Tier(s.Tier); !ok {
			return invalid(c.ID, "tier_switches", "unknown tier %q", s.Tier)
		}
	}

	launched := map[model.MarketKey]bool{}
	for _, l := range d.Launches {
		key := model.MarketKey{State: l.State, Line: l.Line}
		if _, ok := b.BasePrice(l.State, l.Line); !ok {
			return invalid(c.ID, "launches", "unknown market %s", key)
		}
		if !c.Authorized(l.State) {
			return invalid(c.ID, "launches", "not authorized in %s", l.State)
		}
		if c.Product(key) != nil || launched[key] {
			return invalid(c.ID, "launches", "product already exists in %s", key)
		}
		launched[key] = true
		if _, ok := b.Tier(l.Tier); !ok {
			return invalid(c.ID, "launches", "unknown tier %q", l.Tier)
		}
		if l.Multiplier != 0 && !inBand(l.Multiplier, lo, hi) {
			return invalid(c.ID, "launches", "%s multiplier %v outside [%v, %v]", key, l.Multiplier, lo, hi)
		}
	}

	requested := map[string]bool{}
	for _, s := range d.Expansions {
		if _, ok := b.State(s); !ok {
			return invalid(c.ID, "expansions", "unknown state %q", s)
		}
		if c.Authorized(s) {
			return invalid(c.ID, "expansions", "already authorized in %s", s)
		}
		if c.HasPendingExpansion(s) || requested[s] {
			return invalid(c.ID, "expansions", "request for %s already pending", s)
		}
		requested[s] = true
	}

	hired := map[model.Role]bool{}
	for _, h := range d.Hires {
		if !model.ValidRole(h.Role) {
			return invalid(c.ID, "hires", "unknown role %q", h.Role)
		}
		if h.Skill < 1 || h.Skill > 100 {
			return invalid(c.ID, "hires", "%s skill %d outside [1, 100]", h.Role, h.Skill)
		}
		if hired[h.Role] {
			return invalid(c.ID, "hires", "%s hired twice", h.Role)
		}
		hired[h.Role] = true
	}
	for _, r := range d.Fires {
		if _, ok := c.Skill(r); !ok {
			return invalid(c.ID, "fires", "no %s employed", r)
		}
		if hired[r] {
			return invalid(c.ID, "fires", "%s both hired and fired", r)
		}
	}

	for _, s := range d.RateFilings {
		if !c.Authorized(s) {
			return invalid(c.ID, "rate_filings", "not authorized in %s", s)
		}
	}

	if d.PortfolioTarget != nil && !d.PortfolioTarget.Valid() {
		return invalid(c.ID, "portfolio_target", "sliders must lie in [0, 100]")
	}
	return nil
}

func inBand(m, lo, hi float64) bool {
	return !math.IsNaN(m) && m >= lo && m <= hi
}

// applied is what applying a decision cost the company up front.
type applied struct {
	CapitalCalls decimal.Decimal
	Warnings     []string
}

// applyDecision mutates c, a working clone, with a validated decision.
// Hire fees and expansion fees are paid from cash immediately. A request
// the company cannot fund is skipped with a warning.
func applyDecision(b *config.Bundle, res *expansion.Resolver, c *model.CompanyState, d model.Decision, turn int) applied {
	out := applied{CapitalCalls: decimal.Zero}

	for _, p := range d.Pricing {
		c.Product(model.MarketKey{State: p.State, Line: p.Line}).PriceMultiplier = p.Multiplier
	}
	for _, s := range d.TierSwitches {
		c.Product(model.MarketKey{State: s.State, Line: s.Line}).Tier = s.Tier
	}
	for _, l := range d.Launches {
		base, _ := b.BasePrice(l.State, l.Line)
		m := l.Multiplier
		if m == 0 {
			m = 1
		}
		c.Products = append(c.Products, model.Product{
			State:            l.State,
			Line:             l.Line,
			Tier:             l.Tier,
			BasePrice:        base,
			PriceMultiplier:  m,
			CumulativeLosses: decimal.Zero,
			LaunchedTurn:     turn,
		})
	}
	c.SortProducts()

	hireFee := decimal.NewFromFloat(b.Staffing.HireFee).Round(2)
	for _, r := range d.Fires {
		delete(c.Staff, r)
	}
	for _, h := range d.Hires {
		if c.Staff == nil {
			c.Staff = map[model.Role]int{}
		}
		c.Staff[h.Role] = h.Skill
		c.Cash = c.Cash.Sub(hireFee)
		out.CapitalCalls = out.CapitalCalls.Add(hireFee)
	}

	for _, s := range d.Expansions {
		p, err := res.Submit(c, s, turn)
		if err != nil {
			out.Warnings = append(out.Warnings, "expansion skipped: "+err.Error())
			continue
		}
		c.PendingExpansions = append(c.PendingExpansions, p)
		c.Cash = c.Cash.Sub(p.Fee)
		out.CapitalCalls = out.CapitalCalls.Add(p.Fee)
	}

	for _, s := range d.RateFilings {
		if c.Compliance.Filings == nil {
			c.Compliance.Filings = map[string]int{}
		}
		c.Compliance.Filings[s] = turn
	}

	if d.PortfolioTarget != nil {
		c.Portfolio.Target = *d.PortfolioTarget
	}
	return out
}
