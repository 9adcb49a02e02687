package config

import (
	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// State returns the state with the given code.
func (b *Bundle) State(code string) (State, bool) {
	for _, s := range b.States {
		if s.Code == code {
			return s, true
		}
	}
	return State{}, false
}

// Line returns the line with the given code.
func (b *Bundle) Line(code string) (Line, bool) {
	for _, l := range b.Lines {
		if l.Code == code {
			return l, true
		}
	}
	return Line{}, false
}

// Tier returns the parameters of tier t.
func (b *Bundle) Tier(t model.Tier) (Tier, bool) {
	for _, tp := range b.Tiers {
		if tp.Name == t {
			return tp, true
		}
	}
	return Tier{}, false
}

// Phase returns the parameters of an economic phase.
func (b *Bundle) Phase(name model.EconomicPhase) (Phase, bool) {
	for _, p := range b.Economy.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// StatesInRegion lists the state codes of a catastrophe region, in bundle order.
func (b *Bundle) StatesInRegion(region string) []string {
	var out []string
	for _, s := range b.States {
		if s.Region == region {
			out = append(out, s.Code)
		}
	}
	return out
}

// FilingInterval returns the maximum turns between rate filings for a
// regulation level, or 0 if none is configured.
func (b *Bundle) FilingInterval(regulation string) int {
	for _, fi := range b.Compliance.FilingIntervals {
		if fi.Regulation == regulation {
			return fi.Turns
		}
	}
	return 0
}

// TierPermitted reports whether a regulation level permits tier t.
func (b *Bundle) TierPermitted(regulation string, t model.Tier) bool {
	for _, rt := range b.Compliance.DisallowedTiers {
		if rt.Regulation != regulation {
			continue
		}
		for _, bad := range rt.Tiers {
			if bad == t {
				return false
			}
		}
	}
	return true
}

// GraceEligible reports whether a first occurrence of v earns a warning.
func (b *Bundle) GraceEligible(v model.ViolationType) bool {
	if v == model.ViolationOperatingUnauthorized {
		return false
	}
	for _, g := range b.Compliance.GraceEligible {
		if g == v {
			return true
		}
	}
	return false
}

// Escalation returns the penalty factor for the k-th occurrence (1-based).
// Occurrences past the end of the schedule reuse the last factor.
func (b *Bundle) Escalation(k int) float64 {
	esc := b.Compliance.Penalty.Escalation
	if len(esc) == 0 {
		return 1
	}
	if k < 1 {
		k = 1
	}
	if k > len(esc) {
		k = len(esc)
	}
	return esc[k-1]
}

// ExpansionFee returns the fee for entering a state.
func (b *Bundle) ExpansionFee(state string) decimal.Decimal {
	if s, ok := b.State(state); ok && s.ExpansionFee > 0 {
		return decimal.NewFromFloat(s.ExpansionFee).Round(2)
	}
	return decimal.NewFromFloat(b.Expansion.DefaultFee).Round(2)
}

// BasePrice is the annual premium of a product at multiplier 1.0: the
// line's reference price scaled by the state's cost modifier.
func (b *Bundle) BasePrice(state, line string) (decimal.Decimal, bool) {
	s, ok := b.State(state)
	if !ok {
		return decimal.Zero, false
	}
	l, ok := b.Line(line)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(l.ReferencePrice * s.CostModifier).Round(2), true
}

// WeeklySalary returns the salary of an employee in role r with the given skill.
func (b *Bundle) WeeklySalary(r model.Role, skill int) decimal.Decimal {
	var base float64
	for _, s := range b.Staffing.Salaries {
		if s.Role == r {
			base = s.Weekly
			break
		}
	}
	return decimal.NewFromFloat(base + b.Staffing.SkillSalaryFactor*float64(skill)).Round(2)
}

// MinimumCapital is the regulatory capital floor for a given annual premium.
func (b *Bundle) MinimumCapital(annualPremium decimal.Decimal) decimal.Decimal {
	floor := decimal.NewFromFloat(b.Economy.MinCapitalFloor)
	byPremium := annualPremium.Mul(decimal.NewFromFloat(b.Economy.MinCapitalRatio))
	return decimal.Max(floor, byPremium).Round(2)
}
