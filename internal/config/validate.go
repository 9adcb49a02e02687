package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// ErrInvalidBundle is wrapped by every *Error.
var ErrInvalidBundle = errors.New("config: invalid parameter bundle")

// Error reports a missing or malformed bundle parameter.
type Error struct {
	Key    string // dotted path, e.g. "investment.noise.max_fraction"
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidBundle, e.Key, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalidBundle }

func invalid(key, format string, args ...any) *Error {
	return &Error{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the bundle and returns the first problem as *Error.
func (b *Bundle) Validate() error {
	if b == nil {
		return invalid("bundle", "missing")
	}
	if b.SchemaVersion != SchemaVersion {
		return invalid("schema_version", "got %d, want %d", b.SchemaVersion, SchemaVersion)
	}
	checks := []func() error{
		b.validateEconomy,
		b.validateMarkets,
		b.validateDemandAndClaims,
		b.validateInvestment,
		b.validateCompliance,
		b.validateExpansionAndStaffing,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func positive(key string, x float64) error {
	if !finite(x) || x <= 0 {
		return invalid(key, "must be positive, got %v", x)
	}
	return nil
}

func nonNegative(key string, x float64) error {
	if !finite(x) || x < 0 {
		return invalid(key, "must be non-negative, got %v", x)
	}
	return nil
}

func unit(key string, x float64) error {
	if !finite(x) || x < 0 || x > 1 {
		return invalid(key, "must lie in [0, 1], got %v", x)
	}
	return nil
}

func (b *Bundle) validateEconomy() error {
	e := b.Economy
	if e.WeeksPerYear <= 0 {
		return invalid("economy.weeks_per_year", "must be positive")
	}
	if err := unit("economy.operating_expense_ratio", e.OperatingExpenseRatio); err != nil {
		return err
	}
	if err := nonNegative("economy.fixed_expense_per_product", e.FixedExpensePerProduct); err != nil {
		return err
	}
	if err := nonNegative("economy.min_capital_ratio", e.MinCapitalRatio); err != nil {
		return err
	}
	if err := positive("economy.min_capital_floor", e.MinCapitalFloor); err != nil {
		return err
	}
	if err := unit("economy.target_cash_ratio", e.TargetCashRatio); err != nil {
		return err
	}
	if len(e.Phases) == 0 {
		return invalid("economy.phases", "at least one phase required")
	}
	names := make(map[model.EconomicPhase]bool, len(e.Phases))
	for _, p := range e.Phases {
		if names[p.Name] || p.Name == "" {
			return invalid("economy.phases", "duplicate or empty phase %q", p.Name)
		}
		names[p.Name] = true
	}
	for _, p := range e.Phases {
		key := fmt.Sprintf("economy.phases[%s]", p.Name)
		if err := positive(key+".demand_multiplier", p.DemandMultiplier); err != nil {
			return err
		}
		if err := unit(key+".stress", p.Stress); err != nil {
			return err
		}
		if !finite(p.ReturnShift) {
			return invalid(key+".return_shift", "must be finite")
		}
		var total float64
		for _, t := range p.Transitions {
			if !names[t.To] {
				return invalid(key+".transitions", "unknown phase %q", t.To)
			}
			if err := unit(key+".transitions.probability", t.Probability); err != nil {
				return err
			}
			total += t.Probability
		}
		if math.Abs(total-1) > 1e-6 {
			return invalid(key+".transitions", "probabilities sum to %v, want 1", total)
		}
	}
	return nil
}

func (b *Bundle) validateMarkets() error {
	if len(b.States) == 0 {
		return invalid("states", "at least one state required")
	}
	seen := make(map[string]bool)
	for _, s := range b.States {
		key := fmt.Sprintf("states[%s]", s.Code)
		if len(s.Code) != 2 || seen[s.Code] {
			return invalid(key+".code", "must be a unique two-letter code")
		}
		seen[s.Code] = true
		switch s.Regulation {
		case RegulationLight, RegulationStandard, RegulationStrict:
		default:
			return invalid(key+".regulation", "unknown level %q", s.Regulation)
		}
		if err := positive(key+".cost_modifier", s.CostModifier); err != nil {
			return err
		}
		if err := positive(key+".demand_factor", s.DemandFactor); err != nil {
			return err
		}
		if err := nonNegative(key+".expansion_fee", s.ExpansionFee); err != nil {
			return err
		}
	}
	if len(b.Lines) == 0 {
		return invalid("lines", "at least one line required")
	}
	seen = make(map[string]bool)
	for _, l := range b.Lines {
		key := fmt.Sprintf("lines[%s]", l.Code)
		if _, err := model.ParseMarketKey("XX-" + l.Code); err != nil || seen[l.Code] {
			return invalid(key+".code", "must be a unique lowercase identifier")
		}
		seen[l.Code] = true
		for name, v := range map[string]float64{
			"base_demand":     l.BaseDemand,
			"reference_price": l.ReferencePrice,
			"base_severity":   l.BaseSeverity,
			"severity_sigma":  l.SeveritySigma,
			"dispersion":      l.Dispersion,
		} {
			if err := positive(key+"."+name, v); err != nil {
				return err
			}
		}
		if err := nonNegative(key+".base_frequency", l.BaseFrequency); err != nil {
			return err
		}
		if !finite(l.ParetoAlpha) || l.ParetoAlpha <= 1 {
			return invalid(key+".pareto_alpha", "must exceed 1 for a finite mean")
		}
	}
	for _, want := range []model.Tier{model.TierBasic, model.TierStandard, model.TierPremium} {
		t, ok := b.Tier(want)
		if !ok {
			return invalid("tiers", "missing tier %q", want)
		}
		key := fmt.Sprintf("tiers[%s]", want)
		if err := positive(key+".elasticity_multiplier", t.ElasticityMultiplier); err != nil {
			return err
		}
		if err := positive(key+".volume_multiplier", t.VolumeMultiplier); err != nil {
			return err
		}
		if err := positive(key+".selection_multiplier", t.SelectionMultiplier); err != nil {
			return err
		}
		if err := unit(key+".generosity", t.Generosity); err != nil {
			return err
		}
		if err := unit(key+".cost_sharing", t.CostSharing); err != nil {
			return err
		}
	}
	regions := make(map[string]bool)
	for _, r := range b.Catastrophe.Regions {
		key := fmt.Sprintf("catastrophe.regions[%s]", r.Code)
		if r.Code == "" || regions[r.Code] {
			return invalid(key+".code", "must be unique and non-empty")
		}
		regions[r.Code] = true
		if err := unit(key+".probability", r.Probability); err != nil {
			return err
		}
		if !finite(r.SurgeMin, r.SurgeMax) || r.SurgeMin < 1 || r.SurgeMax < r.SurgeMin {
			return invalid(key, "surge range must satisfy 1 <= surge_min <= surge_max")
		}
		for _, l := range r.Lines {
			if _, ok := b.Line(l); !ok {
				return invalid(key+".lines", "unknown line %q", l)
			}
		}
	}
	return nonNegative("catastrophe.stress_per_event", b.Catastrophe.StressPerEvent)
}

func (b *Bundle) validateDemandAndClaims() error {
	d := b.Demand
	if err := positive("demand.elasticity_exponent", d.ElasticityExponent); err != nil {
		return err
	}
	if !finite(d.OutsideUtility, d.BrandWeight) {
		return invalid("demand", "outside_utility and brand_weight must be finite")
	}
	if err := nonNegative("demand.tenure_bonus", d.TenureBonus); err != nil {
		return err
	}
	if d.TenureCap < 0 {
		return invalid("demand.tenure_cap", "must be non-negative")
	}
	if err := nonNegative("demand.new_entrant_penalty", d.NewEntrantPenalty); err != nil {
		return err
	}
	if err := positive("demand.min_multiplier", d.MinMultiplier); err != nil {
		return err
	}
	if !finite(d.MaxMultiplier) || d.MaxMultiplier < d.MinMultiplier {
		return invalid("demand.max_multiplier", "must be at least min_multiplier")
	}

	c := b.Claims
	switch c.FrequencyDistribution {
	case DistPoisson, DistNegativeBinomial:
	default:
		return invalid("claims.frequency_distribution", "unknown distribution %q", c.FrequencyDistribution)
	}
	switch c.SeverityDistribution {
	case DistLogNormal, DistPareto:
	default:
		return invalid("claims.severity_distribution", "unknown distribution %q", c.SeverityDistribution)
	}
	if err := nonNegative("claims.adverse_selection_strength", c.AdverseSelectionStrength); err != nil {
		return err
	}
	if err := nonNegative("claims.moral_hazard_strength", c.MoralHazardStrength); err != nil {
		return err
	}
	if c.MaxSeverityDraws <= 0 {
		return invalid("claims.max_severity_draws", "must be positive")
	}
	return nil
}

func (b *Bundle) validateInvestment() error {
	inv := b.Investment
	if !finite(inv.MaxAdjustment) || inv.MaxAdjustment <= 0 || inv.MaxAdjustment > 100 {
		return invalid("investment.max_adjustment", "must lie in (0, 100]")
	}
	n := inv.Noise
	if err := unit("investment.noise.max_fraction", n.MaxFraction); err != nil {
		return err
	}
	if err := unit("investment.noise.min_fraction", n.MinFraction); err != nil {
		return err
	}
	if n.MinFraction > n.MaxFraction {
		return invalid("investment.noise", "min_fraction exceeds max_fraction")
	}
	if err := positive("investment.noise.exponent", n.Exponent); err != nil {
		return err
	}
	if !finite(n.NoCFOPenalty) || n.NoCFOPenalty < 1 {
		return invalid("investment.noise.no_cfo_penalty", "must be at least 1")
	}
	r := inv.Returns
	if !finite(r.BaseWeekly, r.RiskPremium, r.TermPremium, r.CreditSpread, r.LiquidityCost) {
		return invalid("investment.returns", "return coefficients must be finite")
	}
	if err := nonNegative("investment.returns.base_volatility", r.BaseVolatility); err != nil {
		return err
	}
	if err := nonNegative("investment.returns.risk_volatility", r.RiskVolatility); err != nil {
		return err
	}
	if r.BaseVolatility+r.RiskVolatility <= 0 {
		return invalid("investment.returns", "volatility must be positive somewhere on the risk scale")
	}
	if err := unit("investment.returns.diversification_benefit", r.DiversificationBenefit); err != nil {
		return err
	}
	if r.DiversificationBenefit >= 1 {
		return invalid("investment.returns.diversification_benefit", "must be below 1")
	}
	if err := unit("investment.returns.margin_call_drawdown", r.MarginCallDrawdown); err != nil {
		return err
	}
	if err := nonNegative("investment.returns.margin_call_ratio", r.MarginCallRatio); err != nil {
		return err
	}
	l := inv.Liquidation
	if l.LowSkillThreshold < 0 || l.HighSkillThreshold > 100 || l.LowSkillThreshold >= l.HighSkillThreshold {
		return invalid("investment.liquidation", "need 0 <= low_skill_threshold < high_skill_threshold <= 100")
	}
	for name, v := range map[string]float64{
		"impact_coefficient":           l.ImpactCoefficient,
		"information_coefficient":      l.InformationCoefficient,
		"perception_error_coefficient": l.PerceptionErrorCoefficient,
	} {
		if err := nonNegative("investment.liquidation."+name, v); err != nil {
			return err
		}
	}
	if !finite(l.ChunkFraction) || l.ChunkFraction <= 0 || l.ChunkFraction > 1 {
		return invalid("investment.liquidation.chunk_fraction", "must lie in (0, 1]")
	}
	if !finite(l.MaxDiscount) || l.MaxDiscount <= 0 || l.MaxDiscount >= 1 {
		return invalid("investment.liquidation.max_discount", "must lie in (0, 1)")
	}
	switch l.Panic.Mode {
	case PanicAdditive, PanicMultiplicative:
	default:
		return invalid("investment.liquidation.panic.mode", "unknown mode %q", l.Panic.Mode)
	}
	if err := nonNegative("investment.liquidation.panic.discount", l.Panic.Discount); err != nil {
		return err
	}
	if err := nonNegative("investment.liquidation.panic.urgency", l.Panic.Urgency); err != nil {
		return err
	}
	if err := unit("investment.liquidation.panic.urgency_decay", l.Panic.UrgencyDecay); err != nil {
		return err
	}
	if len(inv.Buckets) == 0 {
		return invalid("investment.buckets", "at least one bucket required")
	}
	seen := make(map[string]bool)
	for _, bk := range inv.Buckets {
		key := fmt.Sprintf("investment.buckets[%s]", bk.Name)
		if bk.Name == "" || seen[bk.Name] {
			return invalid(key+".name", "must be unique and non-empty")
		}
		seen[bk.Name] = true
		if err := unit(key+".liquidity", bk.Liquidity); err != nil {
			return err
		}
		if err := positive(key+".base", bk.Base); err != nil {
			return err
		}
		if !finite(bk.RiskLoading, bk.DurationLoading, bk.LiquidityLoading, bk.CreditLoading, bk.DiversificationLoading) {
			return invalid(key, "loadings must be finite")
		}
	}
	return nil
}

func (b *Bundle) validateCompliance() error {
	c := b.Compliance
	w := c.Weights
	for name, v := range map[string]float64{
		"filing": w.Filing, "capital": w.Capital, "product": w.Product,
		"certification": w.Certification, "authorization": w.Authorization,
	} {
		if err := nonNegative("compliance.weights."+name, v); err != nil {
			return err
		}
	}
	if w.Filing+w.Capital+w.Product+w.Certification+w.Authorization <= 0 {
		return invalid("compliance.weights", "must not all be zero")
	}
	for _, level := range []string{RegulationLight, RegulationStandard, RegulationStrict} {
		if b.FilingInterval(level) <= 0 {
			return invalid("compliance.filing_intervals", "missing positive interval for %q", level)
		}
	}
	if !finite(c.CapitalZeroRatio, c.CapitalFullRatio, c.CapitalFinding) || c.CapitalZeroRatio < 0 || c.CapitalFullRatio <= c.CapitalZeroRatio {
		return invalid("compliance.capital_full_ratio", "must exceed capital_zero_ratio")
	}
	for _, ct := range c.Certifications {
		if !model.ValidRole(ct.Role) {
			return invalid("compliance.certifications", "unknown role %q", ct.Role)
		}
		if ct.MinSkill < 1 || ct.MinSkill > 100 {
			return invalid("compliance.certifications", "min_skill of %q must lie in [1, 100]", ct.Name)
		}
	}
	a := c.Audit
	if err := unit("compliance.audit.min_probability", a.MinProbability); err != nil {
		return err
	}
	if err := unit("compliance.audit.max_probability", a.MaxProbability); err != nil {
		return err
	}
	if a.MaxProbability < a.MinProbability {
		return invalid("compliance.audit.max_probability", "must be at least min_probability")
	}
	if err := positive("compliance.audit.exponent", a.Exponent); err != nil {
		return err
	}
	if err := unit("compliance.audit.cco_max_reduction", a.CCOMaxReduction); err != nil {
		return err
	}
	p := c.Penalty
	if err := unit("compliance.penalty.base_rate", p.BaseRate); err != nil {
		return err
	}
	if err := unit("compliance.penalty.unauthorized_rate", p.UnauthorizedRate); err != nil {
		return err
	}
	if err := nonNegative("compliance.penalty.min_penalty", p.MinPenalty); err != nil {
		return err
	}
	if len(p.Escalation) == 0 {
		return invalid("compliance.penalty.escalation", "at least one factor required")
	}
	for i, f := range p.Escalation {
		if err := positive(fmt.Sprintf("compliance.penalty.escalation[%d]", i), f); err != nil {
			return err
		}
		if i > 0 && f < p.Escalation[i-1] {
			return invalid("compliance.penalty.escalation", "factors must not decrease")
		}
	}
	if err := unit("compliance.penalty.cco_max_mitigation", p.CCOMaxMitigation); err != nil {
		return err
	}
	for _, v := range c.GraceEligible {
		if v == model.ViolationOperatingUnauthorized {
			return invalid("compliance.grace_eligible", "%s is never grace-eligible", v)
		}
		known := false
		for _, t := range model.ViolationTypes {
			known = known || t == v
		}
		if !known {
			return invalid("compliance.grace_eligible", "unknown violation %q", v)
		}
	}
	return nil
}

func (b *Bundle) validateExpansionAndStaffing() error {
	e := b.Expansion
	if e.HomeWeeks < 0 || e.BaselineWeeks < 0 || e.MinWeeks < 0 {
		return invalid("expansion", "waiting weeks must be non-negative")
	}
	if err := nonNegative("expansion.default_fee", e.DefaultFee); err != nil {
		return err
	}
	s := b.Staffing
	if err := nonNegative("staffing.hire_fee", s.HireFee); err != nil {
		return err
	}
	if err := nonNegative("staffing.skill_salary_factor", s.SkillSalaryFactor); err != nil {
		return err
	}
	for _, sal := range s.Salaries {
		if !model.ValidRole(sal.Role) {
			return invalid("staffing.salaries", "unknown role %q", sal.Role)
		}
		if err := nonNegative(fmt.Sprintf("staffing.salaries[%s].weekly", sal.Role), sal.Weekly); err != nil {
			return err
		}
	}
	return nil
}
