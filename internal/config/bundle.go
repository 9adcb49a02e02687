// Package config holds the parameter bundle consumed by the turn engine and
// the runtime settings of the service.
//
// The bundle is immutable for the duration of a turn. Every numeric constant
// used by the simulation lives here; components never hardcode business
// values. Bundles are versioned: see Load for how older schema versions are
// decoded and upgraded.
package config

import "github.com/cellis212/insurance-manager-sub000/internal/model"

// SchemaVersion is the bundle schema produced by Default and WriteYAML.
const SchemaVersion = 2

// Bundle is the complete simulation parameter set.
type Bundle struct {
	SchemaVersion int         `mapstructure:"schema_version" yaml:"schema_version"`
	Economy       Economy     `mapstructure:"economy" yaml:"economy"`
	States        []State     `mapstructure:"states" yaml:"states"`
	Lines         []Line      `mapstructure:"lines" yaml:"lines"`
	Tiers         []Tier      `mapstructure:"tiers" yaml:"tiers"`
	Demand        Demand      `mapstructure:"demand" yaml:"demand"`
	Claims        Claims      `mapstructure:"claims" yaml:"claims"`
	Catastrophe   Catastrophe `mapstructure:"catastrophe" yaml:"catastrophe"`
	Investment    Investment  `mapstructure:"investment" yaml:"investment"`
	Compliance    Compliance  `mapstructure:"compliance" yaml:"compliance"`
	Expansion     Expansion   `mapstructure:"expansion" yaml:"expansion"`
	Staffing      Staffing    `mapstructure:"staffing" yaml:"staffing"`
}

// Economy holds turn-level accounting constants and the economic cycle.
type Economy struct {
	WeeksPerYear           int     `mapstructure:"weeks_per_year" yaml:"weeks_per_year"`
	OperatingExpenseRatio  float64 `mapstructure:"operating_expense_ratio" yaml:"operating_expense_ratio"`
	FixedExpensePerProduct float64 `mapstructure:"fixed_expense_per_product" yaml:"fixed_expense_per_product"`
	MinCapitalRatio        float64 `mapstructure:"min_capital_ratio" yaml:"min_capital_ratio"` // of annual premium
	MinCapitalFloor        float64 `mapstructure:"min_capital_floor" yaml:"min_capital_floor"`
	TargetCashRatio        float64 `mapstructure:"target_cash_ratio" yaml:"target_cash_ratio"`
	Phases                 []Phase `mapstructure:"phases" yaml:"phases"`
}

// Phase parameterises one economic-cycle phase.
type Phase struct {
	Name             model.EconomicPhase `mapstructure:"name" yaml:"name"`
	DemandMultiplier float64             `mapstructure:"demand_multiplier" yaml:"demand_multiplier"`
	Stress           float64             `mapstructure:"stress" yaml:"stress"`
	ReturnShift      float64             `mapstructure:"return_shift" yaml:"return_shift"` // added to weekly expected return
	Transitions      []Transition        `mapstructure:"transitions" yaml:"transitions"`
}

// Transition is one edge of the economic-cycle Markov chain.
type Transition struct {
	To          model.EconomicPhase `mapstructure:"to" yaml:"to"`
	Probability float64             `mapstructure:"probability" yaml:"probability"`
}

// Regulation levels.
const (
	RegulationLight    = "light"
	RegulationStandard = "standard"
	RegulationStrict   = "strict"
)

// State describes one jurisdiction.
type State struct {
	Code         string  `mapstructure:"code" yaml:"code"`
	Name         string  `mapstructure:"name" yaml:"name"`
	Regulation   string  `mapstructure:"regulation" yaml:"regulation"`
	Region       string  `mapstructure:"region" yaml:"region"`
	CostModifier float64 `mapstructure:"cost_modifier" yaml:"cost_modifier"`
	DemandFactor float64 `mapstructure:"demand_factor" yaml:"demand_factor"`
	ExpansionFee float64 `mapstructure:"expansion_fee" yaml:"expansion_fee"`
}

// Line describes one line of business.
type Line struct {
	Code           string  `mapstructure:"code" yaml:"code"`
	BaseDemand     float64 `mapstructure:"base_demand" yaml:"base_demand"`         // policies per state before factors
	ReferencePrice float64 `mapstructure:"reference_price" yaml:"reference_price"` // annual premium
	BaseFrequency  float64 `mapstructure:"base_frequency" yaml:"base_frequency"`   // annual claims per policy
	BaseSeverity   float64 `mapstructure:"base_severity" yaml:"base_severity"`     // mean claim amount
	SeveritySigma  float64 `mapstructure:"severity_sigma" yaml:"severity_sigma"`   // lognormal shape
	ParetoAlpha    float64 `mapstructure:"pareto_alpha" yaml:"pareto_alpha"`
	Dispersion     float64 `mapstructure:"dispersion" yaml:"dispersion"` // negative binomial r
}

// Tier parameterises one coverage tier.
type Tier struct {
	Name                 model.Tier `mapstructure:"name" yaml:"name"`
	ElasticityMultiplier float64    `mapstructure:"elasticity_multiplier" yaml:"elasticity_multiplier"`
	VolumeMultiplier     float64    `mapstructure:"volume_multiplier" yaml:"volume_multiplier"`
	SelectionMultiplier  float64    `mapstructure:"selection_multiplier" yaml:"selection_multiplier"`
	Generosity           float64    `mapstructure:"generosity" yaml:"generosity"`
	CostSharing          float64    `mapstructure:"cost_sharing" yaml:"cost_sharing"`
}

// Demand parameterises the market-share allocator.
type Demand struct {
	ElasticityExponent float64 `mapstructure:"elasticity_exponent" yaml:"elasticity_exponent"`
	OutsideUtility     float64 `mapstructure:"outside_utility" yaml:"outside_utility"`
	TenureBonus        float64 `mapstructure:"tenure_bonus" yaml:"tenure_bonus"`
	TenureCap          int     `mapstructure:"tenure_cap" yaml:"tenure_cap"`
	NewEntrantPenalty  float64 `mapstructure:"new_entrant_penalty" yaml:"new_entrant_penalty"`
	BrandWeight        float64 `mapstructure:"brand_weight" yaml:"brand_weight"`
	MinMultiplier      float64 `mapstructure:"min_multiplier" yaml:"min_multiplier"`
	MaxMultiplier      float64 `mapstructure:"max_multiplier" yaml:"max_multiplier"`
}

// Distribution names.
const (
	DistPoisson          = "poisson"
	DistNegativeBinomial = "negative_binomial"
	DistLogNormal        = "lognormal"
	DistPareto           = "pareto"
)

// Claims parameterises the claims generator.
type Claims struct {
	FrequencyDistribution    string  `mapstructure:"frequency_distribution" yaml:"frequency_distribution"`
	SeverityDistribution     string  `mapstructure:"severity_distribution" yaml:"severity_distribution"`
	AdverseSelectionStrength float64 `mapstructure:"adverse_selection_strength" yaml:"adverse_selection_strength"`
	MoralHazardStrength      float64 `mapstructure:"moral_hazard_strength" yaml:"moral_hazard_strength"`
	MaxSeverityDraws         int     `mapstructure:"max_severity_draws" yaml:"max_severity_draws"`
}

// Catastrophe parameterises the correlated catastrophe sub-generator.
type Catastrophe struct {
	Regions        []Region `mapstructure:"regions" yaml:"regions"`
	StressPerEvent float64  `mapstructure:"stress_per_event" yaml:"stress_per_event"`
}

// Region is a group of states that share catastrophe exposure.
type Region struct {
	Code        string   `mapstructure:"code" yaml:"code"`
	Probability float64  `mapstructure:"probability" yaml:"probability"` // per turn
	SurgeMin    float64  `mapstructure:"surge_min" yaml:"surge_min"`
	SurgeMax    float64  `mapstructure:"surge_max" yaml:"surge_max"`
	Lines       []string `mapstructure:"lines" yaml:"lines"` // empty = every line
}

// Investment parameterises the investment engine.
type Investment struct {
	MaxAdjustment float64     `mapstructure:"max_adjustment" yaml:"max_adjustment"` // slider points per turn
	Noise         NoiseCurve  `mapstructure:"noise" yaml:"noise"`
	Returns       Returns     `mapstructure:"returns" yaml:"returns"`
	Liquidation   Liquidation `mapstructure:"liquidation" yaml:"liquidation"`
	Buckets       []Bucket    `mapstructure:"buckets" yaml:"buckets"`
}

// NoiseCurve maps CFO skill to a perception noise half-width, as a fraction
// of the 0–100 slider scale: h(s) = min + (max-min)·(1-s/100)^exponent.
type NoiseCurve struct {
	MaxFraction  float64 `mapstructure:"max_fraction" yaml:"max_fraction"`
	MinFraction  float64 `mapstructure:"min_fraction" yaml:"min_fraction"`
	Exponent     float64 `mapstructure:"exponent" yaml:"exponent"`
	NoCFOPenalty float64 `mapstructure:"no_cfo_penalty" yaml:"no_cfo_penalty"`
}

// Returns parameterises the weekly return-generating process.
type Returns struct {
	BaseWeekly             float64 `mapstructure:"base_weekly" yaml:"base_weekly"`
	RiskPremium            float64 `mapstructure:"risk_premium" yaml:"risk_premium"`
	TermPremium            float64 `mapstructure:"term_premium" yaml:"term_premium"`
	CreditSpread           float64 `mapstructure:"credit_spread" yaml:"credit_spread"`
	LiquidityCost          float64 `mapstructure:"liquidity_cost" yaml:"liquidity_cost"`
	BaseVolatility         float64 `mapstructure:"base_volatility" yaml:"base_volatility"`
	RiskVolatility         float64 `mapstructure:"risk_volatility" yaml:"risk_volatility"`
	DiversificationBenefit float64 `mapstructure:"diversification_benefit" yaml:"diversification_benefit"`
	MarginCallDrawdown     float64 `mapstructure:"margin_call_drawdown" yaml:"margin_call_drawdown"`
	MarginCallRatio        float64 `mapstructure:"margin_call_ratio" yaml:"margin_call_ratio"`
}

// Panic modes.
const (
	PanicAdditive       = "additive"
	PanicMultiplicative = "multiplicative"
)

// Liquidation parameterises forced sales.
type Liquidation struct {
	LowSkillThreshold          int     `mapstructure:"low_skill_threshold" yaml:"low_skill_threshold"`
	HighSkillThreshold         int     `mapstructure:"high_skill_threshold" yaml:"high_skill_threshold"`
	ImpactCoefficient          float64 `mapstructure:"impact_coefficient" yaml:"impact_coefficient"`
	InformationCoefficient     float64 `mapstructure:"information_coefficient" yaml:"information_coefficient"`
	ChunkFraction              float64 `mapstructure:"chunk_fraction" yaml:"chunk_fraction"`
	PerceptionErrorCoefficient float64 `mapstructure:"perception_error_coefficient" yaml:"perception_error_coefficient"`
	MaxDiscount                float64 `mapstructure:"max_discount" yaml:"max_discount"`
	Panic                      Panic   `mapstructure:"panic" yaml:"panic"`
}

// Panic is the below-threshold panic discount curve. In additive mode the
// term discount·urgency·(1-q) is added to the impact discount; in
// multiplicative mode the impact discount is scaled by 1 + that term.
type Panic struct {
	Mode         string  `mapstructure:"mode" yaml:"mode"`
	Discount     float64 `mapstructure:"discount" yaml:"discount"`
	Urgency      float64 `mapstructure:"urgency" yaml:"urgency"`
	UrgencyDecay float64 `mapstructure:"urgency_decay" yaml:"urgency_decay"` // fraction lost per step
}

// Bucket is an asset class the portfolio is sold out of. Its share of the
// portfolio is proportional to Base + Σ loading·slider/100 over the actual
// characteristics.
type Bucket struct {
	Name                   string  `mapstructure:"name" yaml:"name"`
	Liquidity              float64 `mapstructure:"liquidity" yaml:"liquidity"` // true liquidity 0–1
	Base                   float64 `mapstructure:"base" yaml:"base"`
	RiskLoading            float64 `mapstructure:"risk_loading" yaml:"risk_loading"`
	DurationLoading        float64 `mapstructure:"duration_loading" yaml:"duration_loading"`
	LiquidityLoading       float64 `mapstructure:"liquidity_loading" yaml:"liquidity_loading"`
	CreditLoading          float64 `mapstructure:"credit_loading" yaml:"credit_loading"`
	DiversificationLoading float64 `mapstructure:"diversification_loading" yaml:"diversification_loading"`
}

// Compliance parameterises the regulatory evaluator.
type Compliance struct {
	Weights          ComponentWeights      `mapstructure:"weights" yaml:"weights"`
	FilingIntervals  []FilingInterval      `mapstructure:"filing_intervals" yaml:"filing_intervals"`
	CapitalZeroRatio float64               `mapstructure:"capital_zero_ratio" yaml:"capital_zero_ratio"` // capital/minimum scoring 0
	CapitalFullRatio float64               `mapstructure:"capital_full_ratio" yaml:"capital_full_ratio"` // capital/minimum scoring 100
	CapitalFinding   float64               `mapstructure:"capital_finding_ratio" yaml:"capital_finding_ratio"`
	DisallowedTiers  []RegulationTiers     `mapstructure:"disallowed_tiers" yaml:"disallowed_tiers"`
	Certifications   []Certification       `mapstructure:"certifications" yaml:"certifications"`
	Audit            AuditCurve            `mapstructure:"audit" yaml:"audit"`
	Penalty          PenaltySchedule       `mapstructure:"penalty" yaml:"penalty"`
	GraceEligible    []model.ViolationType `mapstructure:"grace_eligible" yaml:"grace_eligible"`
}

// ComponentWeights weight the five compliance components.
type ComponentWeights struct {
	Filing        float64 `mapstructure:"filing" yaml:"filing"`
	Capital       float64 `mapstructure:"capital" yaml:"capital"`
	Product       float64 `mapstructure:"product" yaml:"product"`
	Certification float64 `mapstructure:"certification" yaml:"certification"`
	Authorization float64 `mapstructure:"authorization" yaml:"authorization"`
}

// FilingInterval is the maximum turns between rate filings per regulation level.
type FilingInterval struct {
	Regulation string `mapstructure:"regulation" yaml:"regulation"`
	Turns      int    `mapstructure:"turns" yaml:"turns"`
}

// RegulationTiers lists tiers a regulation level does not permit.
type RegulationTiers struct {
	Regulation string       `mapstructure:"regulation" yaml:"regulation"`
	Tiers      []model.Tier `mapstructure:"tiers" yaml:"tiers"`
}

// Certification requires an executive of Role with at least MinSkill.
type Certification struct {
	Name     string     `mapstructure:"name" yaml:"name"`
	Role     model.Role `mapstructure:"role" yaml:"role"`
	MinSkill int        `mapstructure:"min_skill" yaml:"min_skill"`
}

// AuditCurve: p = min + (max-min)·((100-score)/100)^exponent, then scaled by
// 1 - cco_max_reduction·skill/100 when a CCO is employed.
type AuditCurve struct {
	MinProbability  float64 `mapstructure:"min_probability" yaml:"min_probability"`
	MaxProbability  float64 `mapstructure:"max_probability" yaml:"max_probability"`
	Exponent        float64 `mapstructure:"exponent" yaml:"exponent"`
	CCOMaxReduction float64 `mapstructure:"cco_max_reduction" yaml:"cco_max_reduction"`
}

// PenaltySchedule sizes monetary penalties as a fraction of starting capital.
type PenaltySchedule struct {
	BaseRate         float64   `mapstructure:"base_rate" yaml:"base_rate"`
	UnauthorizedRate float64   `mapstructure:"unauthorized_rate" yaml:"unauthorized_rate"`
	MinPenalty       float64   `mapstructure:"min_penalty" yaml:"min_penalty"`
	Escalation       []float64 `mapstructure:"escalation" yaml:"escalation"` // by occurrence, 1st first; last entry repeats
	CCOMaxMitigation float64   `mapstructure:"cco_max_mitigation" yaml:"cco_max_mitigation"`
}

// Expansion parameterises authorization waiting periods.
type Expansion struct {
	HomeWeeks          int     `mapstructure:"home_weeks" yaml:"home_weeks"`
	BaselineWeeks      int     `mapstructure:"baseline_weeks" yaml:"baseline_weeks"`
	LightAdjustment    int     `mapstructure:"light_adjustment" yaml:"light_adjustment"`
	StandardAdjustment int     `mapstructure:"standard_adjustment" yaml:"standard_adjustment"`
	StrictAdjustment   int     `mapstructure:"strict_adjustment" yaml:"strict_adjustment"`
	MinWeeks           int     `mapstructure:"min_weeks" yaml:"min_weeks"`
	DefaultFee         float64 `mapstructure:"default_fee" yaml:"default_fee"`
}

// Staffing parameterises hiring costs.
type Staffing struct {
	HireFee           float64  `mapstructure:"hire_fee" yaml:"hire_fee"`
	SkillSalaryFactor float64  `mapstructure:"skill_salary_factor" yaml:"skill_salary_factor"` // weekly salary += factor·skill
	Salaries          []Salary `mapstructure:"salaries" yaml:"salaries"`
}

// Salary is the weekly base salary of a role.
type Salary struct {
	Role   model.Role `mapstructure:"role" yaml:"role"`
	Weekly float64    `mapstructure:"weekly" yaml:"weekly"`
}
