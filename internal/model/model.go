// Package model defines the core domain types shared across the turn engine.
// All monetary values use shopspring/decimal; never float64 for money.
// Behavioural inputs (shares, sliders, skills) are plain float64 or int.
package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a product coverage tier.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Role is an executive seat a company can staff.
type Role string

const (
	RoleCUO          Role = "CUO"
	RoleCFO          Role = "CFO"
	RoleCMO          Role = "CMO"
	RoleCCO          Role = "CCO"
	RoleCTO          Role = "CTO"
	RoleCRO          Role = "CRO"
	RoleCAO          Role = "CAO"
	RoleChiefActuary Role = "CHIEF_ACTUARY"
)

// Roles lists every staffable role in display order.
var Roles = []Role{
	RoleCUO, RoleCFO, RoleCMO, RoleCCO, RoleCTO, RoleCRO, RoleCAO, RoleChiefActuary,
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// CEO attribute names.
const (
	AttrLeadership         = "leadership"
	AttrRiskIntelligence   = "risk_intelligence"
	AttrMarketAcumen       = "market_acumen"
	AttrRegulatoryMastery  = "regulatory_mastery"
	AttrInnovationCapacity = "innovation_capacity"
	AttrDealMaking         = "deal_making"
	AttrFinancialExpertise = "financial_expertise"
	AttrCrisisCommand      = "crisis_command"
)

// CEOAttributes lists the eight CEO attributes.
var CEOAttributes = []string{
	AttrLeadership, AttrRiskIntelligence, AttrMarketAcumen, AttrRegulatoryMastery,
	AttrInnovationCapacity, AttrDealMaking, AttrFinancialExpertise, AttrCrisisCommand,
}

// EconomicPhase is the persisted position in the economic cycle.
type EconomicPhase string

const (
	PhaseExpansion   EconomicPhase = "expansion"
	PhasePeak        EconomicPhase = "peak"
	PhaseContraction EconomicPhase = "contraction"
	PhaseTrough      EconomicPhase = "trough"
)

// Product is one active (state, line) offering of a company.
type Product struct {
	State            string          `json:"state"`
	Line             string          `json:"line"`
	Tier             Tier            `json:"tier"`
	BasePrice        decimal.Decimal `json:"base_price"`        // annual premium at multiplier 1.0
	PriceMultiplier  float64         `json:"price_multiplier"`  // player-controlled, bounded by config
	ActivePolicies   int64           `json:"active_policies"`
	CumulativeLosses decimal.Decimal `json:"cumulative_losses"`
	TenureTurns      int             `json:"tenure_turns"` // consecutive turns with policies in force
	MarketShare      float64         `json:"market_share"`
	LaunchedTurn     int             `json:"launched_turn"`
}

// Key returns the market this product sells into.
func (p Product) Key() MarketKey {
	return MarketKey{State: p.State, Line: p.Line}
}

// Price is the annual premium charged per policy.
func (p Product) Price() decimal.Decimal {
	return p.BasePrice.Mul(decimal.NewFromFloat(p.PriceMultiplier)).Round(2)
}

// PendingExpansion is an expansion request whose fee has been paid.
type PendingExpansion struct {
	State         string          `json:"state"`
	SubmittedTurn int             `json:"submitted_turn"`
	Fee           decimal.Decimal `json:"fee"`
}

// ComplianceHistory carries regulatory memory across turns.
type ComplianceHistory struct {
	// Filings maps state code to the turn of the most recent rate filing.
	Filings map[string]int `json:"filings"`
	// Violations counts prior penalised or warned occurrences per type.
	Violations map[ViolationType]int `json:"violations"`
	// GraceFlags are set by a first-time warning and cleared on escalation
	// or when the violation is no longer present.
	GraceFlags map[ViolationType]bool `json:"grace_flags"`
}

// Clone returns a deep copy.
func (h ComplianceHistory) Clone() ComplianceHistory {
	out := ComplianceHistory{
		Filings:    make(map[string]int, len(h.Filings)),
		Violations: make(map[ViolationType]int, len(h.Violations)),
		GraceFlags: make(map[ViolationType]bool, len(h.GraceFlags)),
	}
	for k, v := range h.Filings {
		out.Filings[k] = v
	}
	for k, v := range h.Violations {
		out.Violations[k] = v
	}
	for k, v := range h.GraceFlags {
		out.GraceFlags[k] = v
	}
	return out
}

// CompanyState is the persistent state of one insurance company.
// The turn engine never mutates a caller's CompanyState; it works on clones.
type CompanyState struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	HomeState         string             `json:"home_state"`
	FoundedTurn       int                `json:"founded_turn"`
	Cash              decimal.Decimal    `json:"cash"`
	Portfolio         Portfolio          `json:"portfolio"`
	SolvencyRatio     float64            `json:"solvency_ratio"`
	AnnualPremium     decimal.Decimal    `json:"annual_premium"` // annualised from the last turn
	Products          []Product          `json:"products"`
	Authorizations    map[string]int     `json:"authorizations"` // state → turn granted
	PendingExpansions []PendingExpansion `json:"pending_expansions"`
	Staff             map[Role]int       `json:"staff"` // role → skill 1–100; absent = vacant
	CEO               map[string]int     `json:"ceo"`
	Compliance        ComplianceHistory  `json:"compliance"`
	Bankrupt          bool               `json:"bankrupt"`
	UpdatedTurn       int                `json:"updated_turn"`
}

// Capital is liquid cash plus invested assets.
func (c *CompanyState) Capital() decimal.Decimal {
	return c.Cash.Add(c.Portfolio.Value)
}

// Skill returns the skill of the employee in role r, if one is employed.
func (c *CompanyState) Skill(r Role) (int, bool) {
	s, ok := c.Staff[r]
	return s, ok
}

// Authorized reports whether the company may write business in state.
func (c *CompanyState) Authorized(state string) bool {
	_, ok := c.Authorizations[state]
	return ok
}

// Product returns a pointer into c.Products for key, or nil.
func (c *CompanyState) Product(key MarketKey) *Product {
	for i := range c.Products {
		if c.Products[i].State == key.State && c.Products[i].Line == key.Line {
			return &c.Products[i]
		}
	}
	return nil
}

// SortProducts orders products by market key.
func (c *CompanyState) SortProducts() {
	sort.Slice(c.Products, func(i, j int) bool {
		return c.Products[i].Key().Less(c.Products[j].Key())
	})
}

// HasPendingExpansion reports whether a request for state is in flight.
func (c *CompanyState) HasPendingExpansion(state string) bool {
	for _, p := range c.PendingExpansions {
		if p.State == state {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the company.
func (c *CompanyState) Clone() *CompanyState {
	out := *c
	out.Products = append([]Product(nil), c.Products...)
	out.PendingExpansions = append([]PendingExpansion(nil), c.PendingExpansions...)
	out.Authorizations = make(map[string]int, len(c.Authorizations))
	for k, v := range c.Authorizations {
		out.Authorizations[k] = v
	}
	out.Staff = make(map[Role]int, len(c.Staff))
	for k, v := range c.Staff {
		out.Staff[k] = v
	}
	out.CEO = make(map[string]int, len(c.CEO))
	for k, v := range c.CEO {
		out.CEO[k] = v
	}
	out.Compliance = c.Compliance.Clone()
	return &out
}

// PriceChange sets the price multiplier of an existing product.
type PriceChange struct {
	State      string  `json:"state"`
	Line       string  `json:"line"`
	Multiplier float64 `json:"multiplier"`
}

// TierSwitch changes the coverage tier of an existing product.
type TierSwitch struct {
	State string `json:"state"`
	Line  string `json:"line"`
	Tier  Tier   `json:"tier"`
}

// ProductLaunch opens a new product in an authorized state.
type ProductLaunch struct {
	State      string  `json:"state"`
	Line       string  `json:"line"`
	Tier       Tier    `json:"tier"`
	Multiplier float64 `json:"multiplier"` // 0 means 1.0
}

// Hire fills (or replaces) an executive seat.
type Hire struct {
	Role  Role `json:"role"`
	Skill int  `json:"skill"`
}

// Decision is a company's submitted choices for one turn.
type Decision struct {
	CompanyID       string           `json:"company_id"`
	Turn            int              `json:"turn"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	Pricing         []PriceChange    `json:"pricing,omitempty"`
	TierSwitches    []TierSwitch     `json:"tier_switches,omitempty"`
	Launches        []ProductLaunch  `json:"launches,omitempty"`
	Expansions      []string         `json:"expansions,omitempty"`
	Hires           []Hire           `json:"hires,omitempty"`
	Fires           []Role           `json:"fires,omitempty"`
	RateFilings     []string         `json:"rate_filings,omitempty"`
	PortfolioTarget *Characteristics `json:"portfolio_target,omitempty"` // nil keeps the current target
}

// NoChangeDecision is the canonical default substituted for a missing or
// invalid decision: current multipliers, no launches, hires or filings,
// and the portfolio target left where it is.
func NoChangeDecision(c *CompanyState, turn int) Decision {
	d := Decision{CompanyID: c.ID, Turn: turn}
	for _, p := range c.Products {
		d.Pricing = append(d.Pricing, PriceChange{State: p.State, Line: p.Line, Multiplier: p.PriceMultiplier})
	}
	target := c.Portfolio.Target
	d.PortfolioTarget = &target
	return d
}

// World is the semester-level state advanced once per turn.
type World struct {
	Turn  int           `json:"turn"` // last finalized turn
	Phase EconomicPhase `json:"phase"`
	Seed  uint64        `json:"seed"`
}
