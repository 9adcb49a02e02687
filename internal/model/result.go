package model

import "github.com/shopspring/decimal"

// ViolationType is a category of regulatory finding.
type ViolationType string

const (
	ViolationLateFiling            ViolationType = "late_filing"
	ViolationCapitalInadequacy     ViolationType = "capital_inadequacy"
	ViolationProductNoncompliance  ViolationType = "product_noncompliance"
	ViolationMissingCertification  ViolationType = "missing_certification"
	ViolationOperatingUnauthorized ViolationType = "operating_without_authorization"
)

// ViolationTypes lists every violation type in evaluation order.
var ViolationTypes = []ViolationType{
	ViolationLateFiling,
	ViolationCapitalInadequacy,
	ViolationProductNoncompliance,
	ViolationMissingCertification,
	ViolationOperatingUnauthorized,
}

// AuditOutcome summarises the regulator's visit this turn.
type AuditOutcome string

const (
	AuditNone      AuditOutcome = "none"
	AuditPassed    AuditOutcome = "passed"
	AuditWarned    AuditOutcome = "warned"
	AuditPenalized AuditOutcome = "penalized"
)

// ComplianceScores are the five component scores, each 0–100.
type ComplianceScores struct {
	Filing        float64 `json:"filing"`
	Capital       float64 `json:"capital"`
	Product       float64 `json:"product"`
	Certification float64 `json:"certification"`
	Authorization float64 `json:"authorization"`
}

// Finding is one violation observed this turn.
type Finding struct {
	Type   ViolationType `json:"type"`
	State  string        `json:"state,omitempty"`
	Line   string        `json:"line,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// ComplianceRecord is recomputed each turn.
type ComplianceRecord struct {
	Scores           ComplianceScores       `json:"scores"`
	Composite        float64                `json:"composite"`
	AuditProbability float64                `json:"audit_probability"`
	Audit            AuditOutcome           `json:"audit"`
	Findings         []Finding              `json:"findings,omitempty"`
	GraceFlags       map[ViolationType]bool `json:"grace_flags,omitempty"`
}

// RegulatoryAction is a warning or penalty issued after an audit.
type RegulatoryAction struct {
	Violation  ViolationType   `json:"violation"`
	Occurrence int             `json:"occurrence"` // 1-based count including this one
	Warning    bool            `json:"warning"`
	Penalty    decimal.Decimal `json:"penalty"`
}

// MarketOutcome is one product's result for the turn.
type MarketOutcome struct {
	Key         MarketKey       `json:"key"`
	Tier        Tier            `json:"tier"`
	Price       decimal.Decimal `json:"price"`
	Policies    int64           `json:"policies"`
	Share       float64         `json:"share"`
	ShareDelta  float64         `json:"share_delta"`
	Premiums    decimal.Decimal `json:"premiums"`
	ClaimCount  int64           `json:"claim_count"`
	Claims      decimal.Decimal `json:"claims"`
	Catastrophe bool            `json:"catastrophe"`
}

// EventRef points at an emitted event.
type EventRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TurnResult is the append-only per-company outcome of one turn.
type TurnResult struct {
	CompanyID        string             `json:"company_id"`
	Turn             int                `json:"turn"`
	StartingCapital  decimal.Decimal    `json:"starting_capital"`
	EndingCapital    decimal.Decimal    `json:"ending_capital"`
	Premiums         decimal.Decimal    `json:"premiums"`
	Claims           decimal.Decimal    `json:"claims"`
	Expenses         decimal.Decimal    `json:"expenses"`
	InvestmentIncome decimal.Decimal    `json:"investment_income"`
	Penalties        decimal.Decimal    `json:"penalties"`
	Refunds          decimal.Decimal    `json:"refunds"`
	CapitalCalls     decimal.Decimal    `json:"capital_calls"`
	LossRatio        float64            `json:"loss_ratio"`
	ExpenseRatio     float64            `json:"expense_ratio"`
	CombinedRatio    float64            `json:"combined_ratio"`
	MinimumCapital   decimal.Decimal    `json:"minimum_capital"`
	SolvencyRatio    float64            `json:"solvency_ratio"`
	Markets          []MarketOutcome    `json:"markets"`
	Events           []EventRef         `json:"events"`
	Actions          []RegulatoryAction `json:"actions"`
	Compliance       ComplianceRecord   `json:"compliance"`
	Liquidation      *LiquidationEvent  `json:"liquidation,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
	Defaulted        bool               `json:"decision_defaulted"`
	Bankrupt         bool               `json:"bankrupt"`
}
