package events

import (
	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// CatastrophePayload describes a regional catastrophe.
type CatastrophePayload struct {
	Region    string   `json:"region" msgpack:"region"`
	States    []string `json:"states" msgpack:"states"`
	Lines     []string `json:"lines,omitempty" msgpack:"lines,omitempty"`
	Surge     float64  `json:"surge" msgpack:"surge"`
	Companies []string `json:"companies" msgpack:"companies"` // companies with exposure in an affected market
}

// BankruptcyPayload carries the final financials of a bankrupt company.
type BankruptcyPayload struct {
	EndingCapital  decimal.Decimal  `json:"ending_capital" msgpack:"ending_capital"`
	MinimumCapital decimal.Decimal  `json:"minimum_capital" msgpack:"minimum_capital"`
	Result         model.TurnResult `json:"result" msgpack:"result"`
}

// AuditPayload is the regulator's visit and what it found.
type AuditPayload struct {
	Outcome   model.AuditOutcome       `json:"outcome" msgpack:"outcome"`
	Composite float64                  `json:"composite" msgpack:"composite"`
	Findings  []model.Finding          `json:"findings,omitempty" msgpack:"findings,omitempty"`
	Actions   []model.RegulatoryAction `json:"actions,omitempty" msgpack:"actions,omitempty"`
	Penalty   decimal.Decimal          `json:"penalty" msgpack:"penalty"`
}

// ExpansionPayload is a decided expansion request.
type ExpansionPayload struct {
	State         string          `json:"state" msgpack:"state"`
	SubmittedTurn int             `json:"submitted_turn" msgpack:"submitted_turn"`
	Refund        decimal.Decimal `json:"refund" msgpack:"refund"`
	Reason        string          `json:"reason,omitempty" msgpack:"reason,omitempty"`
}
