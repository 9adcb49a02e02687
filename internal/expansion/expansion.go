// Package expansion advances pending state-expansion requests through their
// regulatory waiting period.
package expansion

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/compliance"
	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

var (
	ErrUnknownState    = errors.New("expansion: unknown state")
	ErrAlreadyEntered  = errors.New("expansion: state already authorized")
	ErrAlreadyPending  = errors.New("expansion: request already pending")
	ErrInsufficientFee = errors.New("expansion: insufficient cash for fee")
)

// Input is one company's expansion position at resolution time.
type Input struct {
	CompanyID      string
	Turn           int
	HomeState      string
	Pending        []model.PendingExpansion
	Capital        decimal.Decimal
	MinimumCapital decimal.Decimal
	Bankrupt       bool
}

// Resolution is the fate of one request that came due this turn.
type Resolution struct {
	State         string          `json:"state"`
	SubmittedTurn int             `json:"submitted_turn"`
	Approved      bool            `json:"approved"`
	Refund        decimal.Decimal `json:"refund"`
	Reason        string          `json:"reason,omitempty"`
}

// Outcome lists resolved requests and those still waiting.
type Outcome struct {
	Resolved []Resolution
	Pending  []model.PendingExpansion
	Refunds  decimal.Decimal
}

// Resolver applies the bundle's expansion rules.
type Resolver struct {
	bundle *config.Bundle
	params config.Expansion
}

// NewResolver creates a resolver from a validated bundle.
func NewResolver(b *config.Bundle) *Resolver {
	return &Resolver{bundle: b, params: b.Expansion}
}

// WaitingWeeks is the number of turns between submission and decision.
func (r *Resolver) WaitingWeeks(state, home string) int {
	if state == home {
		return r.params.HomeWeeks
	}
	weeks := r.params.BaselineWeeks
	if s, ok := r.bundle.State(state); ok {
		switch s.Regulation {
		case config.RegulationLight:
			weeks += r.params.LightAdjustment
		case config.RegulationStandard:
			weeks += r.params.StandardAdjustment
		case config.RegulationStrict:
			weeks += r.params.StrictAdjustment
		}
	}
	if weeks < r.params.MinWeeks {
		weeks = r.params.MinWeeks
	}
	return weeks
}

// Fee is the fee charged when a request is submitted.
func (r *Resolver) Fee(state string) decimal.Decimal {
	return r.bundle.ExpansionFee(state)
}

// Submit validates a new request for c and returns the pending record. The
// caller deducts the fee.
func (r *Resolver) Submit(c *model.CompanyState, state string, turn int) (model.PendingExpansion, error) {
	if _, ok := r.bundle.State(state); !ok {
		return model.PendingExpansion{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	if c.Authorized(state) {
		return model.PendingExpansion{}, fmt.Errorf("%w: %s", ErrAlreadyEntered, state)
	}
	if c.HasPendingExpansion(state) {
		return model.PendingExpansion{}, fmt.Errorf("%w: %s", ErrAlreadyPending, state)
	}
	fee := r.Fee(state)
	if c.Cash.LessThan(fee) {
		return model.PendingExpansion{}, fmt.Errorf("%w: %s costs %s, cash %s", ErrInsufficientFee, state, fee, c.Cash)
	}
	return model.PendingExpansion{State: state, SubmittedTurn: turn, Fee: fee}, nil
}

// Resolve decides every request whose waiting period has elapsed by turn.
// A due request is denied, with its fee refunded, when the company fails the
// concurrent compliance check; otherwise it is approved and the fee is kept.
func (r *Resolver) Resolve(in Input) Outcome {
	out := Outcome{Refunds: decimal.Zero}
	failing := in.Bankrupt || compliance.Failing(in.Capital, in.MinimumCapital)
	for _, p := range in.Pending {
		if in.Turn < p.SubmittedTurn+r.WaitingWeeks(p.State, in.HomeState) {
			out.Pending = append(out.Pending, p)
			continue
		}
		res := Resolution{State: p.State, SubmittedTurn: p.SubmittedTurn, Approved: !failing, Refund: decimal.Zero}
		if failing {
			res.Refund = p.Fee
			res.Reason = "capital below regulatory minimum"
			if in.Bankrupt {
				res.Reason = "company bankrupt"
			}
			out.Refunds = out.Refunds.Add(p.Fee)
		}
		out.Resolved = append(out.Resolved, res)
	}
	return out
}
