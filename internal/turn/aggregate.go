package turn

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/investment"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
)

// aggregate books the turn's cash flows into c's working state, covers any
// liquidity shortfall with a forced sale, and checks solvency.
func (e *Engine) aggregate(t *turnRun, c *company) {
	s := c.state
	econ := e.bundle.Economy
	weeks := decimal.NewFromInt(int64(econ.WeeksPerYear))

	// Portfolio after rebalance and the realised return.
	value := decimal.Max(s.Portfolio.Value.Add(c.invest.Income), decimal.Zero)
	s.Portfolio.Actual = c.invest.Actual
	s.Portfolio.Perceived = c.invest.Perceived
	s.Portfolio.ExpectedReturn = c.invest.ExpectedReturn
	s.Portfolio.PerceivedReturn = c.invest.PerceivedReturn
	s.Portfolio.ActualReturn = c.invest.ActualReturn

	// Fees were paid from cash when the decision was applied.
	cash := s.Cash.
		Add(c.premiums).
		Sub(c.claims).
		Sub(c.expenses).
		Sub(c.invest.MarginCall).
		Add(c.expansion.Refunds).
		Sub(c.audit.Penalty)

	if cash.IsNegative() && value.IsPositive() {
		trigger := model.TriggerCapitalCall
		switch {
		case c.hit:
			trigger = model.TriggerCatastropheShortfall
		case c.invest.MarginCall.IsPositive():
			trigger = model.TriggerMarginCall
		}
		skill, hasCFO := s.Skill(model.RoleCFO)
		res, err := e.investment.Liquidate(investment.Request{
			CompanyID: s.ID,
			Turn:      t.turn,
			EventID:   events.ID(t.seed, t.turn, events.TypeLiquidation, s.ID, ""),
			Trigger:   trigger,
			Required:  cash.Neg(),
			Actual:    s.Portfolio.Actual,
			Value:     value,
			Skill:     skill,
			HasCFO:    hasCFO,
			Stress:    t.stress,
		}, rng.New(t.seed, rng.Liquidation, s.ID))
		if err != nil {
			c.fail(StageAggregation, err)
			return
		}
		cash = cash.Add(res.Event.Raised)
		value = res.Remaining
		ev := res.Event
		c.liquidation = &ev
		c.events = append(c.events, events.Event{
			ID:        ev.ID,
			Type:      events.TypeLiquidation,
			Turn:      t.turn,
			CompanyID: s.ID,
			Payload:   ev,
		})
	}
	s.Cash = cash
	s.Portfolio.Value = value

	// Products: this turn's book, then withdrawal from unauthorized states.
	kept := s.Products[:0]
	for i, p := range s.Products {
		o := c.outcomes[i]
		if !s.Authorized(p.State) {
			c.warnings = append(c.warnings, fmt.Sprintf("product %s withdrawn: not authorized in %s", p.Key(), p.State))
			continue
		}
		p.ActivePolicies = o.Policies
		p.MarketShare = o.Share
		p.CumulativeLosses = p.CumulativeLosses.Add(o.Claims)
		if o.Policies > 0 {
			p.TenureTurns++
		} else {
			p.TenureTurns = 0
		}
		kept = append(kept, p)
	}
	s.Products = kept

	s.AnnualPremium = c.premiums.Mul(weeks).Round(2)
	minimum := e.bundle.MinimumCapital(s.AnnualPremium)
	capital := s.Capital()
	solvency := capital.Div(minimum).InexactFloat64()
	bankrupt := capital.LessThan(minimum)

	// Sweep cash above the target ratio into the portfolio.
	if !bankrupt && capital.IsPositive() {
		target := capital.Mul(decimal.NewFromFloat(econ.TargetCashRatio)).Round(2)
		if excess := s.Cash.Sub(target); excess.IsPositive() {
			s.Cash = target
			s.Portfolio.Value = s.Portfolio.Value.Add(excess)
		}
	}

	premiums := c.premiums.InexactFloat64()
	var lossRatio, expenseRatio float64
	if premiums > 0 {
		lossRatio = c.claims.InexactFloat64() / premiums
		expenseRatio = c.expenses.InexactFloat64() / premiums
	}
	for _, x := range []float64{solvency, lossRatio, expenseRatio, s.Portfolio.ActualReturn, s.Portfolio.ExpectedReturn, s.Portfolio.PerceivedReturn} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			c.fail(StageAggregation, fmt.Errorf("%w: %v", ErrNonFinite, x))
			return
		}
	}

	s.SolvencyRatio = solvency
	s.Bankrupt = bankrupt
	s.UpdatedTurn = t.turn

	c.result = model.TurnResult{
		CompanyID:        s.ID,
		Turn:             t.turn,
		StartingCapital:  c.startingCapital,
		EndingCapital:    capital,
		Premiums:         c.premiums,
		Claims:           c.claims,
		Expenses:         c.expenses,
		InvestmentIncome: c.invest.Income,
		Penalties:        c.audit.Penalty,
		Refunds:          c.expansion.Refunds,
		CapitalCalls:     c.capitalCalls.Add(c.invest.MarginCall),
		LossRatio:        lossRatio,
		ExpenseRatio:     expenseRatio,
		CombinedRatio:    lossRatio + expenseRatio,
		MinimumCapital:   minimum,
		SolvencyRatio:    solvency,
		Markets:          c.outcomes,
		Actions:          c.audit.Actions,
		Compliance:       c.audit.Record,
		Liquidation:      c.liquidation,
		Warnings:         c.warnings,
		Defaulted:        c.defaulted,
		Bankrupt:         bankrupt,
	}

	if bankrupt {
		c.events = append(c.events, events.Event{
			ID:        events.ID(t.seed, t.turn, events.TypeBankruptcy, s.ID, ""),
			Type:      events.TypeBankruptcy,
			Turn:      t.turn,
			CompanyID: s.ID,
			Payload:   events.BankruptcyPayload{EndingCapital: capital, MinimumCapital: minimum, Result: c.result},
		})
	}

	events.Sort(c.events)
	for _, ev := range c.events {
		c.result.Events = append(c.result.Events, model.EventRef{ID: ev.ID, Type: string(ev.Type)})
	}
}
