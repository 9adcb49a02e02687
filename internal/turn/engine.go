// Package turn resolves one simulated week for every company in a semester.
//
// A turn is all-or-nothing: Engine.Run reads its inputs without mutating
// them and either returns a complete Output or an error. Stages run in a
// fixed order with a barrier between them: demand (parallel across markets),
// claims, investment, expansion and compliance (parallel across companies),
// then aggregation. Every random draw comes from a stream derived from the
// turn seed, so a re-run with the same seed reproduces the same Output.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cellis212/insurance-manager-sub000/internal/claims"
	"github.com/cellis212/insurance-manager-sub000/internal/compliance"
	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/demand"
	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/expansion"
	"github.com/cellis212/insurance-manager-sub000/internal/investment"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
)

var ErrDuplicateCompany = errors.New("turn: duplicate company")

// Input is everything one turn reads.
type Input struct {
	Turn      int
	Seed      uint64
	Phase     model.EconomicPhase // empty means the bundle's first phase
	Companies []*model.CompanyState
	Decisions map[string]model.Decision // by company ID
}

// Failure records a company whose turn was aborted by a ComputationError.
type Failure struct {
	CompanyID string `json:"company_id"`
	Stage     Stage  `json:"stage"`
	Error     string `json:"error"`
}

// Output is a finalized turn.
type Output struct {
	Turn         int                     `json:"turn"`
	Seed         uint64                  `json:"seed"`
	Status       Status                  `json:"status"`
	Phase        model.EconomicPhase     `json:"phase"`
	NextPhase    model.EconomicPhase     `json:"next_phase"`
	Stress       float64                 `json:"stress"`
	Catastrophes []claims.Catastrophe    `json:"catastrophes"`
	Markets      []model.MarketCondition `json:"markets"`
	Companies    []*model.CompanyState   `json:"companies"` // every input company, by ID
	Results      []model.TurnResult      `json:"results"`
	Decisions    []model.Decision        `json:"decisions"` // decisions as applied, defaults included
	Events       []events.Event          `json:"events"`
	Failures     []Failure               `json:"failures,omitempty"`
}

// Engine runs turns against one parameter bundle. It is safe for
// concurrent use; each Run works on its own clones.
type Engine struct {
	bundle      *config.Bundle
	allocator   *demand.Allocator
	claims      *claims.Generator
	investment  *investment.Engine
	compliance  *compliance.Evaluator
	expansion   *expansion.Resolver
	parallelism int
	budget      time.Duration
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism bounds the goroutines used within a stage.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithBudget sets the wall-clock budget of one Run. Zero means no limit
// beyond the caller's context.
func WithBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. The bundle is validated on every Run.
func NewEngine(b *config.Bundle, opts ...Option) *Engine {
	e := &Engine{
		bundle:      b,
		allocator:   demand.NewAllocator(b),
		claims:      claims.NewGenerator(b),
		investment:  investment.NewEngine(b),
		compliance:  compliance.NewEvaluator(b),
		expansion:   expansion.NewResolver(b),
		parallelism: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Bundle returns the engine's parameter bundle.
func (e *Engine) Bundle() *config.Bundle { return e.bundle }

// Run resolves one turn. A *config.Error, ErrTimeout or a cancelled context
// fails the whole turn; a ComputationError only fails its company.
func (e *Engine) Run(ctx context.Context, in Input) (*Output, error) {
	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}
	lc := lifecycle{status: StatusPending}
	out, err := e.run(ctx, in, &lc)
	if err != nil {
		_ = lc.advance(StatusFailed)
		e.logger.Error("turn failed", "turn", in.Turn, "status", string(lc.status), "err", err)
		return nil, err
	}
	out.Status = lc.status
	return out, nil
}

func (e *Engine) run(ctx context.Context, in Input, lc *lifecycle) (*Output, error) {
	if err := lc.advance(StatusValidating); err != nil {
		return nil, err
	}
	if err := e.bundle.Validate(); err != nil {
		return nil, err
	}
	phase, err := e.phase(in.Phase)
	if err != nil {
		return nil, err
	}
	t, err := e.prepare(in, phase.Name)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	if err := lc.advance(StatusSimulating); err != nil {
		return nil, err
	}
	t.catastrophes = e.claims.Catastrophes(rng.New(in.Seed, rng.Catastrophe))
	t.stress = phase.Stress + claims.Stress(e.bundle, t.catastrophes)

	stages := []func(context.Context, *turnRun) error{
		e.demandStage,
		e.claimsStage,
		e.investmentStage,
		e.expansionStage,
		e.complianceStage,
	}
	for _, stage := range stages {
		if err := stage(ctx, t); err != nil {
			return nil, err
		}
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
	}

	if err := lc.advance(StatusAggregating); err != nil {
		return nil, err
	}
	for _, c := range t.active() {
		e.aggregate(t, c)
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	out := e.finalize(t, phase)
	if err := lc.advance(StatusFinalized); err != nil {
		return nil, err
	}
	e.logger.Info("turn finalized",
		"turn", in.Turn,
		"companies", len(out.Companies),
		"results", len(out.Results),
		"failures", len(out.Failures),
		"events", len(out.Events),
		"next_phase", string(out.NextPhase),
	)
	return out, nil
}

func (e *Engine) phase(name model.EconomicPhase) (config.Phase, error) {
	if name == "" {
		return e.bundle.Economy.Phases[0], nil
	}
	p, ok := e.bundle.Phase(name)
	if !ok {
		return config.Phase{}, fmt.Errorf("%w: economic phase %q", config.ErrInvalidBundle, name)
	}
	return p, nil
}

// turnRun is the mutable working state of one Run.
type turnRun struct {
	turn         int
	seed         uint64
	phase        model.EconomicPhase
	stress       float64
	catastrophes []claims.Catastrophe
	markets      []model.MarketCondition
	companies    []*company // by ID
	carried      []*model.CompanyState
}

func (t *turnRun) active() []*company {
	out := make([]*company, 0, len(t.companies))
	for _, c := range t.companies {
		if c.err == nil {
			out = append(out, c)
		}
	}
	return out
}

// company is one company's pipeline through the turn. Stages write only to
// their own company, so stages can run companies in parallel.
type company struct {
	prior     *model.CompanyState
	state     *model.CompanyState // working clone
	decision  model.Decision
	defaulted bool
	warnings  []string
	err       *ComputationError

	startingCapital decimal.Decimal
	capitalCalls    decimal.Decimal
	outcomes        []model.MarketOutcome // aligned with state.Products
	generosity      []float64             // market average, aligned with state.Products
	hit             bool                  // a catastrophe struck one of its markets

	premiums  decimal.Decimal
	claims    decimal.Decimal
	expenses  decimal.Decimal
	invest    investment.Outcome
	expansion expansion.Outcome
	audit     compliance.Outcome
	minimum   decimal.Decimal // provisional, from this turn's premiums

	liquidation *model.LiquidationEvent
	events      []events.Event
	result      model.TurnResult
}

func (c *company) fail(stage Stage, err error) {
	if c.err == nil {
		c.err = &ComputationError{CompanyID: c.prior.ID, Stage: stage, Err: err}
	}
}

// prepare clones companies and applies decisions.
func (e *Engine) prepare(in Input, phase model.EconomicPhase) (*turnRun, error) {
	t := &turnRun{turn: in.Turn, seed: in.Seed, phase: phase}

	sorted := append([]*model.CompanyState(nil), in.Companies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCompany, sorted[i].ID)
		}
	}

	known := make(map[string]bool, len(sorted))
	for _, prior := range sorted {
		known[prior.ID] = true
		if prior.Bankrupt {
			t.carried = append(t.carried, prior.Clone())
			continue
		}
		c := &company{prior: prior, state: prior.Clone(), startingCapital: prior.Capital()}

		d, ok := in.Decisions[prior.ID]
		switch {
		case !ok:
			c.decision = model.NoChangeDecision(prior, in.Turn)
			c.defaulted = true
			c.warnings = append(c.warnings, "no decision submitted; current settings kept")
		default:
			if err := ValidateDecision(e.bundle, prior, d, in.Turn); err != nil {
				c.decision = model.NoChangeDecision(prior, in.Turn)
				c.defaulted = true
				c.warnings = append(c.warnings, "decision rejected; current settings kept: "+err.Error())
				e.logger.Warn("decision rejected", "turn", in.Turn, "company", prior.ID, "err", err)
			} else {
				c.decision = d
			}
		}

		a := applyDecision(e.bundle, e.expansion, c.state, c.decision, in.Turn)
		c.capitalCalls = a.CapitalCalls
		c.warnings = append(c.warnings, a.Warnings...)
		c.outcomes = make([]model.MarketOutcome, len(c.state.Products))
		c.generosity = make([]float64, len(c.state.Products))
		t.companies = append(t.companies, c)
	}
	for id := range in.Decisions {
		if !known[id] {
			e.logger.Warn("decision for unknown company ignored", "turn", in.Turn, "company", id)
		}
	}
	return t, nil
}

// each runs fn(0..n-1) on at most e.parallelism goroutines and returns
// once all calls finished or ctx ended.
func (e *Engine) each(ctx context.Context, n int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	_ = g.Wait() // fn never fails, so an error here means ctx ended
	return checkpoint(ctx)
}

func checkpoint(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("turn: aborted: %w", err)
	}
}

// entrant is one product competing in a market.
type entrant struct {
	company *company
	product int
}

// demandStage allocates every market of the bundle jointly. Markets are
// independent, so they run in parallel.
func (e *Engine) demandStage(ctx context.Context, t *turnRun) error {
	byMarket := map[model.MarketKey][]entrant{}
	for _, c := range t.active() {
		for i, p := range c.state.Products {
			if _, ok := e.bundle.BasePrice(p.State, p.Line); !ok {
				c.fail(StageDemand, fmt.Errorf("%w: %s", demand.ErrInvalidMarket, p.Key()))
				break
			}
			byMarket[p.Key()] = append(byMarket[p.Key()], entrant{company: c, product: i})
		}
	}

	ph, _ := e.bundle.Phase(t.phase)
	var markets []demand.Market
	for _, s := range e.bundle.States {
		for _, l := range e.bundle.Lines {
			ref, _ := e.bundle.BasePrice(s.Code, l.Code)
			markets = append(markets, demand.Market{
				Key:            model.MarketKey{State: s.Code, Line: l.Code},
				Turn:           t.turn,
				Phase:          t.phase,
				ReferencePrice: ref.InexactFloat64(),
				Demand:         l.BaseDemand * s.DemandFactor * ph.DemandMultiplier,
			})
		}
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Key.Less(markets[j].Key) })

	// A company that failed above must not compete anywhere.
	for k, ents := range byMarket {
		kept := ents[:0]
		for _, en := range ents {
			if en.company.err == nil {
				kept = append(kept, en)
			}
		}
		byMarket[k] = kept
	}

	allocs := make([]demand.Allocation, len(markets))
	errs := make([]error, len(markets))
	err := e.each(ctx, len(markets), func(i int) {
		ents := byMarket[markets[i].Key]
		cs := make([]demand.Competitor, len(ents))
		for j, en := range ents {
			p := en.company.state.Products[en.product]
			cs[j] = demand.Competitor{
				CompanyID:     en.company.state.ID,
				Price:         p.Price().InexactFloat64(),
				BasePrice:     p.BasePrice.InexactFloat64(),
				Tier:          p.Tier,
				TenureTurns:   p.TenureTurns,
				PriorPolicies: p.ActivePolicies,
				PriorShare:    p.MarketShare,
				Brand:         demand.BrandStrength(en.company.state.CEO),
			}
		}
		allocs[i], errs[i] = e.allocator.Allocate(markets[i], cs)
	})
	if err != nil {
		return err
	}

	for i, m := range markets {
		ents := byMarket[m.Key]
		if errs[i] != nil {
			for _, en := range ents {
				en.company.fail(StageDemand, errs[i])
			}
			continue
		}
		cond := allocs[i].Condition
		t.markets = append(t.markets, cond)
		for j, en := range ents {
			s := allocs[i].Shares[j]
			p := en.company.state.Products[en.product]
			en.company.outcomes[en.product] = model.MarketOutcome{
				Key:        p.Key(),
				Tier:       p.Tier,
				Price:      p.Price(),
				Policies:   s.Policies,
				Share:      s.Share,
				ShareDelta: s.Share - p.MarketShare,
				Premiums:   decimal.Zero,
				Claims:     decimal.Zero,
			}
			en.company.generosity[en.product] = cond.AverageGenerosity
		}
	}
	return nil
}

// claimsStage draws claims per company from one stream per market.
func (e *Engine) claimsStage(ctx context.Context, t *turnRun) error {
	active := t.active()
	return e.each(ctx, len(active), func(i int) {
		c := active[i]
		for j, p := range c.state.Products {
			o := &c.outcomes[j]
			out, err := e.claims.Generate(claims.Exposure{
				CompanyID:        c.state.ID,
				Key:              p.Key(),
				Tier:             p.Tier,
				Policies:         o.Policies,
				MarketGenerosity: c.generosity[j],
			}, t.catastrophes, rng.New(t.seed, rng.Claims, c.state.ID, p.Key().String()))
			if err != nil {
				c.fail(StageClaims, err)
				return
			}
			o.ClaimCount, o.Claims, o.Catastrophe = out.Count, out.Amount, out.Catastrophe
			c.hit = c.hit || out.Catastrophe
		}
	})
}

// investmentStage rebalances, perceives and realises returns, then books
// the turn's underwriting so later stages see provisional capital.
func (e *Engine) investmentStage(ctx context.Context, t *turnRun) error {
	active := t.active()
	return e.each(ctx, len(active), func(i int) {
		c := active[i]
		skill, hasCFO := c.state.Skill(model.RoleCFO)
		out, err := e.investment.Optimize(investment.OptimizeInput{
			CompanyID: c.state.ID,
			Target:    c.state.Portfolio.Target,
			Actual:    c.state.Portfolio.Actual,
			Value:     c.state.Portfolio.Value,
			Skill:     skill,
			HasCFO:    hasCFO,
			Phase:     t.phase,
		}, rng.New(t.seed, rng.Perception, c.state.ID), rng.New(t.seed, rng.Returns, c.state.ID))
		if err != nil {
			c.fail(StageInvestment, err)
			return
		}
		c.invest = out
		e.underwrite(c)
	})
}

// underwrite totals premiums, claims and operating expenses.
func (e *Engine) underwrite(c *company) {
	econ := e.bundle.Economy
	weeks := decimal.NewFromInt(int64(econ.WeeksPerYear))
	c.premiums, c.claims = decimal.Zero, decimal.Zero
	for i := range c.outcomes {
		o := &c.outcomes[i]
		o.Premiums = o.Price.Mul(decimal.NewFromInt(o.Policies)).Div(weeks).Round(2)
		c.premiums = c.premiums.Add(o.Premiums)
		c.claims = c.claims.Add(o.Claims)
	}
	expenses := c.premiums.Mul(decimal.NewFromFloat(econ.OperatingExpenseRatio))
	expenses = expenses.Add(decimal.NewFromFloat(econ.FixedExpensePerProduct).Mul(decimal.NewFromInt(int64(len(c.outcomes)))))
	for _, r := range model.Roles {
		if skill, ok := c.state.Staff[r]; ok {
			expenses = expenses.Add(e.bundle.WeeklySalary(r, skill))
		}
	}
	c.expenses = expenses.Round(2)
	c.minimum = e.bundle.MinimumCapital(c.premiums.Mul(weeks))
}

// provisionalCapital is capital after this turn's underwriting and
// investment result, before refunds, penalties and forced sales.
func (c *company) provisionalCapital() decimal.Decimal {
	return c.state.Capital().
		Add(c.premiums).
		Sub(c.claims).
		Sub(c.expenses).
		Add(c.invest.Income).
		Sub(c.invest.MarginCall)
}

// expansionStage decides pending expansion requests that came due.
func (e *Engine) expansionStage(ctx context.Context, t *turnRun) error {
	active := t.active()
	return e.each(ctx, len(active), func(i int) {
		c := active[i]
		out := e.expansion.Resolve(expansion.Input{
			CompanyID:      c.state.ID,
			Turn:           t.turn,
			HomeState:      c.state.HomeState,
			Pending:        c.state.PendingExpansions,
			Capital:        c.provisionalCapital(),
			MinimumCapital: c.minimum,
			Bankrupt:       c.state.Bankrupt,
		})
		c.expansion = out
		c.state.PendingExpansions = out.Pending
		for _, r := range out.Resolved {
			typ := events.TypeExpansionDenied
			if r.Approved {
				typ = events.TypeExpansionApproved
				if c.state.Authorizations == nil {
					c.state.Authorizations = map[string]int{}
				}
				c.state.Authorizations[r.State] = t.turn
			}
			c.events = append(c.events, events.Event{
				ID:        events.ID(t.seed, t.turn, typ, c.state.ID, r.State),
				Type:      typ,
				Turn:      t.turn,
				CompanyID: c.state.ID,
				Payload:   events.ExpansionPayload{State: r.State, SubmittedTurn: r.SubmittedTurn, Refund: r.Refund, Reason: r.Reason},
			})
		}
	})
}

// complianceStage scores each company and draws its audit.
func (e *Engine) complianceStage(ctx context.Context, t *turnRun) error {
	active := t.active()
	return e.each(ctx, len(active), func(i int) {
		c := active[i]
		out := e.compliance.Evaluate(compliance.Input{
			CompanyID:       c.state.ID,
			Turn:            t.turn,
			Products:        c.state.Products,
			Authorizations:  c.state.Authorizations,
			Staff:           c.state.Staff,
			History:         c.state.Compliance,
			Capital:         c.provisionalCapital().Add(c.expansion.Refunds),
			MinimumCapital:  c.minimum,
			StartingCapital: c.startingCapital,
		}, rng.New(t.seed, rng.Compliance, c.state.ID))
		c.audit = out
		c.state.Compliance = out.History
		if out.Audited {
			c.events = append(c.events, events.Event{
				ID:        events.ID(t.seed, t.turn, events.TypeAudit, c.state.ID, ""),
				Type:      events.TypeAudit,
				Turn:      t.turn,
				CompanyID: c.state.ID,
				Payload: events.AuditPayload{
					Outcome:   out.Record.Audit,
					Composite: out.Record.Composite,
					Findings:  out.Record.Findings,
					Actions:   out.Actions,
					Penalty:   out.Penalty,
				},
			})
		}
	})
}

// finalize assembles the Output in deterministic order.
func (e *Engine) finalize(t *turnRun, phase config.Phase) *Output {
	out := &Output{
		Turn:         t.turn,
		Seed:         t.seed,
		Phase:        t.phase,
		NextPhase:    e.nextPhase(t.seed, phase),
		Stress:       t.stress,
		Catastrophes: t.catastrophes,
		Markets:      t.markets,
	}

	exposed := map[model.MarketKey][]string{}
	for _, c := range t.companies {
		out.Decisions = append(out.Decisions, c.decision)
		if c.err != nil {
			out.Companies = append(out.Companies, c.prior.Clone())
			out.Failures = append(out.Failures, Failure{CompanyID: c.prior.ID, Stage: c.err.Stage, Error: c.err.Error()})
			e.logger.Error("company turn failed", "turn", t.turn, "company", c.prior.ID, "stage", string(c.err.Stage), "err", c.err.Err)
			continue
		}
		out.Companies = append(out.Companies, c.state)
		out.Results = append(out.Results, c.result)
		out.Events = append(out.Events, c.events...)
		for _, o := range c.result.Markets {
			if o.Policies > 0 {
				exposed[o.Key] = append(exposed[o.Key], c.state.ID)
			}
		}
	}
	out.Companies = append(out.Companies, t.carried...)
	sort.Slice(out.Companies, func(i, j int) bool { return out.Companies[i].ID < out.Companies[j].ID })

	for _, cat := range t.catastrophes {
		affected := map[string]bool{}
		for key, ids := range exposed {
			if cat.Affects(key) {
				for _, id := range ids {
					affected[id] = true
				}
			}
		}
		ids := make([]string, 0, len(affected))
		for id := range affected {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out.Events = append(out.Events, events.Event{
			ID:      events.ID(t.seed, t.turn, events.TypeCatastrophe, "", cat.Region),
			Type:    events.TypeCatastrophe,
			Turn:    t.turn,
			Payload: events.CatastrophePayload{Region: cat.Region, States: cat.States, Lines: cat.Lines, Surge: cat.Surge, Companies: ids},
		})
	}
	events.Sort(out.Events)
	return out
}

// nextPhase draws the economic cycle's next phase from its Markov row.
func (e *Engine) nextPhase(seed uint64, p config.Phase) model.EconomicPhase {
	if len(p.Transitions) == 0 {
		return p.Name
	}
	w := make([]float64, len(p.Transitions))
	for i, tr := range p.Transitions {
		w[i] = tr.Probability
	}
	idx := distuv.NewCategorical(w, rng.New(seed, rng.Phase)).Rand()
	return p.Transitions[int(idx)].To
}
