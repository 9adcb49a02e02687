// Package compliance scores a company's regulatory standing each turn,
// draws whether the regulator audits it, and assesses warnings and
// penalties for what an audit finds.
package compliance

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// Input is everything the evaluator reads about one company.
type Input struct {
	CompanyID       string
	Turn            int
	Products        []model.Product
	Authorizations  map[string]int
	Staff           map[model.Role]int
	History         model.ComplianceHistory
	Capital         decimal.Decimal // capital at evaluation time
	MinimumCapital  decimal.Decimal
	StartingCapital decimal.Decimal // penalty base
}

// Outcome is the evaluator's verdict for the turn.
type Outcome struct {
	Record  model.ComplianceRecord
	Actions []model.RegulatoryAction
	Penalty decimal.Decimal
	History model.ComplianceHistory // updated copy; the input is not modified
	Audited bool
}

// Evaluator applies the bundle's compliance policy.
type Evaluator struct {
	bundle *config.Bundle
	params config.Compliance
}

// NewEvaluator creates an evaluator from a validated bundle.
func NewEvaluator(b *config.Bundle) *Evaluator {
	return &Evaluator{bundle: b, params: b.Compliance}
}

// Scores computes the five component scores and the findings behind them.
func (ev *Evaluator) Scores(in Input) (model.ComplianceScores, []model.Finding) {
	var (
		scores   model.ComplianceScores
		findings []model.Finding
	)

	// Filing timeliness, per state with products.
	due := map[string]int{}
	for _, p := range in.Products {
		since, seen := due[p.State]
		if !seen || p.LaunchedTurn > since {
			due[p.State] = p.LaunchedTurn
		}
	}
	states := make([]string, 0, len(due))
	for s := range due {
		states = append(states, s)
	}
	sort.Strings(states)
	onTime := 0
	for _, s := range states {
		last := due[s]
		if f, ok := in.History.Filings[s]; ok && f > last {
			last = f
		}
		interval := 0
		if st, ok := ev.bundle.State(s); ok {
			interval = ev.bundle.FilingInterval(st.Regulation)
		}
		if interval > 0 && in.Turn-last > interval {
			findings = append(findings, model.Finding{Type: model.ViolationLateFiling, State: s})
			continue
		}
		onTime++
	}
	scores.Filing = fraction(onTime, len(states))

	// Capital adequacy.
	ratio := math.Inf(1)
	if in.MinimumCapital.IsPositive() {
		ratio = in.Capital.Div(in.MinimumCapital).InexactFloat64()
	}
	span := ev.params.CapitalFullRatio - ev.params.CapitalZeroRatio
	scores.Capital = 100 * math.Min(math.Max((ratio-ev.params.CapitalZeroRatio)/span, 0), 1)
	if ratio < ev.params.CapitalFinding {
		findings = append(findings, model.Finding{Type: model.ViolationCapitalInadequacy})
	}

	// Product compliance and authorization, per product.
	permitted, authorized := 0, 0
	for _, p := range in.Products {
		reg := ""
		if st, ok := ev.bundle.State(p.State); ok {
			reg = st.Regulation
		}
		if ev.bundle.TierPermitted(reg, p.Tier) {
			permitted++
		} else {
			findings = append(findings, model.Finding{Type: model.ViolationProductNoncompliance, State: p.State, Line: p.Line})
		}
		if _, ok := in.Authorizations[p.State]; ok {
			authorized++
		} else {
			findings = append(findings, model.Finding{Type: model.ViolationOperatingUnauthorized, State: p.State, Line: p.Line})
		}
	}
	scores.Product = fraction(permitted, len(in.Products))
	scores.Authorization = fraction(authorized, len(in.Products))

	// Certifications.
	held := 0
	for _, c := range ev.params.Certifications {
		if skill, ok := in.Staff[c.Role]; ok && skill >= c.MinSkill {
			held++
			continue
		}
		findings = append(findings, model.Finding{Type: model.ViolationMissingCertification, Detail: c.Name})
	}
	scores.Certification = fraction(held, len(ev.params.Certifications))

	sort.SliceStable(findings, func(i, j int) bool {
		return typeOrder(findings[i].Type) < typeOrder(findings[j].Type)
	})
	return scores, findings
}

// Composite is the weighted average of the component scores.
func (ev *Evaluator) Composite(s model.ComplianceScores) float64 {
	w := ev.params.Weights
	total := w.Filing + w.Capital + w.Product + w.Certification + w.Authorization
	if total <= 0 {
		return 0
	}
	sum := w.Filing*s.Filing + w.Capital*s.Capital + w.Product*s.Product +
		w.Certification*s.Certification + w.Authorization*s.Authorization
	return sum / total
}

// AuditProbability falls from the configured maximum at score 0 to the
// minimum at 100. A CCO scales it down by up to CCOMaxReduction at skill 100.
func (ev *Evaluator) AuditProbability(composite float64, ccoSkill int, hasCCO bool) float64 {
	a := ev.params.Audit
	badness := math.Min(math.Max((100-composite)/100, 0), 1)
	p := a.MinProbability + (a.MaxProbability-a.MinProbability)*math.Pow(badness, a.Exponent)
	if hasCCO {
		p *= 1 - a.CCOMaxReduction*skillFraction(ccoSkill)
	}
	return p
}

// Evaluate scores the company, draws the audit from r and, if one occurs
// with findings, assesses them.
func (ev *Evaluator) Evaluate(in Input, r *rand.Rand) Outcome {
	scores, findings := ev.Scores(in)
	composite := ev.Composite(scores)
	ccoSkill, hasCCO := in.Staff[model.RoleCCO]
	prob := ev.AuditProbability(composite, ccoSkill, hasCCO)

	out := Outcome{
		Record: model.ComplianceRecord{
			Scores:           scores,
			Composite:        composite,
			AuditProbability: prob,
			Audit:            model.AuditNone,
			Findings:         findings,
		},
		Penalty: decimal.Zero,
		History: in.History.Clone(),
	}

	// A grace flag lapses once its violation is no longer present.
	present := map[model.ViolationType]bool{}
	for _, f := range findings {
		present[f.Type] = true
	}
	for v := range out.History.GraceFlags {
		if !present[v] {
			delete(out.History.GraceFlags, v)
		}
	}

	if r.Float64() < prob {
		out.Audited = true
		if len(findings) == 0 {
			out.Record.Audit = model.AuditPassed
		} else {
			a := ev.AssessFindings(findings, out.History, in.StartingCapital, ccoSkill, hasCCO)
			out.Actions, out.Penalty, out.History, out.Record.Audit = a.Actions, a.Penalty, a.History, a.Audit
		}
	}

	out.Record.GraceFlags = make(map[model.ViolationType]bool, len(out.History.GraceFlags))
	for v, on := range out.History.GraceFlags {
		if on {
			out.Record.GraceFlags[v] = true
		}
	}
	return out
}

// Assessment is the result of assessing audit findings.
type Assessment struct {
	Actions []model.RegulatoryAction
	Penalty decimal.Decimal
	History model.ComplianceHistory
	Audit   model.AuditOutcome
}

// AssessFindings turns findings into warnings and penalties, one action per
// violation type. A first occurrence of a grace-eligible type is a warning
// that sets the grace flag. Anything else is penalised at
// max(rate × capital, minimum) × escalation(k) × (1 − CCO mitigation),
// where k counts prior occurrences including this one.
func (ev *Evaluator) AssessFindings(findings []model.Finding, history model.ComplianceHistory,
	startingCapital decimal.Decimal, ccoSkill int, hasCCO bool) Assessment {
	out := Assessment{Penalty: decimal.Zero, History: history.Clone(), Audit: model.AuditPassed}
	if out.History.Violations == nil {
		out.History.Violations = map[model.ViolationType]int{}
	}
	if out.History.GraceFlags == nil {
		out.History.GraceFlags = map[model.ViolationType]bool{}
	}

	seen := map[model.ViolationType]bool{}
	for _, f := range findings {
		seen[f.Type] = true
	}
	base := decimal.Max(startingCapital, decimal.Zero)
	pen := ev.params.Penalty
	mitigation := 1.0
	if hasCCO {
		mitigation = 1 - pen.CCOMaxMitigation*skillFraction(ccoSkill)
	}

	for _, v := range model.ViolationTypes {
		if !seen[v] {
			continue
		}
		k := out.History.Violations[v] + 1
		out.History.Violations[v] = k

		if k == 1 && ev.bundle.GraceEligible(v) {
			out.History.GraceFlags[v] = true
			out.Actions = append(out.Actions, model.RegulatoryAction{Violation: v, Occurrence: k, Warning: true, Penalty: decimal.Zero})
			if out.Audit == model.AuditPassed {
				out.Audit = model.AuditWarned
			}
			continue
		}

		rate := pen.BaseRate
		if v == model.ViolationOperatingUnauthorized {
			rate = pen.UnauthorizedRate
		}
		amount := decimal.Max(base.Mul(decimal.NewFromFloat(rate)), decimal.NewFromFloat(pen.MinPenalty))
		amount = amount.Mul(decimal.NewFromFloat(ev.bundle.Escalation(k) * mitigation)).Round(2)
		delete(out.History.GraceFlags, v)
		out.Actions = append(out.Actions, model.RegulatoryAction{Violation: v, Occurrence: k, Penalty: amount})
		out.Penalty = out.Penalty.Add(amount)
		out.Audit = model.AuditPenalized
	}
	return out
}

// Failing reports whether the company fails the concurrent compliance check
// used by expansion approval: capital below the regulatory minimum.
func Failing(capital, minimum decimal.Decimal) bool {
	return capital.LessThan(minimum)
}

func fraction(ok, total int) float64 {
	if total == 0 {
		return 100
	}
	return 100 * float64(ok) / float64(total)
}

func skillFraction(skill int) float64 {
	return math.Min(math.Max(float64(skill), 0), 100) / 100
}

func typeOrder(v model.ViolationType) int {
	for i, t := range model.ViolationTypes {
		if t == v {
			return i
		}
	}
	return len(model.ViolationTypes)
}
