package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/metrics"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
	"github.com/cellis212/insurance-manager-sub000/internal/store"
)

// Store is the part of store.Store the runner needs.
type Store interface {
	InitWorld(ctx context.Context, w model.World) error
	LoadWorld(ctx context.Context) (model.World, error)
	ListCompanies(ctx context.Context) ([]*model.CompanyState, error)
	PendingDecisions(ctx context.Context, turn int) (map[string]model.Decision, error)
	CommitTurn(ctx context.Context, c *store.TurnCommit) error
}

// Archiver keeps an external copy of each finalized turn.
type Archiver interface {
	Archive(ctx context.Context, c *store.TurnCommit) error
}

// Runner resolves the next turn of a semester against a Store. Runs are
// serialised within a process; across processes the store's turn check
// decides which commit wins.
type Runner struct {
	store        Store
	engine       *Engine
	sink         events.Sink
	archiver     Archiver
	semesterSeed uint64
	logger       *slog.Logger
	now          func() time.Time

	mu sync.Mutex
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSink sets where committed turn events are published.
func WithSink(s events.Sink) RunnerOption {
	return func(r *Runner) { r.sink = s }
}

// WithArchiver sets the archiver for committed turns.
func WithArchiver(a Archiver) RunnerOption {
	return func(r *Runner) { r.archiver = a }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used for FinalizedAt.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner. semesterSeed initialises the world when the
// store has none yet; after that the persisted seed is authoritative.
func NewRunner(s Store, e *Engine, semesterSeed uint64, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:        s,
		engine:       e,
		semesterSeed: semesterSeed,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunNext resolves the turn after the last finalized one and commits it.
// A failed run commits nothing and leaves the world where it was.
func (r *Runner) RunNext(ctx context.Context) (*Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	runID := uuid.NewString()

	w, err := r.world(ctx)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, err
	}
	turn := w.Turn + 1
	seed := rng.TurnSeed(w.Seed, turn)
	log := r.logger.With("run_id", runID, "turn", turn)

	companies, err := r.store.ListCompanies(ctx)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, fmt.Errorf("turn %d: list companies: %w", turn, err)
	}
	decisions, err := r.store.PendingDecisions(ctx, turn)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, fmt.Errorf("turn %d: pending decisions: %w", turn, err)
	}
	log.Info("turn started", "companies", len(companies), "decisions", len(decisions), "phase", string(w.Phase))

	out, err := r.engine.Run(ctx, Input{
		Turn:      turn,
		Seed:      seed,
		Phase:     w.Phase,
		Companies: companies,
		Decisions: decisions,
	})
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(StatusFailed)).Inc()
		return nil, fmt.Errorf("turn %d: %w", turn, err)
	}

	commit := &store.TurnCommit{
		Turn:        turn,
		World:       model.World{Turn: turn, Phase: out.NextPhase, Seed: w.Seed},
		Companies:   out.Companies,
		Results:     out.Results,
		Markets:     out.Markets,
		Decisions:   out.Decisions,
		Events:      out.Events,
		FinalizedAt: r.now().UTC(),
	}
	if err := r.store.CommitTurn(ctx, commit); err != nil {
		status := string(StatusFailed)
		if errors.Is(err, store.ErrTurnConflict) {
			status = "conflict"
		}
		metrics.TurnsTotal.WithLabelValues(status).Inc()
		log.Error("turn commit failed", "err", err)
		return nil, fmt.Errorf("turn %d: commit: %w", turn, err)
	}

	// The turn is final from here on; delivery problems are only logged.
	if r.sink != nil {
		if err := r.sink.Publish(ctx, turn, out.Events); err != nil {
			log.Warn("event publish failed", "err", err)
		}
	}
	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, commit); err != nil {
			log.Warn("turn archive failed", "err", err)
		}
	}

	elapsed := time.Since(start)
	record(out, elapsed)
	log.Info("turn committed",
		"duration_ms", elapsed.Milliseconds(),
		"results", len(out.Results),
		"failures", len(out.Failures),
		"next_phase", string(out.NextPhase),
	)
	return out, nil
}

// world loads the persisted world, creating it on first use.
func (r *Runner) world(ctx context.Context) (model.World, error) {
	w, err := r.store.LoadWorld(ctx)
	if errors.Is(err, store.ErrNotFound) {
		w = model.World{Turn: 0, Seed: r.semesterSeed}
		if phases := r.engine.Bundle().Economy.Phases; len(phases) > 0 {
			w.Phase = phases[0].Name
		}
		if err := r.store.InitWorld(ctx, w); err != nil {
			return model.World{}, fmt.Errorf("init world: %w", err)
		}
		r.logger.Info("world initialised", "phase", string(w.Phase), "seed", w.Seed)
		return w, nil
	}
	if err != nil {
		return model.World{}, fmt.Errorf("load world: %w", err)
	}
	return w, nil
}

func record(out *Output, elapsed time.Duration) {
	metrics.TurnsTotal.WithLabelValues(string(out.Status)).Inc()
	metrics.TurnDuration.Observe(elapsed.Seconds())
	metrics.LastTurn.Set(float64(out.Turn))

	for _, res := range out.Results {
		outcome := "ok"
		switch {
		case res.Bankrupt:
			outcome = "bankrupt"
		case res.Defaulted:
			outcome = "defaulted"
		}
		metrics.CompanyOutcomes.WithLabelValues(outcome).Inc()
		if res.Compliance.Audit != "" && res.Compliance.Audit != model.AuditNone {
			metrics.Audits.WithLabelValues(string(res.Compliance.Audit)).Inc()
		}
		if l := res.Liquidation; l != nil {
			metrics.Liquidations.WithLabelValues(string(l.Trigger), string(l.Resolution)).Inc()
			if l.OptimalCost.IsPositive() {
				metrics.LiquidationCostRatio.Observe(l.RealizedCost.Div(l.OptimalCost).InexactFloat64())
			}
		}
	}
	for range out.Failures {
		metrics.CompanyOutcomes.WithLabelValues("failed").Inc()
	}
	for _, ev := range out.Events {
		metrics.Events.WithLabelValues(string(ev.Type)).Inc()
	}
}
