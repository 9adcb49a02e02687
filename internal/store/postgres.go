package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Capital is mirrored into NUMERIC columns for exact reporting; full
// snapshots are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InitWorld(ctx context.Context, w model.World) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO world (id, turn, phase, seed, updated_at)
		 VALUES (1, $1, $2, $3::NUMERIC, now())
		 ON CONFLICT (id) DO UPDATE
		 SET turn = EXCLUDED.turn, phase = EXCLUDED.phase, seed = EXCLUDED.seed, updated_at = now()`,
		w.Turn, string(w.Phase), strconv.FormatUint(w.Seed, 10),
	)
	return err
}

func (s *PostgresStore) LoadWorld(ctx context.Context) (model.World, error) {
	return loadWorld(ctx, s.pool, "")
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadWorld(ctx context.Context, q querier, suffix string) (model.World, error) {
	var (
		w     model.World
		phase string
		seedS string
	)
	err := q.QueryRow(ctx, `SELECT turn, phase, seed::TEXT FROM world WHERE id = 1`+suffix).
		Scan(&w.Turn, &phase, &seedS)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.World{}, fmt.Errorf("world: %w", ErrNotFound)
	}
	if err != nil {
		return model.World{}, fmt.Errorf("load world: %w", err)
	}
	w.Phase = model.EconomicPhase(phase)
	w.Seed, err = strconv.ParseUint(seedS, 10, 64)
	if err != nil {
		return model.World{}, fmt.Errorf("load world: seed %q: %w", seedS, err)
	}
	return w, nil
}

const upsertCompanySQL = `INSERT INTO companies (id, name, capital, bankrupt, updated_turn, state)
	 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6)
	 ON CONFLICT (id) DO UPDATE
	 SET name = EXCLUDED.name, capital = EXCLUDED.capital, bankrupt = EXCLUDED.bankrupt,
	     updated_turn = EXCLUDED.updated_turn, state = EXCLUDED.state`

func companyArgs(c *model.CompanyState) ([]any, error) {
	state, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode company %s: %w", c.ID, err)
	}
	return []any{c.ID, c.Name, c.Capital().String(), c.Bankrupt, c.UpdatedTurn, state}, nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.CompanyState) error {
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertCompanySQL, args...)
	return err
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.CompanyState, error) {
	var state []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM companies WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get company %s: %w", id, err)
	}
	var c model.CompanyState
	if err := json.Unmarshal(state, &c); err != nil {
		return nil, fmt.Errorf("decode company %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]*model.CompanyState, error) {
	rows, err := s.pool.Query(ctx, `SELECT state FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []*model.CompanyState
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var c model.CompanyState
		if err := json.Unmarshal(state, &c); err != nil {
			return nil, fmt.Errorf("decode company: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

const upsertDecisionSQL = `INSERT INTO decisions (company_id, turn, submitted_at, body)
	 VALUES ($1, $2, $3, $4)
	 ON CONFLICT (company_id, turn) DO UPDATE
	 SET submitted_at = EXCLUDED.submitted_at, body = EXCLUDED.body`

func (s *PostgresStore) SaveDecision(ctx context.Context, d model.Decision) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	_, err = s.pool.Exec(ctx, upsertDecisionSQL, d.CompanyID, d.Turn, d.SubmittedAt, body)
	return err
}

func (s *PostgresStore) PendingDecisions(ctx context.Context, turn int) (map[string]model.Decision, error) {
	rows, err := s.pool.Query(ctx, `SELECT company_id, body FROM decisions WHERE turn = $1`, turn)
	if err != nil {
		return nil, fmt.Errorf("pending decisions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Decision)
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var d model.Decision
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, fmt.Errorf("decode decision %s/%d: %w", id, turn, err)
		}
		out[id] = d
	}
	return out, rows.Err()
}

// CommitTurn writes the whole turn in one transaction. The world row is
// locked first, so concurrent commits of the same turn serialise and the
// loser sees ErrTurnConflict.
func (s *PostgresStore) CommitTurn(ctx context.Context, c *TurnCommit) error {
	markets, err := json.Marshal(c.Markets)
	if err != nil {
		return fmt.Errorf("encode markets: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		w, err := loadWorld(ctx, tx, " FOR UPDATE")
		if err != nil {
			return err
		}
		if c.Turn != w.Turn+1 || c.World.Turn != c.Turn {
			return fmt.Errorf("%w: commit for turn %d, last finalized %d", ErrTurnConflict, c.Turn, w.Turn)
		}

		batch := &pgx.Batch{}
		batch.Queue(`UPDATE world SET turn = $1, phase = $2, seed = $3::NUMERIC, updated_at = now() WHERE id = 1`,
			c.World.Turn, string(c.World.Phase), strconv.FormatUint(c.World.Seed, 10))
		batch.Queue(`INSERT INTO turns (turn, phase, finalized_at, markets) VALUES ($1, $2, $3, $4)`,
			c.Turn, string(w.Phase), c.FinalizedAt, markets)

		for _, co := range c.Companies {
			args, err := companyArgs(co)
			if err != nil {
				return err
			}
			batch.Queue(upsertCompanySQL, args...)
		}
		for _, r := range c.Results {
			body, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode result %s: %w", r.CompanyID, err)
			}
			batch.Queue(`INSERT INTO turn_results (turn, company_id, ending_capital, bankrupt, result)
				 VALUES ($1, $2, $3::NUMERIC, $4, $5)`,
				c.Turn, r.CompanyID, r.EndingCapital.String(), r.Bankrupt, body)
		}
		for _, e := range c.Events {
			payload, err := json.Marshal(e.Payload)
			if err != nil {
				return fmt.Errorf("encode event %s: %w", e.ID, err)
			}
			var company *string
			if e.CompanyID != "" {
				company = &e.CompanyID
			}
			batch.Queue(`INSERT INTO turn_events (id, turn, company_id, type, payload) VALUES ($1, $2, $3, $4, $5)`,
				e.ID, c.Turn, company, string(e.Type), payload)
		}
		for _, d := range c.Decisions {
			body, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("encode decision %s: %w", d.CompanyID, err)
			}
			batch.Queue(upsertDecisionSQL, d.CompanyID, d.Turn, d.SubmittedAt, body)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("commit turn %d: %w", c.Turn, err)
		}
		return nil
	})
}

func (s *PostgresStore) TurnResults(ctx context.Context, turn int) ([]model.TurnResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM turn_results WHERE turn = $1 ORDER BY company_id`, turn)
	if err != nil {
		return nil, fmt.Errorf("turn results %d: %w", turn, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *PostgresStore) CompanyHistory(ctx context.Context, companyID string) ([]model.TurnResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM turn_results WHERE company_id = $1 ORDER BY turn`, companyID)
	if err != nil {
		return nil, fmt.Errorf("company history %s: %w", companyID, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *PostgresStore) TurnEvents(ctx context.Context, turn int) ([]events.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, turn, COALESCE(company_id, ''), type, payload
		 FROM turn_events WHERE turn = $1`, turn)
	if err != nil {
		return nil, fmt.Errorf("turn events %d: %w", turn, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e       events.Event
			typ     string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Turn, &e.CompanyID, &typ, &payload); err != nil {
			return nil, err
		}
		e.Type = events.Type(typ)
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	events.Sort(out)
	return out, nil
}

func (s *PostgresStore) TurnMarkets(ctx context.Context, turn int) ([]model.MarketCondition, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT markets FROM turns WHERE turn = $1`, turn).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("turn markets %d: %w", turn, err)
	}
	var out []model.MarketCondition
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode markets %d: %w", turn, err)
	}
	return out, nil
}

// pgxRows is the subset of pgx.Rows the scanners need.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanResults(rows pgxRows) ([]model.TurnResult, error) {
	var out []model.TurnResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r model.TurnResult
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
