package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

func company(id string) *model.CompanyState {
	return &model.CompanyState{
		ID:             id,
		Name:           id + " mutual",
		HomeState:      "TX",
		Cash:           decimal.NewFromInt(1_000_000),
		Authorizations: map[string]int{"TX": 0},
		Staff:          map[model.Role]int{model.RoleCFO: 70},
	}
}

func TestMemoryStore_CompaniesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := company("acme")
	require.NoError(t, s.UpsertCompany(ctx, c))

	c.Staff[model.RoleCFO] = 1
	got, err := s.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 70, got.Staff[model.RoleCFO])

	got.Authorizations["FL"] = 3
	again, err := s.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, again.Authorized("FL"))

	_, err = s.GetCompany(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListCompaniesOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"zeta", "acme", "mid"} {
		require.NoError(t, s.UpsertCompany(ctx, company(id)))
	}
	cs, err := s.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, "acme", cs[0].ID)
	assert.Equal(t, "zeta", cs[2].ID)
}

func TestMemoryStore_DecisionLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertCompany(ctx, company("acme")))

	first := model.Decision{CompanyID: "acme", Turn: 1, RateFilings: []string{"TX"}}
	second := model.Decision{CompanyID: "acme", Turn: 1, Expansions: []string{"LA"}}
	require.NoError(t, s.SaveDecision(ctx, first))
	require.NoError(t, s.SaveDecision(ctx, second))

	pending, err := s.PendingDecisions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"LA"}, pending["acme"].Expansions)

	err = s.SaveDecision(ctx, model.Decision{CompanyID: "ghost", Turn: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CommitTurn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.LoadWorld(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.InitWorld(ctx, model.World{Turn: 0, Phase: model.PhaseExpansion, Seed: 7}))
	require.NoError(t, s.UpsertCompany(ctx, company("acme")))

	updated := company("acme")
	updated.Cash = decimal.NewFromInt(1_250_000)
	updated.UpdatedTurn = 1
	commit := &TurnCommit{
		Turn:        1,
		World:       model.World{Turn: 1, Phase: model.PhasePeak, Seed: 7},
		Companies:   []*model.CompanyState{updated},
		Results:     []model.TurnResult{{CompanyID: "acme", Turn: 1, EndingCapital: updated.Capital()}},
		Markets:     []model.MarketCondition{{Key: model.MarketKey{State: "TX", Line: "auto"}, Turn: 1}},
		Events:      []events.Event{{ID: "e1", Type: events.TypeAudit, Turn: 1, CompanyID: "acme"}},
		FinalizedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CommitTurn(ctx, commit))

	w, err := s.LoadWorld(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Turn)
	assert.Equal(t, model.PhasePeak, w.Phase)

	got, err := s.GetCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "1250000", got.Cash.String())

	results, err := s.TurnResults(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	evs, err := s.TurnEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, evs, 1)
	markets, err := s.TurnMarkets(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, markets, 1)

	// Replaying the same turn, or skipping ahead, is a conflict.
	assert.ErrorIs(t, s.CommitTurn(ctx, commit), ErrTurnConflict)
	skip := *commit
	skip.Turn, skip.World.Turn = 3, 3
	assert.ErrorIs(t, s.CommitTurn(ctx, &skip), ErrTurnConflict)
}

func TestMemoryStore_CompanyHistoryInTurnOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InitWorld(ctx, model.World{}))
	for turn := 1; turn <= 3; turn++ {
		require.NoError(t, s.CommitTurn(ctx, &TurnCommit{
			Turn:    turn,
			World:   model.World{Turn: turn},
			Results: []model.TurnResult{{CompanyID: "acme", Turn: turn}, {CompanyID: "other", Turn: turn}},
		}))
	}
	hist, err := s.CompanyHistory(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, r := range hist {
		assert.Equal(t, i+1, r.Turn)
		assert.Equal(t, "acme", r.CompanyID)
	}
}
