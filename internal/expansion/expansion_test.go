package expansion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestWaitingWeeks(t *testing.T) {
	r := NewResolver(config.Default())
	tests := []struct {
		state string
		want  int
	}{
		{"TX", 1}, // home
		{"LA", 3}, // light
		{"PA", 4}, // standard
		{"FL", 6}, // strict
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, r.WaitingWeeks(tt.state, "TX"))
		})
	}
}

func TestWaitingWeeks_Floor(t *testing.T) {
	b := config.Default()
	b.Expansion.LightAdjustment = -10
	assert.Equal(t, b.Expansion.MinWeeks, NewResolver(b).WaitingWeeks("LA", "TX"))
}

func TestResolve_LightStateGrantedAfterThreeTurns(t *testing.T) {
	r := NewResolver(config.Default())
	const n = 10
	pending := []model.PendingExpansion{{State: "NV", SubmittedTurn: n, Fee: d(150_000)}}
	in := Input{CompanyID: "acme", HomeState: "CA", Pending: pending, Capital: d(5_000_000), MinimumCapital: d(1_000_000)}

	for turn := n; turn < n+3; turn++ {
		in.Turn = turn
		out := r.Resolve(in)
		assert.Empty(t, out.Resolved, "turn %d", turn)
		assert.Equal(t, pending, out.Pending)
	}

	in.Turn = n + 3
	out := r.Resolve(in)
	require.Len(t, out.Resolved, 1)
	assert.True(t, out.Resolved[0].Approved)
	assert.True(t, out.Resolved[0].Refund.IsZero())
	assert.True(t, out.Refunds.IsZero())
	assert.Empty(t, out.Pending)
}

func TestResolve_DeniedWithRefundWhenCapitalFalls(t *testing.T) {
	r := NewResolver(config.Default())
	in := Input{
		CompanyID:      "acme",
		Turn:           8,
		HomeState:      "TX",
		Pending:        []model.PendingExpansion{{State: "OR", SubmittedTurn: 4, Fee: d(200_000)}, {State: "FL", SubmittedTurn: 4, Fee: d(400_000)}},
		Capital:        d(900_000),
		MinimumCapital: d(1_000_000),
	}
	out := r.Resolve(in)
	require.Len(t, out.Resolved, 1)
	assert.False(t, out.Resolved[0].Approved)
	assert.Equal(t, "OR", out.Resolved[0].State)
	assert.Equal(t, "200000", out.Refunds.String())
	require.Len(t, out.Pending, 1)
	assert.Equal(t, "FL", out.Pending[0].State)
}

func TestResolve_BankruptDenied(t *testing.T) {
	r := NewResolver(config.Default())
	out := r.Resolve(Input{
		Turn: 5, HomeState: "TX", Bankrupt: true,
		Pending: []model.PendingExpansion{{State: "TX", SubmittedTurn: 4, Fee: d(150_000)}},
		Capital: d(10_000_000), MinimumCapital: d(1_000_000),
	})
	require.Len(t, out.Resolved, 1)
	assert.False(t, out.Resolved[0].Approved)
	assert.Equal(t, "company bankrupt", out.Resolved[0].Reason)
}

func TestSubmit(t *testing.T) {
	r := NewResolver(config.Default())
	c := &model.CompanyState{
		ID:                "acme",
		Cash:              d(1_000_000),
		Authorizations:    map[string]int{"TX": 0},
		PendingExpansions: []model.PendingExpansion{{State: "LA", SubmittedTurn: 1}},
	}

	p, err := r.Submit(c, "OK", 2)
	assert.ErrorIs(t, err, ErrUnknownState)

	_, err = r.Submit(c, "TX", 2)
	assert.ErrorIs(t, err, ErrAlreadyEntered)

	_, err = r.Submit(c, "LA", 2)
	assert.ErrorIs(t, err, ErrAlreadyPending)

	p, err = r.Submit(c, "OH", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.SubmittedTurn)
	assert.True(t, p.Fee.Equal(r.Fee("OH")))

	c.Cash = d(10)
	_, err = r.Submit(c, "OH", 2)
	assert.ErrorIs(t, err, ErrInsufficientFee)
}
