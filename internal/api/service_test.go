package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellis212/insurance-manager-sub000/internal/api"
	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/store"
	"github.com/cellis212/insurance-manager-sub000/internal/turn"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := config.Default()
	ms := store.NewMemoryStore()
	engine := turn.NewEngine(b, turn.WithLogger(quiet))
	runner := turn.NewRunner(ms, engine, 99, turn.WithRunnerLogger(quiet))
	svc := api.NewService(ms, runner, b)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return ms, r
}

func seedCompany(t *testing.T, ms *store.MemoryStore, id string) {
	t.Helper()
	c := &model.CompanyState{
		ID:        id,
		Name:      id,
		HomeState: "TX",
		Cash:      d(5_000_000),
		Products: []model.Product{{
			State: "TX", Line: "auto", Tier: model.TierStandard, BasePrice: d(1200), PriceMultiplier: 1,
			ActivePolicies: 800, CumulativeLosses: decimal.Zero, TenureTurns: 2, MarketShare: 0.04,
		}},
		Authorizations: map[string]int{"TX": 0},
		Staff:          map[model.Role]int{model.RoleCFO: 55},
	}
	require.NoError(t, ms.UpsertCompany(context.Background(), c))
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateCompany(t *testing.T) {
	ms, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/companies", api.CreateCompanyRequest{ID: "acme", Name: "Acme Mutual", HomeState: "OH", Cash: d(3_000_000)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	c, err := ms.GetCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.True(t, c.Authorized("OH"))
	assert.Equal(t, "3000000", c.Capital().String())

	w = do(t, router, "POST", "/api/v1/companies", api.CreateCompanyRequest{ID: "acme", Name: "Again", HomeState: "OH", Cash: d(1)})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, "POST", "/api/v1/companies", api.CreateCompanyRequest{Name: "Nowhere", HomeState: "ZZ", Cash: d(1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCompany_NotFound(t *testing.T) {
	_, router := newTestEnv(t)
	w := do(t, router, "GET", "/api/v1/companies/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "company not found", resp["error"])
}

func TestSubmitDecision(t *testing.T) {
	ms, router := newTestEnv(t)
	seedCompany(t, ms, "acme")

	w := do(t, router, "POST", "/api/v1/decisions", model.Decision{
		CompanyID: "acme",
		Pricing:   []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 1.2}},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp api.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Turn)
	assert.False(t, resp.SubmittedAt.IsZero())

	// Last write wins.
	w = do(t, router, "POST", "/api/v1/decisions", model.Decision{
		CompanyID: "acme",
		Pricing:   []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 0.8}},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	pending, err := ms.PendingDecisions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.8, pending["acme"].Pricing[0].Multiplier)
}

func TestSubmitDecision_Rejected(t *testing.T) {
	ms, router := newTestEnv(t)
	seedCompany(t, ms, "acme")

	tests := []struct {
		name string
		body model.Decision
		want int
	}{
		{"missing company", model.Decision{}, http.StatusBadRequest},
		{"unknown company", model.Decision{CompanyID: "ghost"}, http.StatusNotFound},
		{"future turn", model.Decision{CompanyID: "acme", Turn: 5}, http.StatusConflict},
		{"out of band", model.Decision{CompanyID: "acme", Pricing: []model.PriceChange{{State: "TX", Line: "auto", Multiplier: 3}}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/v1/decisions", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRunTurnAndQueries(t *testing.T) {
	ms, router := newTestEnv(t)
	seedCompany(t, ms, "acme")
	seedCompany(t, ms, "beta")

	w := do(t, router, "POST", "/api/v1/turns", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum api.TurnSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Turn)
	assert.Equal(t, turn.StatusFinalized, sum.Status)
	assert.Equal(t, 2, sum.Results)

	w = do(t, router, "GET", "/api/v1/world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var world model.World
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &world))
	assert.Equal(t, 1, world.Turn)
	assert.Equal(t, uint64(99), world.Seed)

	w = do(t, router, "GET", "/api/v1/turns/1/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []model.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "acme", results[0].CompanyID)

	w = do(t, router, "GET", "/api/v1/companies/beta/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist []model.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist, 1)
	assert.Equal(t, 1, hist[0].Turn)

	w = do(t, router, "GET", "/api/v1/turns/1/markets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var markets []model.MarketCondition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &markets))
	assert.NotEmpty(t, markets)

	w = do(t, router, "GET", "/api/v1/turns/1/events?type="+string(events.TypeBankruptcy), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	// Decisions for the finalized turn are now refused.
	w = do(t, router, "POST", "/api/v1/decisions", model.Decision{CompanyID: "acme", Turn: 1})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTurnParam(t *testing.T) {
	_, router := newTestEnv(t)
	for _, path := range []string{"/api/v1/turns/x/results", "/api/v1/turns/0/events"} {
		w := do(t, router, "GET", path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
