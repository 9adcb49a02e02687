// Package api provides the HTTP handlers for submitting decisions,
// registering companies, triggering turns and querying turn history.
//
// All monetary values use shopspring/decimal; never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/metrics"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/store"
	"github.com/cellis212/insurance-manager-sub000/internal/turn"
)

// Service exposes the store and the turn runner over HTTP.
type Service struct {
	store  store.Store
	runner *turn.Runner
	bundle *config.Bundle
	now    func() time.Time
}

// NewService creates a new API service.
// Pass nil for runner if manual turn triggering is not wanted.
func NewService(st store.Store, runner *turn.Runner, bundle *config.Bundle) *Service {
	return &Service{
		store:  st,
		runner: runner,
		bundle: bundle,
		now:    time.Now,
	}
}

// Routes mounts the handlers on r, which is expected to sit under /api/v1.
func (s *Service) Routes(r chi.Router) {
	// Companies.
	r.Get("/companies", s.ListCompanies)
	r.Post("/companies", s.CreateCompany)
	r.Get("/companies/{companyID}", s.GetCompany)
	r.Get("/companies/{companyID}/results", s.GetCompanyHistory)

	// Decisions for the pending turn.
	r.Post("/decisions", s.SubmitDecision)

	// Turns.
	r.Get("/world", s.GetWorld)
	r.Post("/turns", s.RunTurn)
	r.Get("/turns/{turn}/results", s.GetTurnResults)
	r.Get("/turns/{turn}/events", s.GetTurnEvents)
	r.Get("/turns/{turn}/markets", s.GetTurnMarkets)
}

// --- Request/Response types ---

// CreateCompanyRequest is the JSON body for company registration.
type CreateCompanyRequest struct {
	ID        string          `json:"id"` // empty → generated
	Name      string          `json:"name"`
	HomeState string          `json:"home_state"`
	Cash      decimal.Decimal `json:"cash"` // starting capital, held as cash
}

// SubmitResponse is returned when a decision is accepted.
type SubmitResponse struct {
	CompanyID   string    `json:"company_id"`
	Turn        int       `json:"turn"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TurnSummary is returned from a manual turn run.
type TurnSummary struct {
	Turn         int                 `json:"turn"`
	Status       turn.Status         `json:"status"`
	Phase        model.EconomicPhase `json:"phase"`
	NextPhase    model.EconomicPhase `json:"next_phase"`
	Results      int                 `json:"results"`
	Events       int                 `json:"events"`
	Catastrophes int                 `json:"catastrophes"`
	Failures     []turn.Failure      `json:"failures"`
}

// --- HTTP Handlers ---

// CreateCompany handles POST /api/v1/companies
func (s *Service) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if _, ok := s.bundle.State(req.HomeState); !ok {
		writeError(w, "unknown home_state: "+req.HomeState, http.StatusBadRequest)
		return
	}
	if !req.Cash.IsPositive() {
		writeError(w, "cash must be positive", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	ctx := r.Context()
	if _, err := s.store.GetCompany(ctx, req.ID); err == nil {
		writeError(w, "company already exists: "+req.ID, http.StatusConflict)
		return
	}
	w0, err := s.world(r)
	if err != nil {
		writeError(w, "failed to load world", http.StatusInternalServerError)
		return
	}

	c := &model.CompanyState{
		ID:             req.ID,
		Name:           req.Name,
		HomeState:      req.HomeState,
		FoundedTurn:    w0.Turn,
		Cash:           req.Cash,
		Portfolio:      model.Portfolio{Value: decimal.Zero},
		AnnualPremium:  decimal.Zero,
		Authorizations: map[string]int{req.HomeState: w0.Turn},
		Staff:          map[model.Role]int{},
		CEO:            map[string]int{},
		UpdatedTurn:    w0.Turn,
	}
	if err := s.store.UpsertCompany(ctx, c); err != nil {
		writeError(w, "failed to create company", http.StatusInternalServerError)
		return
	}

	slog.Info("company created",
		"id", c.ID,
		"home_state", c.HomeState,
		"cash", c.Cash.String(),
	)

	writeJSON(w, http.StatusCreated, c)
}

// ListCompanies handles GET /api/v1/companies
func (s *Service) ListCompanies(w http.ResponseWriter, r *http.Request) {
	cs, err := s.store.ListCompanies(r.Context())
	if err != nil {
		writeError(w, "failed to list companies", http.StatusInternalServerError)
		return
	}
	if cs == nil {
		cs = []*model.CompanyState{}
	}
	writeJSON(w, http.StatusOK, cs)
}

// GetCompany handles GET /api/v1/companies/{companyID}
func (s *Service) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCompany(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		s.storeError(w, err, "company not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetCompanyHistory handles GET /api/v1/companies/{companyID}/results
func (s *Service) GetCompanyHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "companyID")
	ctx := r.Context()
	if _, err := s.store.GetCompany(ctx, id); err != nil {
		s.storeError(w, err, "company not found")
		return
	}
	hist, err := s.store.CompanyHistory(ctx, id)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if hist == nil {
		hist = []model.TurnResult{}
	}
	writeJSON(w, http.StatusOK, hist)
}

// SubmitDecision handles POST /api/v1/decisions
// Decisions are accepted for the pending turn only. A later submission for
// the same company replaces the earlier one.
func (s *Service) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	var d model.Decision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if d.CompanyID == "" {
		writeError(w, "company_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	w0, err := s.world(r)
	if err != nil {
		writeError(w, "failed to load world", http.StatusInternalServerError)
		return
	}
	pending := w0.Turn + 1
	if d.Turn == 0 {
		d.Turn = pending
	}
	if d.Turn != pending {
		writeError(w, "decisions are accepted for turn "+strconv.Itoa(pending)+" only", http.StatusConflict)
		return
	}

	c, err := s.store.GetCompany(ctx, d.CompanyID)
	if err != nil {
		s.storeError(w, err, "company not found")
		return
	}
	if c.Bankrupt {
		writeError(w, "company is bankrupt", http.StatusConflict)
		return
	}
	if err := turn.ValidateDecision(s.bundle, c, d, pending); err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	d.SubmittedAt = s.now().UTC()
	if err := s.store.SaveDecision(ctx, d); err != nil {
		s.storeError(w, err, "company not found")
		return
	}
	metrics.DecisionsSubmitted.Inc()

	slog.Info("decision submitted",
		"company", d.CompanyID,
		"turn", d.Turn,
		"pricing", len(d.Pricing),
		"launches", len(d.Launches),
		"expansions", len(d.Expansions),
	)

	writeJSON(w, http.StatusAccepted, SubmitResponse{CompanyID: d.CompanyID, Turn: d.Turn, SubmittedAt: d.SubmittedAt})
}

// GetWorld handles GET /api/v1/world
func (s *Service) GetWorld(w http.ResponseWriter, r *http.Request) {
	w0, err := s.world(r)
	if err != nil {
		writeError(w, "failed to load world", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, w0)
}

// RunTurn handles POST /api/v1/turns
// Resolves the pending turn immediately instead of waiting for the schedule.
func (s *Service) RunTurn(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, "manual turns are disabled", http.StatusNotImplemented)
		return
	}
	out, err := s.runner.RunNext(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrTurnConflict):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, turn.ErrTimeout):
		writeError(w, err.Error(), http.StatusGatewayTimeout)
		return
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	failures := out.Failures
	if failures == nil {
		failures = []turn.Failure{}
	}
	writeJSON(w, http.StatusOK, TurnSummary{
		Turn:         out.Turn,
		Status:       out.Status,
		Phase:        out.Phase,
		NextPhase:    out.NextPhase,
		Results:      len(out.Results),
		Events:       len(out.Events),
		Catastrophes: len(out.Catastrophes),
		Failures:     failures,
	})
}

// GetTurnResults handles GET /api/v1/turns/{turn}/results
func (s *Service) GetTurnResults(w http.ResponseWriter, r *http.Request) {
	n, ok := turnParam(w, r)
	if !ok {
		return
	}
	rs, err := s.store.TurnResults(r.Context(), n)
	if err != nil {
		writeError(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	if rs == nil {
		rs = []model.TurnResult{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// GetTurnEvents handles GET /api/v1/turns/{turn}/events
// Optionally filtered by ?type=<event type>.
func (s *Service) GetTurnEvents(w http.ResponseWriter, r *http.Request) {
	n, ok := turnParam(w, r)
	if !ok {
		return
	}
	evs, err := s.store.TurnEvents(r.Context(), n)
	if err != nil {
		writeError(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		var filtered []events.Event
		for _, e := range evs {
			if string(e.Type) == typ {
				filtered = append(filtered, e)
			}
		}
		evs = filtered
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// GetTurnMarkets handles GET /api/v1/turns/{turn}/markets
func (s *Service) GetTurnMarkets(w http.ResponseWriter, r *http.Request) {
	n, ok := turnParam(w, r)
	if !ok {
		return
	}
	ms, err := s.store.TurnMarkets(r.Context(), n)
	if err != nil {
		writeError(w, "failed to load markets", http.StatusInternalServerError)
		return
	}
	if ms == nil {
		ms = []model.MarketCondition{}
	}
	writeJSON(w, http.StatusOK, ms)
}

// world returns the persisted world, or turn zero before the first run.
func (s *Service) world(r *http.Request) (model.World, error) {
	w, err := s.store.LoadWorld(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		return model.World{}, nil
	}
	return w, err
}

func (s *Service) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, notFound, http.StatusNotFound)
		return
	}
	slog.Error("store error", "err", err)
	writeError(w, "internal error", http.StatusInternalServerError)
}

func turnParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "turn"))
	if err != nil || n < 1 {
		writeError(w, "turn must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
