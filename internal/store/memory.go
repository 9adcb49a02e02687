package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	world     *model.World
	companies map[string]*model.CompanyState
	decisions map[int]map[string]model.Decision // turn → company → decision
	results   map[int][]model.TurnResult
	events    map[int][]events.Event
	markets   map[int][]model.MarketCondition
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[string]*model.CompanyState),
		decisions: make(map[int]map[string]model.Decision),
		results:   make(map[int][]model.TurnResult),
		events:    make(map[int][]events.Event),
		markets:   make(map[int][]model.MarketCondition),
	}
}

func (s *MemoryStore) InitWorld(_ context.Context, w model.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := w
	s.world = &copy
	return nil
}

func (s *MemoryStore) LoadWorld(_ context.Context) (model.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.world == nil {
		return model.World{}, fmt.Errorf("world: %w", ErrNotFound)
	}
	return *s.world, nil
}

func (s *MemoryStore) UpsertCompany(_ context.Context, c *model.CompanyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.companies[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) GetCompany(_ context.Context, id string) (*model.CompanyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[id]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) ListCompanies(_ context.Context) ([]*model.CompanyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.CompanyState, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SaveDecision(_ context.Context, d model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[d.CompanyID]; !ok {
		return fmt.Errorf("company %s: %w", d.CompanyID, ErrNotFound)
	}
	byCompany, ok := s.decisions[d.Turn]
	if !ok {
		byCompany = make(map[string]model.Decision)
		s.decisions[d.Turn] = byCompany
	}
	byCompany[d.CompanyID] = d
	return nil
}

func (s *MemoryStore) PendingDecisions(_ context.Context, turn int) (map[string]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Decision, len(s.decisions[turn]))
	for id, d := range s.decisions[turn] {
		out[id] = d
	}
	return out, nil
}

func (s *MemoryStore) CommitTurn(_ context.Context, c *TurnCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := 0
	if s.world != nil {
		last = s.world.Turn
	}
	if c.Turn != last+1 || c.World.Turn != c.Turn {
		return fmt.Errorf("%w: commit for turn %d, last finalized %d", ErrTurnConflict, c.Turn, last)
	}

	// Everything below is infallible, so the commit is all-or-nothing.
	world := c.World
	s.world = &world
	for _, co := range c.Companies {
		s.companies[co.ID] = co.Clone()
	}
	s.results[c.Turn] = append([]model.TurnResult(nil), c.Results...)
	s.events[c.Turn] = append([]events.Event(nil), c.Events...)
	s.markets[c.Turn] = append([]model.MarketCondition(nil), c.Markets...)
	applied := make(map[string]model.Decision, len(c.Decisions))
	for _, d := range c.Decisions {
		applied[d.CompanyID] = d
	}
	s.decisions[c.Turn] = applied
	return nil
}

func (s *MemoryStore) TurnResults(_ context.Context, turn int) ([]model.TurnResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.TurnResult(nil), s.results[turn]...), nil
}

func (s *MemoryStore) CompanyHistory(_ context.Context, companyID string) ([]model.TurnResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := make([]int, 0, len(s.results))
	for t := range s.results {
		turns = append(turns, t)
	}
	sort.Ints(turns)

	var out []model.TurnResult
	for _, t := range turns {
		for _, r := range s.results[t] {
			if r.CompanyID == companyID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) TurnEvents(_ context.Context, turn int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]events.Event(nil), s.events[turn]...), nil
}

func (s *MemoryStore) TurnMarkets(_ context.Context, turn int) ([]model.MarketCondition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.MarketCondition(nil), s.markets[turn]...), nil
}
