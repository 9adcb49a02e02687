package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Values are msgpack.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InitWorld(ctx context.Context, w model.World) error {
	if err := s.primary.InitWorld(ctx, w); err != nil {
		return err
	}
	s.rdb.Del(ctx, worldKey())
	return nil
}

func (s *CachedStore) UpsertCompany(ctx context.Context, c *model.CompanyState) error {
	if err := s.primary.UpsertCompany(ctx, c); err != nil {
		return err
	}
	s.rdb.Del(ctx, companyKey(c.ID), companiesKey())
	return nil
}

func (s *CachedStore) SaveDecision(ctx context.Context, d model.Decision) error {
	return s.primary.SaveDecision(ctx, d)
}

func (s *CachedStore) CommitTurn(ctx context.Context, c *TurnCommit) error {
	if err := s.primary.CommitTurn(ctx, c); err != nil {
		return err
	}
	// Invalidate everything the turn advanced; next reads re-populate.
	keys := []string{worldKey(), companiesKey()}
	for _, co := range c.Companies {
		keys = append(keys, companyKey(co.ID))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LoadWorld(ctx context.Context) (model.World, error) {
	var w model.World
	if s.get(ctx, worldKey(), &w) {
		return w, nil
	}
	w, err := s.primary.LoadWorld(ctx)
	if err != nil {
		return model.World{}, err
	}
	s.set(ctx, worldKey(), w)
	return w, nil
}

func (s *CachedStore) GetCompany(ctx context.Context, id string) (*model.CompanyState, error) {
	var c model.CompanyState
	if s.get(ctx, companyKey(id), &c) {
		return &c, nil
	}
	co, err := s.primary.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, companyKey(id), co)
	return co, nil
}

func (s *CachedStore) ListCompanies(ctx context.Context) ([]*model.CompanyState, error) {
	var cs []*model.CompanyState
	if s.get(ctx, companiesKey(), &cs) {
		return cs, nil
	}
	cs, err := s.primary.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	s.set(ctx, companiesKey(), cs)
	return cs, nil
}

// TurnResults of a finalized turn never change, so they are cached
// without invalidation.
func (s *CachedStore) TurnResults(ctx context.Context, turn int) ([]model.TurnResult, error) {
	var rs []model.TurnResult
	if s.get(ctx, resultsKey(turn), &rs) {
		return rs, nil
	}
	rs, err := s.primary.TurnResults(ctx, turn)
	if err != nil {
		return nil, err
	}
	if len(rs) > 0 {
		s.set(ctx, resultsKey(turn), rs)
	}
	return rs, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) PendingDecisions(ctx context.Context, turn int) (map[string]model.Decision, error) {
	return s.primary.PendingDecisions(ctx, turn)
}

func (s *CachedStore) CompanyHistory(ctx context.Context, companyID string) ([]model.TurnResult, error) {
	return s.primary.CompanyHistory(ctx, companyID)
}

func (s *CachedStore) TurnEvents(ctx context.Context, turn int) ([]events.Event, error) {
	return s.primary.TurnEvents(ctx, turn)
}

func (s *CachedStore) TurnMarkets(ctx context.Context, turn int) ([]model.MarketCondition, error) {
	return s.primary.TurnMarkets(ctx, turn)
}

// --- Cache helpers ---

func (s *CachedStore) get(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return msgpack.Unmarshal(data, v) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	if data, err := msgpack.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func worldKey() string            { return "world" }
func companiesKey() string        { return "companies" }
func companyKey(id string) string { return fmt.Sprintf("company:%s", id) }
func resultsKey(turn int) string  { return fmt.Sprintf("results:%d", turn) }
