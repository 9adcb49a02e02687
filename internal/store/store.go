// Package store defines the persistence interface for the turn engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrTurnConflict is returned when a commit is not for the turn after
	// the last finalized one, e.g. because another runner got there first.
	ErrTurnConflict = errors.New("store: turn conflict")
)

// TurnCommit is everything a finalized turn writes. It is applied
// atomically: either all of it is visible or none of it is.
type TurnCommit struct {
	Turn        int                     `json:"turn"`
	World       model.World             `json:"world"` // World.Turn must equal Turn
	Companies   []*model.CompanyState   `json:"companies"`
	Results     []model.TurnResult      `json:"results"`
	Markets     []model.MarketCondition `json:"markets"`
	Decisions   []model.Decision        `json:"decisions"`
	Events      []events.Event          `json:"events"`
	FinalizedAt time.Time               `json:"finalized_at"`
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Semester ---

	// InitWorld creates or resets the semester's world record.
	InitWorld(ctx context.Context, w model.World) error

	// LoadWorld returns the world as of the last finalized turn.
	LoadWorld(ctx context.Context) (model.World, error)

	// --- Companies ---

	// UpsertCompany creates a company or replaces its current state.
	UpsertCompany(ctx context.Context, c *model.CompanyState) error

	// GetCompany retrieves a company's current state.
	GetCompany(ctx context.Context, id string) (*model.CompanyState, error)

	// ListCompanies returns every company, ordered by ID.
	ListCompanies(ctx context.Context) ([]*model.CompanyState, error)

	// --- Decisions ---

	// SaveDecision stores a decision for (company, turn). A later
	// submission for the same pair replaces the earlier one.
	SaveDecision(ctx context.Context, d model.Decision) error

	// PendingDecisions returns the latest decision of each company for turn.
	PendingDecisions(ctx context.Context, turn int) (map[string]model.Decision, error)

	// --- Turns ---

	// CommitTurn atomically writes a finalized turn and advances the world.
	// It returns ErrTurnConflict unless c.Turn is the last turn plus one.
	CommitTurn(ctx context.Context, c *TurnCommit) error

	// TurnResults returns the per-company results of a finalized turn.
	TurnResults(ctx context.Context, turn int) ([]model.TurnResult, error)

	// CompanyHistory returns a company's results in turn order.
	CompanyHistory(ctx context.Context, companyID string) ([]model.TurnResult, error)

	// TurnEvents returns the events emitted by a finalized turn.
	TurnEvents(ctx context.Context, turn int) ([]events.Event, error)

	// TurnMarkets returns the market conditions of a finalized turn.
	TurnMarkets(ctx context.Context, turn int) ([]model.MarketCondition, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
