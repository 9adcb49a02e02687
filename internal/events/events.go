// Package events defines the typed events a turn emits and the sinks that
// deliver them once the turn has been committed.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// Type names an event kind.
type Type string

const (
	TypeCatastrophe       Type = "catastrophe_occurred"
	TypeBankruptcy        Type = "company_bankrupt"
	TypeAudit             Type = "audit_triggered"
	TypeLiquidation       Type = "liquidation_occurred"
	TypeExpansionApproved Type = "expansion_approved"
	TypeExpansionDenied   Type = "expansion_denied"
)

// namespace scopes the name-based event IDs.
var namespace = uuid.MustParse("6f1c1e0a-3b0d-4c55-9a1e-0f6a2f3c8d11")

// Event is one immutable record published after a turn is finalized.
// Payload holds the type-specific body; after a round trip through storage
// it decodes as a generic JSON value.
type Event struct {
	ID        string `json:"id" msgpack:"id"`
	Type      Type   `json:"type" msgpack:"type"`
	Turn      int    `json:"turn" msgpack:"turn"`
	CompanyID string `json:"company_id,omitempty" msgpack:"company_id,omitempty"`
	Payload   any    `json:"payload" msgpack:"payload"`
}

// ID derives a deterministic event ID, so re-running a turn with the same
// seed reproduces the same IDs. discriminator separates events of the same
// type for the same company within one turn.
func ID(seed uint64, turn int, t Type, companyID, discriminator string) string {
	name := fmt.Sprintf("%d/%d/%s/%s/%s", seed, turn, t, companyID, discriminator)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// Sort orders events deterministically: turn-wide events first, then by
// company, type and ID.
func Sort(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}

// Sink receives the events of one committed turn.
type Sink interface {
	Publish(ctx context.Context, turn int, evs []Event) error
}

// Fanout publishes to every sink and joins their errors. One failing sink
// does not stop delivery to the others.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, turn int, evs []Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, turn, evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one structured log line per event.
type LogSink struct {
	Logger *slog.Logger
}

// Publish implements Sink.
func (l LogSink) Publish(_ context.Context, turn int, evs []Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range evs {
		logger.Info("turn event",
			"turn", turn,
			"id", e.ID,
			"type", string(e.Type),
			"company", e.CompanyID,
		)
	}
	return nil
}
