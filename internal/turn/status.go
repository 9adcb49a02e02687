package turn

import "fmt"

// Status is the lifecycle position of one turn.
type Status string

const (
	StatusPending     Status = "pending"
	StatusValidating  Status = "validating"
	StatusSimulating  Status = "simulating"
	StatusAggregating Status = "aggregating"
	StatusFinalized   Status = "finalized"
	StatusFailed      Status = "failed"
)

var next = map[Status]Status{
	StatusPending:     StatusValidating,
	StatusValidating:  StatusSimulating,
	StatusSimulating:  StatusAggregating,
	StatusAggregating: StatusFinalized,
}

// lifecycle enforces the forward-only status sequence. Any non-terminal
// status may fail.
type lifecycle struct {
	status Status
}

func (l *lifecycle) advance(to Status) error {
	if l.status == StatusFinalized || l.status == StatusFailed {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, l.status)
	}
	if to != StatusFailed && next[l.status] != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.status, to)
	}
	l.status = to
	return nil
}

// Stage names a step of the per-company pipeline.
type Stage string

const (
	StageValidation  Stage = "validation"
	StageDemand      Stage = "demand"
	StageClaims      Stage = "claims"
	StageInvestment  Stage = "investment"
	StageExpansion   Stage = "expansion"
	StageCompliance  Stage = "compliance"
	StageAggregation Stage = "aggregation"
)
