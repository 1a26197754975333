package integrity

import (
	"github.com/roach88/condense/internal/clock"
	"github.com/roach88/condense/internal/ir"
)

// DefaultRepairMessage is the content of a synthetic observation.
const DefaultRepairMessage = "Tool execution was interrupted before a result was recorded. The call may or may not have taken effect."

type repairConfig struct {
	clock   clock.Clock
	message string
}

// RepairOption configures Repair.
type RepairOption func(*repairConfig)

// WithClock sets the clock used to timestamp synthetic observations.
func WithClock(c clock.Clock) RepairOption {
	return func(cfg *repairConfig) {
		cfg.clock = c
	}
}

// WithMessage sets the content of synthetic observations.
func WithMessage(msg string) RepairOption {
	return func(cfg *repairConfig) {
		if msg != "" {
			cfg.message = msg
		}
	}
}

// Repair returns one synthetic ErrorObservation per orphan action in log, in
// log order. The input is never modified; the caller persists the result.
//
// Each repair has a content-addressed ID, so repairing the same log twice
// yields identical IDs, and Repair(log.Append(Repair(log)...)) is empty.
func Repair(log ir.Log, opts ...RepairOption) []ir.Event {
	cfg := repairConfig{clock: clock.Real(), message: DefaultRepairMessage}
	for _, opt := range opts {
		opt(&cfg)
	}

	orphans := orphanActions(log)
	out := make([]ir.Event, 0, len(orphans))
	for _, a := range orphans {
		out = append(out, ir.ErrorObservation{
			Meta: ir.Meta{
				ID:        ir.RepairEventID(a.CallID, a.ID),
				Timestamp: cfg.clock.Now(),
				Source:    ir.SourceEnvironment,
			},
			CallID:   a.CallID,
			ActionID: a.ID,
			Content:  cfg.message,
		})
	}
	return out
}
