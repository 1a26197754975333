package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/compliance"
)

// MonitorResult reports a monitor replay.
type MonitorResult struct {
	SessionID  string                 `json:"session_id"`
	Events     int                    `json:"events"`
	Violations []compliance.Violation `json:"violations"`
	Pending    []string               `json:"pending"`
	Completed  []string               `json:"completed"`
}

// NewMonitorCommand creates the monitor command.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor <session>",
		Short: "Replay a session through the compliance monitor",
		Long: `Feed a session's stored events, in order, through a fresh compliance
monitor and report every contract violation it sees: messages interleaved
with pending calls, duplicate results and results for unknown calls.

Unlike "validate", order matters here: a result is checked against the
calls seen before it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runMonitor(opts *RootOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	log, err := e.store.ReadLog(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	reg := prometheus.NewRegistry()
	mon := compliance.New(
		compliance.WithLogger(e.logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
		compliance.WithSession(sessionID),
	)
	for _, ev := range log.All() {
		mon.Process(ev)
	}

	result := MonitorResult{
		SessionID:  sessionID,
		Events:     log.Len(),
		Violations: append([]compliance.Violation{}, mon.Violations()...),
		Pending:    append([]string{}, slices.Sorted(maps.Keys(mon.Pending()))...),
		Completed:  append([]string{}, mon.Completed()...),
	}

	if len(result.Violations) > 0 {
		return e.formatter.Fail(ExitFailure, ErrCodeViolations,
			fmt.Sprintf("%d compliance violation(s) in %s", len(result.Violations), sessionID), result)
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d event(s), %d call(s) completed, %d pending\n",
			sessionID, result.Events, len(result.Completed), len(result.Pending))
	})
}
