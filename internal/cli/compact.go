package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/compact"
	"github.com/roach88/condense/internal/engine"
	"github.com/roach88/condense/internal/ir"
)

// CompactOptions holds flags for the compact command.
type CompactOptions struct {
	*RootOptions
	Summary string
	Force   bool
}

// CompactResult reports the committed compaction, if any.
type CompactResult struct {
	SessionID  string        `json:"session_id"`
	Compacted  bool          `json:"compacted"`
	Compaction *ir.WireEvent `json:"compaction,omitempty"`
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compact <session>",
		Short: "Forget the oldest part of a session's view",
		Long: `Commit a compaction when the session's view is over the configured
event budget or a compaction was requested. The span forgotten starts at
the first boundary after compaction.keep_first and ends at the first
boundary past the middle of the view, so no call, batch or tool loop is
split.

Examples:
  condense compact s1
  condense compact s1 --force --summary "user set up the project"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Summary, "summary", "", "summary text that replaces the forgotten span")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "request a compaction even when under budget")

	return cmd
}

func runCompact(opts *CompactOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.Force {
		e.engine.RequestCompaction(sessionID, "manual")
		e.engine.Stop()
		if err := e.engine.Run(ctx); err != nil {
			return WrapExitError(ExitCommandError, "engine stopped", err)
		}
	}

	planner := &compact.Planner{
		KeepFirst: e.cfg.Compaction.KeepFirst,
		MaxEvents: e.cfg.Compaction.MaxEvents,
	}
	if opts.Summary != "" {
		planner.Summarizer = compact.Static(opts.Summary)
	}

	c, err := e.engine.Compact(ctx, sessionID, planner)
	if engine.IsCorruptLogError(err) {
		return e.formatter.Fail(ExitFailure, ErrCodeCorruptLog, err.Error(), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compact", err)
	}

	result := CompactResult{SessionID: sessionID, Compacted: c != nil}
	if c != nil {
		w := ir.ToWire(*c)
		result.Compaction = &w
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		if c == nil {
			fmt.Fprintf(w, "%s: nothing to compact\n", sessionID)
			return
		}
		fmt.Fprintf(w, "Compacted %s: forgot %d event(s) as %s\n", sessionID, len(c.Forgotten), c.ID)
		if c.HasSummary() {
			fmt.Fprintf(w, "  summary at position %d\n", *c.SummaryOffset)
		}
	})
}
