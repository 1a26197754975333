package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/integrity"
	"github.com/roach88/condense/internal/ir"
)

// RepairOptions holds flags for the repair command.
type RepairOptions struct {
	*RootOptions
	DryRun bool
}

// RepairResult reports what repair found and did.
type RepairResult struct {
	SessionID  string                `json:"session_id"`
	DryRun     bool                  `json:"dry_run"`
	Violations []integrity.Violation `json:"violations"`
	Repairs    []ir.WireEvent        `json:"repairs"`
	Persisted  int                   `json:"persisted"`
	Remaining  []integrity.Violation `json:"remaining"`
}

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepairOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repair <session>",
		Short: "Answer unanswered tool calls with synthetic error results",
		Long: `Append a synthetic error result for every tool call in the session that
has none, so the log passes the integrity gate. Orphaned and duplicate
results cannot be repaired and are reported.

Examples:
  condense repair s1
  condense repair s1 --dry-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show the repairs without writing them")

	return cmd
}

func runRepair(opts *RepairOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	result := RepairResult{SessionID: sessionID, DryRun: opts.DryRun}
	if opts.DryRun {
		log, err := e.store.ReadLog(ctx, sessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read log", err)
		}
		repairs := integrity.Repair(log, e.cfg.RepairOptions()...)
		result.Violations = integrity.Validate(log)
		result.Repairs = ir.ToWireAll(repairs)
		result.Remaining = integrity.Validate(log.Append(repairs...))
	} else {
		report, err := e.engine.Resume(ctx, sessionID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to repair session", err)
		}
		result.Violations = report.Violations
		result.Repairs = ir.ToWireAll(report.Repairs)
		result.Persisted = report.Persisted
		result.Remaining = report.Remaining
	}

	if len(result.Remaining) > 0 {
		return e.formatter.Fail(ExitFailure, ErrCodeUnrepaired,
			fmt.Sprintf("%d violation(s) cannot be repaired", len(result.Remaining)), result)
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		verb := "Repaired"
		if opts.DryRun {
			verb = "Would repair"
		}
		if len(result.Repairs) == 0 {
			fmt.Fprintf(w, "✓ %s: nothing to repair\n", sessionID)
			return
		}
		fmt.Fprintf(w, "%s %d call(s) in %s\n", verb, len(result.Repairs), sessionID)
		for _, r := range result.Repairs {
			fmt.Fprintf(w, "  + %s -> %s\n", r.CallID, r.ID)
		}
	})
}
