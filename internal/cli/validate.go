package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/integrity"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	SessionID  string                `json:"session_id"`
	Events     int                   `json:"events"`
	Valid      bool                  `json:"valid"`
	Violations []integrity.Violation `json:"violations"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <session>",
		Short: "Check a session's log for unmatched tool calls and results",
		Long: `Check that every tool call in a session's stored log has exactly one
result and that no result is orphaned or duplicated.

The log is not modified; see "repair" to fix unanswered calls.

Exit codes:
  0 - The log is well formed
  1 - Violations found
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, sessionID string, cmd *cobra.Command) error {
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
	e.formatter.VerboseLog("read %d event(s) from %s", log.Len(), sessionID)

	violations := integrity.Validate(log)
	result := ValidationResult{
		SessionID:  sessionID,
		Events:     log.Len(),
		Valid:      len(violations) == 0,
		Violations: violations,
	}

	if !result.Valid {
		return e.formatter.Fail(ExitFailure, ErrCodeViolations,
			fmt.Sprintf("%d violation(s) in %s", len(violations), sessionID), result)
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: %d event(s), no violations\n", sessionID, result.Events)
	})
}
