package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/engine"
	"github.com/roach88/condense/internal/format"
	"github.com/roach88/condense/internal/ir"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	OpenAI bool
}

// ViewResult is the JSON form of a view.
type ViewResult struct {
	SessionID         string         `json:"session_id"`
	Events            []ir.WireEvent `json:"events"`
	Boundaries        []int          `json:"boundaries"`
	UnresolvedRequest bool           `json:"unresolved_request"`
	Iterations        int            `json:"iterations"`
	Converged         bool           `json:"converged"`
	Evicted           []string       `json:"evicted"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <session>",
		Short: "Show the view the next model call would see",
		Long: `Build the view of a session: forgotten events dropped, the newest
summary spliced in, and atomicity properties enforced. Boundaries are the
positions where the view may be cut or extended safely.

The log must pass the integrity gate first; run "repair" if it does not.

Examples:
  condense view s1
  condense view s1 --openai`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.OpenAI, "openai", false, "print the view as OpenAI chat messages")

	return cmd
}

func runView(opts *ViewOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	v, err := e.engine.PrepareTurn(ctx, sessionID)
	if engine.IsCorruptLogError(err) {
		return e.formatter.Fail(ExitFailure, ErrCodeCorruptLog, err.Error(), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build view", err)
	}

	if opts.OpenAI {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(format.OpenAI(v))
	}

	result := ViewResult{
		SessionID:         sessionID,
		Events:            ir.ToWireAll(v.Events),
		Boundaries:        v.Boundaries.Members(),
		UnresolvedRequest: v.UnresolvedRequest,
		Iterations:        v.Iterations,
		Converged:         v.Converged,
		Evicted:           v.Evicted,
	}
	if result.Evicted == nil {
		result.Evicted = []string{}
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "View of %s: %d event(s), boundaries %s\n", sessionID, v.Len(), v.Boundaries)
		for i, ev := range v.Events {
			fmt.Fprintf(w, "  [%d] %-20s %s\n", i, ev.Kind(), ir.IDOf(ev))
		}
		if v.UnresolvedRequest {
			fmt.Fprintln(w, "  compaction requested")
		}
		if !v.Converged {
			fmt.Fprintf(w, "  ! did not converge after %d iteration(s)\n", v.Iterations)
		}
	})
}
