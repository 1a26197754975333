package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/clock"
	"github.com/roach88/condense/internal/compliance"
	"github.com/roach88/condense/internal/engine"
	"github.com/roach88/condense/internal/ir"
)

// IngestResult reports an ingest run.
type IngestResult struct {
	SessionID  string                 `json:"session_id"`
	Read       int                    `json:"read"`
	Appended   int                    `json:"appended"`
	Violations []compliance.Violation `json:"violations"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <session> <events-file>",
		Short: "Append events to a session through the engine",
		Long: `Append wire-format events to a session's log.

The file holds a stream of JSON event objects (one per line is typical);
"-" reads standard input. Events go through the engine's append loop, so
the live compliance monitor sees them in order. Events whose ID is already
stored are skipped. Events without a timestamp are stamped on arrival.

Examples:
  condense ingest s1 events.jsonl
  cat events.jsonl | condense ingest s1 - --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runIngest(opts *RootOptions, sessionID, path string, cmd *cobra.Command) error {
	ctx := context.Background()

	events, err := readEventsFile(path, cmd.InOrStdin(), clock.Real())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	before, err := e.store.CountEvents(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	for _, ev := range events {
		e.engine.Enqueue(engine.Append{SessionID: sessionID, Event: ev})
	}
	e.engine.Stop()
	if err := e.engine.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "engine stopped", err)
	}

	after, err := e.store.CountEvents(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	result := IngestResult{
		SessionID:  sessionID,
		Read:       len(events),
		Appended:   after - before,
		Violations: e.engine.Violations(sessionID),
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Appended %d of %d event(s) to %s\n", result.Appended, result.Read, sessionID)
		for _, v := range result.Violations {
			fmt.Fprintf(w, "  ! %s\n", v)
		}
	})
}

// readEventsFile decodes a stream of wire events from path, or from stdin
// when path is "-".
func readEventsFile(path string, stdin io.Reader, clk clock.Clock) ([]ir.Event, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return decodeEvents(data, clk)
}

func decodeEvents(data []byte, clk clock.Clock) ([]ir.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var events []ir.Event
	for i := 0; ; i++ {
		var w ir.WireEvent
		if err := dec.Decode(&w); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return nil, fmt.Errorf("event[%d]: %w", i, err)
		}
		if w.Timestamp.IsZero() {
			w.Timestamp = clk.Now()
		}
		e, err := ir.FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("event[%d]: %w", i, err)
		}
		events = append(events, e)
	}
}
