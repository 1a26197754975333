package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/snapshot"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// SnapshotResult reports an export or import.
type SnapshotResult struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Events    int    `json:"events"`
	Imported  int    `json:"imported,omitempty"`
	Digest    string `json:"digest"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a session's log to a snapshot file",
		Long: `Write a session's raw log as a compressed, checksummed snapshot.
The same log always produces the same bytes.

Example:
  condense export s1 -o s1.cnds`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "snapshot file to write (required)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(opts *ExportOptions, sessionID string, cmd *cobra.Command) error {
	ctx := context.Background()

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	log, err := e.store.ReadLog(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}
	if log.Len() == 0 {
		return e.formatter.Fail(ExitCommandError, ErrCodeBadInput,
			fmt.Sprintf("session %s has no events", sessionID), nil)
	}

	data, err := snapshot.Encode(snapshot.FromLog(sessionID, log))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode snapshot", err)
	}
	if err := os.WriteFile(opts.Output, data, 0644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}
	digest, err := snapshot.Digest(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read digest", err)
	}

	result := SnapshotResult{
		SessionID: sessionID,
		Path:      opts.Output,
		Events:    log.Len(),
		Digest:    digest,
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Exported %d event(s) from %s to %s\n", result.Events, sessionID, opts.Output)
		fmt.Fprintf(w, "  blake3 %s\n", digest)
	})
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Session string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <snapshot-file>",
		Short: "Load a snapshot file into the database",
		Long: `Verify a snapshot and append its events to the database, under the
session recorded in the snapshot or the one given with --session. Events
already stored are skipped, so importing twice is harmless.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "import under this session ID instead")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	snap, err := snapshot.Read(bytes.NewReader(data))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid snapshot", err)
	}
	log, err := snap.Log()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid snapshot", err)
	}
	digest, err := snapshot.Digest(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid snapshot", err)
	}

	sessionID := snap.SessionID
	if opts.Session != "" {
		sessionID = opts.Session
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.store.Append(ctx, sessionID, log.Events()...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to import events", err)
	}

	result := SnapshotResult{
		SessionID: sessionID,
		Path:      path,
		Events:    log.Len(),
		Imported:  n,
		Digest:    digest,
	}
	return e.formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Imported %d of %d event(s) into %s\n", n, result.Events, sessionID)
	})
}
