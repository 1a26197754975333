package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/condense/internal/config"
	"github.com/roach88/condense/internal/engine"
	"github.com/roach88/condense/internal/store"
	"github.com/roach88/condense/internal/view"
)

// env is what a command needs to work on the store: the loaded config, an
// open store and an engine wired from both.
type env struct {
	cfg       config.Config
	store     *store.Store
	engine    *engine.Engine
	logger    *slog.Logger
	formatter *OutputFormatter
}

// openEnv loads the config and opens the database. Failures are command
// errors. The caller closes the env.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	viewOpts, err := cfg.ViewOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	formatter.VerboseLog("opening database %s", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	builder := view.NewBuilder(append(viewOpts, view.WithSink(view.SlogSink(logger)))...)
	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithViewBuilder(builder),
		engine.WithRepairOptions(cfg.RepairOptions()...),
		engine.WithCompliance(cfg.Compliance.Enabled),
	)

	return &env{
		cfg:       cfg,
		store:     st,
		engine:    eng,
		logger:    logger,
		formatter: formatter,
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger logs warnings and above to w, or everything with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
