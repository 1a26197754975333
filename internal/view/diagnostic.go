package view

import (
	"context"
	"log/slog"
)

// Level grades a Diagnostic.
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Diagnostic reports a non-fatal condition met while building a view.
type Diagnostic struct {
	Level      Level
	Message    string
	Iterations int
	Evicted    []string
	Remaining  int
}

// Sink receives diagnostics. Build calls it synchronously.
type Sink func(Diagnostic)

// SlogSink adapts a slog.Logger into a Sink.
func SlogSink(logger *slog.Logger) Sink {
	return func(d Diagnostic) {
		level := slog.LevelInfo
		if d.Level == LevelWarn {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, d.Message,
			"iterations", d.Iterations,
			"evicted", len(d.Evicted),
			"remaining", d.Remaining,
		)
	}
}
