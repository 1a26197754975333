// Package config loads engine configuration.
//
// Configuration is written in CUE (plain JSON also works, being a subset).
// A user file is unified with the embedded #Config schema, which supplies
// every default, and must come out concrete.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/condense/internal/integrity"
	"github.com/roach88/condense/internal/property"
	"github.com/roach88/condense/internal/view"
)

//go:embed schema.cue
var schemaSource []byte

// Config is the decoded engine configuration.
type Config struct {
	View       ViewConfig       `json:"view"`
	Repair     RepairConfig     `json:"repair"`
	Compaction CompactionConfig `json:"compaction"`
	Compliance ComplianceConfig `json:"compliance"`
}

// ViewConfig tunes the view builder.
type ViewConfig struct {
	MaxIterations int    `json:"max_iterations"`
	LoopRule      string `json:"loop_rule"`
}

// RepairConfig tunes synthetic observations.
type RepairConfig struct {
	Message string `json:"message"`
}

// CompactionConfig tunes the compaction planner.
type CompactionConfig struct {
	MaxEvents int `json:"max_events"`
	KeepFirst int `json:"keep_first"`
}

// ComplianceConfig toggles the live monitor.
type ComplianceConfig struct {
	Enabled bool `json:"enabled"`
}

// Default returns the schema defaults.
func Default() Config {
	return Config{
		View: ViewConfig{
			MaxIterations: view.DefaultMaxIterations,
			LoopRule:      string(property.LoopRuleReasoning),
		},
		Repair:     RepairConfig{Message: integrity.DefaultRepairMessage},
		Compaction: CompactionConfig{MaxEvents: 200, KeepFirst: 1},
		Compliance: ComplianceConfig{Enabled: true},
	}
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, src)
}

// Parse validates src against the schema and decodes it. filename is used
// for error positions only.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	unified := def.Unify(user)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// ViewOptions translates the view section into builder options.
func (c Config) ViewOptions() ([]view.Option, error) {
	rule, err := property.ParseLoopRule(c.View.LoopRule)
	if err != nil {
		return nil, &CompileError{Field: "view.loop_rule", Message: err.Error()}
	}
	return []view.Option{
		view.WithMaxIterations(c.View.MaxIterations),
		view.WithLoopRule(rule),
	}, nil
}

// RepairOptions translates the repair section into repair options.
func (c Config) RepairOptions() []integrity.RepairOption {
	return []integrity.RepairOption{integrity.WithMessage(c.Repair.Message)}
}
