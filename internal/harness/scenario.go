package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/condense/internal/clock"
	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/property"
)

// Scenario defines a conformance test scenario: a raw log to ingest and
// the assertions its outcome must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is an optional fixed session ID.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// LoopRule selects the tool-loop predicate. Empty means reasoning.
	LoopRule string `yaml:"loop_rule,omitempty"`

	// MaxIterations overrides the fixed-point cap when positive.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// Events are appended to the session in order.
	Events []EventStep `yaml:"events"`

	// Assertions validate the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one raw log event in scenario form. Fields that do not apply
// to the kind are left out.
type EventStep struct {
	Kind          string   `yaml:"kind"`
	ID            string   `yaml:"id"`
	Source        string   `yaml:"source,omitempty"`
	Role          string   `yaml:"role,omitempty"`
	Content       string   `yaml:"content,omitempty"`
	CallID        string   `yaml:"call_id,omitempty"`
	ResponseID    string   `yaml:"response_id,omitempty"`
	ActionID      string   `yaml:"action_id,omitempty"`
	ToolName      string   `yaml:"tool_name,omitempty"`
	Arguments     string   `yaml:"arguments,omitempty"` // raw JSON
	Reasoning     string   `yaml:"reasoning,omitempty"`
	Reason        string   `yaml:"reason,omitempty"`
	Forgotten     []string `yaml:"forgotten,omitempty"`
	Summary       *string  `yaml:"summary,omitempty"`
	SummaryOffset *int     `yaml:"summary_offset,omitempty"`
}

// Assertion validates one aspect of the trace.
type Assertion struct {
	// Type selects the assertion; see the Assert* constants.
	Type string `yaml:"type"`

	// Codes are expected violation codes, in order (violations, monitor).
	Codes []string `yaml:"codes,omitempty"`

	// CallIDs are expected call-ids, in order (violations, repairs).
	CallIDs []string `yaml:"call_ids,omitempty"`

	// IDs are the expected view event IDs (view).
	IDs []string `yaml:"ids,omitempty"`

	// Members are the expected Boundary Set members (boundaries).
	Members []int `yaml:"members,omitempty"`

	// Roles are the expected chat roles (messages).
	Roles []string `yaml:"roles,omitempty"`

	// Value is the expected flag (blocked, unresolved_request, converged).
	Value *bool `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertViolations        = "violations"
	AssertRepairs           = "repairs"
	AssertMonitor           = "monitor"
	AssertBlocked           = "blocked"
	AssertView              = "view"
	AssertBoundaries        = "boundaries"
	AssertUnresolvedRequest = "unresolved_request"
	AssertConverged         = "converged"
	AssertMessages          = "messages"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// DiscoverScenarios returns the scenario files in dir, sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("discover scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	slices.Sort(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := property.ParseLoopRule(s.LoopRule); err != nil {
		return fmt.Errorf("loop_rule: %w", err)
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}

	for i, step := range s.Events {
		if step.Kind == "" {
			return fmt.Errorf("events[%d]: kind is required", i)
		}
		if step.ID == "" {
			return fmt.Errorf("events[%d]: id is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertViolations:
		if a.Codes == nil && a.CallIDs == nil {
			return fmt.Errorf("assertions[%d]: codes or call_ids is required for violations", index)
		}
	case AssertMonitor:
		if a.Codes == nil {
			return fmt.Errorf("assertions[%d]: codes is required for monitor", index)
		}
	case AssertRepairs:
		if a.CallIDs == nil {
			return fmt.Errorf("assertions[%d]: call_ids is required for repairs", index)
		}
	case AssertView:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for view", index)
		}
	case AssertBoundaries:
		if a.Members == nil {
			return fmt.Errorf("assertions[%d]: members is required for boundaries", index)
		}
	case AssertMessages:
		if a.Roles == nil {
			return fmt.Errorf("assertions[%d]: roles is required for messages", index)
		}
	case AssertBlocked, AssertUnresolvedRequest, AssertConverged:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// Build turns the scenario's steps into events, stamping each with the next
// reading of clk.
func (s *Scenario) Build(clk clock.Clock) ([]ir.Event, error) {
	events := make([]ir.Event, 0, len(s.Events))
	for i, step := range s.Events {
		e, err := step.event(clk)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (step EventStep) event(clk clock.Clock) (ir.Event, error) {
	w := ir.WireEvent{
		Kind:          ir.EventKind(step.Kind),
		ID:            step.ID,
		Timestamp:     clk.Now(),
		Source:        ir.Source(step.Source),
		Role:          ir.Role(step.Role),
		Content:       step.Content,
		CallID:        step.CallID,
		ResponseID:    step.ResponseID,
		ActionID:      step.ActionID,
		ToolName:      step.ToolName,
		Reasoning:     step.Reasoning,
		Reason:        step.Reason,
		Forgotten:     step.Forgotten,
		Summary:       step.Summary,
		SummaryOffset: step.SummaryOffset,
	}
	if step.Arguments != "" {
		if !json.Valid([]byte(step.Arguments)) {
			return nil, fmt.Errorf("arguments is not valid JSON")
		}
		w.Arguments = json.RawMessage(step.Arguments)
	}
	return ir.FromWire(w)
}
