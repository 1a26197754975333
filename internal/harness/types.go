package harness

// Trace is everything a scenario run observed, stage by stage.
type Trace struct {
	Session string `json:"session"`

	// Violations are the integrity violations found before repair.
	Violations []TraceViolation `json:"violations"`

	// Repairs are the call-ids that received a synthetic observation.
	Repairs []string `json:"repairs"`

	// Remaining are the violation codes repair could not fix.
	Remaining []string `json:"remaining"`

	// Monitor are the live compliance violations, in arrival order.
	Monitor []TraceViolation `json:"monitor"`

	// Blocked is true when the pre-turn gate refused the session. The
	// view fields are empty in that case.
	Blocked bool `json:"blocked"`

	View              []string `json:"view"`
	Boundaries        []int    `json:"boundaries"`
	UnresolvedRequest bool     `json:"unresolved_request"`
	Converged         bool     `json:"converged"`
	Iterations        int      `json:"iterations"`
	Roles             []string `json:"roles"`
}

// TraceViolation is the comparable part of a violation.
type TraceViolation struct {
	Code    string `json:"code"`
	CallID  string `json:"call_id,omitempty"`
	EventID string `json:"event_id"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Trace records what each stage produced.
	Trace Trace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass: true,
		Trace: Trace{
			Violations: []TraceViolation{},
			Repairs:    []string{},
			Remaining:  []string{},
			Monitor:    []TraceViolation{},
			View:       []string{},
			Boundaries: []int{},
			Roles:      []string{},
		},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// canonicalMap converts the trace into the shapes ir.MarshalCanonical
// accepts.
func (t *Trace) canonicalMap() map[string]any {
	boundaries := make([]any, len(t.Boundaries))
	for i, b := range t.Boundaries {
		boundaries[i] = b
	}
	return map[string]any{
		"session":            t.Session,
		"violations":         violationList(t.Violations),
		"repairs":            t.Repairs,
		"remaining":          t.Remaining,
		"monitor":            violationList(t.Monitor),
		"blocked":            t.Blocked,
		"view":               t.View,
		"boundaries":         boundaries,
		"unresolved_request": t.UnresolvedRequest,
		"converged":          t.Converged,
		"iterations":         t.Iterations,
		"roles":              t.Roles,
	}
}

func violationList(vs []TraceViolation) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		m := map[string]any{
			"code":     v.Code,
			"event_id": v.EventID,
		}
		if v.CallID != "" {
			m["call_id"] = v.CallID
		}
		out[i] = m
	}
	return out
}
