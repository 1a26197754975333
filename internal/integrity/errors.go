package integrity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/condense/internal/ir"
)

// IntegrityError is returned by Verify when a log fails validation. It
// carries the full violation list.
type IntegrityError struct {
	Violations []Violation
}

// Error lists every violation with its call-id.
func (e *IntegrityError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("log integrity: %d violation(s): %s", len(e.Violations), strings.Join(lines, "; "))
}

// CallIDs returns the distinct call-ids involved, in violation order.
func (e *IntegrityError) CallIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range e.Violations {
		if !seen[v.CallID] {
			seen[v.CallID] = true
			out = append(out, v.CallID)
		}
	}
	return out
}

// Repairable reports whether every violation is an orphan action, which
// Repair can close.
func (e *IntegrityError) Repairable() bool {
	for _, v := range e.Violations {
		if v.Code != CodeOrphanAction {
			return false
		}
	}
	return true
}

// IsIntegrityError reports whether err wraps an *IntegrityError.
// Uses errors.As to handle wrapped errors.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// Verify returns an *IntegrityError if log has any violation, and nil
// otherwise. Callers must not send a model request built from a log that
// fails Verify.
func Verify(log ir.Log) error {
	violations := Validate(log)
	if len(violations) == 0 {
		return nil
	}
	return &IntegrityError{Violations: violations}
}
