package validate

import (
	"fmt"
	"strings"
)

// Violation pinpoints one broken invariant: the offending field, the
// rule it broke, and the value that was observed.
type Violation struct {
	Field  string `json:"field"`
	Rule   string `json:"rule"`
	Value  string `json:"value"`
	Detail string `json:"detail"`
}

// String renders the violation for CLI and log output.
func (v Violation) String() string {
	if v.Field == "" {
		return v.Detail
	}
	return fmt.Sprintf("%s: %s (rule %s, got %q)", v.Field, v.Detail, v.Rule, v.Value)
}

// Result is the outcome of validating one descriptor. An empty
// violation list means every invariant held. Violation order is
// deterministic for a given descriptor.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Valid reports whether the descriptor passed.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Merge appends another result's violations.
func (r Result) Merge(other Result) Result {
	r.Violations = append(r.Violations, other.Violations...)
	return r
}

// Err returns the result as an error, or nil when valid. Invalid
// descriptors are rejected where they enter the system; nothing past
// that boundary sees them.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Result: r}
}

// Error carries an invalid Result across an error-returning boundary.
type Error struct {
	Result Result
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		msgs = append(msgs, v.String())
	}
	return "descriptor invalid: " + strings.Join(msgs, "; ")
}
