package harness

import (
	"github.com/roach88/querydeck/internal/ir"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int64  `json:"seq"`
	Op  string `json:"op"`

	// Outcome is "ok" or the error code the step failed with.
	Outcome string `json:"outcome"`

	// Result is the step's observable result; nil for failed steps.
	Result ir.IRValue `json:"result,omitempty"`
}

// Outcome of a successful step.
const OutcomeOK = "ok"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(op, outcome string, result ir.IRValue, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Op:      op,
		Outcome: outcome,
		Result:  result,
	})
}
