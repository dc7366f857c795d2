package harness

import (
	"github.com/roach88/caseconf/internal/engine"
)

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index    int    `json:"index"`
	Op       string `json:"op"`
	Variable string `json:"variable"`
	Error    string `json:"error,omitempty"`
	Pass     bool   `json:"pass"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as declared and every
	// expectation held.
	Pass bool `json:"pass"`

	// SessionID identifies the session in the journal, if one was used.
	SessionID string `json:"session_id"`

	Steps []StepResult `json:"steps"`

	// Errors describes every failed step and expectation.
	Errors []string `json:"errors,omitempty"`

	// Final is the session snapshot after the last step.
	Final []engine.VariableState `json:"final"`

	// Warnings are the no-valid-option warnings recorded during the run.
	Warnings []engine.NoValidOptionWarning `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Variable returns the final state of name.
func (r *Result) Variable(name string) (engine.VariableState, bool) {
	for _, vs := range r.Final {
		if vs.Name == name {
			return vs, true
		}
	}
	return engine.VariableState{}, false
}
