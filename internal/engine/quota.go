package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the number of recomputations one cascade may run.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts recomputation steps within a single cascade.
//
// Cascades terminate on their own when validity and derivation functions
// are deterministic: a node that recomputes to an unchanged state does not
// notify its observers. The quota only trips when a derivation function
// returns different options for the same inputs.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps steps.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the limit is passed.
func (q *QuotaEnforcer) Check(origin string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{Origin: origin, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Current returns the number of steps counted so far.
func (q *QuotaEnforcer) Current() int { return q.current }

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int { return q.maxSteps }

// StepsExceededError aborts a cascade that ran past the step quota.
// Variables already recomputed keep their new state; each of them is
// individually consistent.
type StepsExceededError struct {
	Origin string
	Steps  int
	Limit  int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("cascade from %s exceeded max steps: %d steps > %d limit", e.Origin, e.Steps, e.Limit)
}

// IsStepsExceeded reports whether err is a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
