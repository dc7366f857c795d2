package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/roach88/caseconf/internal/ir"
)

// Sentinel errors for misuse of the session API.
var (
	// ErrNotBuilt is returned by value and option operations on a session
	// whose Build has not completed.
	ErrNotBuilt = errors.New("session is not built")

	// ErrChangePending is returned by BeginChange when the variable already
	// has an uncommitted change.
	ErrChangePending = errors.New("variable already has a change in progress")

	// ErrChangeClosed is returned when a committed or aborted change is
	// used again.
	ErrChangeClosed = errors.New("change already committed or aborted")

	// ErrNotOptioned is returned when an option operation targets a
	// free-form scalar.
	ErrNotOptioned = errors.New("variable has no option list")
)

// NotFoundError reports a lookup of an unregistered variable.
type NotFoundError struct {
	Name string

	// Suggestion is the closest registered name, if one is near enough.
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("variable %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("variable %q not found", e.Name)
}

// InvalidValueError reports a rejected write. The variable keeps its prior
// value.
type InvalidValueError struct {
	Variable string
	Value    ir.Value
	Reason   string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %s for %s: %s", e.Value, e.Variable, e.Reason)
}

// ConfigurationError reports a malformed rule set. It is fatal at setup
// time: Build refuses to produce a session.
type ConfigurationError struct {
	// Subject names the offending variable, assertion or derivation.
	Subject string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %s: %v", e.Subject, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NoValidOptionWarning is recorded when a never_unset variable has options
// but none of them is currently valid. The variable stays unset. It is
// logged and kept in Session.Warnings, never returned to the caller.
type NoValidOptionWarning struct {
	Variable string `json:"variable"`
	Seq      int64  `json:"seq"`
	Options  int    `json:"options"`
}

func (w *NoValidOptionWarning) Error() string {
	return fmt.Sprintf("no valid option for %s among %d options", w.Variable, w.Options)
}

// StaleUpdateIgnored describes a recomputation skipped because the
// triggering variable's change was still in its intent phase. It is only
// ever logged at debug level.
type StaleUpdateIgnored struct {
	Variable string
	Trigger  string
}

func (e *StaleUpdateIgnored) Error() string {
	return fmt.Sprintf("update of %s ignored: change of %s not committed", e.Variable, e.Trigger)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidValue reports whether err is an InvalidValueError.
func IsInvalidValue(err error) bool {
	var iv *InvalidValueError
	return errors.As(err, &iv)
}

// IsConfiguration reports whether err is, or aggregates, a
// ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Suggest returns the candidate closest to name when it is close enough to
// be a plausible typo.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	upper := strings.ToUpper(name)
	for _, c := range candidates {
		d := levenshtein.Distance(upper, strings.ToUpper(c), nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := max(2, len(name)/3)
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}
