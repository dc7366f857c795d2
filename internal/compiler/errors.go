package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/hcl/v2"
)

// CompileError represents a compilation error with source position.
// CUE sources set Pos; HCL sources set Range.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Range   *hcl.Range
}

func (e *CompileError) Error() string {
	switch {
	case e.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	case e.Range != nil:
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Range.Filename, e.Range.Start.Line, e.Range.Start.Column,
			e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// formatHCLDiagnostics turns the first error diagnostic into a
// CompileError carrying its source range.
func formatHCLDiagnostics(diags hcl.Diagnostics) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg = d.Summary + ": " + d.Detail
		}
		return &CompileError{Field: "hcl", Message: msg, Range: d.Subject}
	}
	return nil
}
