package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/roach88/caseconf/internal/compiler"
	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
	"github.com/roach88/caseconf/internal/store"
)

// Error codes for CLI responses. Rule-set validation uses the compiler's
// E1xx codes.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No rule files found
	ErrCodeCompileFailed = "E004" // CUE or HCL did not compile
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeJournal       = "E007" // Journal open/read/write error
	ErrCodeInvalidRules  = "E100" // Rule set failed static validation
	ErrCodeConfiguration = "E200" // Session setup rejected the rule set
	ErrCodeRejectedWrite = "E300" // A --set write was rejected
	ErrCodeScenario      = "E400" // One or more scenarios failed
)

// LoadError represents an error that occurred while loading rules.
type LoadError struct {
	Code    string
	Message string

	// Details holds every validation problem for ErrCodeInvalidRules.
	Details []compiler.ValidationError
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ExitCode is ExitCommandError for missing inputs and ExitFailure for rule
// sets that were found but are broken.
func (e *LoadError) ExitCode() int {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		return ExitCommandError
	}
	return ExitFailure
}

// LoadRules compiles and validates the rule file or directory at path.
func LoadRules(path string, logger *slog.Logger) (*ir.RuleSet, error) {
	return loadRulesFs(afero.NewOsFs(), path, logger)
}

func loadRulesFs(fsys afero.Fs, path string, logger *slog.Logger) (*ir.RuleSet, error) {
	loader := compiler.NewLoader(fsys, logger)

	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules: %v", err), Err: err}
	}
	if info.IsDir() {
		files, err := loader.Discover(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no .cue or .hcl files found in %s", path)}
		}
	}

	rs, err := loader.Load(path)
	if err == nil {
		return rs, nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		var details []compiler.ValidationError
		for _, e := range merr.Errors {
			var ve compiler.ValidationError
			if errors.As(e, &ve) {
				details = append(details, ve)
			}
		}
		if len(details) > 0 {
			return nil, &LoadError{
				Code:    ErrCodeInvalidRules,
				Message: fmt.Sprintf("rule set has %d problem(s)", len(details)),
				Details: details,
				Err:     err,
			}
		}
	}

	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return nil, &LoadError{Code: ErrCodeCompileFailed, Message: ce.Error(), Err: err}
	}
	return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err}
}

// BuildSession loads rs into a new session and builds it. With a journal
// the session record is written before Build so the initial options are
// journaled too.
func BuildSession(ctx context.Context, rs *ir.RuleSet, logger *slog.Logger, journal *store.Store) (*engine.Session, error) {
	opts := []engine.SessionOption{engine.WithLogger(logger)}
	if journal != nil {
		opts = append(opts, engine.WithJournal(journal))
	}
	s := engine.NewSession(opts...)
	if err := s.Load(rs); err != nil {
		return nil, &LoadError{Code: ErrCodeConfiguration, Message: err.Error(), Err: err}
	}

	if journal != nil {
		hash, err := ir.RuleSetHash(rs)
		if err != nil {
			return nil, err
		}
		rec := ir.SessionRecord{
			ID:            s.ID(),
			RulesName:     rs.Name,
			RulesHash:     hash,
			StartedSeq:    s.Seq(),
			EngineVersion: ir.EngineVersion,
			IRVersion:     ir.IRVersion,
		}
		if err := journal.WriteSession(ctx, rec); err != nil {
			return nil, &LoadError{Code: ErrCodeJournal, Message: fmt.Sprintf("failed to journal session: %v", err), Err: err}
		}
	}

	if err := s.Build(); err != nil {
		return nil, &LoadError{Code: ErrCodeConfiguration, Message: err.Error(), Err: err}
	}
	return s, nil
}

// configurationProblems splits an aggregated setup error into one line per
// problem.
func configurationProblems(err error) []string {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]string, len(merr.Errors))
		for i, e := range merr.Errors {
			out[i] = e.Error()
		}
		return out
	}
	return []string{err.Error()}
}

// outputLoadError reports a LoadError and returns the matching exit error.
func outputLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if !errors.As(err, &le) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeGeneric, err)
	}
	if le.Code == ErrCodeInvalidRules {
		return outputValidationErrors(f, le)
	}
	if le.Code == ErrCodeConfiguration {
		problems := configurationProblems(le.Err)
		if f.IsJSON() {
			_ = f.Error(le.Code, "session setup failed", problems)
		} else {
			_ = f.Error(le.Code, "session setup failed", nil)
			for _, p := range problems {
				fmt.Fprintf(f.Writer, "  %s\n", p)
			}
		}
		return NewExitError(le.ExitCode(), le.Error())
	}
	_ = f.Error(le.Code, le.Message, nil)
	return NewExitError(le.ExitCode(), le.Error())
}
