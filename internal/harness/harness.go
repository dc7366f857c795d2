package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/roach88/caseconf/internal/compiler"
	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// Journal is where a runner records sessions and their changes.
// store.Store implements it.
type Journal interface {
	engine.Journal
	WriteSession(ctx context.Context, rec ir.SessionRecord) error
}

// Runner executes scenarios, each against a fresh session.
type Runner struct {
	fs      afero.Fs
	logger  *slog.Logger
	journal Journal
	idGen   engine.IDGenerator
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFs sets the filesystem rule files are read from. Default: the OS.
func WithFs(fs afero.Fs) RunnerOption {
	return func(r *Runner) { r.fs = fs }
}

// WithLogger sets the logger handed to the compiler and the session.
// Default: discard.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithJournal records every session and committed change to j.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// WithIDGenerator sets the session ID source.
func WithIDGenerator(g engine.IDGenerator) RunnerOption {
	return func(r *Runner) { r.idGen = g }
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		fs:     afero.NewOsFs(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		idGen:  engine.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a scenario with a default runner.
func Run(scenario *Scenario) (*Result, error) {
	return NewRunner().Run(context.Background(), scenario)
}

// Run loads the scenario's rules, builds a session, applies every step and
// checks the expectations.
//
// The returned error covers problems that prevent the scenario from running
// at all: unreadable or invalid rules, or a journal failure. Step and
// expectation failures are reported in the Result.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	rs, err := compiler.NewLoader(r.fs, r.logger).Load(scenario.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	opts := []engine.SessionOption{
		engine.WithLogger(r.logger.With("scenario", scenario.Name)),
		engine.WithIDGenerator(r.idGen),
	}
	if r.journal != nil {
		opts = append(opts, engine.WithJournal(r.journal))
	}
	s := engine.NewSession(opts...)
	if err := s.Load(rs); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if r.journal != nil {
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
		if err := r.journal.WriteSession(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to journal session: %w", err)
		}
	}

	if err := s.Build(); err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	result := NewResult()
	result.SessionID = s.ID()
	for i, step := range scenario.Steps {
		result.Steps = append(result.Steps, r.runStep(s, i, step, result))
	}

	result.Final = s.Snapshot()
	result.Warnings = s.Warnings()
	for _, msg := range CheckExpect(result, scenario.Expect) {
		result.AddError(msg)
	}

	r.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"session", result.SessionID,
		"pass", result.Pass,
		"failures", len(result.Errors))
	return result, nil
}

func (r *Runner) runStep(s *engine.Session, index int, step Step, result *Result) StepResult {
	op, name := step.Op()
	err := applyStep(s, step)

	sr := StepResult{Index: index, Op: op, Variable: name, Pass: true}
	if err != nil {
		sr.Error = err.Error()
	}

	switch {
	case step.ExpectError == "" && err != nil:
		sr.Pass = false
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", index, step, err))
	case step.ExpectError != "" && err == nil:
		sr.Pass = false
		result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got none", index, step, step.ExpectError))
	case step.ExpectError != "" && !matchesClass(err, step.ExpectError):
		sr.Pass = false
		result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got: %v", index, step, step.ExpectError, err))
	}
	return sr
}

func applyStep(s *engine.Session, step Step) error {
	op, name := step.Op()
	switch op {
	case OpSet:
		vs, err := s.Variable(name)
		if err != nil {
			return err
		}
		return s.SetValue(name, ir.ParseValue(step.Value, vs.Kind == ir.VarMulti))
	case OpUnset:
		return s.Clear(name)
	case OpToggle:
		return s.ToggleMember(name, step.Member)
	case OpOptions:
		return s.SetOptions(name, step.Values, step.Tooltips)
	}
	return fmt.Errorf("step has no operation")
}

func matchesClass(err error, class string) bool {
	switch class {
	case ErrClassNotFound:
		return engine.IsNotFound(err)
	case ErrClassInvalidValue:
		return engine.IsInvalidValue(err)
	case ErrClassConfiguration:
		return engine.IsConfiguration(err)
	}
	return false
}
