package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/harness"
	"github.com/roach88/caseconf/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string

	// IDGenerator overrides session IDs (for testing). Default: UUIDv7.
	IDGenerator engine.IDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string   `json:"name"`
	File      string   `json:"file"`
	Pass      bool     `json:"pass"`
	SessionID string   `json:"session_id,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml|dir>...",
		Short: "Run scenarios against their rule sets",
		Long: `Run YAML scenarios. Each scenario loads its rule set into a fresh
session, applies its steps and checks its expectations. Directories are
searched recursively for .yaml and .yml files.

With --journal every session and committed change is appended to a SQLite
journal that "caseconf trace" can read back.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, journal not writable, etc.)

Examples:
  caseconf run ./scenarios
  caseconf run ./scenarios/hist.yaml --journal ./trace.db
  caseconf run ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "append sessions and changes to this SQLite journal")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	files, err := findScenarioFiles(paths)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}

	runnerOpts := []harness.RunnerOption{harness.WithLogger(logger)}
	if opts.IDGenerator != nil {
		runnerOpts = append(runnerOpts, harness.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Journal != "" {
		st, err := store.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, harness.WithJournal(st))
	}
	runner := harness.NewRunner(runnerOpts...)

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(ctx, runner, file, formatter)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.IsJSON() {
		if result.Failed > 0 {
			if err := formatter.Failure(ErrCodeScenario, fmt.Sprintf("%d scenario(s) failed", result.Failed), result); err != nil {
				return err
			}
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles expands directories into their YAML files. Explicit
// files are kept as given. The result is sorted.
func findScenarioFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path not found: %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(filepath.Join(p, "**", "*.{yaml,yml}"))
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", p, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// runScenario executes a single scenario and reports it in text mode.
func runScenario(ctx context.Context, runner *harness.Runner, file string, formatter *OutputFormatter) ScenarioResult {
	fail := func(name string, errs ...string) ScenarioResult {
		if !formatter.IsJSON() {
			formatter.Printf("[red]✗[reset] %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(formatter.Writer, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, File: file, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := runner.Run(ctx, scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}
	formatter.VerboseLog("%s final state:\n%s", scenario.Name, harness.RenderState(result.Final))

	if !result.Pass {
		sr := fail(scenario.Name, result.Errors...)
		sr.SessionID = result.SessionID
		return sr
	}
	if !formatter.IsJSON() {
		formatter.Printf("[green]✓[reset] %s\n", scenario.Name)
	}
	return ScenarioResult{Name: scenario.Name, File: file, Pass: true, SessionID: result.SessionID}
}
