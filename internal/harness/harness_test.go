package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
			assert.Len(t, result.Steps, len(scenario.Steps))
			AssertGolden(t, scenario.Name, result)
		})
	}
}

func TestRun_StepOutcomes(t *testing.T) {
	result, err := Run(loadTestScenario(t, "compset_hist"))
	require.NoError(t, err)

	require.Len(t, result.Steps, 6)
	assert.Equal(t, StepResult{Index: 0, Op: OpSet, Variable: "COMP_ATM", Pass: true}, result.Steps[0])

	notFound := result.Steps[5]
	assert.True(t, notFound.Pass)
	assert.Contains(t, notFound.Error, `did you mean "COMP_ATM"`)

	badInt := result.Steps[2]
	assert.True(t, badInt.Pass)
	assert.Contains(t, badInt.Error, "not a valid int")
}

func TestRun_ReportsFailures(t *testing.T) {
	scenario := loadTestScenario(t, "suites")
	scenario.Steps = []Step{
		{Set: "MACH", Value: "laptop", ExpectError: ErrClassInvalidValue},
		{Set: "MACH", Value: "cray"},
		{Toggle: "TEST_SUITES", Member: "perf", ExpectError: ErrClassNotFound},
	}
	scenario.Expect = &Expect{
		Values: map[string]string{"MACH": "derecho"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.False(t, result.Steps[0].Pass)
	assert.False(t, result.Steps[1].Pass)
	assert.False(t, result.Steps[2].Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected invalid_value error, got none")
	assert.Contains(t, result.Errors[1], "unexpected error")
	assert.Contains(t, result.Errors[2], "expected not_found error, got: ")
	assert.Equal(t, "values: MACH = laptop, want derecho", result.Errors[3])
}

func TestRun_BadRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/rules/broken.cue", []byte(`variable: A: kind: "weird"`), 0644))

	runner := NewRunner(WithFs(fs))
	_, err := runner.Run(context.Background(), &Scenario{
		Name:  "broken",
		Rules: "/rules/broken.cue",
		Steps: []Step{{Unset: "A"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
}

type memJournal struct {
	sessions []ir.SessionRecord
	changes  []ir.ChangeRecord
}

func (j *memJournal) WriteSession(_ context.Context, rec ir.SessionRecord) error {
	j.sessions = append(j.sessions, rec)
	return nil
}

func (j *memJournal) RecordChange(_ context.Context, rec ir.ChangeRecord) error {
	j.changes = append(j.changes, rec)
	return nil
}

func TestRunner_Journal(t *testing.T) {
	j := &memJournal{}
	runner := NewRunner(
		WithJournal(j),
		WithIDGenerator(engine.NewFixedGenerator("run-1")),
	)

	result, err := runner.Run(context.Background(), loadTestScenario(t, "suites"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.Equal(t, "run-1", result.SessionID)

	require.Len(t, j.sessions, 1)
	assert.Equal(t, "run-1", j.sessions[0].ID)
	assert.Equal(t, "suites", j.sessions[0].RulesName)
	assert.NotEmpty(t, j.sessions[0].RulesHash)
	assert.Equal(t, ir.IRVersion, j.sessions[0].IRVersion)

	require.NotEmpty(t, j.changes)
	for i, c := range j.changes {
		assert.Equal(t, "run-1", c.SessionID)
		if i > 0 {
			assert.Greater(t, c.Seq, j.changes[i-1].Seq)
		}
	}
}
