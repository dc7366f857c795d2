// Package harness runs YAML scenarios against live sessions.
//
// A scenario names a rule file, applies a list of steps and checks the state
// the session settles in:
//
//	name: hist_needs_cam
//	description: "HIST initialization invalidates the data atmosphere"
//	rules: ../rules/compset.cue
//	steps:
//	  - set: COMP_ATM
//	    value: cam
//	  - set: INITTIME
//	    value: HIST
//	  - set: COMP_ATM
//	    value: datm
//	    expect_error: invalid_value
//	expect:
//	  values: { COMPSET: HIST_CAM60 }
//	  invalid: { COMP_ATM: [datm] }
//
// Steps are one of set, unset, toggle (set variables) or options (replace
// the option list). A step may declare the error class it must fail with:
// not_found, invalid_value or configuration. Failing steps do not stop the
// run; every failure lands in Result.Errors.
//
// Each scenario gets a fresh session. With a journal the session and every
// committed change are recorded; otherwise nothing outlives the run.
//
// The final state renders as a text table (RenderState) that AssertGolden
// compares against testdata/golden/<name>.golden.
package harness
