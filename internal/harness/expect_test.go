package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

func expectFixture() *Result {
	return &Result{
		Pass: true,
		Final: []engine.VariableState{
			{
				Name:  "A",
				Kind:  ir.VarOption,
				Value: ir.Scalar("x"),
				Options: []engine.Option{
					{Value: "x", Valid: true},
					{Value: "w", Valid: false, Message: "w is banned"},
				},
			},
			{
				Name:    "M",
				Kind:    ir.VarMulti,
				Value:   ir.Set("a", "b"),
				Options: []engine.Option{{Value: "a", Valid: true}, {Value: "b", Valid: true}},
			},
		},
	}
}

func TestCheckExpect_Nil(t *testing.T) {
	assert.Empty(t, CheckExpect(expectFixture(), nil))
}

func TestCheckExpect_AllHold(t *testing.T) {
	e := &Expect{
		Values:   map[string]string{"A": "x", "M": "(a, b)"},
		Valid:    map[string][]string{"A": {"x"}, "M": {"a", "b"}},
		Invalid:  map[string][]string{"A": {"w"}},
		Messages: map[string]map[string]string{"A": {"w": "w is banned", "x": ""}},
	}
	assert.Empty(t, CheckExpect(expectFixture(), e))
}

func TestCheckExpect_SetSeparatorForm(t *testing.T) {
	e := &Expect{Values: map[string]string{"M": "a%b"}}
	assert.Empty(t, CheckExpect(expectFixture(), e))
}

func TestCheckExpect_Mismatches(t *testing.T) {
	e := &Expect{
		Values:   map[string]string{"A": "", "Z": "q"},
		Valid:    map[string][]string{"A": {"x", "w"}},
		Invalid:  map[string][]string{"A": {"x", "nope"}},
		Messages: map[string]map[string]string{"A": {"w": "other"}},
	}

	assert.Equal(t, []string{
		"values: A = x, want <unset>",
		"values: variable Z not found",
		"valid: A has [x], want [x, w]",
		`invalid: A option "x" is valid`,
		`invalid: A has no option "nope"`,
		`messages: A option "w" says "w is banned", want "other"`,
	}, CheckExpect(expectFixture(), e))
}
