package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario drives one session through a sequence of writes and checks the
// state it settles in.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the rule file or directory to load. Relative paths are
	// resolved against the scenario file's directory.
	Rules string `yaml:"rules"`

	// Steps run in order. A failing step is recorded and the run continues.
	Steps []Step `yaml:"steps"`

	// Expect is checked against the final state.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step is one operation against the session. Exactly one of Set, Unset,
// Toggle and Options names the target variable.
type Step struct {
	Set     string `yaml:"set,omitempty"`
	Unset   string `yaml:"unset,omitempty"`
	Toggle  string `yaml:"toggle,omitempty"`
	Options string `yaml:"options,omitempty"`

	// Value is written by set. Set variables accept "(a, b)" or "a%b".
	Value string `yaml:"value,omitempty"`

	// Member is flipped by toggle.
	Member string `yaml:"member,omitempty"`

	// Values and Tooltips replace the option list for options.
	Values   []string `yaml:"values,omitempty"`
	Tooltips []string `yaml:"tooltips,omitempty"`

	// ExpectError, when set, requires the step to fail with that error class.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpSet     = "set"
	OpUnset   = "unset"
	OpToggle  = "toggle"
	OpOptions = "options"
)

// Error classes for Step.ExpectError.
const (
	ErrClassNotFound      = "not_found"
	ErrClassInvalidValue  = "invalid_value"
	ErrClassConfiguration = "configuration"
)

// Op returns the step's operation and target variable.
func (s Step) Op() (op, variable string) {
	switch {
	case s.Set != "":
		return OpSet, s.Set
	case s.Unset != "":
		return OpUnset, s.Unset
	case s.Toggle != "":
		return OpToggle, s.Toggle
	case s.Options != "":
		return OpOptions, s.Options
	}
	return "", ""
}

func (s Step) String() string {
	op, name := s.Op()
	switch op {
	case OpSet:
		return fmt.Sprintf("set %s=%s", name, s.Value)
	case OpToggle:
		return fmt.Sprintf("toggle %s %s", name, s.Member)
	case OpOptions:
		return fmt.Sprintf("options %s %v", name, s.Values)
	}
	return fmt.Sprintf("%s %s", op, name)
}

// Expect lists conditions on the final state. Every map is keyed by
// variable name.
type Expect struct {
	// Values holds display values: "" for unset, "()" for the empty set,
	// "(a, b)" for sets.
	Values map[string]string `yaml:"values,omitempty"`

	// Valid is the exact list of currently valid options.
	Valid map[string][]string `yaml:"valid,omitempty"`

	// Invalid lists options that must be present and invalid.
	Invalid map[string][]string `yaml:"invalid,omitempty"`

	// Messages maps option to its expected validity message.
	Messages map[string]map[string]string `yaml:"messages,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the rules path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rules == "" {
		return fmt.Errorf("rules is required")
	}
	if _, err := os.Stat(s.Rules); err != nil {
		return fmt.Errorf("rules not found: %s", s.Rules)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	targets := 0
	for _, t := range []string{step.Set, step.Unset, step.Toggle, step.Options} {
		if t != "" {
			targets++
		}
	}
	if targets != 1 {
		return fmt.Errorf("exactly one of set, unset, toggle or options is required")
	}

	op, _ := step.Op()
	if op == OpToggle && step.Member == "" {
		return fmt.Errorf("toggle needs a member")
	}
	if op != OpSet && step.Value != "" {
		return fmt.Errorf("value is only valid with set")
	}
	if op != OpOptions && (step.Values != nil || step.Tooltips != nil) {
		return fmt.Errorf("values and tooltips are only valid with options")
	}

	switch step.ExpectError {
	case "", ErrClassNotFound, ErrClassInvalidValue, ErrClassConfiguration:
		return nil
	default:
		return fmt.Errorf("unknown expect_error %q", step.ExpectError)
	}
}
