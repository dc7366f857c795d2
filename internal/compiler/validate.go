package compiler

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Variable errors (E101-E109)
	ErrVariableNameEmpty  = "E101" // variable name is required
	ErrInvalidKind        = "E102" // kind is not scalar, option or multi
	ErrInvalidScalarType  = "E103" // type is not string, int, real or bool
	ErrDuplicateName      = "E104" // duplicate variable or assertion name
	ErrTooManyTooltips    = "E105" // more tooltips than options
	ErrDefaultNotAnOption = "E106" // default is not one of the options
	ErrOptionsOnScalar    = "E107" // free-form scalar declares options

	// Assertion errors (E110-E119)
	ErrAssertionTooFewVars   = "E110" // fewer than two variables
	ErrAssertionDuplicateVar = "E111" // variable named twice
	ErrAssertionNoClauses    = "E112" // no clauses
	ErrClauseArity           = "E113" // pattern count differs from variable count
	ErrClauseKind            = "E114" // kind is not accept or reject
	ErrClausePattern         = "E115" // pattern is not a valid regular expression
	ErrUnknownVariable       = "E116" // derivation names an unknown variable

	// Derivation errors (E120-E129)
	ErrDerivationForm       = "E120" // needs exactly one of table or template
	ErrDerivationNoInducers = "E121" // from is empty
	ErrDerivationTarget     = "E122" // target is a free-form scalar or induces itself
	ErrDerivationDuplicate  = "E123" // target derived twice
	ErrTemplatePlaceholder  = "E124" // placeholder names a non-inducing variable
)

// ValidationError represents a rule-set validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled rule set. It returns every error found rather
// than stopping at the first.
//
// Assertions naming unknown variables are not errors: a session skips them
// with a warning, so one assertion file can serve several variable sets.
func Validate(rs *ir.RuleSet) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	vars := make(map[string]ir.VariableDef, len(rs.Variables))
	for i, v := range rs.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		if v.Name == "" {
			add(field, ErrVariableNameEmpty, "variable name is required")
			continue
		}
		field = "variable." + v.Name
		if _, dup := vars[v.Name]; dup {
			add(field, ErrDuplicateName, "duplicate variable name %q", v.Name)
		}
		vars[v.Name] = v

		if !v.Kind.Valid() {
			add(field+".kind", ErrInvalidKind, "unknown kind %q (want scalar, option or multi)", v.Kind)
		}
		if !v.Type.Valid() {
			add(field+".type", ErrInvalidScalarType, "unknown type %q", v.Type)
		}
		if v.Kind == ir.VarScalar && len(v.Options) > 0 {
			add(field+".options", ErrOptionsOnScalar, "free-form scalar cannot declare options")
		}
		if len(v.Tooltips) > len(v.Options) {
			add(field+".tooltips", ErrTooManyTooltips, "%d tooltips for %d options", len(v.Tooltips), len(v.Options))
		}
		if v.Default != "" && v.Kind.Optioned() && len(v.Options) > 0 {
			for _, m := range ir.ParseValue(v.Default, v.Kind == ir.VarMulti).Members() {
				if !contains(v.Options, m) {
					add(field+".default", ErrDefaultNotAnOption, "default %q is not an option", m)
				}
			}
		}
	}

	ids := make(map[string]bool, len(rs.Assertions))
	for i, a := range rs.Assertions {
		field := fmt.Sprintf("assertions[%d]", i)
		if a.ID != "" {
			field = "assertion." + a.ID
			if ids[a.ID] {
				add(field, ErrDuplicateName, "duplicate assertion id %q", a.ID)
			}
			ids[a.ID] = true
		}
		errs = append(errs, validateAssertion(field, a)...)
	}

	derived := make(map[string]bool, len(rs.Derivations))
	for _, d := range rs.Derivations {
		errs = append(errs, validateDerivation(d, vars, derived)...)
	}

	return errs
}

func validateAssertion(field string, a ir.AssertionDef) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if len(a.Vars) < 2 {
		add(field+".vars", ErrAssertionTooFewVars, "assertion must relate at least 2 variables, got %d", len(a.Vars))
	}
	seen := make(map[string]bool, len(a.Vars))
	for _, v := range a.Vars {
		if seen[v] {
			add(field+".vars", ErrAssertionDuplicateVar, "variable %q named twice", v)
		}
		seen[v] = true
	}
	if len(a.Clauses) == 0 {
		add(field+".clauses", ErrAssertionNoClauses, "assertion has no clauses")
	}
	for j, c := range a.Clauses {
		cf := fmt.Sprintf("%s.clauses[%d]", field, j)
		if c.Kind != ir.ClauseAccept && c.Kind != ir.ClauseReject {
			add(cf+".kind", ErrClauseKind, "unknown clause kind %q (want accept or reject)", c.Kind)
		}
		if len(c.Patterns) != len(a.Vars) {
			add(cf+".patterns", ErrClauseArity, "%d patterns for %d variables", len(c.Patterns), len(a.Vars))
		}
		for k, p := range c.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				add(fmt.Sprintf("%s.patterns[%d]", cf, k), ErrClausePattern, "%v", err)
			}
		}
	}
	return errs
}

func validateDerivation(d ir.DerivationDef, vars map[string]ir.VariableDef, derived map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}
	field := "derive." + d.Target

	if derived[d.Target] {
		add(field, ErrDerivationDuplicate, "variable %q is derived twice", d.Target)
	}
	derived[d.Target] = true

	if target, ok := vars[d.Target]; !ok {
		add(field, ErrUnknownVariable, "%s", unknownVariable(d.Target, vars))
	} else if !target.Kind.Optioned() {
		add(field, ErrDerivationTarget, "derivation target %q has no option list", d.Target)
	}

	if len(d.From) == 0 {
		add(field+".from", ErrDerivationNoInducers, "derivation needs at least one inducing variable")
	}
	for _, in := range d.From {
		if in == d.Target {
			add(field+".from", ErrDerivationTarget, "derivation induces itself")
			continue
		}
		if _, ok := vars[in]; !ok {
			add(field+".from", ErrUnknownVariable, "%s", unknownVariable(in, vars))
		}
	}

	if _, err := engine.NewDeriveFunc(d); err != nil {
		code := ErrDerivationForm
		if d.Template != "" && d.Table == nil {
			code = ErrTemplatePlaceholder
		}
		add(field, code, "%v", err)
	}
	return errs
}

func unknownVariable(name string, vars map[string]ir.VariableDef) string {
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	err := &engine.NotFoundError{Name: name, Suggestion: engine.Suggest(name, names)}
	return err.Error()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
