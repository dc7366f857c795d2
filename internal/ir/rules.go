package ir

// VariableKind selects the value shape of a configuration variable.
type VariableKind string

const (
	// VarScalar is a free-form scalar with no option list.
	VarScalar VariableKind = "scalar"
	// VarOption is a scalar chosen from an option list.
	VarOption VariableKind = "option"
	// VarMulti is an ordered set chosen from an option list.
	VarMulti VariableKind = "multi"
)

// Valid reports whether k is one of the known kinds.
func (k VariableKind) Valid() bool {
	switch k {
	case VarScalar, VarOption, VarMulti:
		return true
	}
	return false
}

// Optioned reports whether variables of kind k carry an option list.
func (k VariableKind) Optioned() bool {
	return k == VarOption || k == VarMulti
}

// ScalarType constrains the text a free-form scalar accepts.
type ScalarType string

const (
	TypeString ScalarType = "string"
	TypeInt    ScalarType = "int"
	TypeReal   ScalarType = "real"
	TypeBool   ScalarType = "bool"
)

// Valid reports whether t is empty (meaning string) or a known type.
func (t ScalarType) Valid() bool {
	switch t {
	case "", TypeString, TypeInt, TypeReal, TypeBool:
		return true
	}
	return false
}

// ClauseKind distinguishes accept clauses from reject clauses.
type ClauseKind string

const (
	// ClauseAccept fails when the antecedent matches and the consequent
	// does not.
	ClauseAccept ClauseKind = "accept"
	// ClauseReject fails when both antecedent and consequent match.
	ClauseReject ClauseKind = "reject"
)

// RuleSet is a complete, compiled description of one configuration session.
// Slice order is declaration order and is preserved by every consumer.
type RuleSet struct {
	Name        string          `json:"name"`
	Variables   []VariableDef   `json:"variables"`
	Assertions  []AssertionDef  `json:"assertions,omitempty"`
	Derivations []DerivationDef `json:"derivations,omitempty"`
}

// VariableDef declares one configuration variable.
type VariableDef struct {
	Name        string       `json:"name"`
	Kind        VariableKind `json:"kind"`
	NeverUnset  bool         `json:"never_unset,omitempty"`
	Type        ScalarType   `json:"type,omitempty"`
	Options     []string     `json:"options,omitempty"`
	Tooltips    []string     `json:"tooltips,omitempty"`
	Default     string       `json:"default,omitempty"`
	Description string       `json:"description,omitempty"`
}

// AssertionDef relates two or more variables through ordered clauses.
// The last variable is the consequent; the others form the antecedent.
type AssertionDef struct {
	ID      string      `json:"id"`
	Vars    []string    `json:"vars"`
	Clauses []ClauseDef `json:"clauses"`
}

// ClauseDef holds one regular expression per assertion variable.
type ClauseDef struct {
	Kind     ClauseKind `json:"kind"`
	Patterns []string   `json:"patterns"`
	Message  string     `json:"message"`
}

// TableEntry is one row of a table derivation.
type TableEntry struct {
	Options  []string `json:"options"`
	Tooltips []string `json:"tooltips,omitempty"`
}

// DerivationDef declares that Target's option list is a function of the
// From variables. Exactly one of Table or Template is set.
//
// Table rows are keyed by the rendered inducing values joined with
// TableKeySeparator. Template substitutes {NAME} placeholders and then
// removes every Drop substring.
type DerivationDef struct {
	Target   string                `json:"target"`
	From     []string              `json:"from"`
	Table    map[string]TableEntry `json:"table,omitempty"`
	Template string                `json:"template,omitempty"`
	Drop     []string              `json:"drop,omitempty"`
}

// TableKeySeparator joins inducing values into a table derivation key.
const TableKeySeparator = "/"

// Variable returns the definition named name.
func (r *RuleSet) Variable(name string) (VariableDef, bool) {
	for _, v := range r.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableDef{}, false
}
