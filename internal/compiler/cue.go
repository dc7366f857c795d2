package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/caseconf/internal/ir"
)

// CompileCUEBytes compiles CUE source into a RuleSet. filename is used
// for error positions only.
func CompileCUEBytes(filename string, src []byte) (*ir.RuleSet, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileCUE(v)
}

// CompileCUE parses a CUE value into a RuleSet. The value is the file's
// top-level struct:
//
//	name: "compset"
//	variable: INITTIME: {kind: "option", options: ["1850", "2000"]}
//	assertion: init_phys: {
//		vars: ["INITTIME", "COMP_ATM_PHYS"]
//		clauses: [{kind: "reject", patterns: ["1850", "CAM60"], message: "..."}]
//	}
//	derive: COMPSET: {from: ["INITTIME", "COMP_ATM_PHYS"], template: "{INITTIME}_{COMP_ATM_PHYS}"}
//
// Variables, assertions and derivations keep their declaration order.
func CompileCUE(v cue.Value) (*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rs := &ir.RuleSet{}
	name, _, err := lookupString(v, "name")
	if err != nil {
		return nil, err
	}
	rs.Name = name

	rs.Variables, err = parseVariables(v)
	if err != nil {
		return nil, err
	}
	rs.Assertions, err = parseAssertions(v)
	if err != nil {
		return nil, err
	}
	rs.Derivations, err = parseDerivations(v)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

var variableFields = map[string]bool{
	"kind": true, "never_unset": true, "type": true, "options": true,
	"tooltips": true, "default": true, "description": true,
}

func parseVariables(v cue.Value) ([]ir.VariableDef, error) {
	var defs []ir.VariableDef

	varsVal := v.LookupPath(cue.ParsePath("variable"))
	if !varsVal.Exists() {
		return defs, nil
	}

	iter, err := varsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		val := iter.Value()
		field := "variable." + name

		if err := checkFields(val, field, variableFields); err != nil {
			return nil, err
		}

		def := ir.VariableDef{Name: name, Kind: ir.VarOption}
		if kind, ok, err := lookupString(val, "kind"); err != nil {
			return nil, err
		} else if ok {
			def.Kind = ir.VariableKind(kind)
		}
		if def.NeverUnset, err = lookupBool(val, "never_unset"); err != nil {
			return nil, err
		}
		typ, _, err := lookupString(val, "type")
		if err != nil {
			return nil, err
		}
		def.Type = ir.ScalarType(typ)
		if def.Options, err = lookupStrings(val, "options"); err != nil {
			return nil, err
		}
		if def.Tooltips, err = lookupStrings(val, "tooltips"); err != nil {
			return nil, err
		}
		if def.Default, _, err = lookupString(val, "default"); err != nil {
			return nil, err
		}
		if def.Description, _, err = lookupString(val, "description"); err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}
	return defs, nil
}

func parseAssertions(v cue.Value) ([]ir.AssertionDef, error) {
	var defs []ir.AssertionDef

	assertVal := v.LookupPath(cue.ParsePath("assertion"))
	if !assertVal.Exists() {
		return defs, nil
	}

	iter, err := assertVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		id := iter.Selector().Unquoted()
		val := iter.Value()

		def := ir.AssertionDef{ID: id}
		if def.Vars, err = lookupStrings(val, "vars"); err != nil {
			return nil, err
		}

		clausesVal := val.LookupPath(cue.ParsePath("clauses"))
		if !clausesVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("assertion.%s.clauses", id),
				Message: "clauses are required",
				Pos:     val.Pos(),
			}
		}
		clauseIter, err := clausesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for clauseIter.Next() {
			cv := clauseIter.Value()
			kind, ok, err := lookupString(cv, "kind")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("assertion.%s.clauses", id),
					Message: "clause kind is required",
					Pos:     cv.Pos(),
				}
			}
			clause := ir.ClauseDef{Kind: ir.ClauseKind(kind)}
			if clause.Patterns, err = lookupStrings(cv, "patterns"); err != nil {
				return nil, err
			}
			if clause.Message, _, err = lookupString(cv, "message"); err != nil {
				return nil, err
			}
			def.Clauses = append(def.Clauses, clause)
		}

		defs = append(defs, def)
	}
	return defs, nil
}

func parseDerivations(v cue.Value) ([]ir.DerivationDef, error) {
	var defs []ir.DerivationDef

	deriveVal := v.LookupPath(cue.ParsePath("derive"))
	if !deriveVal.Exists() {
		return defs, nil
	}

	iter, err := deriveVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		target := iter.Selector().Unquoted()
		val := iter.Value()

		def := ir.DerivationDef{Target: target}
		if def.From, err = lookupStrings(val, "from"); err != nil {
			return nil, err
		}
		if def.Template, _, err = lookupString(val, "template"); err != nil {
			return nil, err
		}
		if def.Drop, err = lookupStrings(val, "drop"); err != nil {
			return nil, err
		}

		tableVal := val.LookupPath(cue.ParsePath("table"))
		if tableVal.Exists() {
			def.Table, err = parseTable(tableVal)
			if err != nil {
				return nil, err
			}
		}

		defs = append(defs, def)
	}
	return defs, nil
}

// parseTable reads a table whose rows are either a list of options or a
// struct with options and tooltips.
func parseTable(v cue.Value) (map[string]ir.TableEntry, error) {
	table := make(map[string]ir.TableEntry)

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		row := iter.Value()

		var entry ir.TableEntry
		switch row.IncompleteKind() {
		case cue.ListKind:
			if entry.Options, err = stringList(row); err != nil {
				return nil, err
			}
		case cue.StructKind:
			if entry.Options, err = lookupStrings(row, "options"); err != nil {
				return nil, err
			}
			if entry.Tooltips, err = lookupStrings(row, "tooltips"); err != nil {
				return nil, err
			}
		default:
			return nil, &CompileError{
				Field:   "table." + key,
				Message: "table row must be a list of options or {options, tooltips}",
				Pos:     row.Pos(),
			}
		}
		table[key] = entry
	}
	return table, nil
}

// checkFields rejects fields outside known, catching misspelled keys.
func checkFields(v cue.Value, path string, known map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		if !known[label] {
			return &CompileError{
				Field:   path + "." + label,
				Message: "unknown field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func lookupString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func lookupBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func lookupStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	return stringList(fv)
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
