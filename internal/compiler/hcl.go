package compiler

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/caseconf/internal/ir"
)

// hclRuleFile is the top-level structure of an HCL rule file.
type hclRuleFile struct {
	Name        string           `hcl:"name,optional"`
	Variables   []*hclVariable   `hcl:"variable,block"`
	Assertions  []*hclAssertion  `hcl:"assertion,block"`
	Derivations []*hclDerivation `hcl:"derive,block"`
}

type hclVariable struct {
	Name        string   `hcl:"name,label"`
	Kind        string   `hcl:"kind,optional"`
	NeverUnset  bool     `hcl:"never_unset,optional"`
	Type        string   `hcl:"type,optional"`
	Options     []string `hcl:"options,optional"`
	Tooltips    []string `hcl:"tooltips,optional"`
	Default     string   `hcl:"default,optional"`
	Description string   `hcl:"description,optional"`
}

type hclAssertion struct {
	ID      string       `hcl:"id,label"`
	Vars    []string     `hcl:"vars"`
	Clauses []*hclClause `hcl:"clause,block"`
}

type hclClause struct {
	Kind     string   `hcl:"kind,label"`
	Patterns []string `hcl:"patterns"`
	Message  string   `hcl:"message,optional"`
}

type hclDerivation struct {
	Target   string         `hcl:"target,label"`
	From     []string       `hcl:"from"`
	Template string         `hcl:"template,optional"`
	Drop     []string       `hcl:"drop,optional"`
	Table    hcl.Expression `hcl:"table,optional"`
}

// CompileHCL parses HCL source into a RuleSet:
//
//	variable "COMP_ATM" {
//	  options = ["cam", "datm"]
//	}
//	assertion "atm_grid" {
//	  vars = ["COMP_ATM", "GRID"]
//	  clause "reject" {
//	    patterns = ["datm", "ne30"]
//	    message  = "data atmosphere needs a regular grid"
//	  }
//	}
//	derive "COMP_ATM_PHYS" {
//	  from  = ["COMP_ATM"]
//	  table = { cam = ["CAM60", "CAM50"], datm = ["JRA"] }
//	}
//
// The table attribute is evaluated without variables or functions.
func CompileHCL(filename string, src []byte) (*ir.RuleSet, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, formatHCLDiagnostics(diags)
	}

	var parsed hclRuleFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, formatHCLDiagnostics(diags)
	}

	rs := &ir.RuleSet{Name: parsed.Name}
	for _, v := range parsed.Variables {
		kind := ir.VarOption
		if v.Kind != "" {
			kind = ir.VariableKind(v.Kind)
		}
		rs.Variables = append(rs.Variables, ir.VariableDef{
			Name:        v.Name,
			Kind:        kind,
			NeverUnset:  v.NeverUnset,
			Type:        ir.ScalarType(v.Type),
			Options:     v.Options,
			Tooltips:    v.Tooltips,
			Default:     v.Default,
			Description: v.Description,
		})
	}

	for _, a := range parsed.Assertions {
		def := ir.AssertionDef{ID: a.ID, Vars: a.Vars}
		for _, c := range a.Clauses {
			def.Clauses = append(def.Clauses, ir.ClauseDef{
				Kind:     ir.ClauseKind(c.Kind),
				Patterns: c.Patterns,
				Message:  c.Message,
			})
		}
		rs.Assertions = append(rs.Assertions, def)
	}

	for _, d := range parsed.Derivations {
		def := ir.DerivationDef{
			Target:   d.Target,
			From:     d.From,
			Template: d.Template,
			Drop:     d.Drop,
		}
		table, err := decodeTable(d.Target, d.Table)
		if err != nil {
			return nil, err
		}
		def.Table = table
		rs.Derivations = append(rs.Derivations, def)
	}

	return rs, nil
}

// decodeTable evaluates a derivation table. Rows are lists of options or
// objects with options and tooltips lists. A missing table yields nil.
func decodeTable(target string, expr hcl.Expression) (map[string]ir.TableEntry, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, formatHCLDiagnostics(diags)
	}
	if val.IsNull() {
		return nil, nil
	}

	rng := expr.Range()
	fail := func(msg string) error {
		return &CompileError{Field: fmt.Sprintf("derive.%s.table", target), Message: msg, Range: &rng}
	}

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fail("table must be an object")
	}

	table := make(map[string]ir.TableEntry)
	for it := val.ElementIterator(); it.Next(); {
		k, row := it.Element()
		key := k.AsString()

		var entry ir.TableEntry
		var err error
		rt := row.Type()
		switch {
		case rt.IsTupleType() || rt.IsListType():
			entry.Options, err = ctyStrings(row)
		case rt.IsObjectType() && rt.HasAttribute("options"):
			entry.Options, err = ctyStrings(row.GetAttr("options"))
			if err == nil && rt.HasAttribute("tooltips") {
				entry.Tooltips, err = ctyStrings(row.GetAttr("tooltips"))
			}
		default:
			err = fmt.Errorf("row %q must be a list of options or {options, tooltips}", key)
		}
		if err != nil {
			return nil, fail(err.Error())
		}
		table[key] = entry
	}
	return table, nil
}

func ctyStrings(v cty.Value) ([]string, error) {
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return nil, fmt.Errorf("expected a list of strings, got %s", ty.FriendlyName())
	}
	var out []string
	for it := v.ElementIterator(); it.Next(); {
		_, el := it.Element()
		if el.IsNull() || !el.Type().Equals(cty.String) {
			return nil, fmt.Errorf("expected a string, got %s", el.Type().FriendlyName())
		}
		out = append(out, el.AsString())
	}
	return out, nil
}
