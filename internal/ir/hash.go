package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for
// changing the encoding later.
const (
	DomainRuleSet = "caseconf/ruleset/v1"
	DomainInputs  = "caseconf/inputs/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleSetHash identifies a compiled rule set. Journals record it so a trace
// can be matched to the rules that produced it.
func RuleSetHash(rs *RuleSet) (string, error) {
	canonical, err := MarshalCanonical(ruleSetObject(rs))
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}

// InputsFingerprint hashes everything a variable's validity depends on: its
// own option list and the current values of the variables it shares
// assertions with. Equal fingerprints imply equal validity results.
func InputsFingerprint(options []string, siblings map[string]Value) (string, error) {
	sib := make(map[string]any, len(siblings))
	for name, v := range siblings {
		sib[name] = v
	}
	canonical, err := MarshalCanonical(map[string]any{
		"options":  options,
		"siblings": sib,
	})
	if err != nil {
		return "", fmt.Errorf("InputsFingerprint: %w", err)
	}
	return hashWithDomain(DomainInputs, canonical), nil
}

func ruleSetObject(rs *RuleSet) map[string]any {
	vars := make([]any, len(rs.Variables))
	for i, v := range rs.Variables {
		vars[i] = map[string]any{
			"name":        v.Name,
			"kind":        string(v.Kind),
			"never_unset": v.NeverUnset,
			"type":        string(v.Type),
			"options":     nonNil(v.Options),
			"tooltips":    nonNil(v.Tooltips),
			"default":     v.Default,
		}
	}

	asserts := make([]any, len(rs.Assertions))
	for i, a := range rs.Assertions {
		clauses := make([]any, len(a.Clauses))
		for j, c := range a.Clauses {
			clauses[j] = map[string]any{
				"kind":     string(c.Kind),
				"patterns": nonNil(c.Patterns),
				"message":  c.Message,
			}
		}
		asserts[i] = map[string]any{
			"id":      a.ID,
			"vars":    nonNil(a.Vars),
			"clauses": clauses,
		}
	}

	derivs := make([]any, len(rs.Derivations))
	for i, d := range rs.Derivations {
		table := make(map[string]any, len(d.Table))
		for k, row := range d.Table {
			table[k] = map[string]any{
				"options":  nonNil(row.Options),
				"tooltips": nonNil(row.Tooltips),
			}
		}
		derivs[i] = map[string]any{
			"target":   d.Target,
			"from":     nonNil(d.From),
			"table":    table,
			"template": d.Template,
			"drop":     nonNil(d.Drop),
		}
	}

	return map[string]any{
		"name":        rs.Name,
		"variables":   vars,
		"assertions":  asserts,
		"derivations": derivs,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
