package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/caseconf/internal/ir"
)

// DeriveFunc computes a derived variable's option list from the current
// values of its inducing variables, given in declared order. It must be a
// pure function of its inputs. tooltips may be nil.
type DeriveFunc func(inputs []ir.Value) (options, tooltips []string, err error)

// Derivation binds a target variable to its inducing variables.
type Derivation struct {
	Target string
	From   []string
	Func   DeriveFunc
}

func (d *Derivation) inducedBy(name string) bool {
	for _, f := range d.From {
		if f == name {
			return true
		}
	}
	return false
}

// Derive declares that target's options are computed by f from the values
// of from. Unknown variables are reported by Build.
func (s *Session) Derive(target string, from []string, f DeriveFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnlocked(target); err != nil {
		return err
	}
	if len(from) == 0 {
		return &ConfigurationError{Subject: target, Message: "derivation needs at least one inducing variable"}
	}
	if f == nil {
		return &ConfigurationError{Subject: target, Message: "derivation function is nil"}
	}
	if _, dup := s.derivedBy[target]; dup {
		return &ConfigurationError{Subject: target, Message: "variable is already derived"}
	}
	d := &Derivation{Target: target, From: append([]string(nil), from...), Func: f}
	s.derivations = append(s.derivations, d)
	s.derivedBy[target] = d
	return nil
}

// resolve recomputes a derived variable's option list. If any inducing
// variable is unset the list is forced empty without calling the function.
// It reports whether the variable's options or value changed.
func (s *Session) resolve(v *variable, d *Derivation) bool {
	inputs := make([]ir.Value, len(d.From))
	anyEmpty := false
	for i, name := range d.From {
		if _, pending := s.pending[name]; pending {
			s.logger.Debug("derivation deferred",
				"event", (&StaleUpdateIgnored{Variable: v.name(), Trigger: name}).Error())
			s.deferUpdate(name, v.name())
			return false
		}
		inputs[i] = s.registry.vars[name].value
		if inputs[i].IsEmpty() {
			anyEmpty = true
		}
	}

	var options, tooltips []string
	if !anyEmpty {
		var err error
		options, tooltips, err = d.Func(inputs)
		if err != nil {
			s.logger.Error("derivation failed, clearing options", "variable", v.name(), "error", err)
			options, tooltips = nil, nil
		}
	}

	normalized, normTips := normalizeOptions(options, tooltips)
	if v.options != nil && sameOptions(v.options, normalized, normTips) {
		return false
	}
	return s.applyOptions(v, normalized, normTips, causeDerived)
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// NewDeriveFunc builds the function for a declarative derivation.
func NewDeriveFunc(def ir.DerivationDef) (DeriveFunc, error) {
	switch {
	case def.Table != nil && def.Template != "":
		return nil, fmt.Errorf("derivation of %s sets both table and template", def.Target)
	case def.Table != nil:
		return TableFunc(def.Table), nil
	case def.Template != "":
		return TemplateFunc(def.Template, def.From, def.Drop)
	default:
		return nil, fmt.Errorf("derivation of %s sets neither table nor template", def.Target)
	}
}

// TableFunc looks options up by the rendered inducing values joined with
// ir.TableKeySeparator. A missing key yields no options.
func TableFunc(table map[string]ir.TableEntry) DeriveFunc {
	return func(inputs []ir.Value) ([]string, []string, error) {
		keys := make([]string, len(inputs))
		for i, in := range inputs {
			keys[i] = in.Render()
		}
		row, ok := table[strings.Join(keys, ir.TableKeySeparator)]
		if !ok {
			return nil, nil, nil
		}
		return append([]string(nil), row.Options...), append([]string(nil), row.Tooltips...), nil
	}
}

// TemplateFunc renders a single option by replacing {NAME} placeholders
// with the inducing values of the same name, then deleting every drop
// substring.
func TemplateFunc(template string, from []string, drop []string) (DeriveFunc, error) {
	index := make(map[string]int, len(from))
	for i, name := range from {
		index[name] = i
	}
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if _, ok := index[m[1]]; !ok {
			return nil, fmt.Errorf("template placeholder {%s} is not an inducing variable", m[1])
		}
	}
	return func(inputs []ir.Value) ([]string, []string, error) {
		out := placeholder.ReplaceAllStringFunc(template, func(ph string) string {
			return inputs[index[ph[1:len(ph)-1]]].Render()
		})
		for _, d := range drop {
			out = strings.ReplaceAll(out, d, "")
		}
		return []string{out}, nil, nil
	}, nil
}
