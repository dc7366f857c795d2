package engine

import (
	"log/slog"

	"github.com/roach88/caseconf/internal/ir"
)

// Registry maps variable names to variables for one session. Names keep
// their registration order.
type Registry struct {
	vars   map[string]*variable
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{vars: make(map[string]*variable), logger: logger}
}

// register stores a new variable for def. A duplicate name is replaced in
// place with a warning.
func (r *Registry) register(def ir.VariableDef) *variable {
	v := newVariable(def)
	if _, dup := r.vars[def.Name]; dup {
		r.logger.Warn("duplicate variable registration, replacing", "variable", def.Name)
	} else {
		r.order = append(r.order, def.Name)
	}
	r.vars[def.Name] = v
	return v
}

func (r *Registry) lookup(name string) (*variable, error) {
	v, ok := r.vars[name]
	if !ok {
		return nil, &NotFoundError{Name: name, Suggestion: Suggest(name, r.order)}
	}
	return v, nil
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	_, ok := r.vars[name]
	return ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered variables.
func (r *Registry) Len() int { return len(r.order) }

// Reset drops every variable.
func (r *Registry) Reset() {
	r.vars = make(map[string]*variable)
	r.order = nil
}
