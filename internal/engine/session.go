package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/caseconf/internal/compliance"
	"github.com/roach88/caseconf/internal/depgraph"
	"github.com/roach88/caseconf/internal/ir"
)

// Journal receives every committed change of a session.
// store.Store implements it.
type Journal interface {
	RecordChange(ctx context.Context, rec ir.ChangeRecord) error
}

// Session owns the variables, assertions, derivations and dependency graph
// of one configuration session.
//
// Lifecycle: register variables, assertions and derivations, then Build.
// Build validates the rule set, wires the graph once, assigns initial
// options and locks registration. Reset discards everything and starts a
// new session.
//
// Every public method is safe to call from multiple goroutines; calls are
// serialized, and a cascade always runs to completion before the call that
// started it returns. Observer callbacks and journal writes run after the
// cascade, outside the session lock.
type Session struct {
	mu sync.Mutex

	id       string
	idGen    IDGenerator
	logger   *slog.Logger
	clock    *Clock
	maxSteps int
	journal  Journal

	registry    *Registry
	assertions  *compliance.Store
	derivations []*Derivation
	derivedBy   map[string]*Derivation
	graph       *depgraph.Graph
	built       bool

	generation int
	pending    map[string]*Change
	// deferred holds, per variable with an open change, the variables
	// whose recomputation was skipped while that change was in intent.
	deferred  map[string][]string
	observers []observer
	nextObsID int
	events    []ChangeEvent
	warnings  []NoValidOptionWarning
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithMaxSteps sets the per-cascade step quota. Default: DefaultMaxSteps.
func WithMaxSteps(n int) SessionOption {
	return func(s *Session) { s.maxSteps = n }
}

// WithJournal records every committed change to j.
func WithJournal(j Journal) SessionOption {
	return func(s *Session) { s.journal = j }
}

// WithIDGenerator sets the session ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(s *Session) { s.idGen = g }
}

// NewSession creates an empty, unbuilt session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		idGen:    UUIDv7Generator{},
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

// ID returns the session ID. It changes on Reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Reset discards all variables, assertions, derivations, observers and
// warnings. The session must be built again before use.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.logger.Debug("session reset", "session", s.id)
}

func (s *Session) reset() {
	s.id = s.idGen.Generate()
	s.clock = NewClock()
	s.registry = NewRegistry(s.logger)
	s.assertions = compliance.NewStore()
	s.derivations = nil
	s.derivedBy = make(map[string]*Derivation)
	s.graph = depgraph.New()
	s.built = false
	s.generation++
	s.pending = make(map[string]*Change)
	s.deferred = make(map[string][]string)
	s.observers = nil
	s.events = nil
	s.warnings = nil
}

// Register adds a variable definition. Registering an existing name
// replaces it with a warning.
func (s *Session) Register(def ir.VariableDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnlocked(def.Name); err != nil {
		return err
	}
	if def.Name == "" {
		return &ConfigurationError{Subject: "variable", Message: "name is required"}
	}
	if !def.Kind.Valid() {
		return &ConfigurationError{Subject: def.Name, Message: fmt.Sprintf("unknown kind %q", def.Kind)}
	}
	if !def.Type.Valid() {
		return &ConfigurationError{Subject: def.Name, Message: fmt.Sprintf("unknown type %q", def.Type)}
	}
	if len(def.Tooltips) > len(def.Options) {
		return &ConfigurationError{Subject: def.Name, Message: "more tooltips than options"}
	}
	s.registry.register(def)
	return nil
}

// RegisterVariable is Register for a bare name and kind.
func (s *Session) RegisterVariable(name string, kind ir.VariableKind) error {
	return s.Register(ir.VariableDef{Name: name, Kind: kind})
}

// AddAssertion compiles and stores a compliance assertion.
func (s *Session) AddAssertion(def ir.AssertionDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnlocked(def.ID); err != nil {
		return err
	}
	if _, err := s.assertions.Add(def); err != nil {
		return &ConfigurationError{Subject: def.ID, Message: "malformed assertion", Err: err}
	}
	return nil
}

func (s *Session) checkUnlocked(subject string) error {
	if s.built {
		return &ConfigurationError{Subject: subject, Message: "session is built; registration is locked"}
	}
	return nil
}

// Load registers every variable, assertion and derivation of rs. All
// problems are collected into one error.
func (s *Session) Load(rs *ir.RuleSet) error {
	var errs []error
	for _, v := range rs.Variables {
		if err := s.Register(v); err != nil {
			errs = append(errs, err)
		}
	}
	for _, a := range rs.Assertions {
		if err := s.AddAssertion(a); err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range rs.Derivations {
		fn, err := NewDeriveFunc(d)
		if err != nil {
			errs = append(errs, &ConfigurationError{Subject: d.Target, Message: "invalid derivation", Err: err})
			continue
		}
		if err := s.Derive(d.Target, d.From, fn); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

// FromRuleSet creates, loads and builds a session in one step.
func FromRuleSet(rs *ir.RuleSet, opts ...SessionOption) (*Session, error) {
	s := NewSession(opts...)
	if err := s.Load(rs); err != nil {
		return nil, err
	}
	if err := s.Build(); err != nil {
		return nil, err
	}
	return s, nil
}
