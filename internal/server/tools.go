package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// ─── shared ────────────────────────────────────────────────────────────────

// Writer serializes writes so the changes collected for one reply belong
// to that write alone.
type Writer struct {
	mu sync.Mutex
	s  *engine.Session
}

// NewWriter wraps s.
func NewWriter(s *engine.Session) *Writer {
	return &Writer{s: s}
}

// WriteResult is the reply to every write tool.
type WriteResult struct {
	Variable string               `json:"variable"`
	Value    ir.Value             `json:"value"`
	State    engine.State         `json:"state"`
	Changes  []engine.ChangeEvent `json:"changes"`
}

func (w *Writer) write(name string, fn func(*engine.Session) error) (*mcp.CallToolResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	changes := []engine.ChangeEvent{}
	cancel := w.s.ObserveAll(func(ev engine.ChangeEvent) {
		changes = append(changes, ev)
	})
	err := fn(w.s)
	cancel()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	vs, err := w.s.Variable(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(WriteResult{Variable: name, Value: vs.Value, State: vs.State, Changes: changes})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ─── ListVariablesTool ─────────────────────────────────────────────────────

// VariableSummary is one row of list_variables.
type VariableSummary struct {
	Name    string          `json:"name"`
	Kind    ir.VariableKind `json:"kind"`
	Value   ir.Value        `json:"value"`
	State   engine.State    `json:"state"`
	Derived bool            `json:"derived,omitempty"`
	Valid   int             `json:"valid_options"`
	Options int             `json:"options"`
}

// ListVariablesTool handles the list_variables MCP tool.
type ListVariablesTool struct {
	s *engine.Session
}

// NewListVariablesTool creates a ListVariablesTool.
func NewListVariablesTool(s *engine.Session) *ListVariablesTool {
	return &ListVariablesTool{s: s}
}

// Definition returns the MCP tool definition for list_variables.
func (t *ListVariablesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_variables",
		mcp.WithDescription("List every variable in declaration order with its value, state and option counts."),
	)
}

// Handle processes the list_variables tool call.
func (t *ListVariablesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := t.s.Snapshot()
	out := make([]VariableSummary, len(snap))
	for i, vs := range snap {
		out[i] = VariableSummary{
			Name:    vs.Name,
			Kind:    vs.Kind,
			Value:   vs.Value,
			State:   vs.State,
			Derived: vs.Derived,
			Valid:   len(vs.ValidOptions()),
			Options: len(vs.Options),
		}
	}
	return jsonResult(out)
}

// ─── GetVariableTool ───────────────────────────────────────────────────────

// GetVariableTool handles the get_variable MCP tool.
type GetVariableTool struct {
	s *engine.Session
}

// NewGetVariableTool creates a GetVariableTool.
func NewGetVariableTool(s *engine.Session) *GetVariableTool {
	return &GetVariableTool{s: s}
}

// Definition returns the MCP tool definition for get_variable.
func (t *GetVariableTool) Definition() mcp.Tool {
	return mcp.NewTool("get_variable",
		mcp.WithDescription(
			"Show one variable: value, state, and every option with its validity, "+
				"tooltip and the message of the assertion that rejects it.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Variable name, e.g. COMP_ATM"),
		),
	)
}

// Handle processes the get_variable tool call.
func (t *GetVariableTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	vs, err := t.s.Variable(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(vs)
}

// ─── SetValueTool ──────────────────────────────────────────────────────────

// SetValueTool handles the set_value MCP tool.
type SetValueTool struct {
	w *Writer
}

// NewSetValueTool creates a SetValueTool.
func NewSetValueTool(w *Writer) *SetValueTool {
	return &SetValueTool{w: w}
}

// Definition returns the MCP tool definition for set_value.
func (t *SetValueTool) Definition() mcp.Tool {
	return mcp.NewTool("set_value",
		mcp.WithDescription(
			"Write a variable. Option variables take one of their valid options; "+
				"set variables take \"(a, b)\" or \"a%b\". Dependent variables are updated.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Variable name"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("New value"),
		),
	)
}

// Handle processes the set_value tool call.
func (t *SetValueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	value := req.GetString("value", "")
	if value == "" {
		return mcp.NewToolResultError("'value' is required; use unset_value to clear a variable"), nil
	}

	return t.w.write(name, func(s *engine.Session) error {
		vs, err := s.Variable(name)
		if err != nil {
			return err
		}
		return s.SetValue(name, ir.ParseValue(value, vs.Kind == ir.VarMulti))
	})
}

// ─── ToggleMemberTool ──────────────────────────────────────────────────────

// ToggleMemberTool handles the toggle_member MCP tool.
type ToggleMemberTool struct {
	w *Writer
}

// NewToggleMemberTool creates a ToggleMemberTool.
func NewToggleMemberTool(w *Writer) *ToggleMemberTool {
	return &ToggleMemberTool{w: w}
}

// Definition returns the MCP tool definition for toggle_member.
func (t *ToggleMemberTool) Definition() mcp.Tool {
	return mcp.NewTool("toggle_member",
		mcp.WithDescription("Add a member to a set variable, or remove it if already selected."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Set variable name"),
		),
		mcp.WithString("member",
			mcp.Required(),
			mcp.Description("Option to toggle"),
		),
	)
}

// Handle processes the toggle_member tool call.
func (t *ToggleMemberTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	member := req.GetString("member", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	if member == "" {
		return mcp.NewToolResultError("'member' is required"), nil
	}

	return t.w.write(name, func(s *engine.Session) error {
		return s.ToggleMember(name, member)
	})
}

// ─── UnsetValueTool ────────────────────────────────────────────────────────

// UnsetValueTool handles the unset_value MCP tool.
type UnsetValueTool struct {
	w *Writer
}

// NewUnsetValueTool creates an UnsetValueTool.
func NewUnsetValueTool(w *Writer) *UnsetValueTool {
	return &UnsetValueTool{w: w}
}

// Definition returns the MCP tool definition for unset_value.
func (t *UnsetValueTool) Definition() mcp.Tool {
	return mcp.NewTool("unset_value",
		mcp.WithDescription(
			"Clear a variable. Variables marked never_unset immediately re-select their first valid option.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Variable name"),
		),
	)
}

// Handle processes the unset_value tool call.
func (t *UnsetValueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	return t.w.write(name, func(s *engine.Session) error {
		return s.Clear(name)
	})
}
