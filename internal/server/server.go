// Package server exposes one live session as an MCP tool server over stdio.
//
// The tools read and write variables through the session API, so every
// write runs the full validity cascade and the reply lists the changes it
// caused.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// New creates the MCP server with every tool registered against s.
func New(s *engine.Session) *server.MCPServer {
	srv := server.NewMCPServer(
		"caseconf",
		ir.EngineVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	w := NewWriter(s)

	list := NewListVariablesTool(s)
	srv.AddTool(list.Definition(), list.Handle)

	get := NewGetVariableTool(s)
	srv.AddTool(get.Definition(), get.Handle)

	set := NewSetValueTool(w)
	srv.AddTool(set.Definition(), set.Handle)

	toggle := NewToggleMemberTool(w)
	srv.AddTool(toggle.Definition(), toggle.Handle)

	unset := NewUnsetValueTool(w)
	srv.AddTool(unset.Definition(), unset.Handle)

	return srv
}

// Serve blocks serving srv on stdin and stdout.
func Serve(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

const instructions = `caseconf holds a configuration session: named variables whose options
are constrained by compliance assertions and derived from other variables.

Use list_variables to see every variable with its value and state, and
get_variable for one variable's options, their validity and the message
explaining why an option is invalid. set_value, toggle_member and
unset_value write a variable; the reply lists every change the write
caused in other variables. Writes of invalid options are rejected and
leave the session unchanged.`
