package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/depgraph"
)

// GraphResult is the JSON form of the dependency graph.
type GraphResult struct {
	Rules  string                  `json:"rules"`
	Nodes  []string                `json:"nodes"`
	Edges  []depgraph.Edge         `json:"edges"`
	Cycles []depgraph.CycleWarning `json:"cycles,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <rules>",
		Short: "Show the dependency graph of a rule set",
		Long: `Print which variables each variable notifies when it changes, labelled
with the reason: a shared assertion or a derivation. Cycles are listed
after the tree.

Examples:
  caseconf graph ./rules
  caseconf graph ./rules/compset.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	rs, err := LoadRules(path, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	s, err := BuildSession(context.Background(), rs, logger, nil)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	g := s.Graph()
	if formatter.IsJSON() {
		return formatter.Success(GraphResult{
			Rules:  rs.Name,
			Nodes:  g.Nodes(),
			Edges:  g.Edges(),
			Cycles: g.Cycles(),
		})
	}

	fmt.Fprint(formatter.Writer, g.Render(rs.Name))
	printCycles(formatter, g.Cycles())
	return nil
}
