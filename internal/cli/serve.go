package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/server"
	"github.com/roach88/caseconf/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Journal string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <rules>",
		Short: "Serve one session as an MCP tool server on stdio",
		Long: `Build a session from a rule set and expose it over the Model Context
Protocol on stdin/stdout. Tools: list_variables, get_variable, set_value,
toggle_member and unset_value.

Logs go to stderr so they never interleave with the protocol stream.

Examples:
  caseconf serve ./rules
  caseconf serve ./rules --journal ./session.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record the session to this SQLite journal")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	// Diagnostics only: stdout belongs to the protocol.
	formatter := newFormatter(opts.RootOptions, cmd)
	formatter.Writer = cmd.ErrOrStderr()
	logger := opts.Logger(cmd.ErrOrStderr())

	rs, err := LoadRules(path, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	var journal *store.Store
	if opts.Journal != "" {
		journal, err = store.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer journal.Close()
	}

	s, err := BuildSession(context.Background(), rs, logger, journal)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	logger.Info("serving session", "session", s.ID(), "rules", rs.Name, "variables", len(rs.Variables))
	if err := server.Serve(server.New(s)); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
