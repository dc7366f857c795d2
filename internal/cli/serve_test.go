package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	assert.Equal(t, "serve <rules>", cmd.Use)
	assert.Contains(t, cmd.Long, "set_value")
	assert.Error(t, cmd.Args(cmd, nil))
}

func TestServeMissingRules(t *testing.T) {
	_, err := execute(t, "serve", "/nonexistent/rules")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeInvalidRules(t *testing.T) {
	_, err := execute(t, "serve", brokenRules)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
