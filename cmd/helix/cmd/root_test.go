package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

func nopLogger() *logging.Logger {
	return logging.NewNop()
}

func TestExecute_Help(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--help"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "helix")
	assert.Contains(t, out.String(), "--config")
}

func TestSubcommands(t *testing.T) {
	want := []string{"analyze", "init", "list", "resume", "run", "serve", "status", "version"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, have[name], "missing command %s", name)
	}
}

func TestCommandArgs(t *testing.T) {
	assert.Error(t, statusCmd.Args(statusCmd, nil))
	assert.NoError(t, statusCmd.Args(statusCmd, []string{"s-1"}))
	assert.Error(t, resumeCmd.Args(resumeCmd, []string{"a", "b"}))
	assert.Error(t, runCmd.Args(runCmd, []string{"a", "b"}))
	assert.Error(t, listCmd.Args(listCmd, []string{"extra"}))
}

func TestGetVersion(t *testing.T) {
	SetVersion("test-version-func", "test-commit", "test-date")
	assert.Equal(t, "test-version-func", GetVersion())
}
