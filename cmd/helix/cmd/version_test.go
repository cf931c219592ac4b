package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2024-01-15")

	t.Run("version command output", func(t *testing.T) {
		var buf bytes.Buffer
		versionCmd.SetOut(&buf)
		defer versionCmd.SetOut(nil)

		versionCmd.Run(versionCmd, []string{})

		output := buf.String()
		assert.Contains(t, output, "helix v1.2.3")
		assert.Contains(t, output, "commit: abc123def")
		assert.Contains(t, output, "built:  2024-01-15")
	})

	t.Run("version command properties", func(t *testing.T) {
		assert.NotNil(t, versionCmd)
		assert.Equal(t, "version", versionCmd.Use)
		assert.Equal(t, "Print version information", versionCmd.Short)
		assert.NotNil(t, versionCmd.Run)
	})
}
