package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/helix/internal/logging"
	"github.com/hugo-lorenzo-mato/helix/internal/service"
)

func goWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tests"), 0o750))
	require.NoError(t, writeFile(filepath.Join(dir, "go.mod"), "module example.com/demo\n"))
	require.NoError(t, writeFile(filepath.Join(dir, "main.go"), "package main\n"))
	return dir
}

func TestAnalyze(t *testing.T) {
	router := service.NewRouter(logging.NewNop())
	ws := goWorkspace(t)

	tests := []struct {
		prompt     string
		complexity string
		first      string
	}{
		{"fix the typo", "simple", "planning"},
		{"refactor the scheduler", "complex", "analysis"},
		{"", "simple", "planning"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			report, err := analyze(router, ws, tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, tt.complexity, report.Complexity)
			require.NotEmpty(t, report.Phases)
			assert.Equal(t, tt.first, report.Phases[0])
			assert.True(t, report.Analysis.HasTests)
			assert.Equal(t, "go test", report.Analysis.TestFramework)
			assert.Equal(t, 1, report.Analysis.FileCount)
		})
	}
}

func TestPrintReport(t *testing.T) {
	router := service.NewRouter(logging.NewNop())
	report, err := analyze(router, goWorkspace(t), "refactor the scheduler")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printReport(&out, formatText, report))
	assert.Contains(t, out.String(), "yes (go test)")
	assert.Contains(t, out.String(), "complex")
	assert.Contains(t, out.String(), "analysis → planning → coding → review → testing → review → gitops → explanation")

	out.Reset()
	require.NoError(t, printReport(&out, formatJSON, report))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "complex", decoded["complexity"])
	analysis, ok := decoded["analysis"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, analysis["has_tests"])
}
