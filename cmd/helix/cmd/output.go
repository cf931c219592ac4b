package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

// Output formats accepted by -o.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// Run status labels.
const (
	statusRunning   = "running"
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#22C55E"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	colorRunning = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(colorMuted).Width(12)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)

	succeededStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	runningStyle   = lipgloss.NewStyle().Foreground(colorRunning).Bold(true)
)

func statusOf(success bool, end *time.Time) string {
	switch {
	case end == nil:
		return statusRunning
	case success:
		return statusSucceeded
	default:
		return statusFailed
	}
}

func styledStatus(status string) string {
	switch status {
	case statusSucceeded:
		return succeededStyle.Render(status)
	case statusFailed:
		return failedStyle.Render(status)
	default:
		return runningStyle.Render(status)
	}
}

// renderSummary renders the end-of-run view of a session. Prompt, errors
// and result values pass through the sanitizer.
func renderSummary(st *core.WorkflowState, sanitizer *logging.Sanitizer) string {
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString(headerStyle.Render("Session " + string(st.SessionID)))
	b.WriteString("\n")
	row("Status", styledStatus(statusOf(st.Success, st.EndTime)))
	row("Prompt", truncatePrompt(sanitizer.Sanitize(st.Prompt), 72))
	row("Complexity", string(st.Complexity))
	row("Phase", string(st.CurrentPhase))
	row("Retries", fmt.Sprintf("%d", st.RetryCount))
	row("Duration", st.Duration().Round(time.Millisecond).String())

	if len(st.Results) > 0 {
		done := make([]string, 0, len(st.Results))
		for _, p := range core.AllPhases() {
			if _, ok := st.Results[p]; ok {
				done = append(done, string(p))
			}
		}
		row("Completed", strings.Join(done, ", "))
	}

	if len(st.Errors) > 0 {
		b.WriteString(headerStyle.Render("Errors"))
		b.WriteString("\n")
		for _, e := range st.Errors {
			b.WriteString("  ")
			b.WriteString(failedStyle.Render("✗"))
			b.WriteString(" ")
			b.WriteString(sanitizer.Sanitize(e))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// sanitizedState returns a copy of st safe to print.
func sanitizedState(st *core.WorkflowState, sanitizer *logging.Sanitizer) *core.WorkflowState {
	out := st.Clone()
	out.Prompt = sanitizer.Sanitize(out.Prompt)
	for i, e := range out.Errors {
		out.Errors[i] = sanitizer.Sanitize(e)
	}
	for p, r := range out.Results {
		out.Results[p] = sanitizer.SanitizeMap(r)
	}
	return out
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML encodes v as YAML through its JSON form so field names match
// the JSON output.
func outputYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected text, json or yaml)", format)
	}
}

func truncatePrompt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
