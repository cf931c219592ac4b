package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/events"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

// progressPrinter renders lifecycle events as one line each.
type progressPrinter struct {
	w         io.Writer
	sanitizer *logging.Sanitizer
	// prefix each line with the session id when several sessions share
	// the output.
	withSession bool
}

// follow prints events from ch until it is closed. Events still buffered
// when the subscription ends are printed before follow returns.
func (p *progressPrinter) follow(ch <-chan events.Event) {
	for ev := range ch {
		if line := p.format(ev); line != "" {
			fmt.Fprintln(p.w, line)
		}
	}
}

// attach subscribes to bus and prints progress in the background. The
// returned function ends the subscription and waits for the output to
// flush.
func (p *progressPrinter) attach(bus *events.EventBus) func() {
	ch := bus.Subscribe(events.Reliable())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.follow(ch)
	}()
	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}

func (p *progressPrinter) format(ev events.Event) string {
	var line string
	switch e := ev.(type) {
	case events.WorkflowStartedEvent:
		verb := "started"
		if e.Resumed {
			verb = "resumed"
		}
		line = fmt.Sprintf("%s %s run (%s): %s", runningStyle.Render("▶"), verb, e.Complexity,
			strings.Join(e.Phases, " → "))
	case events.PhaseStartedEvent:
		line = fmt.Sprintf("  %s %s", mutedStyle.Render("…"), e.Phase)
		if e.Attempt > 1 {
			line += mutedStyle.Render(fmt.Sprintf(" (attempt %d)", e.Attempt))
		}
	case events.PhaseCompletedEvent:
		line = fmt.Sprintf("  %s %s %s", succeededStyle.Render("✓"), e.Phase,
			mutedStyle.Render(e.Duration.Round(time.Millisecond).String()))
	case events.PhaseFailedEvent:
		line = fmt.Sprintf("  %s %s: %s", failedStyle.Render("✗"), e.Phase, p.sanitizer.Sanitize(e.Error))
	case events.PhaseRetryingEvent:
		line = fmt.Sprintf("  %s retrying %s in %s (retry %d)", runningStyle.Render("↻"), e.Phase,
			e.Delay.Round(time.Millisecond), e.RetryCount)
	case events.WorkflowReroutedEvent:
		line = fmt.Sprintf("  %s %s failed, continuing with %s", runningStyle.Render("↪"), e.FailedPhase,
			strings.Join(e.NewTail, " → "))
	case events.WorkflowCompletedEvent:
		line = fmt.Sprintf("%s completed in %s", succeededStyle.Render("■"),
			e.Duration.Round(time.Millisecond))
	case events.WorkflowAbortedEvent:
		line = fmt.Sprintf("%s aborted at %s: %s", failedStyle.Render("■"), e.Phase,
			p.sanitizer.Sanitize(e.Reason))
	default:
		return ""
	}

	if p.withSession {
		line = mutedStyle.Render("["+shortID(ev.SessionID())+"]") + " " + line
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
