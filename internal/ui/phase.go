package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 48

// PhaseDisplay renders the phases of an operation as they start and finish.
// It satisfies capture.Observer.
type PhaseDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	inline  bool
	soft    map[string]bool
	pending string
}

// NewPhaseDisplay creates a phase display writing to w. When inline is set
// an in-progress line is drawn and overwritten when the phase ends.
func NewPhaseDisplay(w io.Writer, inline bool) *PhaseDisplay {
	return &PhaseDisplay{w: w, inline: inline, soft: make(map[string]bool)}
}

// Soft marks phases whose failure is shown as a warning.
func (pd *PhaseDisplay) Soft(names ...string) *PhaseDisplay {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	for _, n := range names {
		pd.soft[n] = true
	}
	return pd
}

// PhaseStarted renders a phase in progress.
// Shows: ◐ Connecting...
func (pd *PhaseDisplay) PhaseStarted(name string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if !pd.inline {
		return
	}
	line := fmt.Sprintf("%s %s...", lipgloss.NewStyle().Foreground(ColorSecondary).Render(SymbolProgress), name)
	fmt.Fprint(pd.w, "\r"+line)
	pd.pending = line
}

// PhaseFinished renders the outcome of a phase with its duration.
// Shows: ● Connecting 0.3s
func (pd *PhaseDisplay) PhaseFinished(name string, d time.Duration, err error) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.clearLine()

	symbol, style := SymbolComplete, SuccessStyle()
	switch {
	case err != nil && pd.soft[name]:
		symbol, style = SymbolWarning, WarningStyle()
	case err != nil:
		symbol, style = SymbolFail, ErrorStyle()
	}
	fmt.Fprintln(pd.w, FormatPhase(symbol, style, name, FormatDuration(d)))
}

// RenderSkipped renders a phase that did not run.
// Shows: ⊘ Sending notice (disabled)
func (pd *PhaseDisplay) RenderSkipped(name, reason string) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.clearLine()

	line := WarningStyle().Render(SymbolSkipped) + " " + name
	if reason != "" {
		line += " " + MutedStyle().Render("("+reason+")")
	}
	fmt.Fprintln(pd.w, line)
}

// Divider renders a horizontal line to separate phases from the result.
func (pd *PhaseDisplay) Divider() {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	fmt.Fprintln(pd.w, FormatDivider(DividerWidth))
}

// clearLine removes the in-progress line. Callers hold pd.mu.
func (pd *PhaseDisplay) clearLine() {
	if pd.pending == "" {
		return
	}
	fmt.Fprint(pd.w, "\r"+strings.Repeat(" ", lipgloss.Width(pd.pending))+"\r")
	pd.pending = ""
}

// FormatPhase returns a formatted phase line as a string.
func FormatPhase(symbol string, symbolStyle lipgloss.Style, name, timing string) string {
	if timing == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, MutedStyle().Render(timing))
}

// FormatDivider returns a divider line as a string.
func FormatDivider(width int) string {
	return MutedStyle().Render(strings.Repeat("━", width))
}
