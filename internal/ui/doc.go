// Package ui provides the terminal output pieces of the gea CLI: styled
// status symbols, a spinner, the phase display used while a record is
// being saved, and the statistics table.
//
// # Color Scheme
//
// Colors are ANSI codes so they follow the terminal palette:
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings and skipped phases
//	ColorInfo      (cyan)   - Informational messages
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - In-progress indicators
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// # Phase Display
//
// PhaseDisplay renders each step of a submission with its timing:
//
//	pd := ui.NewPhaseDisplay(os.Stderr)
//	pd.PhaseStarted("Connecting")
//	pd.PhaseFinished("Connecting", 300*time.Millisecond, nil)
//
// which prints "● Connecting 0.3s".
package ui
