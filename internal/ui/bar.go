package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Bar block characters.
const (
	BarFilled = '█'
	BarEmpty  = '░'
)

// ClampPercent clamps a percentage to the 0-100 range.
func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Percent returns part as a percentage of total, 0 when total is 0.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

// CalculateBarCounts returns the number of filled and empty characters for a bar.
// Percent should be 0-100, width is the total bar width. Any non-zero
// share gets at least one filled cell.
func CalculateBarCounts(percent float64, width int) (filled, empty int) {
	percent = ClampPercent(percent)
	filled = int((percent / 100.0) * float64(width))
	if filled == 0 && percent > 0 && width > 0 {
		filled = 1
	}
	return filled, width - filled
}

// BuildBarString builds the raw bar string (without styling) from filled/empty counts.
func BuildBarString(filled, empty int) string {
	var sb strings.Builder
	sb.Grow((filled + empty) * 3)
	for i := 0; i < filled; i++ {
		sb.WriteRune(BarFilled)
	}
	for i := 0; i < empty; i++ {
		sb.WriteRune(BarEmpty)
	}
	return sb.String()
}

// RenderShareBar renders percent as a bar of width cells in color.
func RenderShareBar(percent float64, width int, color lipgloss.Color) string {
	if width <= 0 {
		return ""
	}
	filled, empty := CalculateBarCounts(percent, width)
	return lipgloss.NewStyle().Foreground(color).Render(BuildBarString(filled, empty))
}
