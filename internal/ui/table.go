package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		// Header and its border take two lines; the viewport pads any surplus.
		table.WithHeight(len(rows)+2),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is selectable, so the selected row looks like any other.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return trimBlankLines(NewTable(columns, tableRows).View())
}

// trimBlankLines drops the viewport's trailing padding lines.
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// StatsRow is one category line of the statistics table.
type StatsRow struct {
	Label string
	Count int
	Max   bool
	Min   bool
}

const statsBarWidth = 20

// RenderStatsTable renders record counts per category with each one's share
// of the total, followed by a total line.
func RenderStatsTable(rows []StatsRow, total int) string {
	if len(rows) == 0 {
		return ""
	}

	columns := []TableColumn{
		{Title: "CATEGORÍA", Width: 16},
		{Title: "REGISTROS", Width: 10},
		{Title: "PROPORCIÓN", Width: statsBarWidth + 7},
		{Title: "", Width: 8},
	}

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		pct := Percent(r.Count, total)
		color := ColorSecondary
		mark := ""
		switch {
		case r.Max && total > 0:
			color, mark = ColorSuccess, "máx"
		case r.Min && total > 0:
			color, mark = ColorWarning, "mín"
		}
		out = append(out, []string{
			r.Label,
			strconv.Itoa(r.Count),
			fmt.Sprintf("%s %3.0f%%", RenderShareBar(pct, statsBarWidth, color), pct),
			mark,
		})
	}

	return RenderSimpleTable(columns, out) + "\n" +
		HeaderStyle().Render(fmt.Sprintf("Total: %d", total))
}
