package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestNewTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "Name", Width: 20},
		{Title: "Status", Width: 10},
	}
	rows := []table.Row{
		{"item1", "ok"},
		{"item2", "error"},
	}

	view := NewTable(columns, rows).View()
	assert.Contains(t, view, "Name")
	assert.Contains(t, view, "Status")
	assert.Contains(t, view, "item1")
	assert.Contains(t, view, "item2")
}

func TestRenderSimpleTable_EmptyRows(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "Name", Width: 10}}, nil))
}

func TestRenderStatsTable(t *testing.T) {
	DisableColors()
	rows := []StatsRow{
		{Label: "Artículo", Count: 10, Max: true},
		{Label: "Tesis", Count: 0, Min: true},
		{Label: "Congreso", Count: 3},
		{Label: "Financiamiento", Count: 1},
	}

	out := RenderStatsTable(rows, 14)

	assert.Contains(t, out, "CATEGORÍA")
	assert.Contains(t, out, "Artículo")
	assert.Contains(t, out, "Financiamiento")
	assert.Contains(t, out, "máx")
	assert.Contains(t, out, "mín")
	assert.Contains(t, out, " 71%")
	assert.True(t, strings.HasSuffix(out, "Total: 14"))
}

func TestRenderStatsTable_NoRecords(t *testing.T) {
	DisableColors()
	rows := []StatsRow{
		{Label: "Artículo", Max: true, Min: false},
		{Label: "Tesis", Min: true},
	}

	out := RenderStatsTable(rows, 0)
	assert.NotContains(t, out, "máx")
	assert.NotContains(t, out, "mín")
	assert.Contains(t, out, "Total: 0")
}

func TestRenderStatsTable_Empty(t *testing.T) {
	assert.Empty(t, RenderStatsTable(nil, 0))
}
