package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBarCounts(t *testing.T) {
	tests := []struct {
		name       string
		percent    float64
		width      int
		wantFilled int
		wantEmpty  int
	}{
		{"zero", 0, 10, 0, 10},
		{"half", 50, 10, 5, 5},
		{"full", 100, 10, 10, 0},
		{"over", 150, 10, 10, 0},
		{"tiny share still shows", 1, 10, 1, 9},
		{"negative", -5, 10, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filled, empty := CalculateBarCounts(tt.percent, tt.width)
			assert.Equal(t, tt.wantFilled, filled)
			assert.Equal(t, tt.wantEmpty, empty)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 25.0, Percent(1, 4))
}

func TestRenderShareBar(t *testing.T) {
	DisableColors()
	assert.Equal(t, "██░░", RenderShareBar(50, 4, ColorSuccess))
	assert.Empty(t, RenderShareBar(50, 0, ColorSuccess))
}
