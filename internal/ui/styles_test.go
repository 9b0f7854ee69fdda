package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderPlainWithoutColor(t *testing.T) {
	DisableColor()

	assert.Equal(t, "ok", RenderPass("ok"))
	assert.Equal(t, "careful", RenderWarn("careful"))
	assert.Equal(t, "broken", RenderFail("broken"))
	assert.Equal(t, "note", RenderAccent("note"))
}

func TestField(t *testing.T) {
	DisableColor()

	got := Field("Targets", 10, "2")
	assert.Equal(t, "Targets:   2", got)
}

func TestTable(t *testing.T) {
	DisableColor()

	out := Table([]string{"Kind", "Path"}, [][]string{
		{"new", "/data/a.txt"},
		{"deleted", "/data/b.txt"},
	}, func(row, col int) lipgloss.Style {
		return lipgloss.NewStyle()
	})

	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, out, "Kind")
	assert.Contains(t, out, "/data/b.txt")
}
