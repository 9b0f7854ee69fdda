package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under headers with a rounded border. cellStyle, when
// non-nil, styles data cells by row and column.
func Table(headers []string, rows [][]string, cellStyle func(row, col int) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(MutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(HeaderStyle)
			}
			if cellStyle != nil {
				return base.Inherit(cellStyle(row, col))
			}
			return base
		})
	return t.String()
}
