package formatter

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/spotlake/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Padding(0, 1)
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Padding(0, 1)
	newStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// labelStyle colors a delta label: green for up, red for down, orange for "***".
func labelStyle(label string) lipgloss.Style {
	switch {
	case label == "***":
		return newStyle
	case len(label) > 0 && label[0] == '+':
		return upStyle
	case len(label) > 1 && label[0] == '-':
		return downStyle
	default:
		return cellStyle
	}
}

// RecapTable renders rank deltas as a bordered terminal table.
func RecapTable(title string, c models.Category, deltas []models.RankDelta) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Rank", "Move", ColumnName(c)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(deltas) {
				return labelStyle(deltas[row].Label)
			}
			return cellStyle
		})

	for _, d := range deltas {
		t.Row(strconv.Itoa(d.Rank), d.Label, d.Entry.String())
	}

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), t.Render())
}
