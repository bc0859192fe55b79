package report

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nameStyle   = cellStyle.Foreground(lipgloss.Color("#AAAAAA"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// SummaryTable renders the posterior summary and predictive interval for a
// terminal.
func (r *Report) SummaryTable() string {
	pct := int(math.Round(r.HDIProb * 100))
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("parameter", "mean", "sd", fmt.Sprintf("hdi %d%% low", pct), fmt.Sprintf("hdi %d%% high", pct), "ess", "r_hat").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			default:
				return cellStyle
			}
		})
	for _, s := range r.Summary {
		t.Row(s.Name, num(s.Mean), num(s.SD), num(s.HDILow), num(s.HDIHigh), count(s.ESS), num(s.RHat))
	}
	if pr := r.Predictive; pr != nil {
		t.Row("y (predictive)", num(pr.Mean), "", num(pr.Low), num(pr.High), "", "")
	}
	return t.Render()
}
