package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/keepwatching/logtail/internal/model"
)

// levelCounts tallies records per level in model.Levels order.
func levelCounts(records []model.LogRecord) []int {
	counts := make([]int, len(model.Levels))
	for _, r := range records {
		for i, l := range model.Levels {
			if r.Level == l {
				counts[i]++
				break
			}
		}
	}
	return counts
}

// renderLevelChart draws one bar per level for the visible records with a
// legend on the right.
func renderLevelChart(records []model.LogRecord, width, height int) string {
	style := sectionStyle.Width(width - 2).Height(height - 2)
	title := chartTitleStyle.Render(fmt.Sprintf("Levels (%d visible)", len(records)))
	innerHeight := height - 3
	if innerHeight < 1 || width < 20 {
		return style.Render(title)
	}

	counts := levelCounts(records)
	if len(records) == 0 {
		return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("No data available")))
	}

	const legendWidth = 24
	chartWidth := width - 4 - legendWidth
	if chartWidth < len(model.Levels)*2 {
		chartWidth = len(model.Levels) * 2
	}
	barWidth := (chartWidth - (len(model.Levels) - 1)) / len(model.Levels)
	if barWidth > 12 {
		barWidth = 12
	}
	if barWidth < 1 {
		barWidth = 1
	}

	bc := barchart.New(chartWidth, innerHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)
	for i, l := range model.Levels {
		c := levelColor(l)
		bc.Push(barchart.BarData{
			Label: string(l),
			Values: []barchart.BarValue{{
				Name:  string(l),
				Value: float64(counts[i]),
				Style: lipgloss.NewStyle().Foreground(c).Background(c),
			}},
		})
	}
	bc.Draw()

	var legend []string
	for i, l := range model.Levels {
		pct := float64(counts[i]) * 100 / float64(len(records))
		swatch := lipgloss.NewStyle().Foreground(levelColor(l)).Render("■")
		legend = append(legend, fmt.Sprintf("%s %-5s %5d %5.1f%%", swatch, strings.ToUpper(string(l)), counts[i], pct))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		bc.View(),
		"  ",
		strings.Join(legend, "\n"),
	)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}
