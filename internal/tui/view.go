package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

const (
	headerHeight         = 2
	footerHeight         = 1
	chartHeight          = 8
	minChartScreenHeight = 24
)

func (p *StreamPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Loading..."
	}
	p.width, p.height = width, height

	if top := p.topModal(); top != nil {
		return top.View(width, height)
	}

	sections := []string{p.renderHeader(width)}
	if p.showChart() {
		sections = append(sections, renderLevelChart(p.records, width, chartHeight))
	}
	sections = append(sections, p.renderList(width, p.listHeight()))
	if p.searching {
		sections = append(sections, p.searchInput.View())
	}
	sections = append(sections, p.renderStatusLine(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (p *StreamPage) renderHeader(width int) string {
	dot := lipgloss.NewStyle().Foreground(stateColor(p.state)).Render("●")
	line := fmt.Sprintf("%s %s %s  %s", titleStyle.Render("logtail"), dot, p.state, helpStyle.Render(p.status.URL))
	if p.status.Error != "" {
		line += "  " + errorTextStyle.Render(p.status.Error)
	}

	second := helpStyle.Render("filter: " + describeFilter(p.filter))
	if p.filterErr != nil {
		second = errorTextStyle.Render("filter: " + p.filterErr.Error())
	}

	clip := lipgloss.NewStyle().MaxWidth(width)
	return lipgloss.JoinVertical(lipgloss.Left, clip.Render(line), clip.Render(second))
}

func describeFilter(f logstream.Filter) string {
	var parts []string
	if f.Service != "" {
		parts = append(parts, "service="+string(f.Service))
	}
	if f.Level != "" {
		parts = append(parts, "level="+string(f.Level))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if !f.Start.IsZero() {
		parts = append(parts, "from="+f.Start.Format("2006-01-02 15:04"))
	}
	if !f.End.IsZero() {
		parts = append(parts, "to="+f.End.Format("2006-01-02 15:04"))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// visibleWindow returns the [start, end) range of rows to draw so the
// selection stays on screen.
func (p *StreamPage) visibleWindow(rows int) (int, int) {
	n := len(p.records)
	start := 0
	if p.selected >= rows {
		start = p.selected - rows + 1
	}
	end := start + rows
	if end > n {
		end = n
	}
	return start, end
}

func (p *StreamPage) renderList(width, rows int) string {
	if len(p.records) == 0 {
		msg := "Waiting for logs..."
		if p.state == logstream.StateClosedWithError {
			msg = "Disconnected. Press r to reconnect."
		}
		return lipgloss.NewStyle().
			Width(width).
			Height(rows).
			Foreground(ColorGray).
			Render(msg)
	}

	start, end := p.visibleWindow(rows)
	lines := make([]string, 0, rows)
	for i := start; i < end; i++ {
		lines = append(lines, renderLogLine(p.records[i], width, i == p.selected))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func renderLogLine(r model.LogRecord, width int, selected bool) string {
	ts := r.Timestamp.Local().Format("15:04:05.000")
	level := fmt.Sprintf("%-5s", strings.ToUpper(string(r.Level)))
	msg := strings.ReplaceAll(r.Message, "\n", " ")

	if selected {
		plain := fmt.Sprintf("%s %s %s %s", ts, level, r.Service, msg)
		return selectedStyle.MaxWidth(width).Render(plain)
	}
	line := fmt.Sprintf("%s %s %s %s",
		helpStyle.Render(ts),
		lipgloss.NewStyle().Foreground(levelColor(r.Level)).Bold(true).Render(level),
		serviceStyle.Render(string(r.Service)),
		msg,
	)
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}

// renderStatusLine draws the bottom bar: connection, pause badge, counts
// and key hints sized to the terminal.
func (p *StreamPage) renderStatusLine(width int) string {
	dot := lipgloss.NewStyle().Foreground(stateColor(p.state)).Background(ColorNavy).Render("●")
	left := dot + statusBarStyle.Render(" "+p.state.String())

	if p.status.Paused {
		left += " " + pausedBadgeStyle.Render(fmt.Sprintf("PAUSED %d pending", p.status.Pending))
	}
	left += statusBarStyle.Render(fmt.Sprintf(" %d/%d logs", p.status.Visible, p.status.Max))

	var hints string
	switch {
	case width >= 110:
		hints = "?: Help • Space: Pause • c: Clear • r: Reconnect • /: Search • l: Level • Enter: Details • q: Quit"
	case width >= 70:
		hints = "?: Help • Space: Pause • /: Search • q: Quit"
	case width >= 40:
		hints = "?: Help • q: Quit"
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(hints) - 1
	if gap < 1 {
		return statusBarStyle.Width(width).MaxWidth(width).Render(left)
	}
	bar := left + statusBarStyle.Render(strings.Repeat(" ", gap)+hints+" ")
	return lipgloss.NewStyle().MaxWidth(width).Render(bar)
}
