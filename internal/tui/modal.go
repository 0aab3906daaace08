package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is a self-contained overlay that owns its own Update/View
// lifecycle. Modals are stacked on the page; the topmost receives all
// input and renders full-screen.
type Modal interface {
	// ID returns a unique identifier used to deduplicate pushes.
	ID() string
	// Update processes a message. Return pop=true to close the modal.
	Update(msg tea.Msg) (pop bool, cmd tea.Cmd)
	// View renders the modal content for the given terminal dimensions.
	View(width, height int) string
}

// scrollModal renders static content in a scrollable bordered frame.
type scrollModal struct {
	id      string
	title   string
	content func(width int) string
	closeOn []string
	vp      viewport.Model
}

func newScrollModal(id, title string, content func(width int) string, closeOn ...string) *scrollModal {
	return &scrollModal{
		id:      id,
		title:   title,
		content: content,
		closeOn: append([]string{"esc", "q"}, closeOn...),
		vp:      viewport.New(0, 0),
	}
}

func (m *scrollModal) ID() string { return m.id }

func (m *scrollModal) Update(msg tea.Msg) (bool, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		for _, k := range m.closeOn {
			if km.String() == k {
				return true, nil
			}
		}
		switch km.String() {
		case "g", "home":
			m.vp.GotoTop()
			return false, nil
		case "G", "end":
			m.vp.GotoBottom()
			return false, nil
		}
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return false, cmd
}

func (m *scrollModal) View(width, height int) string {
	modalWidth := width - 8
	modalHeight := height - 4
	if modalWidth < 20 {
		modalWidth = width
	}
	if modalHeight < 6 {
		modalHeight = height
	}

	contentWidth := modalWidth - 4
	contentHeight := modalHeight - 4

	m.vp.Width = contentWidth
	m.vp.Height = contentHeight
	m.vp.SetContent(lipgloss.NewStyle().Width(contentWidth - 2).Render(m.content(contentWidth - 2)))

	contentPane := lipgloss.NewStyle().
		Width(contentWidth).
		Height(contentHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		Render(m.vp.View())

	header := lipgloss.NewStyle().
		Width(contentWidth).
		Foreground(ColorBlue).
		Bold(true).
		Render(m.title)

	statusItems := []string{"up/down: Scroll", "PgUp/PgDn: Page", "ESC: Close"}
	statusBar := helpStyle.Render(strings.Join(statusItems, " | "))

	modal := lipgloss.JoinVertical(lipgloss.Left, header, contentPane, statusBar)
	framed := lipgloss.NewStyle().
		Width(modalWidth).
		Height(modalHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlue).
		Render(modal)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, framed)
}
