package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/keepwatching/logtail/internal/model"
)

// TickMsg drives periodic redraws.
type TickMsg time.Time

// streamChangedMsg is delivered after the consumer reports a change.
type streamChangedMsg struct{}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForChange blocks until the consumer signals or the watcher is removed.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return streamChangedMsg{}
	}
}

func (p *StreamPage) Init() tea.Cmd {
	if p.unwatch == nil {
		p.changes, p.unwatch = p.consumer.Watch()
	}
	p.open()
	p.refresh()
	return tea.Batch(waitForChange(p.changes), tickCmd(p.interval), textinput.Blink)
}

func (p *StreamPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		p.clampSelection()
		return nil, nil

	case streamChangedMsg:
		p.refresh()
		return waitForChange(p.changes), nil

	case TickMsg:
		p.refresh()
		return tickCmd(p.interval), nil

	case tea.KeyMsg:
		return p.handleKey(msg), nil
	}

	if top := p.topModal(); top != nil {
		pop, cmd := top.Update(msg)
		if pop {
			p.popModal()
		}
		return cmd, nil
	}
	if p.searching {
		var cmd tea.Cmd
		p.searchInput, cmd = p.searchInput.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

func (p *StreamPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, p.keys.ForceQuit) {
		p.Close()
		return tea.Quit
	}

	if top := p.topModal(); top != nil {
		pop, cmd := top.Update(msg)
		if pop {
			p.popModal()
		}
		return cmd
	}

	if p.searching {
		return p.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, p.keys.Quit):
		p.Close()
		return tea.Quit
	case key.Matches(msg, p.keys.Help):
		p.pushModal(newHelpModal(p.keys))
	case key.Matches(msg, p.keys.Pause):
		if p.consumer.Paused() {
			p.consumer.Resume()
		} else {
			p.consumer.Pause()
		}
		p.refresh()
	case key.Matches(msg, p.keys.Clear):
		p.consumer.Clear()
		p.selected = 0
		p.follow = true
		p.refresh()
	case key.Matches(msg, p.keys.Reconnect):
		p.open()
		p.refresh()
	case key.Matches(msg, p.keys.Search):
		p.searching = true
		p.searchInput.SetValue(p.filter.Search)
		p.searchInput.CursorEnd()
		return p.searchInput.Focus()
	case key.Matches(msg, p.keys.Level):
		p.filter.Level = nextLevel(p.filter.Level)
		p.open()
		p.refresh()
	case key.Matches(msg, p.keys.Up):
		p.moveSelection(-1)
	case key.Matches(msg, p.keys.Down):
		p.moveSelection(1)
	case key.Matches(msg, p.keys.PageUp):
		p.moveSelection(-p.listHeight())
	case key.Matches(msg, p.keys.PageDown):
		p.moveSelection(p.listHeight())
	case key.Matches(msg, p.keys.Home):
		if len(p.records) > 0 {
			p.selected = 0
			p.follow = false
		}
	case key.Matches(msg, p.keys.End):
		p.follow = true
		p.clampSelection()
	case key.Matches(msg, p.keys.Enter):
		if r, ok := p.selectedRecord(); ok {
			p.pushModal(newDetailsModal(r))
		}
	}
	return nil
}

func (p *StreamPage) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		p.searching = false
		p.searchInput.Blur()
		term := strings.TrimSpace(p.searchInput.Value())
		if term != p.filter.Search {
			p.filter.Search = term
			p.open()
			p.refresh()
		}
		return nil
	case tea.KeyEsc:
		p.searching = false
		p.searchInput.Blur()
		return nil
	}
	var cmd tea.Cmd
	p.searchInput, cmd = p.searchInput.Update(msg)
	return cmd
}

// nextLevel cycles all -> info -> warn -> error -> all.
func nextLevel(l model.Level) model.Level {
	if l == "" {
		return model.Levels[0]
	}
	for i, lv := range model.Levels {
		if lv == l && i+1 < len(model.Levels) {
			return model.Levels[i+1]
		}
	}
	return ""
}
