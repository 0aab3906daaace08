package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// StreamPageID identifies the live stream page.
const StreamPageID = "stream"

// Options configures a StreamPage.
type Options struct {
	// BaseURL is the stream endpoint before filters are applied.
	BaseURL string
	Filter  logstream.Filter
	// ReconnectDelay enables automatic reconnect when positive.
	ReconnectDelay time.Duration
	// UpdateInterval is the fallback redraw period for relative times.
	UpdateInterval time.Duration
}

// StreamPage shows the live log stream of an in-process consumer. The
// page owns the consumer: it opens it on Init and closes it on quit.
type StreamPage struct {
	consumer    *logstream.Consumer
	reconnector *logstream.Reconnector
	baseURL     string
	filter      logstream.Filter
	interval    time.Duration
	keys        KeyMap

	// Snapshot of the consumer, refreshed on every change notification.
	records []model.LogRecord
	state   logstream.State
	status  logstream.Status

	selected int
	follow   bool

	searching   bool
	searchInput textinput.Model

	modals []Modal
	width  int
	height int

	// filterErr is set when the current filter cannot be applied.
	filterErr error

	changes   <-chan struct{}
	unwatch   func()
	closeOnce sync.Once
}

// NewStreamPage creates a page driving c.
func NewStreamPage(c *logstream.Consumer, opts Options) *StreamPage {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = model.DefaultUpdateInterval
	}

	ti := textinput.New()
	ti.Placeholder = "search messages"
	ti.Prompt = "/ "
	ti.CharLimit = 200

	p := &StreamPage{
		consumer:    c,
		baseURL:     opts.BaseURL,
		filter:      opts.Filter,
		interval:    opts.UpdateInterval,
		keys:        DefaultKeyMap(),
		follow:      true,
		searchInput: ti,
	}
	if opts.ReconnectDelay > 0 {
		p.reconnector = logstream.NewReconnector(c, opts.ReconnectDelay)
	}
	return p
}

func (p *StreamPage) ID() string { return StreamPageID }

// Filter returns the filter currently applied to the stream.
func (p *StreamPage) Filter() logstream.Filter { return p.filter }

// Close stops watching and closes the consumer. Idempotent.
func (p *StreamPage) Close() {
	p.closeOnce.Do(func() {
		if p.unwatch != nil {
			p.unwatch()
		}
		if p.reconnector != nil {
			p.reconnector.Close()
			return
		}
		p.consumer.Close()
	})
}

// open applies the current filter to the base URL and (re)subscribes.
// Lists are kept; only an explicit clear empties them.
func (p *StreamPage) open() {
	if err := p.filter.Validate(); err != nil {
		p.filterErr = err
		return
	}
	url, err := p.filter.Apply(p.baseURL)
	if err != nil {
		p.filterErr = err
		return
	}
	p.filterErr = nil
	if p.reconnector != nil {
		p.reconnector.Open(url)
	} else {
		p.consumer.Open(url)
	}
}

// refresh copies consumer state into the page.
func (p *StreamPage) refresh() {
	p.records = p.consumer.Records()
	p.state = p.consumer.State()
	p.status = p.consumer.Status()
	p.clampSelection()
}

func (p *StreamPage) clampSelection() {
	last := len(p.records) - 1
	if p.follow || p.selected > last {
		p.selected = last
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

// moveSelection moves by delta rows; reaching the newest row resumes follow.
func (p *StreamPage) moveSelection(delta int) {
	if len(p.records) == 0 {
		return
	}
	p.selected += delta
	p.follow = false
	if p.selected <= 0 {
		p.selected = 0
	}
	if last := len(p.records) - 1; p.selected >= last {
		p.selected = last
		p.follow = true
	}
}

func (p *StreamPage) selectedRecord() (model.LogRecord, bool) {
	if p.selected < 0 || p.selected >= len(p.records) {
		return model.LogRecord{}, false
	}
	return p.records[p.selected], true
}

func (p *StreamPage) pushModal(m Modal) {
	for _, existing := range p.modals {
		if existing.ID() == m.ID() {
			return
		}
	}
	p.modals = append(p.modals, m)
}

func (p *StreamPage) topModal() Modal {
	if len(p.modals) == 0 {
		return nil
	}
	return p.modals[len(p.modals)-1]
}

func (p *StreamPage) popModal() {
	if len(p.modals) > 0 {
		p.modals = p.modals[:len(p.modals)-1]
	}
}

// listHeight is the number of log rows that fit on screen.
func (p *StreamPage) listHeight() int {
	h := p.height - headerHeight - footerHeight
	if p.showChart() {
		h -= chartHeight
	}
	if p.searching {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (p *StreamPage) showChart() bool { return p.height >= minChartScreenHeight }
