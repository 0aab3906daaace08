package tui

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// streamServer serves an SSE stream and records each subscription query.
type streamServer struct {
	*httptest.Server
	events chan string

	mu      sync.Mutex
	queries []url.Values
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{events: make(chan string, 64)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-s.events:
				fmt.Fprint(w, ev)
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *streamServer) send(msg string, level model.Level) {
	s.events <- fmt.Sprintf(`data: {"timestamp":"2025-03-01T10:00:00Z","service":"nginx","level":%q,"message":%q}`+"\n\n", level, msg)
}

func (s *streamServer) lastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

func (s *streamServer) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestPage(t *testing.T, srv *streamServer) (*StreamPage, *logstream.Consumer) {
	t.Helper()
	c := logstream.NewConsumer()
	p := NewStreamPage(c, Options{BaseURL: srv.URL})
	t.Cleanup(p.Close)
	p.Init()
	p.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	waitFor(t, "open", func() bool { return c.State() == logstream.StateOpen })
	return p, c
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func spaceKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
}

func TestPauseKeyHoldsRecords(t *testing.T) {
	srv := newStreamServer(t)
	p, c := newTestPage(t, srv)

	srv.send("before", model.LevelInfo)
	waitFor(t, "first record", func() bool { return len(c.Records()) == 1 })

	p.Update(spaceKey())
	if !c.Paused() {
		t.Fatal("consumer not paused after space")
	}

	srv.send("while paused", model.LevelWarn)
	waitFor(t, "pending record", func() bool { return len(c.Pending()) == 1 })
	p.Update(TickMsg(time.Now()))

	if got := len(p.records); got != 1 {
		t.Fatalf("visible records while paused = %d, want 1", got)
	}
	if view := p.View(120, 40); !strings.Contains(view, "PAUSED 1 pending") {
		t.Errorf("view missing paused badge:\n%s", view)
	}

	p.Update(spaceKey())
	if c.Paused() {
		t.Fatal("consumer still paused after second space")
	}
	if got := len(p.records); got != 2 || p.records[1].Message != "while paused" {
		t.Fatalf("records after resume = %+v", p.records)
	}
}

func TestClearKeyEmptiesLists(t *testing.T) {
	srv := newStreamServer(t)
	p, c := newTestPage(t, srv)

	srv.send("one", model.LevelInfo)
	srv.send("two", model.LevelError)
	waitFor(t, "records", func() bool { return len(c.Records()) == 2 })

	p.Update(runeKey("c"))
	if len(c.Records()) != 0 || len(p.records) != 0 {
		t.Fatalf("records after clear: consumer=%d page=%d", len(c.Records()), len(p.records))
	}
}

func TestSearchReopensWithFilter(t *testing.T) {
	srv := newStreamServer(t)
	p, c := newTestPage(t, srv)

	p.Update(runeKey("/"))
	if !p.searching {
		t.Fatal("search input not active")
	}
	p.Update(runeKey("timeout"))
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if p.searching {
		t.Error("search input still active after enter")
	}
	if p.Filter().Search != "timeout" {
		t.Errorf("filter search = %q, want timeout", p.Filter().Search)
	}
	waitFor(t, "resubscribe", func() bool { return srv.subscriptions() == 2 })
	if got := srv.lastQuery().Get("searchTerm"); got != "timeout" {
		t.Errorf("searchTerm = %q, want timeout", got)
	}
	waitFor(t, "open after search", func() bool { return c.State() == logstream.StateOpen })
}

func TestSearchEscapeKeepsFilter(t *testing.T) {
	srv := newStreamServer(t)
	p, _ := newTestPage(t, srv)

	p.Update(runeKey("/"))
	p.Update(runeKey("abc"))
	p.Update(tea.KeyMsg{Type: tea.KeyEsc})

	if p.searching || p.Filter().Search != "" {
		t.Errorf("searching=%v search=%q, want inactive and empty", p.searching, p.Filter().Search)
	}
	if srv.subscriptions() != 1 {
		t.Errorf("subscriptions = %d, want 1", srv.subscriptions())
	}
}

func TestLevelKeyCyclesFilter(t *testing.T) {
	srv := newStreamServer(t)
	p, _ := newTestPage(t, srv)

	p.Update(runeKey("l"))
	if p.Filter().Level != model.LevelInfo {
		t.Fatalf("level = %q, want info", p.Filter().Level)
	}
	waitFor(t, "resubscribe", func() bool { return srv.lastQuery().Get("level") == "info" })
}

func TestNextLevel(t *testing.T) {
	tests := []struct {
		in, want model.Level
	}{
		{"", model.LevelInfo},
		{model.LevelInfo, model.LevelWarn},
		{model.LevelWarn, model.LevelError},
		{model.LevelError, ""},
	}
	for _, tt := range tests {
		if got := nextLevel(tt.in); got != tt.want {
			t.Errorf("nextLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectionFollowsNewest(t *testing.T) {
	p := NewStreamPage(logstream.NewConsumer(), Options{})
	p.height = 40
	for i := 0; i < 5; i++ {
		p.records = append(p.records, model.LogRecord{ID: fmt.Sprint(i), Level: model.LevelInfo})
	}
	p.clampSelection()
	if p.selected != 4 || !p.follow {
		t.Fatalf("selected=%d follow=%v, want 4 true", p.selected, p.follow)
	}

	p.Update(runeKey("k"))
	if p.selected != 3 || p.follow {
		t.Fatalf("after up: selected=%d follow=%v", p.selected, p.follow)
	}

	p.records = append(p.records, model.LogRecord{ID: "5"})
	p.clampSelection()
	if p.selected != 3 {
		t.Errorf("selection moved while not following: %d", p.selected)
	}

	p.Update(runeKey("G"))
	if p.selected != 5 || !p.follow {
		t.Errorf("after G: selected=%d follow=%v", p.selected, p.follow)
	}

	p.Update(runeKey("g"))
	if p.selected != 0 || p.follow {
		t.Errorf("after g: selected=%d follow=%v", p.selected, p.follow)
	}
}

func TestDetailsModalOpensAndCloses(t *testing.T) {
	p := NewStreamPage(logstream.NewConsumer(), Options{})
	p.records = []model.LogRecord{{
		ID:        "req-1",
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Service:   model.ServiceAPI,
		Level:     model.LevelInfo,
		Message:   "GET /api/v1/shows",
		Origin:    model.RequestOrigin{Method: "GET", URL: "/api/v1/shows", Status: 200},
	}}

	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if p.topModal() == nil {
		t.Fatal("enter did not open details")
	}
	view := p.View(100, 40)
	for _, want := range []string{"Log Details", "req-1", "method: GET", "status: 200"} {
		if !strings.Contains(view, want) {
			t.Errorf("details view missing %q", want)
		}
	}

	p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if p.topModal() != nil {
		t.Error("esc did not close details")
	}
}

func TestHelpModalDeduplicates(t *testing.T) {
	p := NewStreamPage(logstream.NewConsumer(), Options{})
	p.pushModal(newHelpModal(p.keys))
	p.pushModal(newHelpModal(p.keys))
	if len(p.modals) != 1 {
		t.Fatalf("modals = %d, want 1", len(p.modals))
	}
	if view := p.View(100, 40); !strings.Contains(view, "pause/resume") {
		t.Error("help view missing pause binding")
	}
	p.Update(runeKey("?"))
	if len(p.modals) != 0 {
		t.Error("? did not close help")
	}
}

func TestQuitClosesConsumer(t *testing.T) {
	srv := newStreamServer(t)
	p, c := newTestPage(t, srv)

	cmd, _ := p.Update(runeKey("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command did not produce QuitMsg")
	}
	if c.State() != logstream.StateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}
	p.Close()
}

func TestLevelCounts(t *testing.T) {
	records := []model.LogRecord{
		{Level: model.LevelInfo},
		{Level: model.LevelError},
		{Level: model.LevelInfo},
		{Level: model.LevelWarn},
	}
	got := levelCounts(records)
	if got[0] != 2 || got[1] != 1 || got[2] != 1 {
		t.Errorf("levelCounts = %v, want [2 1 1]", got)
	}
	if chart := renderLevelChart(records, 80, chartHeight); !strings.Contains(chart, "INFO") {
		t.Error("chart legend missing INFO")
	}
}
