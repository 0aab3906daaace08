package socketrpc

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// stubController records control calls and serves fixed lists.
type stubController struct {
	paused  bool
	cleared bool
	reconns int
	visible []model.LogRecord
	pending []model.LogRecord
}

func (c *stubController) Status() logstream.Status {
	return logstream.Status{State: "open", Paused: c.paused, Visible: len(c.visible), Pending: len(c.pending), Max: 1000}
}
func (c *stubController) Pause()                     { c.paused = true }
func (c *stubController) Resume()                    { c.paused = false }
func (c *stubController) Clear()                     { c.cleared = true; c.visible, c.pending = nil, nil }
func (c *stubController) Reconnect()                 { c.reconns++ }
func (c *stubController) Records() []model.LogRecord { return c.visible }
func (c *stubController) Pending() []model.LogRecord { return c.pending }

// stubArchive returns fixed values and remembers the last query.
type stubArchive struct {
	lastQuery  model.ArchiveQuery
	lastWindow time.Duration
	fail       bool
}

func (a *stubArchive) TotalLogCount() (int64, error) {
	if a.fail {
		return 0, errors.New("disk on fire")
	}
	return 100, nil
}
func (a *stubArchive) LevelCounts() ([]model.LevelCount, error) {
	return []model.LevelCount{{Level: model.LevelInfo, Count: 90}, {Level: model.LevelError, Count: 10}}, nil
}
func (a *stubArchive) ServiceCounts(limit int) ([]model.DimensionCount, error) {
	return []model.DimensionCount{{Value: "nginx", Count: int64(limit)}}, nil
}
func (a *stubArchive) CountsByMinute(window time.Duration) ([]model.MinuteCounts, error) {
	a.lastWindow = window
	return []model.MinuteCounts{{Minute: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Info: 5, Total: 5}}, nil
}
func (a *stubArchive) RecentLogs(q model.ArchiveQuery) ([]model.LogRecord, error) {
	a.lastQuery = q
	return []model.LogRecord{{ID: "x", Message: "archived", Origin: model.ErrorOrigin{Stack: "s"}}}, nil
}

func records(msgs ...string) []model.LogRecord {
	out := make([]model.LogRecord, len(msgs))
	for i, m := range msgs {
		out[i] = model.LogRecord{ID: m, Message: m, Service: model.ServiceAPI, Level: model.LevelInfo}
	}
	return out
}

func call(t *testing.T, s *Server, method string, params any) Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = data
	}
	return s.dispatch(Request{JSONRPC: "2.0", ID: 7, Method: method, Params: raw})
}

func TestDispatchControlMethods(t *testing.T) {
	ctrl := &stubController{visible: records("a", "b")}
	s := NewServer("", ctrl, nil)

	resp := call(t, s, "Pause", nil)
	if resp.Error != nil {
		t.Fatalf("Pause error: %v", resp.Error)
	}
	var st logstream.Status
	if err := json.Unmarshal(resp.Result, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if !st.Paused || resp.ID != 7 {
		t.Errorf("after Pause: status %+v id %d", st, resp.ID)
	}

	call(t, s, "Resume", nil)
	call(t, s, "Reconnect", nil)
	call(t, s, "Clear", nil)
	if ctrl.paused || ctrl.reconns != 1 || !ctrl.cleared {
		t.Errorf("controller = %+v", ctrl)
	}
}

func TestDispatchSnapshot(t *testing.T) {
	ctrl := &stubController{visible: records("a", "b", "c"), pending: records("p")}
	s := NewServer("", ctrl, nil)

	tests := []struct {
		params any
		want   []string
	}{
		{nil, []string{"a", "b", "c"}},
		{map[string]any{"Limit": 2}, []string{"b", "c"}},
		{map[string]any{"Pending": true}, []string{"p"}},
	}
	for _, tt := range tests {
		resp := call(t, s, "Snapshot", tt.params)
		if resp.Error != nil {
			t.Fatalf("Snapshot(%v): %v", tt.params, resp.Error)
		}
		var got []model.LogRecord
		if err := json.Unmarshal(resp.Result, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Snapshot(%v) = %d records, want %v", tt.params, len(got), tt.want)
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("Snapshot(%v)[%d] = %s, want %s", tt.params, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestDispatchArchiveDisabled(t *testing.T) {
	s := NewServer("", &stubController{}, nil)
	resp := call(t, s, "LevelCounts", nil)
	if resp.Error == nil || resp.Error.Code != codeApplication {
		t.Errorf("LevelCounts without archive: %+v", resp.Error)
	}
}

func TestDispatchArchiveMethods(t *testing.T) {
	archive := &stubArchive{}
	s := NewServer("", &stubController{}, archive)

	resp := call(t, s, "RecentLogs", map[string]any{"Query": model.ArchiveQuery{Service: model.ServiceNginx, Levels: []model.Level{model.LevelError}, Limit: 5}})
	if resp.Error != nil {
		t.Fatalf("RecentLogs: %v", resp.Error)
	}
	if archive.lastQuery.Service != model.ServiceNginx || archive.lastQuery.Limit != 5 || len(archive.lastQuery.Levels) != 1 {
		t.Errorf("query = %+v", archive.lastQuery)
	}

	if resp := call(t, s, "CountsByMinute", nil); resp.Error != nil || archive.lastWindow != time.Hour {
		t.Errorf("CountsByMinute default window: err %v window %v", resp.Error, archive.lastWindow)
	}

	var services []model.DimensionCount
	resp = call(t, s, "ServiceCounts", nil)
	if err := json.Unmarshal(resp.Result, &services); err != nil || services[0].Count != 10 {
		t.Errorf("ServiceCounts default limit: %v %v", services, err)
	}

	archive.fail = true
	if resp := call(t, s, "TotalLogCount", nil); resp.Error == nil || resp.Error.Code != codeApplication {
		t.Errorf("failing TotalLogCount: %+v", resp.Error)
	}
}

func TestDispatchErrors(t *testing.T) {
	s := NewServer("", &stubController{}, &stubArchive{})

	tests := []struct {
		name   string
		method string
		params json.RawMessage
		code   int
	}{
		{"unknown method", "DropTables", nil, codeMethodNotFound},
		{"bad params", "RecentLogs", json.RawMessage(`{"Query":"x"}`), codeInvalidParams},
		{"bad level", "RecentLogs", json.RawMessage(`{"Query":{"Levels":["loud"]}}`), codeInvalidParams},
		{"bad window", "CountsByMinute", json.RawMessage(`{"Window":-1}`), codeInvalidParams},
	}
	for _, tt := range tests {
		resp := s.dispatch(Request{JSONRPC: "2.0", ID: 1, Method: tt.method, Params: tt.params})
		if resp.Error == nil || resp.Error.Code != tt.code {
			t.Errorf("%s: error = %+v, want code %d", tt.name, resp.Error, tt.code)
		}
	}
}
