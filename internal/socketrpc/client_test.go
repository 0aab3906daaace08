package socketrpc_test

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepwatching/logtail/internal/duckdb"
	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
	"github.com/keepwatching/logtail/internal/socketrpc"
)

// streamServer serves a fixed set of payloads then holds the stream open.
func streamServer(t *testing.T, payloads ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, p := range payloads {
			w.Write([]byte("data: " + p + "\n\n"))
		}
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func payload(id, msg string) string {
	return `{"logId":"` + id + `","timestamp":"2025-03-01T10:00:00Z","service":"KeepWatching-API","level":"info","message":"` + msg + `"}`
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startServer(t *testing.T, ctrl socketrpc.Controller, archive model.ArchiveReader) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "logtail.sock")
	srv := socketrpc.NewServer(sockPath, ctrl, archive)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return sockPath
}

func dial(t *testing.T, path string) *socketrpc.Client {
	t.Helper()
	client, err := socketrpc.Dial(path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientControlsLiveConsumer(t *testing.T) {
	stream := streamServer(t, payload("1", "one"), payload("2", "two"))
	c := logstream.NewConsumer()
	t.Cleanup(c.Close)
	c.Open(stream.URL)
	waitFor(t, "records", func() bool { return len(c.Records()) == 2 })

	client := dial(t, startServer(t, c, nil))

	st, err := client.Pause()
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !st.Paused || st.State != "open" || st.Visible != 2 {
		t.Errorf("status after Pause = %+v", st)
	}
	if !c.Paused() {
		t.Error("consumer not paused")
	}

	snap, err := client.Snapshot(1, false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 || snap[0].Message != "two" || snap[0].Kind() != model.OriginApp {
		t.Errorf("Snapshot = %+v", snap)
	}

	if _, err := client.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	st, err = client.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if st.Visible != 0 || st.Paused {
		t.Errorf("status after Clear = %+v", st)
	}

	if _, err := client.RecentLogs(model.ArchiveQuery{}); err == nil {
		t.Error("RecentLogs without archive succeeded")
	}
}

func TestClientArchiveRoundtrip(t *testing.T) {
	store, err := duckdb.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now().UTC()
	recs := []*model.LogRecord{
		{ID: "a", Timestamp: now, Service: model.ServiceNginx, Level: model.LevelWarn, Message: "GET /x",
			Origin: model.AccessOrigin{RemoteAddr: "10.0.0.1", Status: 404}},
		{ID: "b", Timestamp: now, Service: model.ServiceAPI, Level: model.LevelInfo, Message: "ok", Origin: model.AppOrigin{}},
	}
	if err := store.InsertLogBatch(recs); err != nil {
		t.Fatalf("InsertLogBatch: %v", err)
	}

	client := dial(t, startServer(t, logstream.NewConsumer(), store))

	total, err := client.TotalLogCount()
	if err != nil || total != 2 {
		t.Errorf("TotalLogCount = %d, %v", total, err)
	}
	levels, err := client.LevelCounts()
	if err != nil || len(levels) != 3 || levels[1].Count != 1 {
		t.Errorf("LevelCounts = %v, %v", levels, err)
	}
	services, err := client.ServiceCounts(5)
	if err != nil || len(services) != 2 {
		t.Errorf("ServiceCounts = %v, %v", services, err)
	}
	minutes, err := client.CountsByMinute(time.Hour)
	if err != nil || len(minutes) != 1 || minutes[0].Total != 2 {
		t.Errorf("CountsByMinute = %v, %v", minutes, err)
	}
	logs, err := client.RecentLogs(model.ArchiveQuery{Levels: []model.Level{model.LevelWarn}})
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("RecentLogs = %d records, want 1", len(logs))
	}
	if o, ok := logs[0].Origin.(model.AccessOrigin); !ok || o.Status != 404 {
		t.Errorf("origin = %#v", logs[0].Origin)
	}
}

func TestMalformedRequestGetsParseError(t *testing.T) {
	path := startServer(t, logstream.NewConsumer(), nil)
	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("{not json\n"))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp socketrpc.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Errorf("error = %+v, want -32700", resp.Error)
	}
}

func TestStartRefusesLiveSocket(t *testing.T) {
	path := startServer(t, logstream.NewConsumer(), nil)
	second := socketrpc.NewServer(path, logstream.NewConsumer(), nil)
	if err := second.Start(); err == nil {
		second.Stop()
		t.Fatal("second server started on a live socket")
	}
}

func TestStopWithIdleClient(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "idle.sock")
	srv := socketrpc.NewServer(sockPath, logstream.NewConsumer(), nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	client := dial(t, sockPath)
	if _, err := client.Status(); err != nil {
		t.Fatalf("Status: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an idle client")
	}
}
