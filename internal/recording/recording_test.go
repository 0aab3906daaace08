package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

func sampleRecords() []model.LogRecord {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.LogRecord{
		{
			ID: "1", Timestamp: base, Service: model.ServiceAPI, Level: model.LevelInfo,
			Message: "GET /shows",
			Origin:  model.RequestOrigin{Method: "GET", URL: "/shows", Status: 200},
			Raw:     []byte(`{"message":"GET /shows"}`),
		},
		{
			ID: "2", Timestamp: base.Add(time.Second), Service: model.ServiceAPIError, Level: model.LevelError,
			Message: "boom",
			Origin:  model.ErrorOrigin{Stack: "at x.js:1"},
		},
		{
			ID: "3", Timestamp: base.Add(2 * time.Second), Service: model.ServiceNginx, Level: model.LevelWarn,
			Message: "GET /missing",
			Origin:  model.AccessOrigin{RemoteAddr: "10.0.0.1", Status: 404},
		},
	}
}

func writeRecording(t *testing.T, path string, records []model.LogRecord) {
	t.Helper()
	rec, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, r := range records {
		rec.Observe(r)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if rec.Written() != int64(len(records)) {
		t.Errorf("Written = %d, want %d", rec.Written(), len(records))
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	for _, name := range []string{"session.jsonl", "session.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := sampleRecords()
			writeRecording(t, path, want)

			got, err := ReadAll(path)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("ReadAll returned %d records, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].ID != want[i].ID || got[i].Kind() != want[i].Kind() || !got[i].Timestamp.Equal(want[i].Timestamp) {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
				}
			}
			if string(got[0].Raw) != `{"message":"GET /shows"}` {
				t.Errorf("Raw = %s", got[0].Raw)
			}
			if o := got[2].Origin.(model.AccessOrigin); o.Status != 404 {
				t.Errorf("access status = %d, want 404", o.Status)
			}
		})
	}
}

func TestCompressedFileIsNotPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl.zst")
	writeRecording(t, path, sampleRecords())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// zstd frame magic
	if len(data) < 4 || data[0] != 0x28 || data[1] != 0xb5 || data[2] != 0x2f || data[3] != 0xfd {
		t.Errorf("file does not start with zstd magic: % x", data[:min(4, len(data))])
	}
}

func TestReaderReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"1\",\"kind\":\"app\"}\n\nnot json\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rd, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rd.Close()
	var n int
	for rd.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("read %d records before error, want 1", n)
	}
	if rd.Err() == nil {
		t.Error("Err() = nil, want line error")
	}
}

func TestObserveAfterCloseIsCounted(t *testing.T) {
	rec, err := Create(filepath.Join(t.TempDir(), "x.jsonl"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec.Close()
	rec.Observe(sampleRecords()[0])
	if rec.Written() != 0 {
		t.Errorf("Written = %d after Close, want 0", rec.Written())
	}
	if err := rec.Flush(); err != ErrClosed {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
}
