// Package recording writes decoded stream records to JSON Lines files and
// reads them back for replay. Files ending in .zst are zstd-compressed.
package recording

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepwatching/logtail/internal/model"
	"github.com/klauspost/compress/zstd"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("recording: closed")

// Compressed reports whether path names a zstd recording.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Recorder appends records to a recording file. It is a model.RecordSink.
type Recorder struct {
	mu   sync.Mutex
	path string
	file *os.File
	zw   *zstd.Encoder // nil when uncompressed
	bw   *bufio.Writer
	enc  *json.Encoder

	written   atomic.Int64
	failures  atomic.Int64
	lastError atomic.Int64 // unix seconds of last logged write error
}

var _ model.RecordSink = (*Recorder)(nil)

// Create truncates or creates the recording at path.
func Create(path string) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("recording: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("recording: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recording: create: %w", err)
	}

	r := &Recorder{path: path, file: f}
	var w io.Writer = f
	if Compressed(path) {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("recording: zstd writer: %w", err)
		}
		r.zw = zw
		w = zw
	}
	r.bw = bufio.NewWriterSize(w, 64*1024)
	r.enc = json.NewEncoder(r.bw)
	return r, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Written returns the number of records successfully encoded.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Observe appends rec as one JSON line. Write errors are logged at most
// once per 10 seconds and counted.
func (r *Recorder) Observe(rec model.LogRecord) {
	if err := r.write(rec); err != nil {
		n := r.failures.Add(1)
		now := time.Now().Unix()
		last := r.lastError.Load()
		if now-last >= 10 && r.lastError.CompareAndSwap(last, now) {
			log.Printf("recording: write %s failed (%d total): %v", r.path, n, err)
		}
	}
}

func (r *Recorder) write(rec model.LogRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ErrClosed
	}
	if err := r.enc.Encode(rec); err != nil {
		return err
	}
	r.written.Add(1)
	return nil
}

// Flush pushes buffered records to the file.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ErrClosed
	}
	if err := r.bw.Flush(); err != nil {
		return fmt.Errorf("recording: flush: %w", err)
	}
	if r.zw != nil {
		if err := r.zw.Flush(); err != nil {
			return fmt.Errorf("recording: zstd flush: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the file. Safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	var errs []error
	if err := r.bw.Flush(); err != nil {
		errs = append(errs, err)
	}
	if r.zw != nil {
		if err := r.zw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	r.file = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("recording: close: %w", err)
	}
	return nil
}
