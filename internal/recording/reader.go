package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/keepwatching/logtail/internal/model"
	"github.com/klauspost/compress/zstd"
)

const maxLineSize = 4 * 1024 * 1024

// Reader iterates the records of a recording in file order.
//
//	rd, _ := recording.Open(path)
//	defer rd.Close()
//	for rd.Next() {
//		use(rd.Record())
//	}
//	return rd.Err()
type Reader struct {
	file    *os.File
	zr      *zstd.Decoder
	scanner *bufio.Scanner
	line    int
	rec     model.LogRecord
	err     error
}

// Open opens a recording written by Recorder.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recording: open: %w", err)
	}
	rd := &Reader{file: f}
	var src io.Reader = f
	if Compressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("recording: zstd reader: %w", err)
		}
		rd.zr = zr
		src = zr
	}
	rd.scanner = bufio.NewScanner(src)
	rd.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return rd, nil
}

// Next advances to the next record. Blank lines are skipped. It returns
// false at end of file or on the first error.
func (rd *Reader) Next() bool {
	if rd.err != nil {
		return false
	}
	for rd.scanner.Scan() {
		rd.line++
		line := rd.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			rd.err = fmt.Errorf("recording: line %d: %w", rd.line, err)
			return false
		}
		rd.rec = rec
		return true
	}
	if err := rd.scanner.Err(); err != nil {
		rd.err = fmt.Errorf("recording: read: %w", err)
	}
	return false
}

// Record returns the record read by the last call to Next.
func (rd *Reader) Record() model.LogRecord { return rd.rec }

// Err returns the first error encountered by Next.
func (rd *Reader) Err() error { return rd.err }

// Close releases the file.
func (rd *Reader) Close() error {
	if rd.zr != nil {
		rd.zr.Close()
	}
	return rd.file.Close()
}

// ReadAll loads every record of the recording at path.
func ReadAll(path string) ([]model.LogRecord, error) {
	rd, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var out []model.LogRecord
	for rd.Next() {
		out = append(out, rd.Record())
	}
	return out, rd.Err()
}
