package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepwatching/logtail/internal/journal"
	"github.com/keepwatching/logtail/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

type journaledRecord struct {
	seq    uint64
	record *model.LogRecord
}

// InsertBuffer batches log records and flushes them to DuckDB asynchronously.
// Add never blocks on DuckDB writes.
type InsertBuffer struct {
	writer        model.LogWriter
	mu            sync.Mutex
	pending       []journaledRecord
	flushChan     chan []journaledRecord
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	journal       *journal.Journal

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix seconds
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Journal        *journal.Journal // nil disables journaling
}

// NewInsertBuffer creates a new insert buffer that flushes to writer.
func NewInsertBuffer(writer model.LogWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 500
	flushInterval := 250 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	var j *journal.Journal
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
		j = conf[0].Journal
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]journaledRecord, 0, batchSize),
		flushChan:     make(chan []journaledRecord, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		journal:       j,
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure logs at most once per 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: archive falling behind, %d inline flushes so far", count)
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]journaledRecord, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch, "tick")
}

// enqueue hands batch to the flush worker, flushing inline when the queue is full.
func (b *InsertBuffer) enqueue(batch []journaledRecord, from string) {
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		if err := b.flushBatch(batch); err != nil {
			log.Printf("duckdb: flush error (%s, inline): %v", from, err)
		}
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.flushBatch(batch); err != nil {
			log.Printf("duckdb: flush error: %v", err)
		}
	}
}

// Observe queues r for archiving. It lets the buffer act as a stream sink.
func (b *InsertBuffer) Observe(r model.LogRecord) {
	b.Add(&r)
}

// Add queues a record for batch insertion. The raw payload is journaled
// first when a journal is configured.
func (b *InsertBuffer) Add(record *model.LogRecord) {
	select {
	case <-b.done:
		return
	default:
	}

	seq := uint64(0)
	if b.journal != nil && len(record.Raw) > 0 {
		for {
			var err error
			seq, err = b.journal.Append(record.Raw)
			if err == nil {
				break
			}
			log.Printf("duckdb: journal append failed, retrying: %v", err)
			select {
			case <-b.done:
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}

	b.mu.Lock()
	b.pending = append(b.pending, journaledRecord{seq: seq, record: record})
	var batch []journaledRecord
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]journaledRecord, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch, "overflow")
	}
}

// Stop flushes remaining records and waits for all writes to complete.
// It closes the journal. Safe to call more than once.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		// tickLoop performs the final drain before flushChan closes.
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
		if b.journal != nil {
			if err := b.journal.Close(); err != nil {
				log.Printf("duckdb: journal close error: %v", err)
			}
		}
	})
}

func (b *InsertBuffer) flushBatch(batch []journaledRecord) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]*model.LogRecord, 0, len(batch))
	maxSeq := uint64(0)
	for _, item := range batch {
		records = append(records, item.record)
		maxSeq = max(maxSeq, item.seq)
	}

	if err := b.writer.InsertLogBatch(records); err != nil {
		return err
	}

	if b.journal != nil && maxSeq > 0 {
		if err := b.journal.Commit(maxSeq); err != nil {
			return fmt.Errorf("journal commit seq=%d: %w", maxSeq, err)
		}
	}
	return nil
}

// InsertLogBatch archives records in a single transaction. Records whose
// id is already archived are skipped. If the batch fails it is retried
// record by record so one bad row does not lose the rest.
func (s *Store) InsertLogBatch(records []*model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertBatchTx(ctx, records); err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertBatchTx(ctx, []*model.LogRecord{r}); rerr != nil {
			failed++
			log.Printf("duckdb: dropping record (service=%s msg=%.80s): %v", r.Service, r.Message, rerr)
		}
	}
	if failed > 0 {
		log.Printf("duckdb: batch partially failed, %d/%d records dropped", failed, len(records))
	}
	return nil
}

func (s *Store) insertBatchTx(ctx context.Context, records []*model.LogRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO logs (id, timestamp, service, level, message, origin, details, raw) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		details := []byte("{}")
		if r.Origin != nil {
			if data, merr := json.Marshal(r.Origin); merr != nil {
				log.Printf("duckdb: marshal origin for %s: %v", r.ID, merr)
			} else {
				details = data
			}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Timestamp.UTC(), string(r.Service), string(r.Level),
			r.Message, string(r.Kind()), string(details), string(r.Raw),
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
