package model

import "time"

// ArchiveQuery holds optional filters for archive reads.
type ArchiveQuery struct {
	Service Service // empty = all services
	Levels  []Level // empty = all levels
	Search  string  // case-insensitive substring of message
	Since   time.Time
	Limit   int
}

// ArchiveReader provides read-only queries on archived records.
type ArchiveReader interface {
	TotalLogCount() (int64, error)
	LevelCounts() ([]LevelCount, error)
	ServiceCounts(limit int) ([]DimensionCount, error)
	CountsByMinute(window time.Duration) ([]MinuteCounts, error)
	RecentLogs(q ArchiveQuery) ([]LogRecord, error)
}

// LogWriter provides append-oriented write operations for decoded records.
type LogWriter interface {
	InsertLogBatch(records []*LogRecord) error
}

// RecordSink observes every decoded record in arrival order.
// Implementations must not retain r.Raw past the call without copying.
type RecordSink interface {
	Observe(r LogRecord)
}

// SinkFunc adapts a function to RecordSink.
type SinkFunc func(LogRecord)

func (f SinkFunc) Observe(r LogRecord) { f(r) }
