package model

import "time"

// Level is the normalized severity of a log record.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Levels lists every level in ascending severity.
var Levels = []Level{LevelInfo, LevelWarn, LevelError}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}

// Service names the process that emitted a record.
type Service string

// Services emitted by the KeepWatching backend.
const (
	ServiceAPI      Service = "KeepWatching-API"
	ServiceAPIError Service = "KeepWatching-API-Error"
	ServiceApp      Service = "KeepWatching-App"
	ServiceNginx    Service = "nginx"
	ServicePM2      Service = "pm2"
)

// LogRecord is one decoded event from the log stream.
// It is the canonical type for display, archive, and socket RPC.
type LogRecord struct {
	ID        string
	Timestamp time.Time
	Service   Service
	Level     Level
	Message   string
	Origin    Origin
	Raw       []byte // original payload
}

// Kind returns the origin kind of r, defaulting to OriginApp.
func (r LogRecord) Kind() OriginKind {
	if r.Origin == nil {
		return OriginApp
	}
	return r.Origin.Kind()
}

// LevelCount is the number of archived records at one level.
type LevelCount struct {
	Level Level
	Count int64
}

// DimensionCount represents grouped counts by a single dimension value
// (for example service).
type DimensionCount struct {
	Value string
	Count int64
}

// MinuteCounts represents level counts for one minute.
type MinuteCounts struct {
	Minute time.Time
	Info   int64
	Warn   int64
	Error  int64
	Total  int64
}
