package model

import "time"

// Shared defaults used by both the daemon and TUI binaries.
const (
	DefaultMaxRecords     = 1000
	DefaultUpdateInterval = 2 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultStreamPath     = "/api/v1/logs/stream"
)
