package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 method reference
//
// The control socket exposes the live consumer and, when archiving is
// enabled, read-only archive queries. Stream-control methods return the
// consumer Status after the action.
//
//	Method          Params                            Result
//	──────────────  ────────────────────────────────  ───────────────────
//	Status          (none)                            logstream.Status
//	Pause           (none)                            logstream.Status
//	Resume          (none)                            logstream.Status
//	Clear           (none)                            logstream.Status
//	Reconnect       (none)                            logstream.Status
//	Snapshot        {Limit: int, Pending: bool}       []LogRecord
//	TotalLogCount   (none)                            int64
//	LevelCounts     (none)                            []LevelCount
//	ServiceCounts   {Limit: int}                      []DimensionCount
//	CountsByMinute  {Window: time.Duration}           []MinuteCounts
//	RecentLogs      {Query: ArchiveQuery}             []LogRecord
//
// Error codes follow JSON-RPC 2.0.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeApplication    = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath prefers $XDG_RUNTIME_DIR/logtail/logtail.sock and
// falls back to ~/.local/state/logtail/logtail.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "logtail", "logtail.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "logtail.sock")
	}
	return filepath.Join(home, ".local", "state", "logtail", "logtail.sock")
}
