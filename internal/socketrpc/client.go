package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/model"
)

// Client talks to a running daemon over its control socket. It implements
// model.ArchiveReader.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params any, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		paramsData = data
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d, want %d", resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

var _ model.ArchiveReader = (*Client)(nil)

func (c *Client) control(method string) (logstream.Status, error) {
	var st logstream.Status
	err := c.call(method, nil, &st)
	return st, err
}

// Status returns the daemon's consumer status.
func (c *Client) Status() (logstream.Status, error) { return c.control("Status") }

// Pause pauses the daemon's consumer.
func (c *Client) Pause() (logstream.Status, error) { return c.control("Pause") }

// Resume resumes the daemon's consumer, flushing pending records.
func (c *Client) Resume() (logstream.Status, error) { return c.control("Resume") }

// Clear empties the visible and pending lists.
func (c *Client) Clear() (logstream.Status, error) { return c.control("Clear") }

// Reconnect re-opens the stream at its current URL.
func (c *Client) Reconnect() (logstream.Status, error) { return c.control("Reconnect") }

// Snapshot returns up to limit of the newest visible records, or pending
// records when pending is set. limit <= 0 returns all.
func (c *Client) Snapshot(limit int, pending bool) ([]model.LogRecord, error) {
	var result []model.LogRecord
	err := c.call("Snapshot", map[string]any{"Limit": limit, "Pending": pending}, &result)
	return result, err
}

func (c *Client) TotalLogCount() (int64, error) {
	var result int64
	err := c.call("TotalLogCount", nil, &result)
	return result, err
}

func (c *Client) LevelCounts() ([]model.LevelCount, error) {
	var result []model.LevelCount
	err := c.call("LevelCounts", nil, &result)
	return result, err
}

func (c *Client) ServiceCounts(limit int) ([]model.DimensionCount, error) {
	var result []model.DimensionCount
	err := c.call("ServiceCounts", map[string]any{"Limit": limit}, &result)
	return result, err
}

func (c *Client) CountsByMinute(window time.Duration) ([]model.MinuteCounts, error) {
	var result []model.MinuteCounts
	err := c.call("CountsByMinute", map[string]any{"Window": window}, &result)
	return result, err
}

func (c *Client) RecentLogs(q model.ArchiveQuery) ([]model.LogRecord, error) {
	var result []model.LogRecord
	err := c.call("RecentLogs", map[string]any{"Query": q}, &result)
	return result, err
}
