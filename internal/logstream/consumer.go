package logstream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

// State is the connection state of a Consumer.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedWithError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedWithError:
		return "closed-with-error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const defaultHandshakeTimeout = 15 * time.Second

// Config holds tunable parameters for a Consumer.
type Config struct {
	MaxRecords       int
	HTTPClient       *http.Client
	HandshakeTimeout time.Duration
	Header           http.Header
	Sinks            []model.RecordSink
	Metrics          *Metrics
}

// Status is a point-in-time view of a Consumer for status surfaces.
type Status struct {
	URL     string `json:"url"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Paused  bool   `json:"paused"`
	Visible int    `json:"visible"`
	Pending int    `json:"pending"`
	Max     int    `json:"max"`
}

// Consumer owns one server-sent-events subscription and the bounded,
// pausable history of the records it delivers.
//
// All methods are safe for concurrent use. Transport errors never surface
// as return values; they move the consumer to StateClosedWithError and are
// readable through Err.
type Consumer struct {
	cfg     Config
	client  *http.Client
	decoder *Decoder

	mu     sync.Mutex
	hist   history
	state  State
	err    error
	url    string
	closed bool
	gen    uint64 // bumped on every Open and Close; stale deliveries are dropped
	cancel context.CancelFunc
	done   chan struct{}

	watchers  map[int]chan struct{}
	nextWatch int

	lastMalformedLog atomic.Int64
	malformedCount   atomic.Int64
}

// NewConsumer creates an idle consumer. Call Open to start streaming.
func NewConsumer(conf ...Config) *Consumer {
	var cfg Config
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = model.DefaultMaxRecords
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Consumer{
		cfg:      cfg,
		client:   client,
		decoder:  NewDecoder(),
		hist:     newHistory(cfg.MaxRecords),
		watchers: make(map[int]chan struct{}),
	}
}

// Open subscribes to url, replacing any prior subscription. The previous
// reader has fully stopped by the time Open returns. Open never blocks on
// the handshake.
func (c *Consumer) Open(url string) {
	c.mu.Lock()
	prevCancel, prevDone := c.cancel, c.done
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.url = url
	c.closed = false
	c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone
	}

	go c.run(ctx, gen, url, done)
}

// Reconnect re-opens the last URL. It is a no-op before the first Open and
// after Close.
func (c *Consumer) Reconnect() {
	c.mu.Lock()
	url, closed := c.url, c.closed
	c.mu.Unlock()
	if url == "" || closed {
		return
	}
	c.Open(url)
}

// Close terminates the subscription and waits for the reader to stop.
// It is idempotent. Close must not be called from a RecordSink.
func (c *Consumer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.setStateLocked(StateClosed, nil)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Pause diverts new records to the pending list. Idempotent.
func (c *Consumer) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.hist.paused {
		return
	}
	c.hist.pause()
	c.changedLocked()
}

// Resume flushes pending records into the visible history. Idempotent.
func (c *Consumer) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.hist.paused {
		return
	}
	c.hist.resume()
	c.changedLocked()
}

// Clear empties the visible and pending lists.
func (c *Consumer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.hist.clear()
	c.changedLocked()
}

// Records returns a copy of the visible history, oldest first.
func (c *Consumer) Records() []model.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.snapshot()
}

// Pending returns a copy of the records buffered while paused.
func (c *Consumer) Pending() []model.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.pendingSnapshot()
}

// Paused reports whether the consumer is paused.
func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.paused
}

// State returns the connection state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the transport error behind StateClosedWithError, or nil.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// URL returns the URL passed to the most recent Open.
func (c *Consumer) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// MaxRecords returns the visible history cap.
func (c *Consumer) MaxRecords() int { return c.cfg.MaxRecords }

// Status returns a snapshot of the consumer for status surfaces.
func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		URL:     c.url,
		State:   c.state.String(),
		Paused:  c.hist.paused,
		Visible: len(c.hist.visible),
		Pending: len(c.hist.pending),
		Max:     c.hist.max,
	}
	if c.err != nil {
		st.Error = c.err.Error()
	}
	return st
}

// Watch returns a channel that receives a value after any state or list
// change. Notifications coalesce; the receiver should re-read state. The
// returned func unregisters the watcher.
func (c *Consumer) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// generation returns the current delivery generation.
func (c *Consumer) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// deliver appends r to the active list if gen is still current, then
// hands it to the sinks. Only the reader goroutine calls deliver, so sinks
// observe arrival order.
func (c *Consumer) deliver(gen uint64, r model.LogRecord) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.hist.push(r)
	c.changedLocked()
	c.mu.Unlock()

	c.cfg.Metrics.event("record")
	for _, s := range c.cfg.Sinks {
		s.Observe(r)
	}
}

// handlePayload decodes one data payload and delivers it. Malformed
// payloads and heartbeats leave all state untouched.
func (c *Consumer) handlePayload(gen uint64, data []byte) {
	rec, err := c.decoder.Decode(data)
	switch {
	case err == nil:
		c.deliver(gen, rec)
	case errors.Is(err, ErrHeartbeat):
		c.cfg.Metrics.event("heartbeat")
	default:
		c.cfg.Metrics.event("malformed")
		c.logMalformed(err)
	}
}

// logMalformed emits a throttled note (at most once per 10 seconds) about
// dropped payloads.
func (c *Consumer) logMalformed(err error) {
	count := c.malformedCount.Add(1)
	now := time.Now().Unix()
	last := c.lastMalformedLog.Load()
	if now-last >= 10 && c.lastMalformedLog.CompareAndSwap(last, now) {
		log.Printf("logstream: dropped malformed payload (%d total): %v", count, err)
	}
}

// markOpen records a completed handshake for gen.
func (c *Consumer) markOpen(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return
	}
	c.setStateLocked(StateOpen, nil)
}

// finish records the end of gen's subscription.
func (c *Consumer) finish(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return
	}
	if err == nil {
		err = ErrStreamEnded
	}
	c.setStateLocked(StateClosedWithError, err)
}

func (c *Consumer) setStateLocked(s State, err error) {
	c.state = s
	c.err = err
	c.changedLocked()
}

func (c *Consumer) changedLocked() {
	c.cfg.Metrics.sizes(len(c.hist.visible), len(c.hist.pending))
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
