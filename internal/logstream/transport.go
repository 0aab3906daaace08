package logstream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	sse "github.com/tmaxmax/go-sse"
)

var (
	// ErrStreamEnded reports that the server closed the stream.
	ErrStreamEnded = errors.New("logstream: stream ended by server")
	// ErrHandshakeTimeout reports that response headers did not arrive in time.
	ErrHandshakeTimeout = errors.New("logstream: handshake timed out")
)

// maxEventSize bounds a single SSE event; request logs with bodies can be
// larger than the parser's 64KB default.
const maxEventSize = 1 << 20

var readConfig = &sse.ReadConfig{MaxEventSize: maxEventSize}

// run owns one subscription for gen and reports its end.
func (c *Consumer) run(ctx context.Context, gen uint64, url string, done chan struct{}) {
	defer close(done)
	err := c.stream(ctx, gen, url)
	if ctx.Err() != nil {
		// Closed or replaced; the caller already moved the state on.
		return
	}
	log.Printf("logstream: %s: %v", url, err)
	c.finish(gen, err)
}

func (c *Consumer) stream(ctx context.Context, gen uint64, url string) error {
	reqCtx, cancelReq := context.WithCancel(ctx)
	defer cancelReq()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		c.cfg.Metrics.connection("error")
		return fmt.Errorf("logstream: build request: %w", err)
	}
	for k, vs := range c.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	timer := time.AfterFunc(c.cfg.HandshakeTimeout, cancelReq)
	res, err := c.client.Do(req)
	if err != nil {
		timer.Stop()
		c.cfg.Metrics.connection("error")
		if ctx.Err() == nil && reqCtx.Err() != nil {
			return ErrHandshakeTimeout
		}
		return fmt.Errorf("logstream: connect: %w", err)
	}
	defer res.Body.Close()
	if !timer.Stop() {
		c.cfg.Metrics.connection("error")
		return ErrHandshakeTimeout
	}

	if err := sse.DefaultValidator(res); err != nil {
		c.cfg.Metrics.connection("error")
		return fmt.Errorf("logstream: handshake: %w", err)
	}

	c.cfg.Metrics.connection("open")
	c.markOpen(gen)
	log.Printf("logstream: connected to %s", url)

	for ev, err := range sse.Read(res.Body, readConfig) {
		if err != nil {
			return fmt.Errorf("logstream: read: %w", err)
		}
		if controlEventTypes[ev.Type] || ev.Data == "" {
			c.cfg.Metrics.event("heartbeat")
			continue
		}
		c.handlePayload(gen, []byte(ev.Data))
	}
	return ErrStreamEnded
}
