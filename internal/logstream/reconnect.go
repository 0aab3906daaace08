package logstream

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keepwatching/logtail/internal/model"
)

// Reconnector re-opens a Consumer a fixed delay after each transport
// error. It adds policy around the consumer without changing it.
type Reconnector struct {
	c       *Consumer
	delay   time.Duration
	metrics *Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	attempts atomic.Int64
}

// NewReconnector wraps c. A non-positive delay uses the default.
func NewReconnector(c *Consumer, delay time.Duration) *Reconnector {
	if delay <= 0 {
		delay = model.DefaultReconnectDelay
	}
	return &Reconnector{c: c, delay: delay, metrics: c.cfg.Metrics}
}

// Consumer returns the wrapped consumer.
func (r *Reconnector) Consumer() *Consumer { return r.c }

// Attempts returns the number of automatic reconnects issued.
func (r *Reconnector) Attempts() int64 { return r.attempts.Load() }

// Open opens url on the consumer and starts supervising it.
func (r *Reconnector) Open(url string) {
	r.stop()

	// Watch before opening so a fast failure is not missed.
	changes, unwatch := r.c.Watch()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	r.c.Open(url)
	go r.loop(ctx, changes, unwatch, done)
}

// Close stops supervising and closes the consumer.
func (r *Reconnector) Close() {
	r.stop()
	r.c.Close()
}

func (r *Reconnector) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Reconnector) loop(ctx context.Context, changes <-chan struct{}, unwatch func(), done chan struct{}) {
	defer close(done)
	defer unwatch()

	for {
		if r.c.State() == StateClosedWithError {
			timer := time.NewTimer(r.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// Someone else may have re-opened or closed while we waited.
			if r.c.State() == StateClosedWithError {
				n := r.attempts.Add(1)
				r.metrics.reconnect()
				log.Printf("logstream: reconnecting to %s (attempt %d)", r.c.URL(), n)
				r.c.Reconnect()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
	}
}
