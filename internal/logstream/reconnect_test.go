package logstream

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReconnectorReopensAfterError(t *testing.T) {
	srv := newSSEServer(t)
	srv.setStatus(http.StatusBadGateway)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := NewConsumer(Config{Metrics: metrics})
	r := NewReconnector(c, 10*time.Millisecond)
	t.Cleanup(r.Close)

	r.Open(srv.URL)
	waitFor(t, "first retry", func() bool { return r.Attempts() >= 1 })

	srv.setStatus(http.StatusOK)
	waitFor(t, "open after retry", func() bool { return c.State() == StateOpen })

	srv.send(payload("back"))
	waitFor(t, "record after reconnect", func() bool { return len(c.Records()) == 1 })

	if got := testutil.ToFloat64(metrics.reconnects); got < 1 {
		t.Errorf("reconnects_total = %v, want >= 1", got)
	}
	if srv.hitCount() < 2 {
		t.Errorf("server hits = %d, want >= 2", srv.hitCount())
	}
}

func TestReconnectorKeepsRecordsAcrossReconnect(t *testing.T) {
	srv := newSSEServer(t)
	c := NewConsumer()
	r := NewReconnector(c, 10*time.Millisecond)
	t.Cleanup(r.Close)

	r.Open(srv.URL)
	waitFor(t, "open", func() bool { return c.State() == StateOpen })
	srv.send(payload("before"))
	waitFor(t, "first record", func() bool { return len(c.Records()) == 1 })

	// Ending the stream forces closed-with-error and a reconnect.
	close(srv.events)
	waitFor(t, "reconnect attempt", func() bool { return r.Attempts() >= 1 })

	if got := messages(c.Records()); got != "before" {
		t.Errorf("Records = %s, want before", got)
	}
}

func TestReconnectorCloseStopsRetrying(t *testing.T) {
	srv := newSSEServer(t)
	srv.setStatus(http.StatusInternalServerError)

	c := NewConsumer()
	r := NewReconnector(c, 20*time.Millisecond)
	r.Open(srv.URL)
	waitFor(t, "error", func() bool { return c.State() == StateClosedWithError })

	r.Close()
	hits := srv.hitCount()
	time.Sleep(80 * time.Millisecond)
	if srv.hitCount() != hits {
		t.Errorf("server hits grew from %d to %d after Close", hits, srv.hitCount())
	}
	if c.State() != StateClosed {
		t.Errorf("State = %v, want closed", c.State())
	}
}
