package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/keepwatching/logtail/internal/logstream"
	"golang.org/x/time/rate"
)

// handleStream replays the configured records as a server-sent-events
// stream in the backend's payload format. The stream stays open with
// heartbeats after the last record unless ReplayLoop is set.
func (s *Server) handleStream(c *gin.Context) {
	filter, err := logstream.ParseFilter(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w := c.Writer
	sse.Event{}.WriteContentType(w)
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev sse.Event) bool {
		if err := sse.Encode(w, ev); err != nil {
			return false
		}
		w.Flush()
		return true
	}
	heartbeat := func() bool {
		data := fmt.Sprintf(`{"type":"heartbeat","timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))
		return send(sse.Event{Event: "heartbeat", Data: []byte(data)})
	}
	if !send(sse.Event{Event: "connected", Data: []byte(`{"type":"connected"}`)}) {
		return
	}

	limit := rate.Inf
	if s.conf.ReplayRate > 0 {
		limit = rate.Limit(s.conf.ReplayRate)
	}
	limiter := rate.NewLimiter(limit, 1)
	ticker := time.NewTicker(s.conf.HeartbeatInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()

	records := s.conf.Replay
	matched := 0 // records sent in the current pass
	for i := 0; ; {
		if i >= len(records) {
			if s.conf.ReplayLoop && matched > 0 {
				i, matched = 0, 0
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !heartbeat() {
					return
				}
			}
			continue
		}

		rec := records[i]
		if !filter.Match(rec) {
			i++
			continue
		}

		res := limiter.Reserve()
		timer := time.NewTimer(res.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Cancel()
			return
		case <-ticker.C:
			timer.Stop()
			res.Cancel()
			if !heartbeat() {
				return
			}
		case <-timer.C:
			payload := rec.Raw
			if len(payload) == 0 {
				payload = logstream.EncodePayload(rec)
			}
			if !send(sse.Event{Id: rec.ID, Data: payload}) {
				return
			}
			matched++
			i++
		}
	}
}
