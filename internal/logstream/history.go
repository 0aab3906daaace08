package logstream

import "github.com/keepwatching/logtail/internal/model"

// history holds the visible and pending record lists. It is not safe for
// concurrent use; Consumer guards it with its mutex.
type history struct {
	max     int
	paused  bool
	visible []model.LogRecord
	pending []model.LogRecord
}

func newHistory(max int) history {
	if max <= 0 {
		max = model.DefaultMaxRecords
	}
	return history{max: max}
}

// push routes r to the pending list while paused, otherwise to the visible
// list followed by a trim to the cap.
func (h *history) push(r model.LogRecord) {
	if h.paused {
		h.pending = append(h.pending, r)
		return
	}
	h.visible = append(h.visible, r)
	h.trim()
}

func (h *history) pause() { h.paused = true }

// resume flushes pending records in order and re-applies the cap.
func (h *history) resume() {
	h.paused = false
	if len(h.pending) == 0 {
		return
	}
	h.visible = append(h.visible, h.pending...)
	h.pending = nil
	h.trim()
}

func (h *history) clear() {
	h.visible = nil
	h.pending = nil
}

// trim drops the oldest visible records until at most max remain.
// Reslicing shrinks capacity too, so the next growing append copies only
// the retained tail and the dropped prefix becomes collectable.
func (h *history) trim() {
	if over := len(h.visible) - h.max; over > 0 {
		h.visible = h.visible[over:]
	}
}

func (h *history) snapshot() []model.LogRecord {
	return cloneRecords(h.visible)
}

func (h *history) pendingSnapshot() []model.LogRecord {
	return cloneRecords(h.pending)
}

func cloneRecords(in []model.LogRecord) []model.LogRecord {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.LogRecord, len(in))
	copy(out, in)
	return out
}
