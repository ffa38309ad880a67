package chat

import (
	"sync"

	"chatrelay/internal/app/message"
)

// DefaultHistorySize is the history capacity used when none is configured.
const DefaultHistorySize = 20

// HistoryBuffer keeps the most recent broadcast and system records, oldest first.
type HistoryBuffer struct {
	mu       sync.RWMutex
	capacity int
	records  []message.Record
}

func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &HistoryBuffer{
		capacity: capacity,
		records:  make([]message.Record, 0, capacity),
	}
}

// Push appends rec, evicting the oldest record at capacity.
func (h *HistoryBuffer) Push(rec message.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.records) == h.capacity {
		copy(h.records, h.records[1:])
		h.records = h.records[:h.capacity-1]
	}
	h.records = append(h.records, rec)
}

// Seed replaces the contents with records (oldest first), keeping the newest at capacity.
func (h *HistoryBuffer) Seed(records []message.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(records) > h.capacity {
		records = records[len(records)-h.capacity:]
	}
	h.records = append(h.records[:0], records...)
}

// Snapshot returns a copy of the buffer, oldest first.
func (h *HistoryBuffer) Snapshot() []message.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]message.Record, len(h.records))
	copy(out, h.records)
	return out
}

func (h *HistoryBuffer) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.records)
}

// Edit sets the text of record id if sender authored it and marks it edited.
func (h *HistoryBuffer) Edit(id, sender, text string) (message.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.records {
		if h.records[i].ID == id {
			if h.records[i].Sender != sender {
				return message.Record{}, false
			}
			h.records[i].Text = text
			h.records[i].IsEdited = true
			return h.records[i], true
		}
	}
	return message.Record{}, false
}

// Remove deletes record id if sender authored it.
func (h *HistoryBuffer) Remove(id, sender string) (message.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, rec := range h.records {
		if rec.ID == id {
			if rec.Sender != sender {
				return message.Record{}, false
			}
			h.records = append(h.records[:i], h.records[i+1:]...)
			return rec, true
		}
	}
	return message.Record{}, false
}
