// Package debuglog keeps the most recent pipeline trace entries in a fixed
// size ring and mirrors them to an event publisher.
package debuglog

import (
	"sync"
	"time"

	"liveTTS/internal/domain"
)

const DefaultCapacity = 200

type Entry struct {
	Seq      uint64         `json:"seq"`
	Time     time.Time      `json:"time"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	seq     uint64

	topic     string
	publisher domain.TTSEventPublisher
	now       func() time.Time
}

// New returns a ring holding capacity entries. publisher may be nil.
func New(capacity int, publisher domain.TTSEventPublisher, topic string) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		entries:   make([]Entry, capacity),
		publisher: publisher,
		topic:     topic,
		now:       time.Now,
	}
}

func (r *Ring) Record(category, message string, data map[string]any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.seq++
	e := Entry{Seq: r.seq, Time: r.now().UTC(), Category: category, Message: message, Data: data}
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()

	if r.publisher != nil && r.topic != "" {
		r.publisher.Publish(r.topic, e)
	}
}

// Entries returns the retained entries oldest first.
func (r *Ring) Entries() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

func (r *Ring) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

func (r *Ring) Clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
	r.next = 0
	r.full = false
}
