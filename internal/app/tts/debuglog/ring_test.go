package debuglog

import (
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Publish(topic string, _ any) {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.mu.Unlock()
}

func TestRingEvictsOldest(t *testing.T) {
	ring := New(3, nil, "")
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		ring.Record("test", msg, nil)
	}
	got := ring.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []string{"c", "d", "e"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Fatalf("entry %d: got %q want %q", i, e.Message, want[i])
		}
	}
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("sequence numbers not preserved: %d..%d", got[0].Seq, got[2].Seq)
	}
}

func TestRingPublishesAndClears(t *testing.T) {
	rec := &recorder{}
	ring := New(10, rec, "tts:debug")
	ring.Record("engine", "substituted", map[string]any{"from": "google"})
	if len(rec.topics) != 1 || rec.topics[0] != "tts:debug" {
		t.Fatalf("unexpected publishes %v", rec.topics)
	}
	if ring.Len() != 1 {
		t.Fatalf("len = %d", ring.Len())
	}
	ring.Clear()
	if ring.Len() != 0 || len(ring.Entries()) != 0 {
		t.Fatal("ring not cleared")
	}
}

func TestNilRingIsSafe(t *testing.T) {
	var ring *Ring
	ring.Record("x", "y", nil)
	if ring.Entries() != nil || ring.Len() != 0 {
		t.Fatal("nil ring should be empty")
	}
}
