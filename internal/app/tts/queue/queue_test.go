package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"liveTTS/internal/domain"
)

func prio(p int) *int { return &p }

func newItem(id, user string, priority *int) *domain.QueueItem {
	return &domain.QueueItem{
		ID:        id,
		UserID:    user,
		Username:  user,
		Text:      "text " + id,
		AudioData: []byte{1, 2, 3},
		Priority:  priority,
	}
}

type playRecorder struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func newPlayRecorder() *playRecorder { return &playRecorder{ch: make(chan string, 64)} }

func (r *playRecorder) play(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	r.ids = append(r.ids, item.ID)
	r.mu.Unlock()
	r.ch <- item.ID
	return nil
}

func (r *playRecorder) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d items", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestPriorityOrder(t *testing.T) {
	q := New(Config{Gap: 0})
	for _, p := range []int{5, 10, 1} {
		res := q.Enqueue(newItem(fmt.Sprint(p), fmt.Sprint("user", p), prio(p)))
		if !res.Success {
			t.Fatalf("enqueue %d: %+v", p, res)
		}
	}

	rec := newPlayRecorder()
	if err := q.Start(context.Background(), rec.play); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()

	got := rec.wait(t, 3)
	want := []string{"10", "5", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("play order %v, want %v", got, want)
		}
	}
}

func TestNilPriorityIsLowestAndTiesAreFIFO(t *testing.T) {
	q := New(Config{})
	q.Enqueue(newItem("a", "u1", nil))
	q.Enqueue(newItem("b", "u2", prio(0)))
	q.Enqueue(newItem("c", "u3", nil))
	q.Enqueue(newItem("d", "u4", prio(0)))

	items := q.Items()
	want := []string{"b", "d", "a", "c"}
	for i, it := range items {
		if it.ID != want[i] {
			t.Fatalf("order %v, want %v", ids(items), want)
		}
		if it.AudioData != nil {
			t.Fatal("snapshot must not expose audio")
		}
	}
}

func ids(items []domain.QueueItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestEnqueueResultPositionAndWait(t *testing.T) {
	q := New(Config{Gap: 100 * time.Millisecond})
	first := newItem("first", "u1", nil)
	first.Duration = 2 * time.Second
	q.Enqueue(first)

	second := newItem("second", "u2", prio(1))
	second.Duration = time.Second
	res := q.Enqueue(second)
	if res.Position != 1 || res.QueueSize != 2 || res.EstimatedWaitMs != 0 {
		t.Fatalf("priority item should go first: %+v", res)
	}

	res = q.Enqueue(newItem("third", "u3", nil))
	if res.Position != 3 {
		t.Fatalf("expected position 3, got %+v", res)
	}
	if res.EstimatedWaitMs != 3200 {
		t.Fatalf("expected 3200ms wait, got %d", res.EstimatedWaitMs)
	}
}

func TestOverflowReject(t *testing.T) {
	q := New(Config{MaxSize: 2})
	q.Enqueue(newItem("a", "u1", nil))
	q.Enqueue(newItem("b", "u2", nil))

	res := q.Enqueue(newItem("c", "u3", prio(100)))
	if res.Success || res.Reason != ReasonQueueFull {
		t.Fatalf("expected queue_full, got %+v", res)
	}
	if q.Len() != 2 {
		t.Fatalf("queue size changed to %d", q.Len())
	}
}

func TestOverflowEvictsOldestLowestTier(t *testing.T) {
	q := New(Config{MaxSize: 3, Overflow: OverflowEvict})
	q.Enqueue(newItem("high", "u1", prio(5)))
	q.Enqueue(newItem("low-old", "u2", prio(1)))
	q.Enqueue(newItem("low-new", "u3", prio(1)))

	res := q.Enqueue(newItem("incoming", "u4", prio(3)))
	if !res.Success {
		t.Fatalf("expected eviction, got %+v", res)
	}
	got := ids(q.Items())
	want := []string{"high", "incoming", "low-new"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items %v, want %v", got, want)
		}
	}
	if q.Stats().TotalEvicted != 1 {
		t.Fatalf("evicted counter %d", q.Stats().TotalEvicted)
	}

	res = q.Enqueue(newItem("lowest", "u5", nil))
	if res.Success || res.Reason != ReasonQueueFull {
		t.Fatalf("item below every tier must be rejected, got %+v", res)
	}
}

func TestRateLimitCountsAttempts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	q := New(Config{MaxSize: 1, RateLimit: 2, RateLimitWindow: time.Minute, Now: func() time.Time { return now }})

	if res := q.Enqueue(newItem("1", "spammer", nil)); !res.Success {
		t.Fatalf("first: %+v", res)
	}
	if res := q.Enqueue(newItem("2", "spammer", nil)); res.Reason != ReasonQueueFull {
		t.Fatalf("second should hit capacity: %+v", res)
	}
	if res := q.Enqueue(newItem("3", "spammer", nil)); res.Reason != ReasonRateLimited {
		t.Fatalf("third should be rate limited: %+v", res)
	}
	if res := q.Enqueue(newItem("4", "other", nil)); res.Reason != ReasonQueueFull {
		t.Fatalf("other users keep their own bucket: %+v", res)
	}

	now = now.Add(time.Minute)
	q.Clear()
	if res := q.Enqueue(newItem("5", "spammer", nil)); !res.Success {
		t.Fatalf("window should have moved on: %+v", res)
	}
}

func TestRateLimitSlidingWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	now := start
	q := New(Config{MaxSize: 100, RateLimit: 3, RateLimitWindow: time.Minute, Now: func() time.Time { return now }})

	var accepted []int
	for i, sec := range []int{0, 1, 2, 21, 41, 59} {
		now = start.Add(time.Duration(sec) * time.Second)
		if res := q.Enqueue(newItem(fmt.Sprint(i), "chatty", nil)); res.Success {
			accepted = append(accepted, sec)
		} else if res.Reason != ReasonRateLimited {
			t.Fatalf("attempt at %ds: %+v", sec, res)
		}
	}
	if len(accepted) != 3 || accepted[2] != 2 {
		t.Fatalf("accepted at %v, want only the first three", accepted)
	}

	// The attempt at 0s leaves the window at 60s, the one at 1s at 61s.
	now = start.Add(60 * time.Second)
	if res := q.Enqueue(newItem("a", "chatty", nil)); !res.Success {
		t.Fatalf("slot should free up at 60s: %+v", res)
	}
	if res := q.Enqueue(newItem("b", "chatty", nil)); res.Reason != ReasonRateLimited {
		t.Fatalf("only one slot freed at 60s: %+v", res)
	}
	now = start.Add(61 * time.Second)
	if res := q.Enqueue(newItem("c", "chatty", nil)); !res.Success {
		t.Fatalf("slot should free up at 61s: %+v", res)
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	q := New(Config{MaxSize: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(newItem(fmt.Sprint(i), fmt.Sprint("u", i), prio(i%7)))
		}(i)
	}
	wg.Wait()
	if q.Len() != 200 || q.Stats().TotalEnqueued != 200 {
		t.Fatalf("lost updates: len=%d stats=%+v", q.Len(), q.Stats())
	}
}

func TestStartTwice(t *testing.T) {
	q := New(Config{})
	noop := func(context.Context, *domain.QueueItem) error { return nil }
	if err := q.Start(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()
	if err := q.Start(context.Background(), noop); !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}
}

func TestSkipCurrentInterruptsWait(t *testing.T) {
	q := New(Config{})
	long := newItem("long", "u1", prio(2))
	long.Duration = time.Hour
	q.Enqueue(long)
	q.Enqueue(newItem("next", "u2", prio(1)))

	rec := newPlayRecorder()
	if err := q.Start(context.Background(), rec.play); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()

	rec.wait(t, 1)
	if !q.SkipCurrent() {
		t.Fatal("skip should report an active item")
	}
	got := rec.wait(t, 1)
	if got[1] != "next" {
		t.Fatalf("unexpected order %v", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for q.Stats().TotalSkipped != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.Stats().TotalSkipped != 1 {
		t.Fatalf("stats %+v", q.Stats())
	}
}

func TestStopKeepsQueuedItems(t *testing.T) {
	q := New(Config{})
	started := make(chan struct{}, 1)
	block := func(ctx context.Context, _ *domain.QueueItem) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	for i := 0; i < 3; i++ {
		q.Enqueue(newItem(fmt.Sprint(i), fmt.Sprint("u", i), nil))
	}
	if err := q.Start(context.Background(), block); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never started")
	}

	q.Stop()
	if q.IsProcessing() {
		t.Fatal("still processing after stop")
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 queued items, got %d", q.Len())
	}
	if q.SkipCurrent() {
		t.Fatal("nothing should be playing after stop")
	}
}

func TestClearLeavesCurrentPlaying(t *testing.T) {
	q := New(Config{})
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	play := func(ctx context.Context, _ *domain.QueueItem) error {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}
	for i := 0; i < 4; i++ {
		q.Enqueue(newItem(fmt.Sprint(i), fmt.Sprint("u", i), nil))
	}
	if err := q.Start(context.Background(), play); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()
	<-started

	if n := q.Clear(); n != 3 {
		t.Fatalf("cleared %d, want 3", n)
	}
	if info := q.Info(); info.Current == nil || info.Current.ID != "0" {
		t.Fatalf("current item lost: %+v", info)
	}
	close(release)
}

func TestPlaybackErrorIsCounted(t *testing.T) {
	q := New(Config{})
	done := make(chan struct{}, 1)
	fail := func(context.Context, *domain.QueueItem) error {
		defer func() { done <- struct{}{} }()
		return errors.New("device busy")
	}
	q.Enqueue(newItem("x", "u", nil))
	if err := q.Start(context.Background(), fail); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for q.Stats().TotalFailed != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.Stats().TotalFailed != 1 {
		t.Fatalf("stats %+v", q.Stats())
	}
}

func TestInvalidItem(t *testing.T) {
	q := New(Config{})
	if res := q.Enqueue(&domain.QueueItem{ID: "empty"}); res.Success || res.Reason != ReasonInvalidItem {
		t.Fatalf("empty audio accepted: %+v", res)
	}
}
