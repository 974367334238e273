package queue

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"liveTTS/internal/app/events"
	"liveTTS/internal/domain"
)

// Start launches the single consumer. Items are handed to play one at a time;
// the next item starts once play has returned and the item's duration plus the
// configured gap has elapsed.
func (m *Manager) Start(ctx context.Context, play PlayFunc) error {
	if play == nil {
		return ErrNoPlayFunc
	}

	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return ErrAlreadyProcessing
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.processing = true
	m.stopRun = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info("processing started")
	m.publishStatus()

	go func() {
		defer close(done)
		m.run(runCtx, play)
	}()
	return nil
}

// Stop pauses consumption and waits for the consumer to exit. Queued items
// stay queued; an item that was playing is interrupted.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.processing {
		m.mu.Unlock()
		return
	}
	cancel, done := m.stopRun, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("processing stopped", "queued", m.Len())
	m.publishStatus()
}

func (m *Manager) run(ctx context.Context, play PlayFunc) {
	defer func() {
		m.mu.Lock()
		m.processing = false
		m.stopRun = nil
		m.mu.Unlock()
	}()

	for {
		item, ok := m.next(ctx)
		if !ok {
			return
		}
		m.playOne(ctx, play, item)
	}
}

// next blocks until an item is available or ctx ends.
func (m *Manager) next(ctx context.Context) (*domain.QueueItem, bool) {
	for {
		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			return nil, false
		}
		if len(m.items) > 0 {
			e := heap.Pop(&m.items).(*entry)
			m.mu.Unlock()
			return e.item, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-m.wake:
		}
	}
}

func (m *Manager) playOne(ctx context.Context, play PlayFunc, item *domain.QueueItem) {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := m.cfg.Now()
	m.mu.Lock()
	m.current = item
	m.currentStart = start
	m.cancelCurrent = cancel
	m.waitSum += start.Sub(item.EnqueuedAt)
	m.mu.Unlock()

	m.publishStatus()
	m.publish(events.TopicTTSPlaybackStarted, events.NewTTSPlaybackDTO(item, false, nil))
	m.logger.Debug("playing", "id", item.ID, "user", item.Username, "engine", item.Engine, "duration", item.Duration)

	began := time.Now()
	err := safePlay(itemCtx, play, item)
	if err == nil {
		sleep(itemCtx, item.Duration-time.Since(began))
		sleep(itemCtx, m.cfg.Gap)
	}

	interrupted := itemCtx.Err() != nil
	skipped := interrupted && ctx.Err() == nil

	m.mu.Lock()
	m.current = nil
	m.cancelCurrent = nil
	switch {
	case err != nil && !interrupted:
		m.stats.TotalFailed++
		m.lastError = err.Error()
	case interrupted:
		m.stats.TotalSkipped++
	default:
		m.stats.TotalPlayed++
		m.lastError = ""
	}
	m.mu.Unlock()

	switch {
	case err != nil && !interrupted:
		m.logger.Warn("playback failed", "id", item.ID, "err", err)
		m.publish(events.TopicTTSPlaybackError, events.NewTTSPlaybackDTO(item, false, err))
	default:
		m.publish(events.TopicTTSPlaybackEnded, events.NewTTSPlaybackDTO(item, skipped, nil))
	}
	m.publishStatus()
}

func safePlay(ctx context.Context, play PlayFunc, item *domain.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: play panic: %v", r)
		}
	}()
	return play(ctx, item)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
