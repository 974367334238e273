// Package queue holds synthesized speech until it is played. Items leave in
// priority order through a single consumer goroutine.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"liveTTS/internal/app/events"
	"liveTTS/internal/domain"
)

const (
	ReasonQueueFull   = "queue_full"
	ReasonRateLimited = "rate_limited"
	ReasonEvicted     = "evicted"
	ReasonInvalidItem = "invalid_item"

	DefaultMaxSize         = 50
	DefaultRateLimit       = 3
	DefaultRateLimitWindow = 60 * time.Second
	DefaultGap             = 250 * time.Millisecond
)

var (
	ErrAlreadyProcessing = errors.New("queue: already processing")
	ErrNoPlayFunc        = errors.New("queue: nil play func")
)

type OverflowPolicy string

const (
	// OverflowReject refuses new items while the queue is full.
	OverflowReject OverflowPolicy = "reject"
	// OverflowEvict drops the oldest item of the lowest priority tier to make
	// room. A newcomer whose tier is below every queued item is rejected.
	OverflowEvict OverflowPolicy = "evict"
)

func ParseOverflowPolicy(raw string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OverflowReject:
		return OverflowReject, nil
	case OverflowEvict:
		return OverflowEvict, nil
	}
	return "", fmt.Errorf("queue: unknown overflow policy %q", raw)
}

// PlayFunc delivers one item. The context is cancelled when the item is
// skipped or the consumer stops.
type PlayFunc func(ctx context.Context, item *domain.QueueItem) error

type Config struct {
	MaxSize         int
	RateLimit       int
	RateLimitWindow time.Duration
	Overflow        OverflowPolicy
	// Gap is the pause between two items.
	Gap       time.Duration
	Publisher domain.TTSEventPublisher
	Logger    *log.Logger
	Now       func() time.Time
}

type EnqueueResult = domain.EnqueueResult

type Info struct {
	IsProcessing     bool              `json:"isProcessing"`
	QueueLength      int               `json:"queueLength"`
	MaxSize          int               `json:"maxSize"`
	Overflow         OverflowPolicy    `json:"overflow"`
	Current          *domain.QueueItem `json:"current,omitempty"`
	CurrentStartedAt *time.Time        `json:"currentStartedAt,omitempty"`
	EstimatedWaitMs  int64             `json:"estimatedWaitMs"`
}

type Stats struct {
	TotalEnqueued    uint64 `json:"totalEnqueued"`
	TotalPlayed      uint64 `json:"totalPlayed"`
	TotalSkipped     uint64 `json:"totalSkipped"`
	TotalFailed      uint64 `json:"totalFailed"`
	TotalRejected    uint64 `json:"totalRejected"`
	TotalRateLimited uint64 `json:"totalRateLimited"`
	TotalEvicted     uint64 `json:"totalEvicted"`
	TotalCleared     uint64 `json:"totalCleared"`
	QueueLength      int    `json:"queueLength"`
	PeakLength       int    `json:"peakLength"`
	IsProcessing     bool   `json:"isProcessing"`
	AverageWaitMs    int64  `json:"averageWaitMs"`
}

type Manager struct {
	cfg     Config
	logger  *log.Logger
	limiter *userLimiter

	mu      sync.Mutex
	items   entryHeap
	seq     uint64
	wake    chan struct{}
	stats   Stats
	waitSum time.Duration

	processing bool
	stopRun    context.CancelFunc
	done       chan struct{}

	current       *domain.QueueItem
	currentStart  time.Time
	cancelCurrent context.CancelFunc
	lastError     string
}

func New(cfg Config) *Manager {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = DefaultRateLimitWindow
	}
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowReject
	}
	if cfg.Gap < 0 {
		cfg.Gap = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:     cfg,
		logger:  logger.WithPrefix("tts queue"),
		limiter: newUserLimiter(cfg.RateLimit, cfg.RateLimitWindow),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue takes ownership of item. The rate limit is charged for every
// attempt before any other check.
func (m *Manager) Enqueue(item *domain.QueueItem) EnqueueResult {
	if item == nil || len(item.AudioData) == 0 {
		return EnqueueResult{Reason: ReasonInvalidItem, QueueSize: m.Len()}
	}

	m.mu.Lock()
	now := m.cfg.Now()

	if !m.limiter.allow(item.UserID, now) {
		m.stats.TotalRateLimited++
		size := len(m.items)
		m.mu.Unlock()
		m.logger.Debug("rate limited", "user", item.Username)
		return EnqueueResult{Reason: ReasonRateLimited, QueueSize: size}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.EnqueuedAt = now
	m.seq++
	e := &entry{item: item, seq: m.seq}

	var evicted *domain.QueueItem
	if len(m.items) >= m.cfg.MaxSize {
		victim := m.overflowVictimLocked(e)
		if victim == nil {
			m.stats.TotalRejected++
			size := len(m.items)
			m.mu.Unlock()
			return EnqueueResult{Reason: ReasonQueueFull, QueueSize: size}
		}
		heap.Remove(&m.items, victim.index)
		evicted = victim.item
		m.stats.TotalEvicted++
	}

	heap.Push(&m.items, e)
	m.stats.TotalEnqueued++
	if len(m.items) > m.stats.PeakLength {
		m.stats.PeakLength = len(m.items)
	}

	position, wait := m.positionLocked(e)
	res := EnqueueResult{
		Success:         true,
		ItemID:          item.ID,
		Position:        position,
		QueueSize:       len(m.items),
		EstimatedWaitMs: wait.Milliseconds(),
	}
	m.mu.Unlock()

	m.signal()
	if evicted != nil {
		m.logger.Info("evicted item on overflow", "id", evicted.ID, "user", evicted.Username)
		m.publish(events.TopicTTSDropped, events.NewTTSDroppedDTO(evicted, ReasonEvicted))
	}
	m.publishStatus()
	return res
}

// overflowVictimLocked picks the entry to evict for newcomer, or nil when the
// newcomer must be rejected.
func (m *Manager) overflowVictimLocked(newcomer *entry) *entry {
	if m.cfg.Overflow != OverflowEvict || len(m.items) == 0 {
		return nil
	}
	var victim *entry
	for _, e := range m.items {
		if victim == nil || lowerTier(e, victim) || (!lowerTier(victim, e) && e.seq < victim.seq) {
			victim = e
		}
	}
	if lowerTier(newcomer, victim) {
		return nil
	}
	return victim
}

// positionLocked returns the 1-based play position of e and the estimated
// wait until it starts.
func (m *Manager) positionLocked(e *entry) (int, time.Duration) {
	wait := m.remainingCurrentLocked()
	position := 1
	for _, other := range m.items {
		if other == e || !before(other, e) {
			continue
		}
		position++
		wait += other.item.Duration + m.cfg.Gap
	}
	return position, wait
}

func (m *Manager) remainingCurrentLocked() time.Duration {
	if m.current == nil {
		return 0
	}
	remaining := m.current.Duration - m.cfg.Now().Sub(m.currentStart)
	if remaining < 0 {
		remaining = 0
	}
	return remaining + m.cfg.Gap
}

// Clear drops every queued item. A playing item keeps playing.
func (m *Manager) Clear() int {
	m.mu.Lock()
	n := len(m.items)
	m.items = nil
	m.stats.TotalCleared += uint64(n)
	m.mu.Unlock()

	if n > 0 {
		m.logger.Info("queue cleared", "items", n)
	}
	m.publishStatus()
	return n
}

// SkipCurrent interrupts the playing item, including its pacing wait.
func (m *Manager) SkipCurrent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelCurrent == nil {
		return false
	}
	m.cancelCurrent()
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Manager) IsProcessing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing
}

func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		IsProcessing: m.processing,
		QueueLength:  len(m.items),
		MaxSize:      m.cfg.MaxSize,
		Overflow:     m.cfg.Overflow,
	}
	wait := m.remainingCurrentLocked()
	for _, e := range m.items {
		wait += e.item.Duration + m.cfg.Gap
	}
	info.EstimatedWaitMs = wait.Milliseconds()
	if m.current != nil {
		info.Current = snapshot(m.current)
		started := m.currentStart
		info.CurrentStartedAt = &started
	}
	return info
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.QueueLength = len(m.items)
	s.IsProcessing = m.processing
	if started := s.TotalPlayed + s.TotalSkipped + s.TotalFailed; started > 0 {
		s.AverageWaitMs = (m.waitSum / time.Duration(started)).Milliseconds()
	}
	return s
}

// Items returns the queued items in play order without their audio.
func (m *Manager) Items() []domain.QueueItem {
	m.mu.Lock()
	ordered := make([]*entry, len(m.items))
	copy(ordered, m.items)
	m.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool { return before(ordered[i], ordered[j]) })
	out := make([]domain.QueueItem, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, *snapshot(e.item))
	}
	return out
}

// SetLimits applies new size and rate settings. Items already queued stay
// even when the new size is smaller.
func (m *Manager) SetLimits(maxSize, rateLimit int, window time.Duration, overflow OverflowPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxSize > 0 {
		m.cfg.MaxSize = maxSize
	}
	if overflow != "" {
		m.cfg.Overflow = overflow
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if rateLimit != m.cfg.RateLimit || window != m.cfg.RateLimitWindow {
		m.cfg.RateLimit = rateLimit
		m.cfg.RateLimitWindow = window
		m.limiter.reset()
		m.limiter = newUserLimiter(rateLimit, window)
	}
}

func snapshot(item *domain.QueueItem) *domain.QueueItem {
	cp := *item
	cp.AudioData = nil
	return &cp
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) publish(topic string, payload any) {
	if m.cfg.Publisher != nil {
		m.cfg.Publisher.Publish(topic, payload)
	}
}

func (m *Manager) publishStatus() {
	m.mu.Lock()
	state := "idle"
	switch {
	case m.current != nil:
		state = "playing"
	case !m.processing:
		state = "stopped"
	}
	currentID := ""
	if m.current != nil {
		currentID = m.current.ID
	}
	status := events.NewTTSStatusDTO(state, m.processing, len(m.items), currentID, m.lastError)
	m.mu.Unlock()

	m.publish(events.TopicTTSStatus, status)
}
