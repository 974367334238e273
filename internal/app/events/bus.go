package events

import (
	"sync"

	"github.com/charmbracelet/log"
)

const (
	TopicChatMessage = "chat:message"
	TopicAppError    = "app:error"

	TopicTTSSpeak           = "tts:speak"
	TopicTTSQueued          = "tts:queued"
	TopicTTSPlay            = "tts:play"
	TopicTTSPlaybackStarted = "tts:playback:started"
	TopicTTSPlaybackEnded   = "tts:playback:ended"
	TopicTTSPlaybackError   = "tts:playback:error"
	TopicTTSDropped         = "tts:dropped"
	TopicTTSDebug           = "tts:debug"
	TopicTTSStatus          = "tts:status"

	defaultBufferSize = 128
)

// ClientTopics are forwarded to WebSocket clients.
var ClientTopics = []string{
	TopicChatMessage,
	TopicAppError,
	TopicTTSQueued,
	TopicTTSPlay,
	TopicTTSPlaybackStarted,
	TopicTTSPlaybackEnded,
	TopicTTSPlaybackError,
	TopicTTSDropped,
	TopicTTSDebug,
	TopicTTSStatus,
}

// Bus is a non-blocking in-process fan-out. Slow subscribers lose messages
// instead of stalling publishers.
type Bus struct {
	logger *log.Logger

	mu        sync.RWMutex
	subs      map[string]map[int]chan any
	nextSubID int
	closed    bool

	dropMu     sync.Mutex
	dropCounts map[string]uint64
}

func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		logger:     logger.WithPrefix("events"),
		subs:       make(map[string]map[int]chan any),
		dropCounts: make(map[string]uint64),
	}
}

func (b *Bus) Publish(topic string, payload any) {
	if topic == "" {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			b.recordDrop(topic)
		}
	}
}

func (b *Bus) Subscribe(topic string) (<-chan any, func()) {
	ch := make(chan any, defaultBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan any)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[topic]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
		})
	}

	return ch, unsubscribe
}

// Close closes every subscriber channel. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, topic)
	}
}

func (b *Bus) recordDrop(topic string) {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	b.dropCounts[topic]++
	if b.dropCounts[topic]%100 == 1 {
		b.logger.Warn("dropping messages", "topic", topic, "drops", b.dropCounts[topic])
	}
}
