// Package tts runs the speak pipeline: permission check, profanity filter,
// text validation, voice resolution, synthesis with engine fallback and
// enqueueing for playback.
package tts

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"liveTTS/internal/app/events"
	"liveTTS/internal/domain"
	"liveTTS/internal/usecase/tts/langdetect"
	"liveTTS/internal/usecase/tts/permissions"
	"liveTTS/internal/usecase/tts/profanity"
)

// Engines is the set of available synthesis engines. Names lists them in
// fallback order.
type Engines interface {
	Get(name string) (domain.SynthesisEngine, bool)
	Names() []string
}

type Queue interface {
	Enqueue(item *domain.QueueItem) domain.EnqueueResult
}

// Tracer receives pipeline decisions that are not failures, such as engine
// substitutions and fallback attempts.
type Tracer interface {
	Record(category, message string, data map[string]any)
}

// DurationFunc returns the playback length of synthesized audio.
type DurationFunc func(audio []byte, text string, speed float64) time.Duration

type Deps struct {
	Permissions *permissions.Manager
	Filter      *profanity.Filter
	Detector    *langdetect.Detector
	Engines     Engines
	Queue       Queue
	Repo        domain.TTSSettingsRepository
	Publisher   domain.TTSEventPublisher
	Tracer      Tracer
	Duration    DurationFunc
	Logger      *log.Logger
	Settings    Settings
	// OnSettingsChanged runs after settings were applied, for collaborators
	// the service does not own such as the queue limits and engine keys.
	OnSettingsChanged func(Settings)
}

type Service struct {
	perms     *permissions.Manager
	filter    *profanity.Filter
	detector  *langdetect.Detector
	queue     Queue
	repo      domain.TTSSettingsRepository
	publisher domain.TTSEventPublisher
	tracer    Tracer
	duration  DurationFunc
	logger    *log.Logger
	onChange  func(Settings)

	mu       sync.RWMutex
	engines  Engines
	settings Settings
}

func NewService(deps Deps) (*Service, error) {
	if deps.Permissions == nil || deps.Queue == nil || deps.Engines == nil {
		return nil, errors.New("tts: permissions, queue and engines are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	filter := deps.Filter
	if filter == nil {
		filter = profanity.NewFilter(profanity.ModeOff)
	}

	settings := deps.Settings
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}
	settings, err := settings.Normalize()
	if err != nil {
		return nil, err
	}

	s := &Service{
		perms:     deps.Permissions,
		filter:    filter,
		detector:  deps.Detector,
		queue:     deps.Queue,
		repo:      deps.Repo,
		publisher: deps.Publisher,
		tracer:    deps.Tracer,
		duration:  deps.Duration,
		logger:    logger.WithPrefix("tts"),
		engines:   deps.Engines,
	}
	s.apply(settings)
	s.onChange = deps.OnSettingsChanged
	return s, nil
}

func (s *Service) Engines() Engines {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engines
}

// SetEngines swaps the engine set, for example after API keys changed.
func (s *Service) SetEngines(engines Engines) {
	if engines == nil {
		return
	}
	s.mu.Lock()
	s.engines = engines
	s.mu.Unlock()
	s.logger.Info("engines updated", "available", engines.Names())
}

// Speak runs the pipeline for one request. It never panics; unexpected
// failures surface as synthesis_failed.
func (s *Service) Speak(ctx context.Context, req domain.SpeakRequest) (res SpeakResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("speak panicked", "user", req.Username, "panic", r, "stack", string(debug.Stack()))
			res = rejected(CodeSynthesisFailed, "", fmt.Sprintf("internal error: %v", r))
		}
	}()

	settings := s.Settings()
	engines := s.Engines()

	if !settings.Enabled {
		res = rejected(CodeDisabled, "disabled", "")
		res.Blocked = true
		return res
	}

	decision, err := s.perms.CheckPermission(ctx, req.UserID, req.Username, req.TeamLevel, settings.MinTeamLevel)
	if err != nil {
		return s.internalFailure(req, "permission check", err)
	}
	if !decision.Allowed {
		s.logger.Debug("permission denied", "user", req.Username, "reason", decision.Reason)
		return rejected(CodePermissionDenied, decision.Reason, "")
	}

	filtered := s.filter.Filter(req.Text)
	if filtered.Action == profanity.ActionDrop {
		s.logger.Debug("dropped profanity", "user", req.Username, "matches", filtered.Matches)
		return rejected(CodeProfanityDetected, "", "")
	}

	text := strings.TrimSpace(filtered.Filtered)
	if text == "" {
		return rejected(CodeEmptyText, "", "")
	}
	text = truncate(text, settings.MaxTextLength)

	var user *domain.UserTTSSettings
	if strings.TrimSpace(req.UserID) != "" {
		user, err = s.perms.GetUserSettings(ctx, req.UserID)
		if err != nil {
			return s.internalFailure(req, "load user settings", err)
		}
	}

	plan, ok := s.resolve(engines, text, req, user, settings)
	if !ok {
		return rejected(CodeSynthesisFailed, "", "no synthesis engine available")
	}

	out, err := s.synthesize(ctx, engines, text, plan, settings)
	if err != nil {
		s.logger.Warn("synthesis failed on every engine", "user", req.Username, "err", err)
		return rejected(CodeSynthesisFailed, "", err.Error())
	}

	gain := 1.0
	if user != nil && user.VolumeGain > 0 {
		gain = user.VolumeGain
	}
	item := &domain.QueueItem{
		UserID:       req.UserID,
		Username:     req.Username,
		Text:         text,
		Voice:        out.voice,
		Engine:       out.engine,
		AudioData:    out.audio,
		Volume:       settings.Volume * gain,
		Speed:        settings.Speed,
		Source:       req.Source,
		TeamLevel:    req.TeamLevel,
		IsSubscriber: req.IsSubscriber,
		Priority:     req.Priority,
	}
	if s.duration != nil {
		item.Duration = s.duration(out.audio, text, settings.Speed)
	}

	// the queue owns item from here on
	view := *item
	view.AudioData = nil

	queued := s.queue.Enqueue(item)
	if !queued.Success {
		s.logger.Debug("queue rejected item", "user", req.Username, "reason", queued.Reason)
		return SpeakResult{
			Error:     queued.Reason,
			Reason:    queued.Reason,
			QueueSize: queued.QueueSize,
			Voice:     out.voice,
			Engine:    out.engine,
			Text:      text,
		}
	}

	view.ID = queued.ItemID
	s.publish(events.TopicTTSQueued, events.NewTTSQueuedDTO(&view, queued.Position, queued.QueueSize, queued.EstimatedWaitMs))
	s.logger.Info("queued", "user", req.Username, "engine", out.engine, "voice", out.voice, "position", queued.Position)

	return SpeakResult{
		Success:            true,
		ItemID:             queued.ItemID,
		Position:           queued.Position,
		QueueSize:          queued.QueueSize,
		EstimatedWaitMs:    queued.EstimatedWaitMs,
		Voice:              out.voice,
		Engine:             out.engine,
		Text:               text,
		UsedFallbackEngine: out.fallback,
	}
}

func (s *Service) internalFailure(req domain.SpeakRequest, op string, err error) SpeakResult {
	s.logger.Error("pipeline error", "op", op, "user", req.Username, "err", err)
	return rejected(CodeSynthesisFailed, "", fmt.Sprintf("%s: %v", op, err))
}

// truncate cuts text to max runes and marks the cut with an ellipsis.
func truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + Ellipsis
}

func (s *Service) trace(category, message string, data map[string]any) {
	if s.tracer != nil {
		s.tracer.Record(category, message, data)
	}
}

func (s *Service) publish(topic string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(topic, payload)
	}
}
