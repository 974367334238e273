package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"liveTTS/internal/domain"
	"liveTTS/internal/usecase/tts/langdetect"
	"liveTTS/internal/usecase/tts/profanity"
)

const (
	settingsKey = "tts_settings"

	DefaultMaxTextLength = 300
	DefaultVolume        = 1.0
	DefaultSpeed         = 1.0

	// Ellipsis is appended to truncated text.
	Ellipsis = "..."

	// AbsoluteFallbackEngine and AbsoluteFallbackVoice are used when nothing
	// else resolves.
	AbsoluteFallbackEngine = domain.EngineTikTok
	AbsoluteFallbackVoice  = "en_us_001"
)

type Credentials struct {
	GoogleAPIKey     string `json:"googleApiKey,omitempty"`
	SpeechifyAPIKey  string `json:"speechifyApiKey,omitempty"`
	ElevenLabsAPIKey string `json:"elevenlabsApiKey,omitempty"`
}

// Settings are the runtime TTS options editable through the API. They are
// persisted as one JSON document and override file and environment values.
type Settings struct {
	Enabled             bool           `json:"enabled"`
	DefaultEngine       string         `json:"defaultEngine"`
	DefaultVoice        string         `json:"defaultVoice"`
	Volume              float64        `json:"volume"`
	Speed               float64        `json:"speed"`
	MaxTextLength       int            `json:"maxTextLength"`
	MinTeamLevel        int            `json:"minTeamLevel"`
	ProfanityMode       profanity.Mode `json:"profanityMode"`
	AutoLanguageDetect  bool           `json:"autoLanguageDetection"`
	FallbackLanguage    string         `json:"fallbackLanguage"`
	LanguageConfidence  float64        `json:"languageConfidenceThreshold"`
	LanguageMinLength   int            `json:"languageMinTextLength"`
	MaxQueueSize        int            `json:"maxQueueSize"`
	RateLimit           int            `json:"rateLimit"`
	RateLimitWindowSecs int            `json:"rateLimitWindowSeconds"`
	OverflowPolicy      string         `json:"overflowPolicy"`
	Credentials         Credentials    `json:"credentials"`
}

func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		DefaultEngine:       AbsoluteFallbackEngine,
		DefaultVoice:        AbsoluteFallbackVoice,
		Volume:              DefaultVolume,
		Speed:               DefaultSpeed,
		MaxTextLength:       DefaultMaxTextLength,
		ProfanityMode:       profanity.ModeModerate,
		AutoLanguageDetect:  true,
		FallbackLanguage:    "en",
		LanguageConfidence:  langdetect.DefaultConfidenceThreshold,
		LanguageMinLength:   langdetect.DefaultMinTextLength,
		MaxQueueSize:        50,
		RateLimit:           3,
		RateLimitWindowSecs: 60,
		OverflowPolicy:      "reject",
	}
}

func (s Settings) RateLimitWindow() time.Duration {
	return time.Duration(s.RateLimitWindowSecs) * time.Second
}

// Normalize fills zero values from DefaultSettings and rejects values that
// cannot be applied. A zero volume is kept and mutes playback.
func (s Settings) Normalize() (Settings, error) {
	def := DefaultSettings()

	s.DefaultEngine = strings.ToLower(strings.TrimSpace(s.DefaultEngine))
	if s.DefaultEngine == "" {
		s.DefaultEngine = def.DefaultEngine
	}
	s.DefaultVoice = strings.TrimSpace(s.DefaultVoice)
	if s.Volume < 0 {
		return s, fmt.Errorf("tts: volume %.2f must not be negative", s.Volume)
	}
	if s.Speed <= 0 {
		s.Speed = def.Speed
	}
	if s.MaxTextLength <= 0 {
		s.MaxTextLength = def.MaxTextLength
	}
	if s.MinTeamLevel < 0 {
		s.MinTeamLevel = 0
	}
	mode, err := profanity.ParseMode(string(s.ProfanityMode))
	if err != nil {
		return s, fmt.Errorf("tts: %w", err)
	}
	s.ProfanityMode = mode
	s.FallbackLanguage = strings.ToLower(strings.TrimSpace(s.FallbackLanguage))
	if s.FallbackLanguage == "" {
		s.FallbackLanguage = def.FallbackLanguage
	}
	if s.LanguageConfidence <= 0 || s.LanguageConfidence > 1 {
		s.LanguageConfidence = def.LanguageConfidence
	}
	if s.LanguageMinLength <= 0 {
		s.LanguageMinLength = def.LanguageMinLength
	}
	if s.MaxQueueSize <= 0 {
		s.MaxQueueSize = def.MaxQueueSize
	}
	if s.RateLimit < 0 {
		s.RateLimit = 0
	}
	if s.RateLimitWindowSecs <= 0 {
		s.RateLimitWindowSecs = def.RateLimitWindowSecs
	}
	switch s.OverflowPolicy = strings.ToLower(strings.TrimSpace(s.OverflowPolicy)); s.OverflowPolicy {
	case "":
		s.OverflowPolicy = def.OverflowPolicy
	case "reject", "evict":
	default:
		return s, fmt.Errorf("tts: unknown overflow policy %q", s.OverflowPolicy)
	}
	return s, nil
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// LoadSettings overlays the persisted document on the current settings.
func (s *Service) LoadSettings(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	raw, err := s.repo.GetSetting(ctx, settingsKey)
	if err != nil {
		return fmt.Errorf("tts: load settings: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	merged := s.Settings()
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return fmt.Errorf("tts: decode settings: %w", err)
	}
	merged, err = merged.Normalize()
	if err != nil {
		return err
	}
	s.apply(merged)
	return nil
}

func (s *Service) UpdateSettings(ctx context.Context, next Settings) (Settings, error) {
	next, err := next.Normalize()
	if err != nil {
		return Settings{}, err
	}

	if s.repo != nil {
		data, err := json.Marshal(next)
		if err != nil {
			return Settings{}, fmt.Errorf("tts: encode settings: %w", err)
		}
		if err := s.repo.SetSetting(ctx, settingsKey, string(data)); err != nil {
			return Settings{}, fmt.Errorf("tts: save settings: %w", err)
		}
	}

	s.apply(next)
	s.logger.Info("settings updated", "enabled", next.Enabled, "engine", next.DefaultEngine, "voice", next.DefaultVoice)
	return next, nil
}

func (s *Service) Enabled() bool { return s.Settings().Enabled }

func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	next := s.Settings()
	next.Enabled = enabled
	_, err := s.UpdateSettings(ctx, next)
	return err
}

// apply installs settings and pushes the parts owned by collaborators.
func (s *Service) apply(next Settings) {
	s.mu.Lock()
	s.settings = next
	onChange := s.onChange
	s.mu.Unlock()

	if s.filter != nil {
		s.filter.SetMode(next.ProfanityMode)
	}
	if s.detector != nil {
		s.detector.SetConfig(langdetect.Config{
			MinTextLength:       next.LanguageMinLength,
			ConfidenceThreshold: next.LanguageConfidence,
		})
	}
	if onChange != nil {
		onChange(next)
	}
}

// SetOnSettingsChanged replaces the hook run after every applied change.
func (s *Service) SetOnSettingsChanged(fn func(Settings)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}
