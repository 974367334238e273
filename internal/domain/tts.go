package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type SpeakSource string

const (
	SourceChat    SpeakSource = "chat"
	SourceCommand SpeakSource = "command"
	SourceManual  SpeakSource = "manual"
	SourceGift    SpeakSource = "gift"
	SourceSocket  SpeakSource = "socket"
)

// SpeakRequest lives for a single pipeline invocation and is never persisted.
type SpeakRequest struct {
	Text         string      `json:"text"`
	UserID       string      `json:"userId"`
	Username     string      `json:"username"`
	VoiceID      string      `json:"voiceId,omitempty"`
	Engine       string      `json:"engine,omitempty"`
	Source       SpeakSource `json:"source"`
	TeamLevel    int         `json:"teamLevel"`
	IsSubscriber bool        `json:"isSubscriber"`
	Priority     *int        `json:"priority,omitempty"`
}

type PermissionState string

const (
	PermissionUnset       PermissionState = ""
	PermissionAllowed     PermissionState = "allowed"
	PermissionDenied      PermissionState = "denied"
	PermissionBlacklisted PermissionState = "blacklisted"
)

func ParsePermissionState(raw string) (PermissionState, error) {
	switch PermissionState(raw) {
	case PermissionUnset, PermissionAllowed, PermissionDenied, PermissionBlacklisted:
		return PermissionState(raw), nil
	case "unset", "default":
		return PermissionUnset, nil
	}
	return PermissionUnset, fmt.Errorf("unknown permission state %q", raw)
}

// UserTTSSettings is the persisted per-user row. A user is in exactly one
// permission state at a time.
type UserTTSSettings struct {
	UserID          string          `json:"userId"`
	Username        string          `json:"username"`
	Permission      PermissionState `json:"permission"`
	AssignedVoiceID string          `json:"assignedVoiceId,omitempty"`
	AssignedEngine  string          `json:"assignedEngine,omitempty"`
	VolumeGain      float64         `json:"volumeGain"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (s *UserTTSSettings) HasVoiceAssignment() bool {
	return s != nil && s.AssignedVoiceID != ""
}

// QueueItem holds synthesized audio from enqueue until it has been played
// exactly once. Only the queue keeps a reference to it.
type QueueItem struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	Username     string        `json:"username"`
	Text         string        `json:"text"`
	Voice        string        `json:"voice"`
	Engine       string        `json:"engine"`
	AudioData    []byte        `json:"-"`
	Volume       float64       `json:"volume"`
	Speed        float64       `json:"speed"`
	Source       SpeakSource   `json:"source"`
	TeamLevel    int           `json:"teamLevel"`
	IsSubscriber bool          `json:"isSubscriber"`
	Priority     *int          `json:"priority,omitempty"`
	Duration     time.Duration `json:"-"`
	EnqueuedAt   time.Time     `json:"enqueuedAt"`
}

// EnqueueResult reports the outcome of handing a QueueItem to the playback
// queue. Reason is set when Success is false.
type EnqueueResult struct {
	Success         bool   `json:"success"`
	Reason          string `json:"reason,omitempty"`
	ItemID          string `json:"itemId,omitempty"`
	Position        int    `json:"position"`
	QueueSize       int    `json:"queueSize"`
	EstimatedWaitMs int64  `json:"estimatedWaitMs"`
}

// SynthesisEngine is the single capability every speech provider exposes.
// Voice ids are engine specific; a voice valid for one engine is not assumed
// valid for another.
type SynthesisEngine interface {
	Name() string
	Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error)
	Voices() map[string]string
	DefaultVoice() string
	VoiceForLanguage(lang string) (string, bool)
}

type SynthesisErrorKind string

const (
	SynthesisNetwork          SynthesisErrorKind = "network"
	SynthesisAuth             SynthesisErrorKind = "auth"
	SynthesisQuota            SynthesisErrorKind = "quota"
	SynthesisUnsupportedVoice SynthesisErrorKind = "unsupported_voice"
	SynthesisEmptyAudio       SynthesisErrorKind = "empty_audio"
)

type SynthesisError struct {
	Engine string
	Kind   SynthesisErrorKind
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Engine, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func NewSynthesisError(engine string, kind SynthesisErrorKind, err error) *SynthesisError {
	return &SynthesisError{Engine: engine, Kind: kind, Err: err}
}

// SynthesisKind reports the failure kind of err, or network when err is not a
// SynthesisError.
func SynthesisKind(err error) SynthesisErrorKind {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Kind
	}
	return SynthesisNetwork
}

type TTSUserFilter struct {
	Permission *PermissionState
	WithVoice  bool
	Search     string
}

type TTSUserRepository interface {
	GetTTSUser(ctx context.Context, userID string) (*UserTTSSettings, error)
	UpsertTTSUser(ctx context.Context, user *UserTTSSettings) error
	ListTTSUsers(ctx context.Context, filter TTSUserFilter) ([]*UserTTSSettings, error)
	DeleteTTSUser(ctx context.Context, userID string) (bool, error)
}

type TTSSettingsRepository interface {
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (string, error)
}

// TTSEventPublisher fans pipeline events out to presentation clients.
type TTSEventPublisher interface {
	Publish(topic string, payload any)
}

const (
	EngineTikTok     = "tiktok"
	EngineGoogle     = "google"
	EngineSpeechify  = "speechify"
	EngineElevenLabs = "elevenlabs"
)

// DefaultEngineFallbackOrder lists paid engines first and the free engine last.
var DefaultEngineFallbackOrder = []string{EngineElevenLabs, EngineSpeechify, EngineGoogle, EngineTikTok}
