package events

import (
	"encoding/base64"
	"time"

	"liveTTS/internal/domain"
)

type TTSQueuedDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	Voice           string `json:"voice"`
	Engine          string `json:"engine"`
	Source          string `json:"source"`
	Position        int    `json:"position"`
	QueueSize       int    `json:"queue_size"`
	EstimatedWaitMs int64  `json:"estimated_wait_ms"`
	QueuedAt        string `json:"queued_at"`
}

// TTSPlayDTO carries the audio to overlays.
type TTSPlayDTO struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Username    string  `json:"username"`
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`
	Engine      string  `json:"engine"`
	Source      string  `json:"source"`
	Volume      float64 `json:"volume"`
	Speed       float64 `json:"speed"`
	DurationMs  int64   `json:"duration_ms"`
	AudioBase64 string  `json:"audio_base64"`
	Priority    *int    `json:"priority,omitempty"`
}

type TTSPlaybackDTO struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
	At       string `json:"at"`
}

type TTSDroppedDTO struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Reason   string `json:"reason"`
	At       string `json:"at"`
}

type TTSStatusDTO struct {
	State        string `json:"state"`
	IsProcessing bool   `json:"is_processing"`
	QueueLength  int    `json:"queue_length"`
	CurrentID    string `json:"current_id,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	UpdatedAt    string `json:"updated_at"`
}

func NewTTSQueuedDTO(item *domain.QueueItem, position, queueSize int, waitMs int64) TTSQueuedDTO {
	return TTSQueuedDTO{
		ID:              item.ID,
		UserID:          item.UserID,
		Username:        item.Username,
		Text:            item.Text,
		Voice:           item.Voice,
		Engine:          item.Engine,
		Source:          string(item.Source),
		Position:        position,
		QueueSize:       queueSize,
		EstimatedWaitMs: waitMs,
		QueuedAt:        timestamp(),
	}
}

func NewTTSPlayDTO(item *domain.QueueItem) TTSPlayDTO {
	return TTSPlayDTO{
		ID:          item.ID,
		UserID:      item.UserID,
		Username:    item.Username,
		Text:        item.Text,
		Voice:       item.Voice,
		Engine:      item.Engine,
		Source:      string(item.Source),
		Volume:      item.Volume,
		Speed:       item.Speed,
		DurationMs:  item.Duration.Milliseconds(),
		AudioBase64: base64.StdEncoding.EncodeToString(item.AudioData),
		Priority:    item.Priority,
	}
}

func NewTTSPlaybackDTO(item *domain.QueueItem, skipped bool, err error) TTSPlaybackDTO {
	payload := TTSPlaybackDTO{ID: item.ID, Username: item.Username, Text: item.Text, Skipped: skipped, At: timestamp()}
	if err != nil {
		payload.Error = err.Error()
	}
	return payload
}

func NewTTSDroppedDTO(item *domain.QueueItem, reason string) TTSDroppedDTO {
	return TTSDroppedDTO{ID: item.ID, UserID: item.UserID, Username: item.Username, Reason: reason, At: timestamp()}
}

func NewTTSStatusDTO(state string, processing bool, queueLength int, currentID, lastError string) TTSStatusDTO {
	return TTSStatusDTO{
		State:        state,
		IsProcessing: processing,
		QueueLength:  queueLength,
		CurrentID:    currentID,
		LastError:    lastError,
		UpdatedAt:    timestamp(),
	}
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339Nano) }
