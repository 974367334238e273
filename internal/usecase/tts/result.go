package tts

import (
	"errors"
	"fmt"
)

// Error codes carried in SpeakResult.Error.
const (
	CodeDisabled          = "tts_disabled"
	CodePermissionDenied  = "permission_denied"
	CodeProfanityDetected = "profanity_detected"
	CodeEmptyText         = "empty_text"
	CodeQueueFull         = "queue_full"
	CodeRateLimited       = "rate_limited"
	CodeSynthesisFailed   = "synthesis_failed"
)

var (
	ErrDisabled          = errors.New("tts: disabled")
	ErrPermissionDenied  = errors.New("tts: permission denied")
	ErrProfanityDetected = errors.New("tts: profanity detected")
	ErrEmptyText         = errors.New("tts: empty text")
	ErrQueueFull         = errors.New("tts: queue full")
	ErrRateLimited       = errors.New("tts: rate limited")
	ErrSynthesisFailed   = errors.New("tts: synthesis failed")
)

var codeErrors = map[string]error{
	CodeDisabled:          ErrDisabled,
	CodePermissionDenied:  ErrPermissionDenied,
	CodeProfanityDetected: ErrProfanityDetected,
	CodeEmptyText:         ErrEmptyText,
	CodeQueueFull:         ErrQueueFull,
	CodeRateLimited:       ErrRateLimited,
	CodeSynthesisFailed:   ErrSynthesisFailed,
}

// SpeakResult is the outcome of one pipeline run. Rejections are values, not
// errors; Err converts them for callers that prefer errors.Is.
type SpeakResult struct {
	Success            bool   `json:"success"`
	Error              string `json:"error,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Details            string `json:"details,omitempty"`
	Blocked            bool   `json:"blocked,omitempty"`
	ItemID             string `json:"itemId,omitempty"`
	Position           int    `json:"position,omitempty"`
	QueueSize          int    `json:"queueSize"`
	EstimatedWaitMs    int64  `json:"estimatedWaitMs,omitempty"`
	Voice              string `json:"voice,omitempty"`
	Engine             string `json:"engine,omitempty"`
	Text               string `json:"text,omitempty"`
	UsedFallbackEngine bool   `json:"usedFallbackEngine,omitempty"`
}

func (r SpeakResult) Err() error {
	if r.Success {
		return nil
	}
	base, ok := codeErrors[r.Error]
	if !ok {
		base = ErrSynthesisFailed
	}
	switch {
	case r.Details != "":
		return fmt.Errorf("%w: %s", base, r.Details)
	case r.Reason != "":
		return fmt.Errorf("%w: %s", base, r.Reason)
	}
	return base
}

func rejected(code, reason, details string) SpeakResult {
	return SpeakResult{Error: code, Reason: reason, Details: details}
}
