// Package engines holds the speech synthesis providers. Each provider
// implements domain.SynthesisEngine over a thin HTTP call; the TTS pipeline
// treats them as opaque.
package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

const defaultTimeout = 15 * time.Second

// catalogue is the static voice list shared by every engine.
type catalogue struct {
	voices       map[string]string
	languages    map[string]string
	defaultVoice string
}

func (c catalogue) Voices() map[string]string {
	out := make(map[string]string, len(c.voices))
	for id, label := range c.voices {
		out[id] = label
	}
	return out
}

func (c catalogue) DefaultVoice() string { return c.defaultVoice }

func (c catalogue) VoiceForLanguage(lang string) (string, bool) {
	lang = normalizeLang(lang)
	if lang == "" {
		return "", false
	}
	voice, ok := c.languages[lang]
	return voice, ok
}

func (c catalogue) hasVoice(id string) bool {
	_, ok := c.voices[id]
	return ok
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return lang
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body as JSON and returns the raw response body on 200.
// Non-200 responses are classified into synthesis error kinds.
func postJSON(ctx context.Context, client *http.Client, engine, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewSynthesisError(engine, domain.SynthesisNetwork, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.NewSynthesisError(engine, domain.SynthesisNetwork, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.NewSynthesisError(engine, domain.SynthesisNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewSynthesisError(engine, classifyStatus(resp.StatusCode),
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewSynthesisError(engine, domain.SynthesisNetwork, fmt.Errorf("read response: %w", err))
	}
	return data, nil
}

func classifyStatus(status int) domain.SynthesisErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.SynthesisAuth
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		return domain.SynthesisQuota
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return domain.SynthesisUnsupportedVoice
	}
	return domain.SynthesisNetwork
}

func checkAudio(engine string, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, domain.NewSynthesisError(engine, domain.SynthesisEmptyAudio, errors.New("engine returned no audio"))
	}
	return audio, nil
}

func unsupportedVoice(engine, voiceID string) error {
	return domain.NewSynthesisError(engine, domain.SynthesisUnsupportedVoice, fmt.Errorf("voice %q not in catalogue", voiceID))
}
