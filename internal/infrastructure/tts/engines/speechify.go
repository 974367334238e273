package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

const defaultSpeechifyBaseURL = "https://api.sws.speechify.com"

type SpeechifyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type SpeechifyEngine struct {
	catalogue
	apiKey  string
	baseURL string
	httpCli *http.Client
}

func NewSpeechifyEngine(cfg SpeechifyConfig) *SpeechifyEngine {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultSpeechifyBaseURL
	}
	return &SpeechifyEngine{
		catalogue: catalogue{
			voices: map[string]string{
				"george":  "George (English, male)",
				"henry":   "Henry (English, male)",
				"carly":   "Carly (English, female)",
				"kristy":  "Kristy (English, female)",
				"oliver":  "Oliver (English UK, male)",
				"lisa":    "Lisa (English, female)",
				"mathias": "Mathias (German, male)",
				"frieda":  "Frieda (German, female)",
				"raphael": "Raphael (French, male)",
				"elena":   "Elena (Spanish, female)",
			},
			languages: map[string]string{
				"en": "henry",
				"de": "mathias",
				"fr": "raphael",
				"es": "elena",
			},
			defaultVoice: "henry",
		},
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpCli: newHTTPClient(cfg.Timeout),
	}
}

func (e *SpeechifyEngine) Name() string { return domain.EngineSpeechify }

func (e *SpeechifyEngine) Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if voiceID == "" {
		voiceID = e.defaultVoice
	}
	if !e.hasVoice(voiceID) {
		return nil, unsupportedVoice(e.Name(), voiceID)
	}

	input := text
	if speed > 0 && speed != 1 {
		input = fmt.Sprintf(`<speak><prosody rate="%d%%">%s</prosody></speak>`, int(speed*100), escapeSSML(text))
	}

	raw, err := postJSON(ctx, e.httpCli, e.Name(), e.baseURL+"/v1/audio/speech",
		map[string]string{"Authorization": "Bearer " + e.apiKey},
		map[string]string{
			"input":        input,
			"voice_id":     voiceID,
			"audio_format": "mp3",
			"model":        "simba-multilingual",
		})
	if err != nil {
		return nil, err
	}

	var resp struct {
		AudioData string `json:"audio_data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode response: %w", err))
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioData)
	if err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode audio: %w", err))
	}
	return checkAudio(e.Name(), audio)
}

var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func escapeSSML(s string) string { return ssmlEscaper.Replace(s) }

var _ domain.SynthesisEngine = (*SpeechifyEngine)(nil)
