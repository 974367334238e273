package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

const defaultGoogleBaseURL = "https://texttospeech.googleapis.com"

type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GoogleEngine calls the Cloud Text-to-Speech REST API with an API key.
type GoogleEngine struct {
	catalogue
	apiKey  string
	baseURL string
	httpCli *http.Client
}

func NewGoogleEngine(cfg GoogleConfig) *GoogleEngine {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleEngine{
		catalogue: catalogue{
			voices: map[string]string{
				"de-DE-Wavenet-B": "German - Male (Wavenet B)",
				"de-DE-Wavenet-C": "German - Female (Wavenet C)",
				"en-US-Wavenet-D": "English US - Male (Wavenet D)",
				"en-US-Wavenet-F": "English US - Female (Wavenet F)",
				"en-GB-Wavenet-A": "English UK - Female (Wavenet A)",
				"es-ES-Wavenet-B": "Spanish - Male (Wavenet B)",
				"fr-FR-Wavenet-C": "French - Female (Wavenet C)",
				"it-IT-Wavenet-A": "Italian - Female (Wavenet A)",
				"pt-BR-Wavenet-A": "Portuguese BR - Female (Wavenet A)",
				"nl-NL-Wavenet-B": "Dutch - Male (Wavenet B)",
				"pl-PL-Wavenet-A": "Polish - Female (Wavenet A)",
				"ru-RU-Wavenet-C": "Russian - Female (Wavenet C)",
				"tr-TR-Wavenet-A": "Turkish - Female (Wavenet A)",
				"ja-JP-Wavenet-B": "Japanese - Female (Wavenet B)",
				"ko-KR-Wavenet-A": "Korean - Female (Wavenet A)",
			},
			languages: map[string]string{
				"de": "de-DE-Wavenet-B",
				"en": "en-US-Wavenet-D",
				"es": "es-ES-Wavenet-B",
				"fr": "fr-FR-Wavenet-C",
				"it": "it-IT-Wavenet-A",
				"pt": "pt-BR-Wavenet-A",
				"nl": "nl-NL-Wavenet-B",
				"pl": "pl-PL-Wavenet-A",
				"ru": "ru-RU-Wavenet-C",
				"tr": "tr-TR-Wavenet-A",
				"ja": "ja-JP-Wavenet-B",
				"ko": "ko-KR-Wavenet-A",
			},
			defaultVoice: "en-US-Wavenet-D",
		},
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpCli: newHTTPClient(cfg.Timeout),
	}
}

func (e *GoogleEngine) Name() string { return domain.EngineGoogle }

type googleSynthesisRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

func (e *GoogleEngine) Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if voiceID == "" {
		voiceID = e.defaultVoice
	}
	if !e.hasVoice(voiceID) {
		return nil, unsupportedVoice(e.Name(), voiceID)
	}

	var body googleSynthesisRequest
	body.Input.Text = text
	body.Voice.Name = voiceID
	body.Voice.LanguageCode = googleLanguageCode(voiceID)
	body.AudioConfig.AudioEncoding = "MP3"
	if speed > 0 {
		body.AudioConfig.SpeakingRate = speed
	}

	endpoint := fmt.Sprintf("%s/v1/text:synthesize?key=%s", e.baseURL, url.QueryEscape(e.apiKey))
	raw, err := postJSON(ctx, e.httpCli, e.Name(), endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode response: %w", err))
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode audio: %w", err))
	}
	return checkAudio(e.Name(), audio)
}

// googleLanguageCode extracts "de-DE" from "de-DE-Wavenet-B".
func googleLanguageCode(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}

var _ domain.SynthesisEngine = (*GoogleEngine)(nil)
