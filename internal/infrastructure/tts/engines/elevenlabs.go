package engines

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultElevenLabsModel   = "eleven_multilingual_v2"
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// customVoicePattern matches cloned or library voice ids that are not part of
// the premade catalogue.
var customVoicePattern = regexp.MustCompile(`^[A-Za-z0-9]{20}$`)

// ElevenLabsEngine uses the multilingual model, so every language is spoken
// by the same voices and VoiceForLanguage never maps.
type ElevenLabsEngine struct {
	catalogue
	apiKey  string
	baseURL string
	modelID string
	httpCli *http.Client
}

func NewElevenLabsEngine(cfg ElevenLabsConfig) *ElevenLabsEngine {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	modelID := strings.TrimSpace(cfg.ModelID)
	if modelID == "" {
		modelID = defaultElevenLabsModel
	}
	return &ElevenLabsEngine{
		catalogue: catalogue{
			voices: map[string]string{
				"21m00Tcm4TlvDq8ikWAM": "Rachel",
				"AZnzlk1XvdvUeBnXmlld": "Domi",
				"EXAVITQu4vr4xnSDxMaL": "Bella",
				"ErXwobaYiN019PkySvjV": "Antoni",
				"MF3mGyEYCl7XYWbV9V6O": "Elli",
				"TxGEqnHWrfWFTfGW9XjX": "Josh",
				"VR6AewLTigWG4xSOukaG": "Arnold",
				"pNInz6obpgDQGcFmaJgB": "Adam",
				"yoZ06aMxZJJ28mfd3POQ": "Sam",
			},
			defaultVoice: "21m00Tcm4TlvDq8ikWAM",
		},
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		modelID: modelID,
		httpCli: newHTTPClient(cfg.Timeout),
	}
}

func (e *ElevenLabsEngine) Name() string { return domain.EngineElevenLabs }

func (e *ElevenLabsEngine) Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if voiceID == "" {
		voiceID = e.defaultVoice
	}
	if !e.hasVoice(voiceID) && !customVoicePattern.MatchString(voiceID) {
		return nil, unsupportedVoice(e.Name(), voiceID)
	}

	settings := map[string]any{
		"stability":        0.5,
		"similarity_boost": 0.75,
	}
	if speed > 0 {
		// the API accepts 0.7..1.2
		settings["speed"] = min(max(speed, 0.7), 1.2)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", e.baseURL, url.PathEscape(voiceID))
	audio, err := postJSON(ctx, e.httpCli, e.Name(), endpoint,
		map[string]string{"xi-api-key": e.apiKey, "Accept": "audio/mpeg"},
		map[string]any{
			"text":           text,
			"model_id":       e.modelID,
			"voice_settings": settings,
		})
	if err != nil {
		return nil, err
	}
	return checkAudio(e.Name(), audio)
}

var _ domain.SynthesisEngine = (*ElevenLabsEngine)(nil)
