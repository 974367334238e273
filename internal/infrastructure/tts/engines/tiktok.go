package engines

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"liveTTS/internal/domain"
)

const defaultTikTokEndpoint = "https://tiktok-tts.weilnet.workers.dev/api/generation"

type TikTokConfig struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
	// RequestsPerMinute throttles calls to the shared community endpoint.
	// Zero or less disables the throttle.
	RequestsPerMinute int
}

// TikTokEngine talks to the free community TikTok voice endpoint. It needs no
// credentials and ignores the speed parameter.
type TikTokEngine struct {
	catalogue
	endpoint string
	httpCli  *http.Client
	limiter  *rate.Limiter
}

func NewTikTokEngine(cfg TikTokConfig) *TikTokEngine {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultTikTokEndpoint
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &TikTokEngine{
		catalogue: catalogue{
			voices: map[string]string{
				"en_us_001":          "English US - Female",
				"en_us_006":          "English US - Male 1",
				"en_us_007":          "English US - Male 2",
				"en_us_009":          "English US - Male 3",
				"en_us_010":          "English US - Male 4",
				"en_uk_001":          "English UK - Male 1",
				"en_uk_003":          "English UK - Male 2",
				"en_au_001":          "English AU - Female",
				"en_us_ghostface":    "Ghost Face",
				"en_us_stormtrooper": "Stormtrooper",
				"en_us_rocket":       "Rocket",
				"de_001":             "German - Female",
				"de_002":             "German - Male",
				"fr_001":             "French - Male 1",
				"fr_002":             "French - Male 2",
				"es_002":             "Spanish - Male",
				"es_mx_002":          "Spanish MX - Male",
				"br_001":             "Portuguese BR - Female 1",
				"br_005":             "Portuguese BR - Male",
				"id_001":             "Indonesian - Female",
				"jp_001":             "Japanese - Female 1",
				"jp_006":             "Japanese - Male",
				"kr_002":             "Korean - Male 1",
				"kr_003":             "Korean - Female",
			},
			languages: map[string]string{
				"en": "en_us_001",
				"de": "de_002",
				"fr": "fr_001",
				"es": "es_002",
				"pt": "br_001",
				"id": "id_001",
				"ja": "jp_001",
				"ko": "kr_003",
			},
			defaultVoice: "en_us_001",
		},
		endpoint: endpoint,
		httpCli:  newHTTPClient(cfg.Timeout),
		limiter:  limiter,
	}
}

func (e *TikTokEngine) Name() string { return domain.EngineTikTok }

type tiktokResponse struct {
	Success bool    `json:"success"`
	Data    string  `json:"data"`
	Error   *string `json:"error"`
}

func (e *TikTokEngine) Synthesize(ctx context.Context, text, voiceID string, _ float64) ([]byte, error) {
	if voiceID == "" {
		voiceID = e.defaultVoice
	}
	if !e.hasVoice(voiceID) {
		return nil, unsupportedVoice(e.Name(), voiceID)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	raw, err := postJSON(ctx, e.httpCli, e.Name(), e.endpoint, nil, map[string]string{
		"text":  text,
		"voice": voiceID,
	})
	if err != nil {
		return nil, err
	}

	var resp tiktokResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode response: %w", err))
	}
	if !resp.Success {
		msg := "request rejected"
		if resp.Error != nil {
			msg = *resp.Error
		}
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, errors.New(msg))
	}

	audio, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, domain.NewSynthesisError(e.Name(), domain.SynthesisNetwork, fmt.Errorf("decode audio: %w", err))
	}
	return checkAudio(e.Name(), audio)
}

var _ domain.SynthesisEngine = (*TikTokEngine)(nil)
