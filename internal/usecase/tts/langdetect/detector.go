// Package langdetect guesses the language of chat text and maps it to a voice
// of a given synthesis engine.
package langdetect

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"

	"liveTTS/internal/domain"
)

const (
	DefaultMinTextLength       = 10
	DefaultConfidenceThreshold = 0.90

	ReasonTextTooShort    = "text_too_short"
	ReasonDetectionFailed = "detection_failed"
	ReasonLowConfidence   = "low_confidence"
)

// Classifier returns the most likely ISO 639-1 code for text and its
// confidence in [0,1]. ok is false when no language could be determined.
type Classifier interface {
	Classify(text string) (lang string, confidence float64, ok bool)
}

type Detection struct {
	LangCode     string  `json:"langCode"`
	LanguageName string  `json:"languageName"`
	VoiceID      string  `json:"voiceId,omitempty"`
	Confidence   float64 `json:"confidence"`
	UsedFallback bool    `json:"usedFallback"`
	Reason       string  `json:"reason,omitempty"`
}

type Config struct {
	MinTextLength       int
	ConfidenceThreshold float64
}

type Detector struct {
	classifier Classifier

	mu  sync.RWMutex
	cfg Config
}

func NewDetector(classifier Classifier, cfg Config) *Detector {
	if classifier == nil {
		classifier = NewLinguaClassifier()
	}
	return &Detector{classifier: classifier, cfg: normalize(cfg)}
}

func normalize(cfg Config) Config {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultMinTextLength
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return cfg
}

func (d *Detector) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Detector) SetConfig(cfg Config) {
	d.mu.Lock()
	d.cfg = normalize(cfg)
	d.mu.Unlock()
}

// Detect runs the classifier without any voice mapping or threshold.
func (d *Detector) Detect(text string) (Detection, bool) {
	lang, conf, ok := d.classifier.Classify(strings.TrimSpace(text))
	if !ok || lang == "" {
		return Detection{}, false
	}
	return Detection{LangCode: lang, LanguageName: LanguageName(lang), Confidence: conf}, true
}

// DetectAndGetVoice resolves a voice of engine for text. Short text, failed
// detection and low confidence all fall back to fallbackLang. It returns nil
// when the engine is nil or has no usable voice at all.
func (d *Detector) DetectAndGetVoice(text string, engine domain.SynthesisEngine, fallbackLang string) *Detection {
	if engine == nil {
		return nil
	}
	cfg := d.Config()
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < cfg.MinTextLength {
		return fallback(engine, fallbackLang, 0, ReasonTextTooShort)
	}

	lang, conf, ok := d.classifier.Classify(text)
	if !ok || lang == "" {
		return fallback(engine, fallbackLang, 0, ReasonDetectionFailed)
	}
	if conf < cfg.ConfidenceThreshold {
		return fallback(engine, fallbackLang, conf, ReasonLowConfidence)
	}

	voice := voiceFor(engine, lang)
	if voice == "" {
		return nil
	}
	return &Detection{
		LangCode:     lang,
		LanguageName: LanguageName(lang),
		VoiceID:      voice,
		Confidence:   conf,
	}
}

func fallback(engine domain.SynthesisEngine, lang string, conf float64, reason string) *Detection {
	voice := voiceFor(engine, lang)
	if voice == "" {
		return nil
	}
	return &Detection{
		LangCode:     lang,
		LanguageName: LanguageName(lang),
		VoiceID:      voice,
		Confidence:   conf,
		UsedFallback: true,
		Reason:       reason,
	}
}

func voiceFor(engine domain.SynthesisEngine, lang string) string {
	if v, ok := engine.VoiceForLanguage(lang); ok && v != "" {
		return v
	}
	return engine.DefaultVoice()
}

// LinguaClassifier wraps a lingua detector restricted to the supported
// languages. Models load lazily on first use.
type LinguaClassifier struct {
	detector lingua.LanguageDetector
}

func NewLinguaClassifier() *LinguaClassifier {
	langs := make([]lingua.Language, 0, len(supported))
	for _, l := range supported {
		langs = append(langs, l.lingua)
	}
	return &LinguaClassifier{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			Build(),
	}
}

// Classify reports the top language with its share of the top two
// candidates. lingua's raw values are spread over every configured language.
func (c *LinguaClassifier) Classify(text string) (string, float64, bool) {
	if text == "" {
		return "", 0, false
	}
	values := c.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return "", 0, false
	}
	top := values[0]
	code, ok := codeFor(top.Language())
	if !ok {
		return "", 0, false
	}
	return code, margin(values), true
}

func margin(values []lingua.ConfidenceValue) float64 {
	top := values[0].Value()
	if len(values) == 1 || top <= 0 {
		return top
	}
	second := values[1].Value()
	return top / (top + second)
}
