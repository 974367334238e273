package tts

import (
	"sort"
	"strings"

	"liveTTS/internal/usecase/tts/langdetect"
)

type VoiceOption struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Engine string `json:"engine"`
}

type EngineInfo struct {
	Name         string `json:"name"`
	DefaultVoice string `json:"defaultVoice"`
	VoiceCount   int    `json:"voiceCount"`
	IsDefault    bool   `json:"isDefault"`
}

// Voices lists the catalogue of engine, or of every available engine when
// engine is empty. Unknown engines yield an empty list.
func (s *Service) Voices(engine string) []VoiceOption {
	engines := s.Engines()
	names := engines.Names()
	if engine = strings.ToLower(strings.TrimSpace(engine)); engine != "" {
		names = []string{engine}
	}

	var out []VoiceOption
	for _, name := range names {
		e, ok := engines.Get(name)
		if !ok {
			continue
		}
		for id, label := range e.Voices() {
			out = append(out, VoiceOption{ID: id, Label: label, Engine: name})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Engine != out[j].Engine {
			return out[i].Engine < out[j].Engine
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// EngineInfos describes the available engines in fallback order.
func (s *Service) EngineInfos() []EngineInfo {
	engines := s.Engines()
	def := s.Settings().DefaultEngine

	var out []EngineInfo
	for _, name := range engines.Names() {
		e, ok := engines.Get(name)
		if !ok {
			continue
		}
		out = append(out, EngineInfo{
			Name:         name,
			DefaultVoice: e.DefaultVoice(),
			VoiceCount:   len(e.Voices()),
			IsDefault:    name == def,
		})
	}
	return out
}

type DetectResult struct {
	Text       string                `json:"text"`
	Raw        *langdetect.Detection `json:"raw,omitempty"`
	Resolved   *langdetect.Detection `json:"resolved,omitempty"`
	Engine     string                `json:"engine"`
	Languages  []langdetect.Language `json:"languages"`
	Autodetect bool                  `json:"autodetect"`
}

// Detect previews language detection against engine, or the default engine.
func (s *Service) Detect(text, engine string) DetectResult {
	settings := s.Settings()
	if engine = strings.ToLower(strings.TrimSpace(engine)); engine == "" {
		engine = settings.DefaultEngine
	}
	res := DetectResult{
		Text:       text,
		Engine:     engine,
		Languages:  langdetect.SupportedLanguages(),
		Autodetect: settings.AutoLanguageDetect,
	}
	if s.detector == nil {
		return res
	}
	if raw, ok := s.detector.Detect(text); ok {
		res.Raw = &raw
	}
	if e, ok := s.Engines().Get(engine); ok {
		res.Resolved = s.detector.DetectAndGetVoice(text, e, settings.FallbackLanguage)
	}
	return res
}
