package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"liveTTS/internal/domain"
)

// Voice sources recorded in traces.
const (
	sourceRequest   = "request"
	sourceUser      = "user"
	sourceDetection = "detection"
	sourceDefault   = "default"
	sourceEngine    = "engine_default"
	sourceAbsolute  = "absolute_fallback"
)

type plan struct {
	engine domain.SynthesisEngine
	voice  string
	source string
	// substituted is set when the preferred engine was unavailable.
	substituted bool
}

type synthesis struct {
	audio    []byte
	engine   string
	voice    string
	fallback bool
}

// resolve picks the engine and voice: explicit request, user assignment,
// language detection, configured default, then the absolute fallback. A
// missing engine is replaced by the first available one in fallback order.
func (s *Service) resolve(engines Engines, text string, req domain.SpeakRequest, user *domain.UserTTSSettings, settings Settings) (plan, bool) {
	engineName := strings.ToLower(strings.TrimSpace(req.Engine))
	voice := strings.TrimSpace(req.VoiceID)
	source := ""
	if engineName != "" || voice != "" {
		source = sourceRequest
	}

	if voice == "" && user.HasVoiceAssignment() {
		assigned := strings.ToLower(user.AssignedEngine)
		if engineName == "" || assigned == "" || assigned == engineName {
			if engineName == "" {
				engineName = assigned
			}
			voice = user.AssignedVoiceID
			source = sourceUser
		}
	}

	if engineName == "" {
		engineName = settings.DefaultEngine
	}
	if engineName == "" {
		engineName = AbsoluteFallbackEngine
	}

	p := plan{voice: voice, source: source}
	engine, ok := engines.Get(engineName)
	if !ok {
		engine, ok = s.substitute(engines, engineName)
		if !ok {
			return plan{}, false
		}
		p.substituted = true
		if voice != "" && !hasVoice(engine, voice) {
			s.trace("voice", "voice not in substitute catalogue", map[string]any{
				"voice":  voice,
				"engine": engine.Name(),
			})
			p.voice = ""
		}
	}
	p.engine = engine

	if p.voice == "" {
		p.voice, p.source = s.voiceFor(engine, text, settings)
	}
	s.trace("voice", "voice resolved", map[string]any{
		"engine":      engine.Name(),
		"voice":       p.voice,
		"source":      p.source,
		"substituted": p.substituted,
	})
	return p, true
}

func (s *Service) substitute(engines Engines, missing string) (domain.SynthesisEngine, bool) {
	for _, name := range engines.Names() {
		if name == missing {
			continue
		}
		if engine, ok := engines.Get(name); ok {
			s.trace("engine", "engine unavailable, substituted", map[string]any{
				"requested":  missing,
				"substitute": name,
			})
			return engine, true
		}
	}
	s.trace("engine", "no engine available", map[string]any{"requested": missing})
	return nil, false
}

// voiceFor resolves a voice on engine without an explicit or assigned one. A
// detection that only fell back to the fallback language yields to the
// configured default voice when the engine has it.
func (s *Service) voiceFor(engine domain.SynthesisEngine, text string, settings Settings) (string, string) {
	hasDefault := settings.DefaultVoice != "" && hasVoice(engine, settings.DefaultVoice)
	if settings.AutoLanguageDetect && s.detector != nil {
		if det := s.detector.DetectAndGetVoice(text, engine, settings.FallbackLanguage); det != nil && det.VoiceID != "" {
			s.trace("language", "language resolved", map[string]any{
				"engine":       engine.Name(),
				"lang":         det.LangCode,
				"voice":        det.VoiceID,
				"confidence":   det.Confidence,
				"usedFallback": det.UsedFallback,
				"reason":       det.Reason,
			})
			if !det.UsedFallback || !hasDefault {
				return det.VoiceID, sourceDetection
			}
		}
	}
	if hasDefault {
		return settings.DefaultVoice, sourceDefault
	}
	if v := engine.DefaultVoice(); v != "" {
		return v, sourceEngine
	}
	return AbsoluteFallbackVoice, sourceAbsolute
}

// synthesize tries the planned engine first, then every other available
// engine in fallback order. No engine is tried twice.
func (s *Service) synthesize(ctx context.Context, engines Engines, text string, p plan, settings Settings) (synthesis, error) {
	type attempt struct {
		engine domain.SynthesisEngine
		voice  string
	}
	chain := []attempt{{engine: p.engine, voice: p.voice}}
	for _, name := range engines.Names() {
		if name == p.engine.Name() {
			continue
		}
		if engine, ok := engines.Get(name); ok {
			chain = append(chain, attempt{engine: engine})
		}
	}

	tried := make(map[string]bool, len(chain))
	var errs []error
	for i, a := range chain {
		name := a.engine.Name()
		if tried[name] {
			continue
		}
		tried[name] = true

		voice := a.voice
		if i > 0 {
			voice = s.fallbackVoice(a.engine, p.voice, text, settings)
		}

		audio, err := a.engine.Synthesize(ctx, text, voice, settings.Speed)
		if err == nil && len(audio) == 0 {
			err = domain.NewSynthesisError(name, domain.SynthesisEmptyAudio, errors.New("engine returned no audio"))
		}
		if err == nil {
			if i > 0 {
				s.trace("synthesis", "fallback engine succeeded", map[string]any{"engine": name, "voice": voice})
			}
			return synthesis{audio: audio, engine: name, voice: voice, fallback: i > 0 || p.substituted}, nil
		}

		s.logger.Warn("engine failed", "engine", name, "voice", voice, "kind", domain.SynthesisKind(err), "err", err)
		s.trace("synthesis", "engine failed", map[string]any{
			"engine": name,
			"voice":  voice,
			"kind":   string(domain.SynthesisKind(err)),
			"error":  err.Error(),
		})
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		return synthesis{}, fmt.Errorf("no engine attempted")
	}
	return synthesis{}, errors.Join(errs...)
}

// fallbackVoice keeps the original voice when the fallback engine knows it and
// re-resolves otherwise.
func (s *Service) fallbackVoice(engine domain.SynthesisEngine, voice, text string, settings Settings) string {
	if voice != "" && hasVoice(engine, voice) {
		return voice
	}
	v, _ := s.voiceFor(engine, text, settings)
	return v
}

func hasVoice(engine domain.SynthesisEngine, voice string) bool {
	_, ok := engine.Voices()[voice]
	return ok
}
