package engines

import (
	"slices"
	"strings"
	"time"

	"liveTTS/internal/domain"
)

// Config enumerates every engine. An engine without credentials is left out
// of the registry entirely.
type Config struct {
	Timeout       time.Duration
	FallbackOrder []string
	TikTok        TikTokConfig
	Google        GoogleConfig
	Speechify     SpeechifyConfig
	ElevenLabs    ElevenLabsConfig
}

// Registry is the immutable set of available engines keyed by name.
type Registry struct {
	engines map[string]domain.SynthesisEngine
	order   []string
}

func NewRegistry(cfg Config) *Registry {
	var list []domain.SynthesisEngine

	if cfg.ElevenLabs.APIKey != "" {
		c := cfg.ElevenLabs
		if c.Timeout == 0 {
			c.Timeout = cfg.Timeout
		}
		list = append(list, NewElevenLabsEngine(c))
	}
	if cfg.Speechify.APIKey != "" {
		c := cfg.Speechify
		if c.Timeout == 0 {
			c.Timeout = cfg.Timeout
		}
		list = append(list, NewSpeechifyEngine(c))
	}
	if cfg.Google.APIKey != "" {
		c := cfg.Google
		if c.Timeout == 0 {
			c.Timeout = cfg.Timeout
		}
		list = append(list, NewGoogleEngine(c))
	}
	if cfg.TikTok.Enabled {
		c := cfg.TikTok
		if c.Timeout == 0 {
			c.Timeout = cfg.Timeout
		}
		list = append(list, NewTikTokEngine(c))
	}

	r := NewRegistryFrom(list...)
	if len(cfg.FallbackOrder) > 0 {
		r.order = normalizeOrder(cfg.FallbackOrder)
	}
	return r
}

// NewRegistryFrom wraps already constructed engines, ordered by the default
// fallback order.
func NewRegistryFrom(list ...domain.SynthesisEngine) *Registry {
	r := &Registry{
		engines: make(map[string]domain.SynthesisEngine, len(list)),
		order:   slices.Clone(domain.DefaultEngineFallbackOrder),
	}
	for _, e := range list {
		if e == nil {
			continue
		}
		r.engines[e.Name()] = e
		if !slices.Contains(r.order, e.Name()) {
			r.order = append(r.order, e.Name())
		}
	}
	return r
}

func (r *Registry) Get(name string) (domain.SynthesisEngine, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Names returns the configured engines in fallback order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.engines))
	for _, name := range r.order {
		if _, ok := r.engines[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.engines)
}

// normalizeOrder lowercases names, drops duplicates and appends any known
// engine the caller forgot so that every configured engine stays reachable.
func normalizeOrder(order []string) []string {
	out := make([]string, 0, len(order)+len(domain.DefaultEngineFallbackOrder))
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	for _, name := range domain.DefaultEngineFallbackOrder {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
