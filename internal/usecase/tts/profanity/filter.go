// Package profanity classifies and redacts chat text before it is spoken.
package profanity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

type Mode string

const (
	ModeOff      Mode = "off"
	ModeModerate Mode = "moderate"
	ModeStrict   Mode = "strict"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeOff, "":
		return ModeOff, nil
	case ModeModerate:
		return ModeModerate, nil
	case ModeStrict:
		return ModeStrict, nil
	}
	return ModeOff, fmt.Errorf("profanity: unknown mode %q", raw)
}

type Action string

const (
	ActionAllow  Action = "allow"
	ActionCensor Action = "censor"
	ActionDrop   Action = "drop"
)

const Redaction = "***"

type Result struct {
	Filtered     string   `json:"filtered"`
	HasProfanity bool     `json:"hasProfanity"`
	Action       Action   `json:"action"`
	Matches      []string `json:"matches,omitempty"`
}

var defaultWords = []string{
	"arsch", "arschloch", "asshole", "bastard", "bitch", "cunt", "dick",
	"fick", "ficken", "fuck", "fucker", "fucking", "hurensohn", "motherfucker",
	"nigger", "scheisse", "scheiße", "shit", "slut", "wichser", "whore",
}

// Filter is safe for concurrent use. Filtering itself has no side effects.
type Filter struct {
	mu      sync.RWMutex
	mode    Mode
	words   map[string]struct{}
	pattern *regexp.Regexp
}

func NewFilter(mode Mode, extraWords ...string) *Filter {
	f := &Filter{mode: mode, words: make(map[string]struct{})}
	for _, w := range defaultWords {
		f.words[w] = struct{}{}
	}
	for _, w := range extraWords {
		if w = normalizeWord(w); w != "" {
			f.words[w] = struct{}{}
		}
	}
	f.compile()
	return f
}

func (f *Filter) Mode() Mode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mode
}

func (f *Filter) SetMode(mode Mode) {
	f.mu.Lock()
	f.mode = mode
	f.mu.Unlock()
}

func (f *Filter) AddWords(words ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range words {
		if w = normalizeWord(w); w != "" {
			f.words[w] = struct{}{}
		}
	}
	f.compile()
}

func (f *Filter) Words() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.words))
	for w := range f.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (f *Filter) Filter(text string) Result {
	f.mu.RLock()
	mode, pattern := f.mode, f.pattern
	f.mu.RUnlock()

	res := Result{Filtered: text, Action: ActionAllow}
	if mode == ModeOff || strings.TrimSpace(text) == "" || pattern == nil {
		return res
	}

	res.Matches = pattern.FindAllString(text, -1)
	if len(res.Matches) == 0 {
		res.Matches = nil
		return res
	}
	res.HasProfanity = true

	if mode == ModeStrict {
		res.Action = ActionDrop
		return res
	}
	res.Action = ActionCensor
	res.Filtered = pattern.ReplaceAllString(text, Redaction)
	return res
}

// compile must be called with mu held for writing.
func (f *Filter) compile() {
	if len(f.words) == 0 {
		f.pattern = nil
		return
	}
	words := make([]string, 0, len(f.words))
	for w := range f.words {
		words = append(words, regexp.QuoteMeta(w))
	}
	// longest first so "fucking" wins over "fuck"
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	f.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
