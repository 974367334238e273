package langdetect

import (
	"context"
	"testing"
)

type stubClassifier struct {
	lang string
	conf float64
	ok   bool
}

func (s stubClassifier) Classify(string) (string, float64, bool) { return s.lang, s.conf, s.ok }

type stubEngine struct {
	langs map[string]string
	def   string
}

func (e stubEngine) Name() string { return "stub" }
func (e stubEngine) Synthesize(context.Context, string, string, float64) ([]byte, error) {
	return []byte{1}, nil
}
func (e stubEngine) Voices() map[string]string { return nil }
func (e stubEngine) DefaultVoice() string      { return e.def }
func (e stubEngine) VoiceForLanguage(lang string) (string, bool) {
	v, ok := e.langs[lang]
	return v, ok
}

var engine = stubEngine{langs: map[string]string{"de": "de_002", "en": "en_us_001"}, def: "en_us_001"}

func TestDetectAndGetVoice(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		classifier stubClassifier
		wantLang   string
		wantVoice  string
		fallback   bool
		reason     string
	}{
		{"confident german", "Hallo Welt, wie geht es", stubClassifier{"de", 0.97, true}, "de", "de_002", false, ""},
		{"too short", "Hallo", stubClassifier{"de", 0.99, true}, "en", "en_us_001", true, ReasonTextTooShort},
		{"no result", "asdf qwer zxcv", stubClassifier{}, "en", "en_us_001", true, ReasonDetectionFailed},
		{"low confidence", "ciao ciao bella", stubClassifier{"it", 0.4, true}, "en", "en_us_001", true, ReasonLowConfidence},
		{"unmapped language uses engine default", "ciao a tutti quanti", stubClassifier{"it", 0.95, true}, "it", "en_us_001", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDetector(tc.classifier, Config{})
			got := d.DetectAndGetVoice(tc.text, engine, "en")
			if got == nil {
				t.Fatal("expected a detection")
			}
			if got.LangCode != tc.wantLang || got.VoiceID != tc.wantVoice {
				t.Fatalf("got %s/%s, want %s/%s", got.LangCode, got.VoiceID, tc.wantLang, tc.wantVoice)
			}
			if got.UsedFallback != tc.fallback || got.Reason != tc.reason {
				t.Fatalf("fallback=%v reason=%q", got.UsedFallback, got.Reason)
			}
		})
	}
}

func TestDetectAndGetVoiceNil(t *testing.T) {
	d := NewDetector(stubClassifier{"de", 0.99, true}, Config{})
	if got := d.DetectAndGetVoice("Hallo Welt zusammen", nil, "en"); got != nil {
		t.Fatalf("nil engine should yield nil, got %+v", got)
	}
	empty := stubEngine{}
	if got := d.DetectAndGetVoice("Hallo Welt zusammen", empty, "en"); got != nil {
		t.Fatalf("engine without voices should yield nil, got %+v", got)
	}
}

func TestCustomThresholds(t *testing.T) {
	d := NewDetector(stubClassifier{"de", 0.6, true}, Config{MinTextLength: 3, ConfidenceThreshold: 0.5})
	got := d.DetectAndGetVoice("Hallo", engine, "en")
	if got == nil || got.UsedFallback || got.VoiceID != "de_002" {
		t.Fatalf("unexpected detection %+v", got)
	}
}

func TestLanguageName(t *testing.T) {
	if LanguageName("DE") != "German" {
		t.Fatalf("got %q", LanguageName("DE"))
	}
	if LanguageName("xx") != "XX" {
		t.Fatalf("got %q", LanguageName("xx"))
	}
}

func TestLinguaClassifierGerman(t *testing.T) {
	if testing.Short() {
		t.Skip("loads language models")
	}
	c := NewLinguaClassifier()
	lang, _, ok := c.Classify("Heute ist das Wetter wirklich schön und wir gehen zusammen spazieren")
	if !ok || lang != "de" {
		t.Fatalf("expected de, got %q (%v)", lang, ok)
	}
}

func TestLinguaClassifierClearsDefaultThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("loads language models")
	}
	d := NewDetector(nil, Config{})
	for _, text := range []string{
		"Viele Grüße an alle im Chat, heute wird es ein großer Abend mit euch",
		"Heute ist das Wetter wirklich schön und wir gehen zusammen spazieren",
	} {
		got := d.DetectAndGetVoice(text, engine, "en")
		if got == nil || got.UsedFallback {
			t.Fatalf("%q fell back: %+v", text, got)
		}
		if got.LangCode != "de" || got.VoiceID != "de_002" || got.Confidence < DefaultConfidenceThreshold {
			t.Fatalf("%q detected as %+v", text, got)
		}
	}
}
