package langdetect

import (
	"strings"

	"github.com/hegedustibor/htgo-tts/voices"
	"github.com/pemistahl/lingua-go"
)

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// supported is the set the classifier is built from. Keeping it small keeps
// the model footprint and the false positive rate on chat text down.
var supported = []struct {
	code   string
	name   string
	lingua lingua.Language
}{
	{voices.English, "English", lingua.English},
	{voices.German, "German", lingua.German},
	{voices.Spanish, "Spanish", lingua.Spanish},
	{voices.French, "French", lingua.French},
	{voices.Portuguese, "Portuguese", lingua.Portuguese},
	{"it", "Italian", lingua.Italian},
	{"nl", "Dutch", lingua.Dutch},
	{"pl", "Polish", lingua.Polish},
	{"ru", "Russian", lingua.Russian},
	{"tr", "Turkish", lingua.Turkish},
	{"id", "Indonesian", lingua.Indonesian},
	{"ja", "Japanese", lingua.Japanese},
	{"ko", "Korean", lingua.Korean},
}

func SupportedLanguages() []Language {
	out := make([]Language, 0, len(supported))
	for _, l := range supported {
		out = append(out, Language{Code: l.code, Name: l.name})
	}
	return out
}

func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range supported {
		if l.code == code {
			return l.name
		}
	}
	return strings.ToUpper(code)
}

func codeFor(lang lingua.Language) (string, bool) {
	for _, l := range supported {
		if l.lingua == lang {
			return l.code, true
		}
	}
	return "", false
}
