// Package langdetect tags recognized speech with its language so replies
// can match the streamer's tongue.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
	_ "github.com/pemistahl/lingua-go/language-models/de"
	_ "github.com/pemistahl/lingua-go/language-models/en"
	_ "github.com/pemistahl/lingua-go/language-models/es"
	_ "github.com/pemistahl/lingua-go/language-models/fr"
	_ "github.com/pemistahl/lingua-go/language-models/ja"
	_ "github.com/pemistahl/lingua-go/language-models/ko"
	_ "github.com/pemistahl/lingua-go/language-models/pt"
	_ "github.com/pemistahl/lingua-go/language-models/ru"
	_ "github.com/pemistahl/lingua-go/language-models/zh"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	once     sync.Once
	detector lingua.LanguageDetector
)

// The detector loads per-language models; restricting the set keeps startup
// memory reasonable.
func build() {
	detector = lingua.NewLanguageDetectorBuilder().
		FromLanguages(
			lingua.English,
			lingua.Chinese,
			lingua.Japanese,
			lingua.Korean,
			lingua.Spanish,
			lingua.French,
			lingua.German,
			lingua.Portuguese,
			lingua.Russian,
		).
		Build()
}

// Detect returns the ISO 639-1 code and English display name for text.
// Unrecognizable or empty input returns empty strings.
func Detect(text string) (code, name string) {
	if strings.TrimSpace(text) == "" {
		return "", ""
	}
	once.Do(build)

	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return "", ""
	}

	code = strings.ToLower(lang.IsoCode639_1().String())
	name = display.English.Languages().Name(language.Make(code))
	return code, name
}
