package textnorm

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// UnknownLanguage is returned when detection is not reliable.
const UnknownLanguage = "und"

// DetectLanguage returns the ISO 639-1 code of text's language, or
// UnknownLanguage when the text is empty or detection is unreliable.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return UnknownLanguage
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return UnknownLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return UnknownLanguage
	}
	return code
}
