package privacy

import (
	"regexp"
	"strings"
)

// privateBlock matches <private>...</private> spans, across lines.
var privateBlock = regexp.MustCompile(`(?is)<private>.*?</private>`)

// Redact removes every <private> block from a document before it is mined,
// so nothing inside one can become a learned answer. It reports how many
// blocks were dropped.
func Redact(text string) (string, int) {
	n := len(privateBlock.FindAllStringIndex(text, -1))
	if n == 0 {
		return text, 0
	}
	return strings.TrimSpace(privateBlock.ReplaceAllString(text, "\n")), n
}
