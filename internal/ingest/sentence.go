package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// unit is one sentence-like span of the source text.
type unit struct {
	text     string
	question bool
}

// splitUnits breaks text on newlines and on terminators followed by
// whitespace. Enumeration prefixes such as "1." do not end a unit.
func splitUnits(text string) []string {
	var units []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			units = append(units, s)
		}
		buf.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		buf.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		for i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			i++
			buf.WriteRune(runes[i])
		}
		atBoundary := i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
		if atBoundary && !isEnumeration(buf.String()) {
			flush()
		}
	}
	flush()
	return units
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '۔':
		return true
	}
	return false
}

func isQuestionMark(r rune) bool {
	return r == '?' || r == '؟'
}

// isEnumeration reports whether s is only a list marker like "1." or "b)".
func isEnumeration(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, isSentenceEnd)
	if s == "" {
		return false
	}
	if utf8.RuneCountInString(s) == 1 && unicode.IsLetter([]rune(s)[0]) {
		return true
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// hasLeadingMarker reports enumeration, bullet or capitalized starts.
func hasLeadingMarker(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	switch {
	case r == '-' || r == '*' || r == '•':
		return true
	case unicode.IsUpper(r):
		return true
	case unicode.IsDigit(r):
		rest := strings.TrimLeftFunc(s, unicode.IsDigit)
		return strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, ")") || strings.HasPrefix(rest, "-")
	}
	return false
}

func (x *Extractor) classify(s string) unit {
	u := unit{text: s}
	last, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(s))
	switch {
	case isQuestionMark(last):
		u.question = true
	case last == '.' || last == '!':
		// a declarative sentence that happens to open with "what" or "how"
	default:
		u.question = x.norm.StartsWithInterrogative(s)
	}
	if u.question && len(x.norm.Tokenize(s)) == 0 {
		u.question = false
	}
	return u
}

// scoreAnswer rates the span units[start:end] as an answer to the question
// at qi. Moderate length, several sentences, adjacency and a leading marker
// all raise the score.
func scoreAnswer(units []unit, qi, start, end int, window int) (float64, string) {
	parts := make([]string, 0, end-start)
	for _, u := range units[start:end] {
		parts = append(parts, u.text)
	}
	answer := strings.Join(parts, " ")
	length := utf8.RuneCountInString(answer)

	var score float64
	switch {
	case length < 10:
		score += 5
	case length < 50:
		score += 20
	case length <= 1000:
		score += 40
	case length <= 2000:
		score += 20
	default:
		score += 5
	}

	if extra := end - start - 1; extra > 0 {
		score += float64(min(extra, 2)) * 10
	}

	distance := start - qi
	step := 30.0 / float64(window+1)
	score += 30 - step*float64(distance-1)

	if hasLeadingMarker(units[start].text) {
		score += 10
	}
	return score, answer
}

// extractSentences pairs each detected question with the best scoring span
// of following units inside the window, stopping at the next question.
func (x *Extractor) extractSentences(text string) []Pair {
	raw := splitUnits(text)
	units := make([]unit, len(raw))
	for i, s := range raw {
		units[i] = x.classify(s)
	}

	var pairs []Pair
	for qi, q := range units {
		if !q.question {
			continue
		}
		limit := qi + 1
		for limit < len(units) && limit <= qi+x.opts.Window && !units[limit].question {
			limit++
		}
		if limit == qi+1 {
			continue
		}

		bestScore := -1.0
		var bestAnswer string
		for start := qi + 1; start < limit; start++ {
			for end := start + 1; end <= limit; end++ {
				score, answer := scoreAnswer(units, qi, start, end, x.opts.Window)
				// strict comparison keeps the earliest, shortest span on ties
				if score > bestScore {
					bestScore, bestAnswer = score, answer
				}
			}
		}
		if bestScore <= x.opts.MinScore {
			continue
		}
		pairs = append(pairs, Pair{
			Question:   q.text,
			Answer:     bestAnswer,
			Confidence: models.ClampConfidence(bestScore),
			Mode:       ModeSentence,
		})
	}
	return pairs
}
