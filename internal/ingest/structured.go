package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// synthesizedQuestionPrefixLen is how much of an orphan answer becomes its
// generated question.
const synthesizedQuestionPrefixLen = 50

// extractMarked handles "question <marker> answer" lines. Lines following a
// marker line continue its answer until the next marker line.
func (x *Extractor) extractMarked(text string) []Pair {
	conf := models.ClampConfidence(x.opts.StructuredConfidence)
	var pairs []Pair
	var question string
	var answer []string
	open := false

	emit := func() {
		if open && len(answer) > 0 {
			q := question
			if q == "" {
				q = synthesizeQuestion(answer[0])
			}
			pairs = append(pairs, Pair{
				Question:   q,
				Answer:     strings.Join(answer, "\n"),
				Confidence: conf,
				Mode:       ModeMarker,
			})
		}
		question, answer, open = "", nil, false
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if before, after, found := strings.Cut(line, x.opts.Marker); found {
			emit()
			open = true
			question = strings.TrimSpace(before)
			if a := strings.TrimSpace(after); a != "" {
				answer = append(answer, a)
			}
			continue
		}
		if open {
			answer = append(answer, line)
		}
	}
	emit()
	return pairs
}

// synthesizeQuestion builds an "explain <topic>" prompt from the opening of
// an answer that arrived without a question.
func synthesizeQuestion(answer string) string {
	topic := strings.TrimSpace(answer)
	if utf8.RuneCountInString(topic) > synthesizedQuestionPrefixLen {
		topic = string([]rune(topic)[:synthesizedQuestionPrefixLen])
	}
	return "در مورد " + strings.TrimSpace(topic) + " توضیح بده"
}

var headerWords = map[string]bool{
	"question": true, "q": true, "questions": true,
	"سوال": true, "سؤال": true, "پرسش": true,
}

// tabularRows parses two-column input separated by tabs or pipes. It applies
// only when every non-empty line contains the separator and the input looks
// like a table: at least two lines, or a markdown rule row. A question cell
// holding more than one sentence means the separator is part of prose. Rows
// with an empty column are skipped; anything after the first separator is
// the answer.
func (x *Extractor) tabularRows(text string) ([]Pair, bool) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return nil, false
	}
	for _, sep := range []string{"\t", "|"} {
		rows, ruled, ok := splitColumns(lines, sep)
		if !ok || (len(lines) < 2 && !ruled) {
			continue
		}
		if len(rows) > 0 && headerWords[x.norm.Normalize(rows[0][0])] {
			rows = rows[1:]
		}
		conf := models.ClampConfidence(x.opts.StructuredConfidence)
		pairs := make([]Pair, 0, len(rows))
		for _, r := range rows {
			pairs = append(pairs, Pair{Question: r[0], Answer: r[1], Confidence: conf, Mode: ModeTabular})
		}
		return pairs, true
	}
	return nil, false
}

// splitColumns reports ruled when a markdown rule row was seen.
func splitColumns(lines []string, sep string) (rows [][2]string, ruled, ok bool) {
	rows = make([][2]string, 0, len(lines))
	for _, line := range lines {
		if sep == "|" {
			line = strings.Trim(line, "| ")
			if isTableRule(line) {
				ruled = true
				continue
			}
		}
		q, a, found := strings.Cut(line, sep)
		if !found {
			return nil, false, false
		}
		q, a = strings.TrimSpace(q), strings.TrimSpace(a)
		if hasInnerSentenceEnd(q) {
			return nil, false, false
		}
		if q == "" || a == "" {
			continue
		}
		rows = append(rows, [2]string{q, a})
	}
	return rows, ruled, true
}

// hasInnerSentenceEnd reports whether s has a terminator followed by
// whitespace and more text, as in "Why? Because.".
func hasInnerSentenceEnd(s string) bool {
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) &&
			strings.TrimSpace(string(runes[i+1:])) != "" {
			return true
		}
	}
	return false
}

// isTableRule matches markdown separator rows such as "---|:---:".
func isTableRule(line string) bool {
	return strings.Trim(line, "-:| ") == "" && strings.Contains(line, "-")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.Trim(l, " \r"))
		}
	}
	return out
}
