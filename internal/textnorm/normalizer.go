// Package textnorm cleans, tokenizes and canonicalizes question text for
// English and Persian/Arabic script input.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinTokenLength is the shortest token Tokenize keeps.
const DefaultMinTokenLength = 2

// keywordLeadRunes is the prefix length in which a token earns a position bonus.
const keywordLeadRunes = 50

// scriptVariants unifies visually equivalent Arabic-script letters and maps
// Arabic-Indic and Extended Arabic-Indic digits onto ASCII.
var scriptVariants = map[rune]rune{
	'ي': 'ی', 'ى': 'ی', 'ئ': 'ی',
	'ك': 'ک',
	'ة': 'ه', 'ۀ': 'ه',
	'إ': 'ا', 'أ': 'ا', 'آ': 'ا', 'ٱ': 'ا',
	'ؤ': 'و',
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

const tatweel = 'ـ'

// isTerminator reports whether r ends a sentence or question and therefore
// survives punctuation stripping.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '۔':
		return true
	}
	return false
}

// Normalizer implements normalization, tokenization, keyword extraction and
// content hashing. It is immutable after construction and safe for
// concurrent use.
type Normalizer struct {
	stopWords      map[string]struct{}
	synonyms       map[string]string
	interrogatives map[string]struct{}
	minTokenLen    int
}

// New builds a Normalizer from lex. Lexicon entries are normalized with the
// same pipeline as input text so comparisons happen in canonical form.
func New(lex *Lexicon, minTokenLen int) *Normalizer {
	if minTokenLen < 1 {
		minTokenLen = DefaultMinTokenLength
	}
	n := &Normalizer{
		stopWords:      make(map[string]struct{}),
		synonyms:       make(map[string]string),
		interrogatives: make(map[string]struct{}),
		minTokenLen:    minTokenLen,
	}
	if lex == nil {
		return n
	}
	for _, w := range lex.StopWords {
		if c := n.Normalize(w); c != "" {
			n.stopWords[c] = struct{}{}
		}
	}
	for _, w := range lex.Interrogatives {
		if c := n.Normalize(w); c != "" {
			n.interrogatives[c] = struct{}{}
		}
	}
	for canon, variants := range lex.Synonyms {
		c := n.Normalize(canon)
		if c == "" {
			continue
		}
		for _, v := range variants {
			if nv := n.Normalize(v); nv != "" && nv != c {
				n.synonyms[nv] = c
			}
		}
	}
	return n
}

// NewDefault builds a Normalizer over the embedded lexicon.
func NewDefault() *Normalizer {
	lex, err := DefaultLexicon()
	if err != nil {
		// The embedded lexicon is compiled in; failing to parse it is a build defect.
		panic(err)
	}
	return New(lex, DefaultMinTokenLength)
}

// Normalize lowercases text, canonicalizes script variants, strips
// punctuation other than sentence terminators and collapses whitespace.
// It never fails: invalid UTF-8 is replaced before processing.
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	out := text
	for range 4 {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizePass(text string) string {
	t := transform.Chain(
		norm.NFKC,
		runes.Map(unicode.ToLower),
		norm.NFKC,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r == tatweel || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Cf, r)
		})),
		runes.Map(canonicalRune),
	)
	s, _, err := transform.String(t, text)
	if err != nil {
		s = asciiFallback(text)
	}
	return strings.Join(strings.Fields(s), " ")
}

func canonicalRune(r rune) rune {
	if v, ok := scriptVariants[r]; ok {
		return v
	}
	if isTerminator(r) || unicode.IsLetter(r) || unicode.IsDigit(r) {
		return r
	}
	// punctuation, symbols and control characters become separators
	return ' '
}

// asciiFallback keeps only printable ASCII letters, digits and terminators.
func asciiFallback(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || isTerminator(r)):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Tokenize splits normalized text into words, folds synonyms onto their
// canonical token and drops stop words and tokens shorter than the minimum
// length. Order and duplicates are preserved.
func (n *Normalizer) Tokenize(text string) []string {
	words := strings.FieldsFunc(n.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := n.stopWords[w]; stop {
			continue
		}
		if canon, ok := n.synonyms[w]; ok {
			w = canon
		}
		if utf8.RuneCountInString(w) < n.minTokenLen {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text.
func (n *Normalizer) TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range n.Tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// Keywords returns up to maxCount distinct tokens ranked by importance.
// Importance is twice the token length, boosted by half when the token
// appears near the start of the text. Ties keep first-occurrence order.
func (n *Normalizer) Keywords(text string, maxCount int) []string {
	if maxCount <= 0 {
		return nil
	}
	normalized := n.Normalize(text)
	lead := normalized
	if utf8.RuneCountInString(lead) > keywordLeadRunes {
		lead = string([]rune(lead)[:keywordLeadRunes])
	}

	type ranked struct {
		token string
		score float64
		pos   int
	}
	seen := make(map[string]bool)
	var list []ranked
	for i, t := range n.Tokenize(normalized) {
		if seen[t] {
			continue
		}
		seen[t] = true
		score := float64(utf8.RuneCountInString(t)) * 2
		if strings.Contains(lead, t) {
			score *= 1.5
		}
		list = append(list, ranked{token: t, score: score, pos: i})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].pos < list[j].pos
	})
	if len(list) > maxCount {
		list = list[:maxCount]
	}
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.token
	}
	return out
}

// ContentHash returns the hex SHA-256 of the normalized text with trailing
// terminators trimmed, so "What is X?" and "what is x" share a hash. It is
// stable across processes and identifies duplicate questions.
func (n *Normalizer) ContentHash(text string) string {
	key := strings.TrimRightFunc(n.Normalize(text), func(r rune) bool {
		return isTerminator(r) || r == ' '
	})
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// IsInterrogative reports whether word, after normalization, is a question
// lead-word such as "what" or "چرا".
func (n *Normalizer) IsInterrogative(word string) bool {
	_, ok := n.interrogatives[n.Normalize(word)]
	return ok
}

// StartsWithInterrogative reports whether the first or second word of text
// is an interrogative. Persian questions often place it second.
func (n *Normalizer) StartsWithInterrogative(text string) bool {
	words := strings.FieldsFunc(n.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if i > 1 {
			break
		}
		if _, ok := n.interrogatives[w]; ok {
			return true
		}
	}
	// Persian verb-final questions end with the lead-word, e.g. "پایتخت ایران کجاست"
	if len(words) > 0 {
		if _, ok := n.interrogatives[words[len(words)-1]]; ok {
			return true
		}
	}
	return false
}
