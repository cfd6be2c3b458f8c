package textnorm

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the language data the normalizer depends on. Synonyms map a
// canonical token to the variants that should be folded into it.
type Lexicon struct {
	StopWords      []string            `yaml:"stop_words"`
	Synonyms       map[string][]string `yaml:"synonyms"`
	Interrogatives []string            `yaml:"interrogatives"`
}

// DefaultLexicon parses the embedded English/Persian lexicon.
func DefaultLexicon() (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(defaultLexiconYAML, &lex); err != nil {
		return nil, fmt.Errorf("parse default lexicon: %w", err)
	}
	return &lex, nil
}

// LoadLexicon reads a YAML lexicon from path and merges it over the default.
// An empty path returns the default lexicon unchanged.
func LoadLexicon(path string) (*Lexicon, error) {
	lex, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return lex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	var extra Lexicon
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	lex.Merge(&extra)
	return lex, nil
}

// Merge appends other's entries to l. Synonym lists for the same canonical
// token are concatenated.
func (l *Lexicon) Merge(other *Lexicon) {
	l.StopWords = append(l.StopWords, other.StopWords...)
	l.Interrogatives = append(l.Interrogatives, other.Interrogatives...)
	if l.Synonyms == nil {
		l.Synonyms = make(map[string][]string)
	}
	for canon, variants := range other.Synonyms {
		l.Synonyms[canon] = append(l.Synonyms[canon], variants...)
	}
}
