package textnorm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	n := NewDefault()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "  what   is\tGo \n", "what is go"},
		{"keeps terminators", "What, exactly; is Go?", "what exactly is go?"},
		{"arabic yeh and kaf", "كيف", "کیف"},
		{"teh marbuta", "مدرسة", "مدرسه"},
		{"alef variants", "أحمد إيران آب", "احمد ایران اب"},
		{"strips harakat and tatweel", "عَـــلِم", "علم"},
		{"persian digits", "۱۲۳ و ٤٥", "123 و 45"},
		{"persian question mark", "قیمت دلار چند است؟", "قیمت دلار چند است؟"},
		{"symbols become spaces", "a+b=c", "a b c"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.in))
		})
	}

	t.Run("invalid utf8 degrades without panicking", func(t *testing.T) {
		got := n.Normalize("hello \xff\xfe world")
		assert.Equal(t, "hello world", got)
	})
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewDefault()
	alphabet := []rune("abcXYZ 019?!.,;-_\t\nيكةۀإأآىئؤیکهاـَُِ؟۱٢،ـ")

	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringOf(rapid.SampledFrom(alphabet)).Draw(t, "text")
		once := n.Normalize(s)
		if twice := n.Normalize(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}

func TestContentHash(t *testing.T) {
	n := NewDefault()

	t.Run("case and whitespace collide", func(t *testing.T) {
		assert.Equal(t, n.ContentHash("What is Go?"), n.ContentHash("  what   IS go?  "))
	})

	t.Run("trailing terminators ignored", func(t *testing.T) {
		assert.Equal(t, n.ContentHash("what is go"), n.ContentHash("What is Go ?!"))
	})

	t.Run("script variants collide", func(t *testing.T) {
		assert.Equal(t, n.ContentHash("كتاب"), n.ContentHash("کتاب"))
	})

	t.Run("different text differs", func(t *testing.T) {
		assert.NotEqual(t, n.ContentHash("what is go"), n.ContentHash("what is rust"))
	})

	t.Run("fixed length hex digest", func(t *testing.T) {
		assert.Len(t, n.ContentHash("anything"), 64)
	})
}

func TestTokenize(t *testing.T) {
	n := NewDefault()

	t.Run("drops stop words and short tokens", func(t *testing.T) {
		got := n.Tokenize("What is the price of a Go book?")
		assert.Equal(t, []string{"what", "price", "go", "book"}, got)
	})

	t.Run("folds synonyms", func(t *testing.T) {
		assert.Equal(t, []string{"price", "gold"}, n.Tokenize("cost gold"))
		assert.Equal(t, []string{"قیمت", "طلا"}, n.Tokenize("نرخ طلا"))
	})

	t.Run("persian stop words", func(t *testing.T) {
		assert.Equal(t, []string{"قیمت", "دلار", "چند"}, n.Tokenize("قیمت دلار چند است؟"))
	})

	t.Run("respects min length", func(t *testing.T) {
		lex, err := DefaultLexicon()
		require.NoError(t, err)
		strict := New(lex, 4)
		assert.Equal(t, []string{"what", "price"}, strict.Tokenize("what price go"))
	})
}

func TestKeywords(t *testing.T) {
	n := NewDefault()

	t.Run("longer tokens rank first", func(t *testing.T) {
		got := n.Keywords("go concurrency channels", 2)
		assert.Equal(t, []string{"concurrency", "channels"}, got)
	})

	t.Run("lead position bonus", func(t *testing.T) {
		text := "alpha " + "filler filler filler filler filler filler filler filler " + "omegas"
		got := n.Keywords(text, 2)
		// "alpha" (5*2*1.5=15) beats "omegas" (6*2=12) thanks to its position
		assert.Equal(t, []string{"filler", "alpha"}, got)
	})

	t.Run("distinct and truncated", func(t *testing.T) {
		got := n.Keywords("apple apple banana cherry damson", 3)
		assert.Len(t, got, 3)
		assert.ElementsMatch(t, []string{"banana", "cherry", "damson"}, got)
	})

	t.Run("zero max", func(t *testing.T) {
		assert.Nil(t, n.Keywords("anything here", 0))
	})
}

func TestInterrogatives(t *testing.T) {
	n := NewDefault()

	assert.True(t, n.StartsWithInterrogative("How does it work"))
	assert.True(t, n.StartsWithInterrogative("پایتخت ایران کجاست"))
	assert.True(t, n.StartsWithInterrogative("آیا امروز باز است"))
	assert.False(t, n.StartsWithInterrogative("The sky is blue"))
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stop_words: [gopher]\nsynonyms:\n  car: [automobile]\n"), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	n := New(lex, DefaultMinTokenLength)

	assert.Equal(t, []string{"car", "fast"}, n.Tokenize("gopher automobile fast"))
	// defaults are still present
	assert.Equal(t, []string{"price"}, n.Tokenize("the cost"))

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, UnknownLanguage, DetectLanguage("   "))
	assert.Equal(t, "en", DetectLanguage("The quick brown fox jumps over the lazy dog while the farmer watches from the porch"))
}
