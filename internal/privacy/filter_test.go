package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		removed int
	}{
		{"no blocks", "What is X? X is Y.", "What is X? X is Y.", 0},
		{"single block", "What is X? X is Y. <private>What is the PIN? It is 1234.</private>", "What is X? X is Y.", 1},
		{"multiline and case", "<PRIVATE>a\nb</PRIVATE>\nWhat is Z? Z is W.", "What is Z? Z is W.", 1},
		{"only private", "<private>secret</private> <private>more</private>", "", 2},
		{"unterminated kept", "<private>What is X? X is Y.", "<private>What is X? X is Y.", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := Redact(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.removed, n)
		})
	}
}
