package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsOnePiece(t *testing.T) {
	pieces := NewSplitter(1000, 200).Split("  A short paragraph.  ")
	assert.Equal(t, []string{"A short paragraph."}, pieces)
	assert.Empty(t, NewSplitter(1000, 200).Split("   \n "))
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	var paras []string
	for i := 0; i < 30; i++ {
		paras = append(paras, strings.Repeat(string(rune('a'+i%26)), 90)+".")
	}
	text := strings.Join(paras, "\n\n")

	pieces := NewSplitter(300, 100).Split(text)

	require.Greater(t, len(pieces), 5)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 300)
	}
	// Consecutive pieces share a paragraph.
	last := pieces[0][len(pieces[0])-91:]
	assert.Contains(t, pieces[1], strings.TrimSpace(last))
}

func TestSplitFallsBackToWords(t *testing.T) {
	text := strings.Repeat("word ", 100)

	pieces := NewSplitter(50, 10).Split(text)

	require.NotEmpty(t, pieces)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 50)
		assert.NotContains(t, p, "wor d")
	}
}

func TestSplitCharactersAsLastResort(t *testing.T) {
	pieces := NewSplitter(10, 0).Split(strings.Repeat("x", 35))

	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, pieces)
}
