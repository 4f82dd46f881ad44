package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBoilerplate(t *testing.T) {
	for _, s := range []string{"Page 12", "  42 ", "Table of Contents", "All rights reserved.", "CHAPTER 3", "-----", "..."} {
		assert.True(t, IsBoilerplate(s), s)
	}
	assert.False(t, IsBoilerplate("Chapter 3 explains how plants make food."))
}

func TestQualityScore(t *testing.T) {
	good := strings.Repeat("Plants convert light energy into chemical energy. ", 3)
	assert.Equal(t, 1.0, QualityScore(good))
	assert.Equal(t, 0.5, QualityScore("Plants make food."))
	assert.InDelta(t, 0.05, QualityScore("Page 12"), 0.0001)
	assert.Less(t, QualityScore(strings.Repeat("#$%^&*", 20)), 0.3)
	assert.Zero(t, QualityScore("   "))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b\n\nc", CleanText("  a   b  \n\n\n\n  c  "))
}

func TestFilterKeep(t *testing.T) {
	f := Filter{MinAlnumRatio: 0.3, MinQuality: 0.3}

	text, score, ok := f.Keep("  Photosynthesis happens in the chloroplasts of leaf cells, using sunlight.  ")
	assert.True(t, ok)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "Photosynthesis happens in the chloroplasts of leaf cells, using sunlight.", text)

	_, _, ok = f.Keep("Page 7")
	assert.False(t, ok)
	_, _, ok = f.Keep("---- ==== ---- ==== ////")
	assert.False(t, ok)
}
