package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, SplitText("", 100))
	assert.Nil(t, SplitText("   \n\t  ", 100))
}

func TestSplitText_SingleChunk(t *testing.T) {
	chunks := SplitText("short policy text", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short policy text", chunks[0])
}

func TestSplitText_GreedyBoundary(t *testing.T) {
	// "the quick brown fox" costs exactly 20 with the +1 joining-space
	// accounting, so "fox" still fits and "jumps" starts the next chunk.
	chunks := SplitText("the quick brown fox jumps", 20)
	require.Len(t, chunks, 2)
	assert.Equal(t, "the quick brown fox", chunks[0])
	assert.Equal(t, "jumps", chunks[1])
}

func TestSplitText_CollapsesWhitespace(t *testing.T) {
	chunks := SplitText("alpha\n\nbeta\t gamma", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma", chunks[0])
}

func TestSplitText_OversizedWordGetsOwnChunk(t *testing.T) {
	long := strings.Repeat("x", 30)
	chunks := SplitText(long+" tail", 10)
	require.Len(t, chunks, 2)
	assert.Equal(t, long, chunks[0])
	assert.Equal(t, "tail", chunks[1])
}

func TestSplitText_NoEmptyChunks(t *testing.T) {
	long := strings.Repeat("y", 50)
	chunks := SplitText(long+" a b", 10)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestSplitText_CoversAllWords(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := SplitText(text, 15)

	rejoined := strings.Join(chunks, " ")
	assert.Equal(t, text, rejoined)

	for _, c := range chunks {
		// A chunk only exceeds the cap when it is a single oversized word
		if len(c) > 15 {
			assert.NotContains(t, c, " ")
		}
	}
}

func TestSplitText_DefaultMaxChars(t *testing.T) {
	chunks := SplitText("hello world", 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}
