package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return strings.Join(parts, " ")
}

func TestChunkTextRejectsBadConfig(t *testing.T) {
	_, err := ChunkText("hello", 0, 0)
	assert.ErrorIs(t, err, ErrMaxTokensNotPositive)

	_, err = ChunkText("hello", 10, -1)
	assert.ErrorIs(t, err, ErrOverlapNegative)

	_, err = ChunkText("hello", 10, 10)
	assert.ErrorIs(t, err, ErrOverlapTooLarge)

	_, err = ChunkText("hello", 10, 15)
	assert.ErrorIs(t, err, ErrOverlapTooLarge)
}

func TestChunkTextEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		chunks, err := ChunkText(input, 10, 2)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunkTextSingleParagraphFits(t *testing.T) {
	chunks, err := ChunkText("one two three", 10, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "one two three", chunks[0].Content)
	assert.Equal(t, 3, chunks[0].TokenCount)
}

func TestChunkTextParagraphBoundaryFlush(t *testing.T) {
	p1 := words("a", 6)
	p2 := words("b", 5)
	chunks, err := ChunkText(p1+"\n\n"+p2, 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Content)
	assert.Equal(t, p2, chunks[1].Content)
	assert.Equal(t, []int{0, 1}, []int{chunks[0].Index, chunks[1].Index})
}

func TestChunkTextParagraphsAccumulate(t *testing.T) {
	p1 := words("a", 4)
	p2 := words("b", 4)
	chunks, err := ChunkText(p1+"\n\n"+p2, 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, p1+"\n\n"+p2, chunks[0].Content)
	assert.Equal(t, 8, chunks[0].TokenCount)
}

func TestChunkTextOverlapSeedsNextChunk(t *testing.T) {
	p1 := words("a", 8)
	p2 := words("b", 6)
	chunks, err := ChunkText(p1+"\n\n"+p2, 10, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Content)
	// The second chunk opens with the last 3 words of the first.
	assert.True(t, strings.HasPrefix(chunks[1].Content, "a6 a7 a8"), "got %q", chunks[1].Content)
	assert.Contains(t, chunks[1].Content, p2)
}

func TestChunkTextOversizedParagraphWindow(t *testing.T) {
	text := words("w", 25)
	chunks, err := ChunkText(text, 10, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, words("w", 10), chunks[0].Content)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.TokenCount, 10)
		assert.NotEmpty(t, c.Content)
	}
	// Each window after the first re-opens with the previous window's tail.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		tail := strings.Join(prev[len(prev)-3:], " ")
		assert.True(t, strings.HasPrefix(chunks[i].Content, tail),
			"chunk %d %q does not start with %q", i, chunks[i].Content, tail)
	}
}

func TestChunkTextWindowReconstructsAllWords(t *testing.T) {
	const overlap = 3
	text := words("w", 47)
	chunks, err := ChunkText(text, 10, overlap)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Dropping each window's overlap prefix rebuilds the original word stream.
	var rebuilt []string
	for i, c := range chunks {
		ws := strings.Fields(c.Content)
		if i > 0 {
			ws = ws[overlap:]
		}
		rebuilt = append(rebuilt, ws...)
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestChunkTextNormalizesCRLF(t *testing.T) {
	chunks, err := ChunkText("alpha beta\r\n\r\ngamma delta", 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta\n\ngamma delta", chunks[0].Content)
}

func TestChunkTextIndicesContiguous(t *testing.T) {
	text := words("x", 35) + "\n\n" + words("y", 4) + "\n\n" + words("z", 9)
	chunks, err := ChunkText(text, 10, 2)
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.NotEmpty(t, c.Content)
		assert.Equal(t, EstimateTokenCount(c.Content), c.TokenCount)
	}
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 0, EstimateTokenCount(""))
	assert.Equal(t, 0, EstimateTokenCount("  \n\t "))
	assert.Equal(t, 3, EstimateTokenCount(" one\ttwo\nthree "))
}
