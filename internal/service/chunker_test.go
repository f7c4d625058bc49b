package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_EmptyAndWhitespace(t *testing.T) {
	cfg := ChunkConfig{Size: 10, Overlap: 0, Lookahead: 0, MinChars: 1}

	assert.Nil(t, ChunkText("", cfg))
	assert.Nil(t, ChunkText("   \n\t  ", cfg))
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	cfg := ChunkConfig{Size: 100, Overlap: 10, Lookahead: 10, MinChars: 1}

	chunks := ChunkText("  hello world  ", cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkText_DropsSegmentsBelowMinChars(t *testing.T) {
	cfg := ChunkConfig{Size: 100, Overlap: 0, Lookahead: 0, MinChars: 20}

	chunks := ChunkText("too short", cfg)

	assert.Empty(t, chunks)
}

func TestChunkText_PrefersSpaceBoundary(t *testing.T) {
	// "hello world foo" is 15 runes; a naive cut at 8 would land inside
	// "world", the space at index 11 is within the lookahead.
	cfg := ChunkConfig{Size: 8, Overlap: 0, Lookahead: 5, MinChars: 1}

	chunks := ChunkText("hello world foo", cfg)

	require.Len(t, chunks, 2)
	assert.Equal(t, "hello world", chunks[0])
	assert.Equal(t, "foo", chunks[1])
}

func TestChunkText_PrefersNewlineOverSpace(t *testing.T) {
	// Both a space and a later newline sit inside the lookahead window; the
	// newline wins even though the space comes first.
	text := "aaaaaaaa bb\n" + strings.Repeat("c", 20)
	cfg := ChunkConfig{Size: 8, Overlap: 0, Lookahead: 10, MinChars: 1}

	chunks := ChunkText(text, cfg)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "aaaaaaaa bb", chunks[0])
}

func TestChunkText_NoBoundaryFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("x", 25)
	cfg := ChunkConfig{Size: 10, Overlap: 0, Lookahead: 5, MinChars: 1}

	chunks := ChunkText(text, cfg)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
	assert.Equal(t, strings.Repeat("x", 10), chunks[1])
	assert.Equal(t, strings.Repeat("x", 5), chunks[2])
}

func TestChunkText_OverlapCarriesTail(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10)
	cfg := ChunkConfig{Size: 10, Overlap: 3, Lookahead: 0, MinChars: 1}

	chunks := ChunkText(text, cfg)

	require.GreaterOrEqual(t, len(chunks), 2)
	// The second chunk starts 3 runes before the first one ended.
	assert.True(t, strings.HasPrefix(chunks[1], "aaa"), "second chunk should repeat the overlap tail, got %q", chunks[1])
}

func TestChunkText_TerminatesWhenOverlapExceedsSize(t *testing.T) {
	text := strings.Repeat("z", 40)
	cfg := ChunkConfig{Size: 5, Overlap: 10, Lookahead: 0, MinChars: 1}

	chunks := ChunkText(text, cfg)

	// The cursor is forced forward a full window at a time.
	require.Len(t, chunks, 8)
	for _, chunk := range chunks {
		assert.Equal(t, strings.Repeat("z", 5), chunk)
	}
}

func TestChunkText_RuneSafeForMultibyteText(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 5)
	cfg := ChunkConfig{Size: 10, Overlap: 0, Lookahead: 0, MinChars: 1}

	chunks := ChunkText(text, cfg)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.True(t, strings.ContainsRune(chunk, '日') || strings.ContainsRune(chunk, '本') || strings.ContainsRune(chunk, 'テ'))
		// Never split inside a rune.
		assert.True(t, len([]rune(chunk)) <= 10)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkText_ZeroConfigUsesDefaults(t *testing.T) {
	text := strings.Repeat("word ", 400)

	chunks := ChunkText(text, ChunkConfig{})

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), DefaultChunkConfig().Size+DefaultChunkConfig().Lookahead)
		assert.GreaterOrEqual(t, len([]rune(chunk)), DefaultChunkConfig().MinChars)
	}
}
