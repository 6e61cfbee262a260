package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordSplitter(t *testing.T) {
	tests := []struct {
		name string
		size int
		text string
		want []string
	}{
		{"exact multiple", 2, "a b c d", []string{"a b", "c d"}},
		{"remainder", 3, "one two three four", []string{"one two three", "four"}},
		{"single chunk", 10, "short text", []string{"short text"}},
		{"keeps line breaks", 3, "a b\nc d e", []string{"a b\nc", "d e"}},
		{"leading and trailing space", 2, "  x y z  ", []string{"x y", "z"}},
		{"empty", 5, "", nil},
		{"whitespace only", 5, " \n\t ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&WordSplitter{ChunkSize: tt.size}).SplitText(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewWordChunker(3)
	require.NoError(t, err)

	text := "alpha beta gamma delta epsilon zeta eta"
	fragments, err := c.Chunk("greek.txt", "user-7", text)
	require.NoError(t, err)
	require.Len(t, fragments, 3)

	var rebuilt []string
	for i, f := range fragments {
		assert.Equal(t, i, f.Sequence, "sequence follows text order")
		assert.Equal(t, "greek.txt", f.SourceID)
		assert.Equal(t, "user-7", f.OwnerID)
		assert.LessOrEqual(t, len(strings.Fields(f.Text)), 3)
		rebuilt = append(rebuilt, f.Text)
	}
	assert.Equal(t, text, strings.Join(rebuilt, " "), "no overlap and nothing lost")
}

func TestChunker_EmptyText(t *testing.T) {
	c, err := NewWordChunker(DefaultChunkSize)
	require.NoError(t, err)

	fragments, err := c.Chunk("a.txt", "", "   ")
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestChunker_InvalidSize(t *testing.T) {
	_, err := NewWordChunker(0)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)

	_, err = NewTokenChunker(-1)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}

type failingSplitter struct{}

func (failingSplitter) SplitText(string) ([]string, error) {
	return nil, errors.New("boom")
}

func TestChunker_SplitterError(t *testing.T) {
	c, err := NewWordChunker(5, WithSplitter(failingSplitter{}))
	require.NoError(t, err)

	_, err = c.Chunk("a.txt", "", "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestChunker_DropsBlankSegments(t *testing.T) {
	c, err := NewWordChunker(5, WithSplitter(fixedSplitter{"first", "  ", "second"}))
	require.NoError(t, err)

	fragments, err := c.Chunk("a.txt", "", "ignored")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, 0, fragments[0].Sequence)
	assert.Equal(t, 1, fragments[1].Sequence)
	assert.Equal(t, "second", fragments[1].Text)
}

type fixedSplitter []string

func (f fixedSplitter) SplitText(string) ([]string, error) {
	return f, nil
}
