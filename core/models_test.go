package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{name: "text", content: []byte("test content")},
		{name: "empty", content: []byte{}},
		{name: "binary", content: []byte{0x00, 0xff, 0x10, 0x7f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := HashContent(tt.content)
			h2 := HashContent(tt.content)

			assert.Equal(t, h1, h2, "same bytes must hash identically")
			assert.Len(t, h1, 64, "256-bit digest in hex")
		})
	}
}

func TestHashContent_Different(t *testing.T) {
	assert.NotEqual(t, HashContent([]byte("content1")), HashContent([]byte("content2")))
}

func TestDocumentTypeOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"notes.txt", "txt"},
		{"Report.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"README", "txt"},
		{"trailing.", "txt"},
		{"", "txt"},
		{"dir.v2/readme", "txt"},
		{"paper.Docx", "docx"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentTypeOf(tt.filename))
		})
	}
}

func TestNormalizeFilename(t *testing.T) {
	assert.Equal(t, UnknownFilename, NormalizeFilename(""))
	assert.Equal(t, UnknownFilename, NormalizeFilename("   "))
	assert.Equal(t, "a.txt", NormalizeFilename("a.txt"))
	assert.Equal(t, "a.txt", NormalizeFilename("/tmp/uploads/a.txt"))
}

func TestNewUploadProgress_Percent(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 2, 50},
		{1, 8, 13}, // 12.5 rounds half up
		{0, 0, 0},
	}

	for _, tt := range tests {
		p := NewUploadProgress(tt.processed, tt.total, "f", StatusProcessing)
		assert.Equal(t, tt.want, p.Percent, "processed=%d total=%d", tt.processed, tt.total)
	}
}

func TestCompletedProgress(t *testing.T) {
	p := CompletedProgress(0, 0)

	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "", p.CurrentFile)
	assert.True(t, p.IsTerminal())
}

func TestFragmentMetadata(t *testing.T) {
	f := &Fragment{Text: "x", OwnerID: "42", SourceID: "a.txt"}
	md := f.Metadata()

	assert.Equal(t, "a.txt", md["source"])
	assert.Equal(t, "42", md["ownerId"])
}

func TestFragmentMUS(t *testing.T) {
	in := Fragment{
		Id:       7,
		Text:     "hello world",
		OwnerID:  "user-1",
		SourceID: "a.txt",
		Sequence: 3,
		Vector:   []float32{0.25, -1.5, 3},
	}

	buf := make([]byte, FragmentMUS.Size(in))
	n := FragmentMUS.Marshal(in, buf)
	require.Equal(t, len(buf), n)

	out, read, err := FragmentMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, in, out)
}

func TestFragmentMUS_Truncated(t *testing.T) {
	in := Fragment{Id: 1, Text: "some text", SourceID: "a.txt"}
	buf := make([]byte, FragmentMUS.Size(in))
	FragmentMUS.Marshal(in, buf)

	_, _, err := FragmentMUS.Unmarshal(buf[:len(buf)/2])
	assert.Error(t, err)
}
