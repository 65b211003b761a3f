package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ragpipe/internal/domain"
)

func TestChunkerChunk(t *testing.T) {
	c := NewChunker(newSplitter(t, 30, 5))
	doc := domain.Document{ID: "https://example.edu/undergrad", Text: paragraphs, Kind: domain.KindWeb}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	seen := make(map[string]bool)
	for i, ch := range chunks {
		assert.Equal(t, doc.ID, ch.DocumentID)
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, len(chunks), ch.SiblingCount)
		assert.Equal(t, ch.Text, paragraphs[ch.StartOffset:ch.StartOffset+len(ch.Text)])
		assert.Len(t, ch.ID, 16)
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
	assert.Equal(t, "Paragraph one.", chunks[0].Text)
}

func TestChunkerEmptyDocument(t *testing.T) {
	c := NewChunker(newSplitter(t, 30, 5))

	chunks, err := c.Chunk(domain.Document{ID: "empty.pdf"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestBuildChunks(t *testing.T) {
	segments := []Segment{
		{Text: "first", Offset: 0},
		{Text: "second", Offset: 6},
		{Text: "third", Offset: 13},
	}

	chunks := BuildChunks("catalog.pdf", segments)

	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, "catalog.pdf", ch.DocumentID)
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, 3, ch.SiblingCount)
		assert.Equal(t, segments[i].Text, ch.Text)
		assert.Equal(t, segments[i].Offset, ch.StartOffset)
	}
	assert.Nil(t, BuildChunks("catalog.pdf", nil))
}

func TestChunkIDsStable(t *testing.T) {
	a := BuildChunks("doc-a", []Segment{{Text: "x"}})
	again := BuildChunks("doc-a", []Segment{{Text: "y"}})
	b := BuildChunks("doc-b", []Segment{{Text: "x"}})

	// ids depend on document and ordinal only
	assert.Equal(t, a[0].ID, again[0].ID)
	assert.NotEqual(t, a[0].ID, b[0].ID)
}
