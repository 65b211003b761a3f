package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"ragpipe/internal/domain"
	"ragpipe/internal/port"
)

var _ port.Chunker = (*Chunker)(nil)

// Chunker splits a document and wraps the pieces into chunk records.
type Chunker struct {
	splitter *RecursiveSplitter
}

func NewChunker(splitter *RecursiveSplitter) *Chunker {
	return &Chunker{splitter: splitter}
}

func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	return BuildChunks(doc.ID, c.splitter.Segments(doc.Text)), nil
}

// BuildChunks numbers segments 0..n-1 and stamps each with the document id
// and sibling count n.
func BuildChunks(docID string, segments []Segment) []domain.Chunk {
	if len(segments) == 0 {
		return nil
	}
	chunks := make([]domain.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = domain.Chunk{
			ID:           generateChunkID(docID, i),
			DocumentID:   docID,
			Ordinal:      i,
			SiblingCount: len(segments),
			StartOffset:  seg.Offset,
			Text:         seg.Text,
		}
	}
	return chunks
}

func generateChunkID(docID string, ordinal int) string {
	data := fmt.Sprintf("%s:%d", docID, ordinal)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
