package domain

// Document kinds.
const (
	KindWeb  = "web"
	KindPDF  = "pdf"
	KindText = "text"
)

// Document is one unit of source text: a web page or a PDF file.
type Document struct {
	ID   string // URL or file path
	Text string
	Kind string
}

// Chunk is a bounded-size substring of a document, possibly overlapping
// its neighbours.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	Ordinal      int    `json:"ordinal"`
	SiblingCount int    `json:"sibling_count"`
	StartOffset  int    `json:"start_offset"` // byte offset into Document.Text
	Text         string `json:"text"`
}

// EmbeddedChunk pairs a chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// Dimension returns the vector length.
func (e EmbeddedChunk) Dimension() int {
	return len(e.Vector)
}

// SearchHit is a single nearest-neighbour result. Lower distance is closer.
type SearchHit struct {
	Record   EmbeddedChunk
	Distance float64
}

// Stats summarises an index.
type Stats struct {
	ID        string
	Metric    string
	Dimension int
	Records   int
	Documents int
	Model     string
}
