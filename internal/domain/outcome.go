package domain

import "fmt"

// Stage is a step of the per-document pipeline.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageChunk Stage = "chunk"
	StageEmbed Stage = "embed"
	StageIndex Stage = "index"
)

// State is the position of a document in the pipeline state machine:
// fetched -> chunked -> embedded -> indexed, or failed at any transition.
type State string

const (
	StateFetched  State = "fetched"
	StateChunked  State = "chunked"
	StateEmbedded State = "embedded"
	StateIndexed  State = "indexed"
	StateFailed   State = "failed"
)

// Outcome is the final result of one document in a pipeline run.
type Outcome struct {
	DocumentID  string
	State       State
	FailedStage Stage
	ChunkCount  int
	Err         error
}

// Indexed builds a successful outcome.
func Indexed(docID string, chunks int) Outcome {
	return Outcome{DocumentID: docID, State: StateIndexed, ChunkCount: chunks}
}

// Failed builds a failed outcome for the given stage.
func Failed(docID string, stage Stage, err error) Outcome {
	return Outcome{DocumentID: docID, State: StateFailed, FailedStage: stage, Err: err}
}

// OK reports whether the document was indexed.
func (o Outcome) OK() bool {
	return o.State == StateIndexed
}

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("indexed(%d)", o.ChunkCount)
	}
	return fmt.Sprintf("failed(%s): %v", o.FailedStage, o.Err)
}
