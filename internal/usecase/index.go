package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"ragpipe/internal/domain"
	"ragpipe/internal/logger"
	"ragpipe/internal/port"
)

// ProgressFunc is called after each document is committed, in input order.
type ProgressFunc func(processed, total int, current string)

// BuildResult contains the results of a build run.
type BuildResult struct {
	Outcomes []domain.Outcome
	Indexed  int
	Failed   int
	Chunks   int
}

// BuildUseCase turns sources into indexed chunks:
// load -> chunk -> embed -> insert, one document at a time.
type BuildUseCase struct {
	loader    port.DocumentLoader
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex
	batchSize int
	workers   int
	log       *slog.Logger
}

// BuildOption configures a BuildUseCase.
type BuildOption func(*BuildUseCase)

// WithBatchSize sets how many chunk texts go into one embed call.
func WithBatchSize(n int) BuildOption {
	return func(u *BuildUseCase) {
		if n > 0 {
			u.batchSize = n
		}
	}
}

// WithWorkers sets how many documents are loaded, chunked and embedded at
// once. Inserts stay sequential and in input order.
func WithWorkers(n int) BuildOption {
	return func(u *BuildUseCase) {
		if n > 0 {
			u.workers = n
		}
	}
}

func WithLogger(log *slog.Logger) BuildOption {
	return func(u *BuildUseCase) {
		if log != nil {
			u.log = log
		}
	}
}

// NewBuildUseCase creates a new build use case.
func NewBuildUseCase(
	loader port.DocumentLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	opts ...BuildOption,
) *BuildUseCase {
	u := &BuildUseCase{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		batchSize: 32,
		workers:   1,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// prepared is a document that went through load, chunk and embed. Either
// failed is set or records holds every chunk of the document.
type prepared struct {
	source  string
	docID   string
	failed  *domain.Outcome
	records []domain.EmbeddedChunk
}

// Run processes sources in order. A failure to load, chunk or embed one
// document is recorded in its outcome and the run moves on. A failed insert
// or a cancelled context stops the run; the outcomes so far are returned
// with the error.
func (u *BuildUseCase) Run(ctx context.Context, sources []string, progress ProgressFunc) (*BuildResult, error) {
	result := &BuildResult{Outcomes: make([]domain.Outcome, 0, len(sources))}

	if u.workers <= 1 || len(sources) <= 1 {
		for i, src := range sources {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			p := u.prepare(ctx, src)
			if err := u.commit(ctx, p, result); err != nil {
				return result, err
			}
			if progress != nil {
				progress(i+1, len(sources), src)
			}
		}
		return result, nil
	}

	return u.runParallel(ctx, sources, progress, result)
}

func (u *BuildUseCase) runParallel(ctx context.Context, sources []string, progress ProgressFunc, result *BuildResult) (*BuildResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan prepared, len(sources))
	for i := range slots {
		slots[i] = make(chan prepared, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, src := range sources {
			if gctx.Err() != nil {
				return
			}
			g.Go(func() error {
				slots[i] <- u.prepare(gctx, src)
				return nil
			})
		}
	}()
	defer func() {
		cancel()
		<-launched
		g.Wait()
	}()

	for i, src := range sources {
		var p prepared
		select {
		case p = <-slots[i]:
		case <-ctx.Done():
			return result, ctx.Err()
		}

		if err := u.commit(ctx, p, result); err != nil {
			return result, err
		}
		if progress != nil {
			progress(i+1, len(sources), src)
		}
	}
	return result, nil
}

func (u *BuildUseCase) prepare(ctx context.Context, source string) prepared {
	p := prepared{source: source, docID: source}
	fail := func(stage domain.Stage, err error) prepared {
		o := domain.Failed(p.docID, stage, &domain.StageError{DocumentID: p.docID, Stage: stage, Err: err})
		p.failed = &o
		return p
	}

	doc, err := u.loader.Load(ctx, source)
	if err != nil {
		return fail(domain.StageFetch, err)
	}
	if doc.ID != "" {
		p.docID = doc.ID
	}

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return fail(domain.StageChunk, err)
	}

	records, err := u.embedChunks(ctx, chunks)
	if err != nil {
		return fail(domain.StageEmbed, err)
	}
	p.records = records
	return p
}

func (u *BuildUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	records := make([]domain.EmbeddedChunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += u.batchSize {
		end := start + u.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: %d vectors for %d chunks", domain.ErrEmbeddingFailed, len(vectors), len(batch))
		}

		for i, c := range batch {
			records = append(records, domain.EmbeddedChunk{Chunk: c, Vector: vectors[i]})
		}
	}
	return records, nil
}

// commit records the outcome of p and inserts its records. Only an insert
// failure or cancellation is returned as an error.
func (u *BuildUseCase) commit(ctx context.Context, p prepared, result *BuildResult) error {
	// a document cut short by cancellation is not reported as failed
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.failed != nil {
		result.Outcomes = append(result.Outcomes, *p.failed)
		result.Failed++
		u.log.Warn("document failed",
			"source", p.source,
			"stage", p.failed.FailedStage,
			"error", p.failed.Err)
		return nil
	}

	if len(p.records) > 0 {
		if err := u.index.Insert(p.records); err != nil {
			stageErr := &domain.StageError{DocumentID: p.docID, Stage: domain.StageIndex, Err: err}
			result.Outcomes = append(result.Outcomes, domain.Failed(p.docID, domain.StageIndex, stageErr))
			result.Failed++
			u.log.Error("index insert failed, stopping", "source", p.source, "error", err)
			return stageErr
		}
	}

	result.Outcomes = append(result.Outcomes, domain.Indexed(p.docID, len(p.records)))
	result.Indexed++
	result.Chunks += len(p.records)
	u.log.Info("document indexed", "source", p.source, "chunks", len(p.records))
	return nil
}
