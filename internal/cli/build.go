package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"ragpipe/config"
	"ragpipe/internal/adapter/analyzer"
	"ragpipe/internal/adapter/chunker"
	"ragpipe/internal/adapter/embedding"
	"ragpipe/internal/adapter/fetch"
	"ragpipe/internal/adapter/vectorindex"
	"ragpipe/internal/port"
	"ragpipe/internal/usecase"
)

func newChunker(cfg *config.Config) (*chunker.Chunker, error) {
	length, err := analyzer.NewLengthFunc(cfg.Chunk.Length, cfg.Chunk.Encoding)
	if err != nil {
		return nil, err
	}
	splitter, err := chunker.NewRecursiveSplitter(cfg.Chunk.Size, cfg.Chunk.Overlap,
		chunker.WithSeparators(cfg.Chunk.Separators),
		chunker.WithLengthFunc(length),
		chunker.WithTrimSpace(cfg.Chunk.TrimSpace),
	)
	if err != nil {
		return nil, err
	}
	return chunker.NewChunker(splitter), nil
}

func newLoader(cfg *config.Config) port.DocumentLoader {
	return &fetch.AutoLoader{
		Web: fetch.NewWebLoader(fetch.WebOptions{
			Timeout:       cfg.Fetch.Timeout,
			Delay:         cfg.Fetch.Delay,
			UserAgent:     cfg.Fetch.UserAgent,
			MinLineLength: cfg.Fetch.MinLineLength,
			StripTags:     cfg.Fetch.StripTags,
		}),
		PDF:  fetch.NewPDFLoader(),
		Text: fetch.NewTextLoader(),
	}
}

// buildIndex runs the pipeline over sources and saves the result to outDir.
// Nothing is written when no document could be indexed.
func buildIndex(cmd *cobra.Command, cfg *config.Config, sources []string, outDir string) (*usecase.BuildResult, error) {
	out := cmd.OutOrStdout()

	embedder, err := embedding.FromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	chk, err := newChunker(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	index, err := vectorindex.New(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}
	index.SetModel(embedder.ModelName())

	buildUC := usecase.NewBuildUseCase(newLoader(cfg), chk, embedder, index,
		usecase.WithBatchSize(cfg.Embedding.BatchSize),
		usecase.WithWorkers(cfg.Pipeline.Workers),
		usecase.WithLogger(log),
	)

	log.Debug("building index", "sources", len(sources), "out", outDir,
		"provider", cfg.Embedding.Provider, "model", embedder.ModelName(), "metric", cfg.Index.Metric)

	result, runErr := buildUC.Run(cmd.Context(), sources, newProgress(out, "Indexing"))
	printOutcomes(out, result)
	if runErr != nil {
		return result, fmt.Errorf("indexing aborted: %w", runErr)
	}

	if result.Indexed == 0 {
		fmt.Fprintf(out, "\nNothing indexed; no index written to %s\n", outDir)
		return result, nil
	}

	if err := index.Save(outDir); err != nil {
		return result, fmt.Errorf("failed to save index: %w", err)
	}

	fmt.Fprintf(out, "\nIndexing complete:\n")
	fmt.Fprintf(out, "  Documents indexed: %d\n", result.Indexed)
	fmt.Fprintf(out, "  Documents failed:  %d\n", result.Failed)
	fmt.Fprintf(out, "  Chunks stored:     %d\n", result.Chunks)
	fmt.Fprintf(out, "\nIndex stored at: %s\n", outDir)
	return result, nil
}

// newProgress returns a progress callback that draws a bar on w once the
// total is known.
func newProgress(w io.Writer, label string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(processed, total int, current string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 && processed < total {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

// printOutcomes renders one row per document.
func printOutcomes(w io.Writer, result *usecase.BuildResult) {
	if result == nil || len(result.Outcomes) == 0 {
		return
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Source", "State", "Stage", "Chunks", "Error")
	for _, o := range result.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = truncate(o.Err.Error(), 80)
		}
		table.Append(o.DocumentID, string(o.State), string(o.FailedStage), fmt.Sprintf("%d", o.ChunkCount), errText)
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
