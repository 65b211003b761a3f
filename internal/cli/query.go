package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"ragpipe/internal/adapter/embedding"
	"ragpipe/internal/adapter/retriever"
	"ragpipe/internal/adapter/vectorindex"
	"ragpipe/internal/usecase"
)

var (
	queryText  string
	queryTopK  int
	queryIndex string
	queryJSON  bool
	queryMMR   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search an index",
	Long: `Embed the query with the configured model and return the nearest chunks.

Examples:
  ragpipe query -q "when is tuition due"
  ragpipe query -q "residence hall move-in" -k 5 --index index/handbook --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().StringVar(&queryIndex, "index", "", "index directory (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryMMR, "mmr", false, "diversify results with MMR (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	index, err := openIndex(queryIndex)
	if err != nil {
		return err
	}

	embedder, err := embedding.FromConfig(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	if model := index.Model(); model != "" && model != embedder.ModelName() {
		log.Warn("query model differs from the model the index was built with",
			"index_model", model, "query_model", embedder.ModelName())
	}

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	var opts []usecase.RetrieveOption
	if queryMMR || cfg.Retrieve.MMR {
		r := retriever.NewMMRReranker(cfg.Retrieve.MMRLambda, cfg.Retrieve.DedupThreshold)
		opts = append(opts, usecase.WithReranker(r, cfg.Retrieve.Candidates))
	}

	retrieveUC := usecase.NewRetrieveUseCase(embedder, index, opts...)
	hits, err := retrieveUC.Retrieve(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToResults(hits)

	if queryJSON {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), queryText)
	for _, r := range results {
		fmt.Fprintf(out, "--- [%d] %s chunk %d/%d (distance: %.4f) ---\n", r.Rank, r.Source, r.Ordinal+1, r.Siblings, r.Distance)
		fmt.Fprintln(out, truncate(r.Text, 500))
		fmt.Fprintln(out)
	}
	return nil
}

// openIndex loads the index at dir, or at the configured location when dir
// is empty.
func openIndex(dir string) (*vectorindex.Index, error) {
	if dir == "" {
		dir = GetConfig().IndexDir(GetRootDir())
	}
	index, err := vectorindex.Load(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no index found at %s. Run 'ragpipe urls' or 'ragpipe pdfs' first", dir)
		}
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	return index, nil
}
