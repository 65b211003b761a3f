package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ragpipe/config"
	"ragpipe/internal/adapter/embedding"
	"ragpipe/internal/adapter/retriever"
	"ragpipe/internal/adapter/vectorindex"
	"ragpipe/internal/port"
	"ragpipe/internal/usecase"
)

// pinger is implemented by embedders that can check their server without
// running inference.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	dir := flag.String("dir", ".", "Directory holding ragpipe.yaml")
	indexPath := flag.String("index", "", "Index directory (default from config)")
	query := flag.String("q", "", "Query to test")
	queryFile := flag.String("queries", "", "File with one query per line")
	topK := flag.Int("k", 3, "Number of results")
	flag.Parse()

	queries, err := collectQueries(*query, *queryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading queries: %v\n", err)
		os.Exit(1)
	}
	if len(queries) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -index ./index -q \"query\" [-queries file] [-k 3]")
		fmt.Println("\nChecks:")
		fmt.Println("  1. The saved index loads (both artifacts present and consistent)")
		fmt.Println("  2. The embedding model answers")
		fmt.Println("  3. Each query returns its nearest chunks, with latency")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath == "" {
		*indexPath = cfg.IndexDir(*dir)
	}

	start := time.Now()
	index, err := vectorindex.Load(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	loadTime := time.Since(start)

	embedder, err := embedding.FromConfig(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := checkModel(ctx, embedder); err != nil {
		fmt.Fprintf(os.Stderr, "Embedding model not answering: %v\n", err)
		os.Exit(1)
	}

	stats := index.Stats()
	fmt.Println("RETRIEVAL SMOKE TEST")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Index:      %s (%s)\n", *indexPath, stats.ID)
	fmt.Printf("Records:    %d from %d documents\n", stats.Records, stats.Documents)
	fmt.Printf("Metric:     %s, dimension %d\n", stats.Metric, stats.Dimension)
	fmt.Printf("Model:      %s (query with %s/%s)\n", stats.Model, cfg.Embedding.Provider, embedder.ModelName())
	fmt.Printf("Load time:  %s\n", loadTime.Round(time.Microsecond))
	fmt.Println()

	var opts []usecase.RetrieveOption
	if cfg.Retrieve.MMR {
		r := retriever.NewMMRReranker(cfg.Retrieve.MMRLambda, cfg.Retrieve.DedupThreshold)
		opts = append(opts, usecase.WithReranker(r, cfg.Retrieve.Candidates))
	}
	retrieveUC := usecase.NewRetrieveUseCase(embedder, index, opts...)

	var total time.Duration
	failed := 0
	for _, q := range queries {
		fmt.Printf("Query: %q\n", q)
		fmt.Println(strings.Repeat("-", 70))

		t0 := time.Now()
		hits, err := retrieveUC.Retrieve(ctx, q, *topK)
		elapsed := time.Since(t0)
		total += elapsed
		if err != nil {
			failed++
			fmt.Printf("  error: %v\n\n", err)
			continue
		}

		for _, r := range usecase.ToResults(hits) {
			preview := strings.ReplaceAll(r.Text, "\n", " ")
			if len([]rune(preview)) > 150 {
				preview = string([]rune(preview)[:150]) + "..."
			}
			fmt.Printf("%d. [%.4f] %s chunk %d/%d\n", r.Rank, r.Distance, shortPath(r.Source), r.Ordinal+1, r.Siblings)
			fmt.Printf("   %s\n", preview)
		}
		fmt.Printf("  latency: %s\n\n", elapsed.Round(time.Microsecond))
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Queries:         %d (%d failed)\n", len(queries), failed)
	fmt.Printf("Average latency: %s\n", (total / time.Duration(len(queries))).Round(time.Microsecond))
	if failed > 0 {
		os.Exit(1)
	}
}

// checkModel pings the embedder's server when it supports that. Embedders
// without a server are always ready.
func checkModel(ctx context.Context, embedder port.Embedder) error {
	p, ok := embedder.(pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.Ping(ctx)
}

func collectQueries(query, path string) ([]string, error) {
	var queries []string
	if query != "" {
		queries = append(queries, query)
	}
	if path == "" {
		return queries, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			queries = append(queries, line)
		}
	}
	return queries, scanner.Err()
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return parts[len(parts)-1]
	}
	return path
}
