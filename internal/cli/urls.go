package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"ragpipe/internal/domain"
)

var (
	urlsFile string
	urlsOut  string
)

var urlsCmd = &cobra.Command{
	Use:   "urls [URL...]",
	Short: "Index web pages",
	Long: `Fetch web pages, clean their HTML and build one index from all of them.
URLs come from the arguments, from --file (one per line, # starts a comment)
or, when neither is given, from fetch.urls in the config.

Examples:
  ragpipe urls https://example.edu/admissions https://example.edu/registrar
  ragpipe urls --file urls.txt --out index/web`,
	RunE: runURLs,
}

func init() {
	rootCmd.AddCommand(urlsCmd)
	urlsCmd.Flags().StringVarP(&urlsFile, "file", "f", "", "file with one URL per line")
	urlsCmd.Flags().StringVarP(&urlsOut, "out", "o", "", "index directory (default from config)")
}

func runURLs(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	sources := append([]string(nil), args...)
	if urlsFile != "" {
		listed, err := readURLList(urlsFile)
		if err != nil {
			return err
		}
		sources = append(sources, listed...)
	}
	if len(sources) == 0 {
		sources = cfg.Fetch.URLs
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: no URLs given and fetch.urls is empty", domain.ErrInvalidArgument)
	}

	outDir := urlsOut
	if outDir == "" {
		outDir = cfg.IndexDir(GetRootDir())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Fetching %d pages...\n", len(sources))
	_, err := buildIndex(cmd, cfg, sources, outDir)
	return err
}

// readURLList reads one URL per line, skipping blank lines and # comments.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}
