package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"ragpipe/internal/adapter/fs"
	"ragpipe/internal/domain"
)

var (
	pdfsOut      string
	pdfsCombined bool
)

var pdfsCmd = &cobra.Command{
	Use:   "pdfs [PATH...]",
	Short: "Index PDF files",
	Long: `Extract text from PDF files and index it. By default every file gets its
own index at <out>/<file stem>; --combined puts all of them into <out>.
Directories are searched for files matching pdf.includes.

Examples:
  ragpipe pdfs handbook.pdf catalog.pdf
  ragpipe pdfs ./docs --combined --out index/docs`,
	RunE: runPDFs,
}

func init() {
	rootCmd.AddCommand(pdfsCmd)
	pdfsCmd.Flags().StringVarP(&pdfsOut, "out", "o", "", "output directory (default from config)")
	pdfsCmd.Flags().BoolVar(&pdfsCombined, "combined", false, "build a single index from all files")
}

func runPDFs(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	paths := args
	if len(paths) == 0 {
		paths = []string{GetRootDir()}
	}

	walker := fs.NewWalker(cfg.PDF.Includes, cfg.PDF.Excludes)
	files, err := walker.Expand(paths)
	if err != nil {
		return err
	}

	outDir := pdfsOut
	if outDir == "" {
		outDir = cfg.IndexDir(GetRootDir())
	}

	if pdfsCombined {
		fmt.Fprintf(out, "Indexing %d files into %s...\n", len(files), outDir)
		_, err := buildIndex(cmd, cfg, files, outDir)
		return err
	}

	targets, err := perFileDirs(files, outDir)
	if err != nil {
		return err
	}
	for i, file := range files {
		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(files), file)
		if _, err := buildIndex(cmd, cfg, []string{file}, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// perFileDirs maps each file to <outDir>/<stem>. Two files with the same
// stem would overwrite each other, so that is rejected.
func perFileDirs(files []string, outDir string) ([]string, error) {
	dirs := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, file := range files {
		base := filepath.Base(file)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if prev, ok := seen[stem]; ok {
			return nil, fmt.Errorf("%w: %s and %s share the index name %q; use --combined or rename one",
				domain.ErrInvalidArgument, prev, file, stem)
		}
		seen[stem] = file
		dirs[i] = filepath.Join(outDir, stem)
	}
	return dirs, nil
}
