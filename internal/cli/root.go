package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"ragpipe/config"
	"ragpipe/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragpipe",
	Short: "Build similarity-searchable indexes from web pages and PDFs",
	Long: `ragpipe fetches web pages and PDF files, splits their text into overlapping
chunks, embeds the chunks and stores them in a nearest-neighbour index that can
be queried later.

Example usage:
  ragpipe urls https://example.edu/admissions   # Index web pages
  ragpipe pdfs ./handbooks                      # One index per PDF
  ragpipe query -q "when is tuition due"        # Search an index
  ragpipe stats --index index                   # Describe an index`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := loadEnvFile(cfg.EnvFile); err != nil {
			return err
		}

		lc, err := logger.ConfigFrom(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		if verbose {
			lc.Level = slog.LevelDebug
		}
		log = logger.New(lc, cmd.ErrOrStderr())

		return nil
	},
}

// Execute runs the root command. Failures exit with status 1.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragpipe.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadEnvFile loads secrets from path into the environment. A missing file
// is not an error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
