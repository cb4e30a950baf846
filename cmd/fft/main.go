// Command fft decodes flat files with the registered formats from the
// command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flatfile/internal/config"
	_ "github.com/JonMunkholm/flatfile/internal/formats" // Register all formats
	"github.com/JonMunkholm/flatfile/internal/logging"
)

// Options shared by every command.
type Options struct {
	Output   string
	LogLevel string
	EnvFile  string
}

var (
	opts    Options
	cfg     *config.Config
	log     *slog.Logger
	rootCmd *cobra.Command
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "fft",
		Short: "Decode delimited and fixed-width flat files",
		Long: `fft streams flat files through the registered record formats and
writes one JSON object per record to stdout. Lines that cannot be
decoded are reported on stderr.

Examples:
  fft formats
  fft decode cards transactions.txt
  fft decode people --max-lines 100 < people.csv
  fft decode contributions --s3 s3://fec/P00000001-ALL.csv --persist`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				if _, err := config.LoadDotenv(opts.EnvFile); err != nil {
					return err
				}
			} else if _, err := config.LoadDotenv(); err != nil {
				return err
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			log = logging.New(os.Stderr, level, cfg.Logging.Format)
			slog.SetDefault(log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "table", "output format for listings (table or json)")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load environment from this file instead of ./.env")

	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(decodeCmd)
}
