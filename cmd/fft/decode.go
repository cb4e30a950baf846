package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/flatfile"
	"github.com/JonMunkholm/flatfile/internal/logging"
	"github.com/JonMunkholm/flatfile/internal/s3source"
	"github.com/JonMunkholm/flatfile/internal/store"
)

type decodeFlags struct {
	s3        string
	maxLines  int
	strict    bool
	encoding  string
	delimiter string
	persist   bool
	failOnBad bool
}

var dflags decodeFlags

var decodeCmd = &cobra.Command{
	Use:   "decode <format> [file]",
	Short: "Decode a file and print one JSON record per line",
	Long: `Decode reads a flat file with the named format. Without a file, or with
"-", standard input is read. Records go to stdout as JSON lines and
unresolvable lines go to stderr.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringVar(&dflags.s3, "s3", "", "read from an S3 object (s3://bucket/key)")
	f.IntVar(&dflags.maxLines, "max-lines", 0, "stop after this many lines")
	f.BoolVar(&dflags.strict, "strict", false, "treat empty required fields and bad numbers as unresolvable")
	f.StringVar(&dflags.encoding, "encoding", "", "source character set (default DECODE_ENCODING)")
	f.StringVar(&dflags.delimiter, "delimiter", "", "override the format's delimiter (comma, tab, ';' ...)")
	f.BoolVar(&dflags.persist, "persist", false, "copy records into the format's table (needs DATABASE_URL)")
	f.BoolVar(&dflags.failOnBad, "fail-on-unresolvable", false, "exit non-zero when any line is unresolvable")
}

func runDecode(cmd *cobra.Command, args []string) error {
	def, ok := catalog.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown format %q (run 'fft formats' to list them)", args[0])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := decodeSource(ctx, cmd, args[1:])
	if err != nil {
		return err
	}
	opts, err := cliOptions(def.Info.Key)
	if err != nil {
		return err
	}

	out := newLineWriter(cmd.OutOrStdout(), cmd.ErrOrStderr())

	var stats flatfile.Stats
	if dflags.persist {
		res, err := persist(ctx, def, src, out, opts)
		if err != nil {
			return err
		}
		stats = res.Stats
		log.Info("run committed", logging.RunID(res.RunID), "inserted", res.Inserted)
	} else {
		stats, err = def.Decode(ctx, src, out, opts...)
		if err != nil {
			return err
		}
	}
	if out.err != nil {
		return fmt.Errorf("write output: %w", out.err)
	}

	log.Info("decode finished",
		logging.Format(def.Info.Key),
		"source", src.Name(),
		"lines", stats.Lines,
		"records", stats.Records,
		"unresolvable", stats.Unresolvable,
		"limit_reached", stats.LimitReached,
		"duration", stats.Duration,
	)
	if dflags.failOnBad && stats.Unresolvable > 0 {
		return fmt.Errorf("%d unresolvable lines", stats.Unresolvable)
	}
	return nil
}

func decodeSource(ctx context.Context, cmd *cobra.Command, args []string) (flatfile.Source, error) {
	if dflags.s3 != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--s3 and a file argument are mutually exclusive")
		}
		client, err := s3source.New(ctx, s3source.Config{
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Endpoint:        cfg.Storage.Endpoint,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			DefaultBucket:   cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, err
		}
		bucket, key, err := client.ParseURI(dflags.s3)
		if err != nil {
			return nil, err
		}
		return client.Object(bucket, key), nil
	}
	if len(args) == 0 || args[0] == "-" {
		return flatfile.NamedReader("stdin", cmd.InOrStdin()), nil
	}
	return flatfile.File(args[0]), nil
}

// cliOptions starts from the configured decode limits and applies flags.
func cliOptions(key string) ([]flatfile.Option, error) {
	dc := cfg.Decode
	limits := flatfile.Limits{
		MaxLines:      dc.MaxLines,
		MaxLineLength: dc.MaxLineLength,
		MaxFileSize:   dc.MaxFileSize,
	}
	if dflags.maxLines > 0 {
		limits.MaxLines = dflags.maxLines
	}
	encoding := dc.Encoding
	if dflags.encoding != "" {
		encoding = dflags.encoding
	}

	opts := []flatfile.Option{
		flatfile.WithLogger(log.With(logging.Format(key))),
		flatfile.WithLimits(limits),
		flatfile.WithEncoding(encoding),
	}
	if dflags.delimiter != "" {
		d, err := flatfile.ParseDelimiter(dflags.delimiter)
		if err != nil {
			return nil, fmt.Errorf("--delimiter: %w", err)
		}
		opts = append(opts, flatfile.WithDelimiter(d))
	}
	if dflags.strict {
		opts = append(opts, flatfile.WithStrictRequired(), flatfile.WithStrictCoercion())
	}
	return opts, nil
}

func persist(ctx context.Context, def catalog.Definition, src flatfile.Source, tee catalog.RowHandler, opts []flatfile.Option) (store.ImportResult, error) {
	if !cfg.Database.Enabled() {
		return store.ImportResult{}, fmt.Errorf("--persist needs DATABASE_URL")
	}
	pool, err := store.Connect(ctx, store.Config{
		URL:             cfg.Database.URL,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		RetryAttempts:   cfg.Database.ConnectRetries + 1,
		RetryInterval:   cfg.Database.ConnectRetryInterval,
	}, log.With(logging.Component("store")))
	if err != nil {
		return store.ImportResult{}, err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, pool, log.With(logging.Component("migrate"))); err != nil {
			return store.ImportResult{}, err
		}
	}
	return store.NewImporter(pool, cfg.Decode.BatchSize, log.With(logging.Component("import"))).
		Import(ctx, def, src, tee, opts...)
}

// lineWriter prints records as JSON lines and failures as
// "line N: reason: raw". The first write error stops the decode.
type lineWriter struct {
	enc    *json.Encoder
	errOut io.Writer
	err    error
}

func newLineWriter(out, errOut io.Writer) *lineWriter {
	if errOut == nil {
		errOut = os.Stderr
	}
	return &lineWriter{enc: json.NewEncoder(out), errOut: errOut}
}

func (w *lineWriter) HandleRecord(rec any) bool {
	if w.err != nil {
		return false
	}
	w.err = w.enc.Encode(rec)
	return w.err == nil
}

func (w *lineWriter) HandleUnresolved(row *flatfile.RowError) bool {
	if w.err != nil {
		return false
	}
	f := store.FailureFromRow(row)
	_, w.err = fmt.Fprintf(w.errOut, "line %d: %s: %q\n", f.Line, f.Reason, f.Raw)
	return w.err == nil
}
