package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

// TxBeginner is a DBTX that can open transactions, such as *pgxpool.Pool.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ImportResult summarizes one persisted decode.
type ImportResult struct {
	RunID           uuid.UUID      `json:"runId"`
	Stats           flatfile.Stats `json:"stats"`
	Inserted        int64          `json:"inserted"`
	Failures        int            `json:"failures"`
	DroppedFailures int            `json:"droppedFailures,omitempty"`
}

// Importer decodes a source into a format's table inside one transaction
// and records the run.
type Importer struct {
	db        TxBeginner
	runs      *Runs
	batchSize int
	log       *slog.Logger
}

// NewImporter returns an importer copying batchSize rows at a time.
func NewImporter(db TxBeginner, batchSize int, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{db: db, runs: NewRuns(db), batchSize: batchSize, log: log}
}

// Runs exposes the run log.
func (im *Importer) Runs() *Runs { return im.runs }

// Import decodes src with def and commits the rows when the decode ends
// without error. tee, when not nil, sees every row after the sink. The run
// row is written outside the transaction so failed runs stay visible.
func (im *Importer) Import(ctx context.Context, def catalog.Definition, src flatfile.Source, tee catalog.RowHandler, opts ...flatfile.Option) (res ImportResult, err error) {
	if !def.SupportsCopy() {
		return res, fmt.Errorf("%s: %w", def.Info.Key, ErrNoCopySupport)
	}

	runID, err := im.runs.Start(ctx, def.Info.Key, src.Name())
	if err != nil {
		return res, err
	}
	res.RunID = runID
	log := im.log.With("format", def.Info.Key, "run_id", runID.String())

	defer func() {
		// Finish with a fresh context so a cancelled request still closes the run.
		if ferr := im.runs.Finish(context.WithoutCancel(ctx), runID, res.Stats, err); ferr != nil {
			log.Error("failed to finish run", "error", ferr)
		}
	}()

	tx, err := im.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				log.Error("rollback failed", "error", rerr)
			}
		}
	}()

	sink, err := NewCopySink(ctx, tx, def, runID, im.batchSize, log)
	if err != nil {
		return res, err
	}

	var h catalog.RowHandler = sink
	if tee != nil {
		h = catalog.Tee(sink, tee)
	}

	res.Stats, err = def.Decode(ctx, src, h, opts...)
	if err != nil {
		return res, err
	}
	if err = sink.Close(); err != nil {
		return res, err
	}

	failures, dropped := sink.Failures()
	if err = NewRuns(tx).AddFailures(ctx, runID, failures); err != nil {
		return res, err
	}
	if err = tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}

	res.Inserted = sink.Inserted()
	res.Failures = len(failures)
	res.DroppedFailures = dropped
	log.Info("import committed",
		"inserted", res.Inserted,
		"unresolvable", res.Stats.Unresolvable,
		"duration", res.Stats.Duration,
	)
	return res, nil
}
