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

// DefaultBatchSize is used when a sink is built with a non-positive size.
const DefaultBatchSize = 1000

// MaxStoredFailures caps the unresolvable lines kept per run.
const MaxStoredFailures = 10000

// ErrNoCopySupport is returned for formats without a table mapping.
var ErrNoCopySupport = errors.New("format does not support persistence")

// CopySink is a catalog.RowHandler that copies decoded records into the
// format's table in batches. Each row is prefixed with the run id. A failed
// flush stops the decode; the error is available from Err.
type CopySink struct {
	ctx       context.Context
	db        DBTX
	def       catalog.Definition
	runID     uuid.UUID
	batchSize int
	log       *slog.Logger

	columns  []string
	buf      [][]any
	inserted int64
	failures []Failure
	dropped  int
	err      error
}

// NewCopySink returns a sink for def's table. ctx bounds every COPY.
func NewCopySink(ctx context.Context, db DBTX, def catalog.Definition, runID uuid.UUID, batchSize int, log *slog.Logger) (*CopySink, error) {
	if !def.SupportsCopy() {
		return nil, fmt.Errorf("%s: %w", def.Info.Key, ErrNoCopySupport)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &CopySink{
		ctx:       ctx,
		db:        db,
		def:       def,
		runID:     runID,
		batchSize: batchSize,
		log:       log.With("format", def.Info.Key, "run_id", runID.String()),
		columns:   append([]string{"run_id"}, def.CopyColumns...),
		buf:       make([][]any, 0, batchSize),
	}, nil
}

func (s *CopySink) HandleRecord(rec any) bool {
	if s.err != nil {
		return false
	}
	values := s.def.CopyRow(rec)
	if len(values) != len(s.def.CopyColumns) {
		s.err = fmt.Errorf("%s: copy row has %d values for %d columns", s.def.Info.Key, len(values), len(s.def.CopyColumns))
		return false
	}
	row := make([]any, 0, len(s.columns))
	row = append(row, ToPgUUID(s.runID))
	row = append(row, values...)
	s.buf = append(s.buf, row)

	if len(s.buf) >= s.batchSize {
		return s.flush() == nil
	}
	return true
}

func (s *CopySink) HandleUnresolved(row *flatfile.RowError) bool {
	if len(s.failures) >= MaxStoredFailures {
		s.dropped++
		return true
	}
	s.failures = append(s.failures, FailureFromRow(row))
	return true
}

// Close copies any buffered rows.
func (s *CopySink) Close() error {
	if s.err != nil {
		return s.err
	}
	return s.flush()
}

func (s *CopySink) flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	n, err := s.db.CopyFrom(s.ctx, pgx.Identifier{s.def.Info.Table}, s.columns, pgx.CopyFromRows(s.buf))
	if err != nil {
		s.err = fmt.Errorf("copy into %s: %w", s.def.Info.Table, err)
		return s.err
	}
	s.inserted += n
	s.log.Debug("batch copied", "rows", n, "total", s.inserted)
	s.buf = s.buf[:0]
	return nil
}

// Inserted returns the number of rows copied so far.
func (s *CopySink) Inserted() int64 { return s.inserted }

// Failures returns the collected unresolvable lines and how many were
// dropped past MaxStoredFailures.
func (s *CopySink) Failures() ([]Failure, int) { return s.failures, s.dropped }

// Err returns the first copy error.
func (s *CopySink) Err() error { return s.err }
