package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

// fakeDB records COPY calls. Exec and query methods are not used by the
// code under test.
type fakeDB struct {
	copies  []copyCall
	copyErr error
	execs   []string
}

type copyCall struct {
	table   string
	columns []string
	rows    [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	call := copyCall{table: strings.Join(table, "."), columns: columns}
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, append([]any(nil), values...))
	}
	f.copies = append(f.copies, call)
	return int64(len(call.rows)), src.Err()
}

type item struct {
	_     struct{} `fft:"delim=comma"`
	Name  string   `fft:"pos=1"`
	Count int      `fft:"pos=2"`
}

func itemFormat() catalog.Definition {
	return catalog.Define[item](
		catalog.Info{Key: "items", Table: "items"},
		[]string{"name", "count"},
		func(it *item) []any { return []any{ToPgText(it.Name), ToPgInt4(it.Count)} },
		flatfile.WithRegistry(flatfile.NewRegistry()),
	)
}

func TestCopySink_Batches(t *testing.T) {
	db := &fakeDB{}
	runID := uuid.New()
	sink, err := NewCopySink(context.Background(), db, itemFormat(), runID, 2, nil)
	require.NoError(t, err)

	def := itemFormat()
	stats, err := def.Decode(context.Background(), flatfile.Reader(strings.NewReader("a,1\nb,2\nbroken\nc,3\n")), sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, int64(3), sink.Inserted())
	require.Len(t, db.copies, 2)
	assert.Equal(t, "items", db.copies[0].table)
	assert.Equal(t, []string{"run_id", "name", "count"}, db.copies[0].columns)
	assert.Len(t, db.copies[0].rows, 2)
	assert.Len(t, db.copies[1].rows, 1)
	assert.Equal(t, ToPgUUID(runID), db.copies[0].rows[0][0])
	assert.Equal(t, ToPgText("c"), db.copies[1].rows[0][1])

	failures, dropped := sink.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 3, failures[0].Line)
	assert.Equal(t, "broken", failures[0].Raw)
	assert.Zero(t, dropped)
}

func TestCopySink_FlushErrorStopsDecode(t *testing.T) {
	db := &fakeDB{copyErr: errors.New("connection reset")}
	sink, err := NewCopySink(context.Background(), db, itemFormat(), uuid.New(), 1, nil)
	require.NoError(t, err)

	stats, err := itemFormat().Decode(context.Background(), flatfile.Reader(strings.NewReader("a,1\nb,2\n")), sink)
	require.NoError(t, err)

	assert.True(t, stats.Aborted)
	assert.Equal(t, 1, stats.Lines)
	assert.ErrorContains(t, sink.Err(), "connection reset")
	assert.ErrorContains(t, sink.Close(), "copy into items")
}

func TestCopySink_RequiresCopySupport(t *testing.T) {
	def := itemFormat()
	def.CopyRow = nil
	_, err := NewCopySink(context.Background(), &fakeDB{}, def, uuid.New(), 10, nil)
	assert.ErrorIs(t, err, ErrNoCopySupport)
}

func TestCopySink_ColumnMismatch(t *testing.T) {
	def := itemFormat()
	def.CopyColumns = []string{"name"}
	sink, err := NewCopySink(context.Background(), &fakeDB{}, def, uuid.New(), 10, nil)
	require.NoError(t, err)

	assert.False(t, sink.HandleRecord(&item{Name: "a"}))
	assert.ErrorContains(t, sink.Err(), "2 values for 1 columns")
}

func TestRuns_AddFailures(t *testing.T) {
	db := &fakeDB{}
	id := uuid.New()

	require.NoError(t, NewRuns(db).AddFailures(context.Background(), id, nil))
	assert.Empty(t, db.copies)

	err := NewRuns(db).AddFailures(context.Background(), id, []Failure{
		{Line: 3, Raw: "broken", Reason: "missing token"},
	})
	require.NoError(t, err)
	require.Len(t, db.copies, 1)
	assert.Equal(t, "decode_failures", db.copies[0].table)
	assert.Equal(t, []any{ToPgUUID(id), 3, "broken", "missing token"}, db.copies[0].rows[0])
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, StatusCompleted, runStatus(flatfile.Stats{}, nil))
	assert.Equal(t, StatusAborted, runStatus(flatfile.Stats{Aborted: true}, nil))
	assert.Equal(t, StatusFailed, runStatus(flatfile.Stats{Aborted: true}, errors.New("boom")))
}

func TestFailureFromRow(t *testing.T) {
	row := &flatfile.RowError{Line: 7, Raw: "x", Err: flatfile.ErrMissingToken}
	assert.Equal(t, Failure{Line: 7, Raw: "x", Reason: flatfile.ErrMissingToken.Error()}, FailureFromRow(row))
	assert.Equal(t, "unresolvable", FailureFromRow(&flatfile.RowError{}).Reason)
}

func TestPgErrorCode(t *testing.T) {
	err := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsDuplicateKeyError(err))
	assert.False(t, IsForeignKeyViolationError(err))
	assert.Equal(t, "", PgErrorCode(errors.New("plain")))
	assert.True(t, IsUndefinedTableError(&pgconn.PgError{Code: "42P01"}))
}
