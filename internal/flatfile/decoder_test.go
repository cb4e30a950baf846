package flatfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransformer[T any](t *testing.T, opts ...Option) *Transformer[T] {
	t.Helper()
	tr, err := New[T](append([]Option{WithRegistry(NewRegistry())}, opts...)...)
	require.NoError(t, err)
	return tr
}

func TestLoadRecord_DelimitedCard(t *testing.T) {
	tr := newTransformer[delimitedCard](t)

	rec, err := tr.LoadRecord(cardLine)
	require.NoError(t, err)

	assert.Equal(t, "Mathew_Thomas", rec.NameOnCard)
	assert.Equal(t, "4111111111111111", rec.CardNumber)
	assert.Equal(t, 2, rec.ExpMonth)
	assert.Equal(t, 2008, rec.ExpYear)
	assert.Equal(t, 12.89, rec.Amount)
	assert.Equal(t, "222", rec.CardSecurityCode)
	assert.Equal(t, time.Date(2005, time.October, 21, 0, 0, 0, 0, time.UTC), rec.TransactionDate)
}

func TestLoadRecord_FixedCard(t *testing.T) {
	tr := newTransformer[fixedCard](t)

	rec, err := tr.LoadRecord(fixedCardLine)
	require.NoError(t, err)

	assert.Equal(t, "Mathew_Thomas", rec.NameOnCard)
	assert.Equal(t, "4111111111111111", rec.CardNumber)
	assert.Equal(t, 2, rec.ExpMonth)
	assert.Equal(t, 2008, rec.ExpYear)
	assert.Equal(t, 12.89, rec.Amount)
	assert.Equal(t, "222", rec.CardSecurityCode)
	assert.Equal(t, 2005, rec.TransactionDate.Year())

	_, err = tr.LoadRecord("Mathew_Thomas41111")
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadRecord_NumericMismatchIsZero(t *testing.T) {
	line := "Mathew_Thomas 4111111111111111 02 2008 12A.89 222 10212005"

	rec, err := newTransformer[delimitedCard](t).LoadRecord(line)
	require.NoError(t, err)
	assert.Zero(t, rec.Amount)
	assert.Equal(t, 2008, rec.ExpYear)

	_, err = newTransformer[delimitedCard](t, WithStrictCoercion()).LoadRecord(line)
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestLoadRecord_MalformedDate(t *testing.T) {
	_, err := newTransformer[delimitedCard](t).LoadRecord("Mathew_Thomas 4111111111111111 02 2008 12.89 222 1021")
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestLoadRecord_SeparatorOverride(t *testing.T) {
	tr := newTransformer[delimitedCard](t, WithDelimiter(';'))
	assert.Equal(t, ';', tr.Separator().Delimiter)

	rec, err := tr.LoadRecord(strings.ReplaceAll(cardLine, " ", ";"))
	require.NoError(t, err)
	assert.Equal(t, "Mathew_Thomas", rec.NameOnCard)
}

func TestDecode_ListenerAbort(t *testing.T) {
	tr := newTransformer[delimitedCard](t)
	input := lines(
		"Mathew_Thomas 4111111111111111 02 2008 12.89 222 10212005",
		"fname_lname 4111111111111111 02 2008 12.89 222 10212005",
	)

	var seen []string
	stats, err := tr.Decode(context.Background(), Reader(strings.NewReader(input)), ListenerFuncs[delimitedCard]{
		OnRecord: func(rec *delimitedCard) bool {
			seen = append(seen, rec.NameOnCard)
			return false
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Mathew_Thomas"}, seen)
	assert.True(t, stats.Aborted)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Lines)
}

func TestDecode_AbortFromUnresolvable(t *testing.T) {
	tr := newTransformer[pair](t)
	input := lines("bad", "a,1", "b,2")

	var c Collector[pair]
	stats, err := tr.Decode(context.Background(), Reader(strings.NewReader(input)), ListenerFuncs[pair]{
		OnRecord: c.FoundRecord,
		OnUnresolved: func(row *RowError) bool {
			c.UnresolvedRow(row)
			return false
		},
	})
	require.NoError(t, err)

	assert.True(t, stats.Aborted)
	assert.Empty(t, c.Records)
	require.Len(t, c.Unresolved, 1)
	assert.Equal(t, 1, c.Unresolved[0].Line)
	assert.Equal(t, "bad", c.Unresolved[0].Raw)
}

func TestDecode_SkipFirstLine(t *testing.T) {
	tr := newTransformer[csvPerson](t)
	input := lines(
		"name,email,age,joinDate",
		"Ann,ann@example.com,34,2021-03-04",
		"Bob,bob@example.com,41,2019-11-30",
	)

	var c Collector[csvPerson]
	stats, err := tr.Decode(context.Background(), Reader(strings.NewReader(input)), &c)
	require.NoError(t, err)

	require.Len(t, c.Records, 2)
	assert.Empty(t, c.Unresolved)
	assert.Equal(t, "Ann", c.Records[0].Name)
	assert.Equal(t, 41, c.Records[1].Age)
	assert.Equal(t, time.Date(2019, 11, 30, 0, 0, 0, 0, time.UTC), c.Records[1].JoinDate)
	assert.Equal(t, 3, stats.Lines)
	assert.Equal(t, 1, stats.Skipped)
}

func TestDecode_UnresolvableRowsContinue(t *testing.T) {
	tr := newTransformer[delimitedCard](t)
	input := lines(
		"Matttt_Thomas 4111111111111111 02 2008 12.89 222 1021",
		"Maaaaa_Thomas 4111111111111111 02 2008 12.89 222 10212005",
	)

	var c Collector[delimitedCard]
	stats, err := tr.Decode(context.Background(), Reader(strings.NewReader(input)), &c)
	require.NoError(t, err)

	require.Len(t, c.Records, 1)
	assert.Equal(t, "Maaaaa_Thomas", c.Records[0].NameOnCard)
	require.Len(t, c.Unresolved, 1)
	assert.Equal(t, 1, c.Unresolved[0].Line)
	assert.ErrorIs(t, c.Unresolved[0], ErrBadDate)
	assert.Equal(t, 1, stats.Unresolvable)
	assert.Equal(t, 1, stats.Records)
}

// plainListener implements only the two-method protocol.
type plainListener struct {
	found []string
	raw   []string
}

func (p *plainListener) FoundRecord(rec *pair) bool {
	p.found = append(p.found, rec.Key)
	return true
}

func (p *plainListener) UnresolvableRecord(raw string) bool {
	p.raw = append(p.raw, raw)
	return true
}

func TestDecode_PlainListenerGetsRawLine(t *testing.T) {
	var l plainListener
	_, err := newTransformer[pair](t).Decode(context.Background(), Reader(strings.NewReader("a,1\r\nbroken\r\n")), &l)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, l.found)
	assert.Equal(t, []string{"broken"}, l.raw)
}

func TestDecode_MaxLines(t *testing.T) {
	input := lines("a,1", "b,2", "c,3")

	var c Collector[pair]
	stats, err := newTransformer[pair](t, WithMaxLines(2)).Decode(context.Background(), Reader(strings.NewReader(input)), &c)
	require.NoError(t, err)
	assert.Len(t, c.Records, 2)
	assert.True(t, stats.LimitReached)

	stats, err = newTransformer[pair](t, WithMaxLines(3)).Decode(context.Background(), Reader(strings.NewReader(input)), &Collector[pair]{})
	require.NoError(t, err)
	assert.False(t, stats.LimitReached)
	assert.Equal(t, 3, stats.Records)
}

func TestDecode_LineTooLong(t *testing.T) {
	input := lines("a,1", strings.Repeat("x", 50), "b,2")

	var c Collector[pair]
	stats, err := newTransformer[pair](t, WithMaxLineLength(10)).Decode(context.Background(), Reader(strings.NewReader(input)), &c)
	require.NoError(t, err)

	assert.Len(t, c.Records, 2)
	require.Len(t, c.Unresolved, 1)
	assert.Equal(t, 2, c.Unresolved[0].Line)
	assert.Len(t, c.Unresolved[0].Raw, 10)
	assert.ErrorIs(t, c.Unresolved[0], ErrLineTooLong)
	assert.Equal(t, 3, stats.Lines)
}

func TestDecode_NoTrailingNewline(t *testing.T) {
	var c Collector[pair]
	stats, err := newTransformer[pair](t).Decode(context.Background(), Reader(strings.NewReader("a,1\nb,2")), &c)
	require.NoError(t, err)
	assert.Len(t, c.Records, 2)
	assert.Equal(t, 2, stats.Lines)
	assert.Equal(t, int64(7), stats.Bytes)
}

func TestDecode_ClosesSource(t *testing.T) {
	src := &closeTracker{Reader: strings.NewReader(lines("a,1", "b,2"))}
	_, err := newTransformer[pair](t).Decode(context.Background(), Reader(src), &Collector[pair]{})
	require.NoError(t, err)
	assert.True(t, src.closed)
}

func TestDecode_FatalErrorClosesSource(t *testing.T) {
	tr := newTransformer[pair](t, WithFactory(DefaultFactory, NewConstructors()))
	src := &closeTracker{Reader: strings.NewReader(lines("a,1", "b,2"))}

	stats, err := tr.Decode(context.Background(), Reader(src), &Collector[pair]{})
	assert.ErrorIs(t, err, ErrSecurity)
	assert.True(t, src.closed)
	assert.Equal(t, 1, stats.Lines)
}

func TestDecode_ContextCancelled(t *testing.T) {
	var b strings.Builder
	for i := 0; i < ContextCheckInterval+500; i++ {
		b.WriteString("k,1\n")
	}
	src := &closeTracker{Reader: strings.NewReader(b.String())}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := newTransformer[pair](t).Decode(ctx, Reader(src), ListenerFuncs[pair]{
		OnRecord: func(*pair) bool {
			cancel()
			return true
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed)
	assert.Equal(t, ContextCheckInterval, stats.Records)
}

func TestDecode_NilArguments(t *testing.T) {
	tr := newTransformer[pair](t)

	_, err := tr.Decode(context.Background(), Reader(strings.NewReader("")), nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = tr.Decode(context.Background(), nil, &Collector[pair]{})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = tr.Decode(context.Background(), Reader(nil), &Collector[pair]{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestDecode_ReaderSourceOpensOnce(t *testing.T) {
	tr := newTransformer[pair](t)
	src := Reader(strings.NewReader("a,1\n"))

	_, err := tr.Decode(context.Background(), src, &Collector[pair]{})
	require.NoError(t, err)

	_, err = tr.Decode(context.Background(), src, &Collector[pair]{})
	assert.ErrorIs(t, err, ErrSourceConsumed)
}

func TestDecode_FileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cards.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines(fixedCardLine, fixedCardLine)), 0o644))

	var c Collector[fixedCard]
	stats, err := newTransformer[fixedCard](t).Decode(context.Background(), File(path), &c)
	require.NoError(t, err)
	assert.Len(t, c.Records, 2)
	assert.Equal(t, int64(2*(len(fixedCardLine)+1)), stats.Bytes)

	tests := []struct {
		name string
		path string
		opts []Option
		want error
	}{
		{"missing file", filepath.Join(dir, "nope.txt"), nil, ErrSourceNotFound},
		{"directory", dir, nil, ErrIsDirectory},
		{"too large", path, []Option{WithMaxFileSize(10)}, ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTransformer[fixedCard](t, tt.opts...).Decode(context.Background(), File(tt.path), &Collector[fixedCard]{})
			assert.ErrorIs(t, err, ErrConfig)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_FileAndReaderAgree(t *testing.T) {
	content := lines("a,1", "b,2", "c,3")
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tests := []struct {
		name    string
		maxSize int64
		want    error
		records int
	}{
		{"under the cap", 64, nil, 3},
		{"over the cap", 8, ErrFileTooLarge, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTransformer[pair](t, WithMaxFileSize(tt.maxSize))

			var fromFile, fromReader Collector[pair]
			_, fileErr := tr.Decode(context.Background(), File(path), &fromFile)
			_, readerErr := tr.Decode(context.Background(), Reader(strings.NewReader(content)), &fromReader)

			if tt.want == nil {
				require.NoError(t, fileErr)
				require.NoError(t, readerErr)
			} else {
				assert.ErrorIs(t, fileErr, tt.want)
				assert.ErrorIs(t, readerErr, tt.want)
				assert.ErrorIs(t, readerErr, ErrConfig)
			}
			assert.Len(t, fromFile.Records, tt.records)
			assert.Equal(t, fromFile.Records, fromReader.Records)
			assert.Equal(t, fromFile.Unresolved, fromReader.Unresolved)
		})
	}
}

func TestDecode_OpenFileReaderTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines("a,1", "b,2", "c,3")), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)

	var c Collector[pair]
	_, err = newTransformer[pair](t, WithMaxFileSize(8)).Decode(context.Background(), Reader(f), &c)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, c.Records)

	// The rejected file was closed.
	_, err = f.Stat()
	assert.ErrorIs(t, err, os.ErrClosed)
}

// unsized hides Len so the size is only known after reading.
type unsized struct{ r io.Reader }

func (u unsized) Read(p []byte) (int, error) { return u.r.Read(p) }

func TestDecode_StreamOfUnknownSizeStopsAtCap(t *testing.T) {
	src := &closeTracker{Reader: unsized{strings.NewReader(lines("a,1", "b,2", "c,3"))}}

	_, err := newTransformer[pair](t, WithMaxFileSize(8)).Decode(context.Background(), Reader(src), &Collector[pair]{})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.ErrorIs(t, err, ErrConfig)
	assert.True(t, src.closed)
}

func TestDecode_NilListenerClosesSource(t *testing.T) {
	src := &closeTracker{Reader: strings.NewReader(lines("a,1"))}

	_, err := newTransformer[pair](t).Decode(context.Background(), Reader(src), nil)
	assert.ErrorIs(t, err, ErrConfig)
	assert.True(t, src.closed)
}

func TestDecode_Encodings(t *testing.T) {
	t.Run("utf-8 bom is stripped", func(t *testing.T) {
		var c Collector[pair]
		_, err := newTransformer[pair](t).Decode(context.Background(), Reader(strings.NewReader("\xEF\xBB\xBFa,1\n")), &c)
		require.NoError(t, err)
		require.Len(t, c.Records, 1)
		assert.Equal(t, "a", c.Records[0].Key)
	})

	t.Run("invalid utf-8 is replaced", func(t *testing.T) {
		var c Collector[pair]
		_, err := newTransformer[pair](t).Decode(context.Background(), Reader(strings.NewReader("a\xff,1\n")), &c)
		require.NoError(t, err)
		require.Len(t, c.Records, 1)
		assert.Equal(t, "a\uFFFD", c.Records[0].Key)
	})

	t.Run("windows-1252", func(t *testing.T) {
		var c Collector[pair]
		tr := newTransformer[pair](t, WithEncoding("windows-1252"))
		_, err := tr.Decode(context.Background(), Reader(strings.NewReader("Jos\xe9,1\n")), &c)
		require.NoError(t, err)
		require.Len(t, c.Records, 1)
		assert.Equal(t, "José", c.Records[0].Key)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := New[pair](WithRegistry(NewRegistry()), WithEncoding("klingon"))
		assert.ErrorIs(t, err, ErrUnknownEncoding)
	})
}

func TestRecords_Sequence(t *testing.T) {
	tr := newTransformer[pair](t)
	input := lines("a,1", "broken", "b,2")

	var (
		keys []string
		rows []*RowError
	)
	for rec, err := range tr.Records(context.Background(), Reader(strings.NewReader(input))) {
		if err != nil {
			var row *RowError
			require.ErrorAs(t, err, &row)
			rows = append(rows, row)
			continue
		}
		keys = append(keys, rec.Key)
	}

	assert.Equal(t, []string{"a", "b"}, keys)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Line)
}

func TestRecords_BreakStopsAndCloses(t *testing.T) {
	src := &closeTracker{Reader: strings.NewReader(lines("a,1", "b,2", "c,3"))}

	count := 0
	for rec, err := range newTransformer[pair](t).Records(context.Background(), Reader(src)) {
		require.NoError(t, err)
		require.NotNil(t, rec)
		count++
		break
	}

	assert.Equal(t, 1, count)
	assert.True(t, src.closed)
}

func TestRecords_FatalErrorIsLast(t *testing.T) {
	var errs []error
	for rec, err := range newTransformer[pair](t).Records(context.Background(), File("/does/not/exist")) {
		assert.Nil(t, rec)
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrSourceNotFound)
}
