package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// Stats summarizes one stream.
type Stats struct {
	Lines        int           // lines read, including a skipped header
	Records      int           // rows delivered as records
	Unresolvable int           // rows delivered as unresolvable
	Skipped      int           // header lines skipped
	Aborted      bool          // a listener returned false
	LimitReached bool          // stopped at MaxLines with input left
	Bytes        int64         // raw bytes read from the source
	Duration     time.Duration // wall time of the stream
}

// Decode streams src line by line into l. Per-row parse errors are passed
// to the listener; configuration, security and I/O errors end the stream
// and are returned. src is closed on every path.
func (t *Transformer[T]) Decode(ctx context.Context, src Source, l Listener[T]) (Stats, error) {
	if l == nil {
		// stream still opens and closes src so a wrapped stream is released.
		return t.stream(ctx, src, nil)
	}
	detailed, _ := l.(DetailedListener)

	return t.stream(ctx, src, func(rec *T, row *RowError) bool {
		if row == nil {
			return l.FoundRecord(rec)
		}
		if detailed != nil {
			return detailed.UnresolvedRow(row)
		}
		return l.UnresolvableRecord(row.Raw)
	})
}

// Records returns the stream as a sequence. Unresolvable rows arrive as a
// nil record with a *RowError; a fatal error arrives last with a nil record.
// Breaking out of the loop stops reading and closes src. The sequence reads
// src once.
func (t *Transformer[T]) Records(ctx context.Context, src Source) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		stopped := false
		_, err := t.stream(ctx, src, func(rec *T, row *RowError) bool {
			var ok bool
			if row != nil {
				ok = yield(nil, row)
			} else {
				ok = yield(rec, nil)
			}
			stopped = !ok
			return ok
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// stream runs the read loop and hands each row to emit.
func (t *Transformer[T]) stream(ctx context.Context, src Source, emit func(*T, *RowError) bool) (st Stats, err error) {
	start := time.Now()
	defer func() { st.Duration = time.Since(start) }()

	if src == nil {
		return st, configErr("decode", "nil source")
	}
	log := t.log.With("source", src.Name())

	rc, err := src.Open(ctx, t.limits)
	if err != nil {
		return st, err
	}
	r, counter := wrapSource(rc, t.encoding, t.limits.MaxFileSize)
	defer func() {
		st.Bytes = counter.n
		if cerr := rc.Close(); cerr != nil {
			log.Error("failed to close source", "error", cerr)
		}
	}()

	if emit == nil {
		return st, configErr("decode", "nil listener")
	}

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		if st.Lines%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}

		line, tooLong, rerr := readLine(br, t.limits.MaxLineLength)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return st, fmt.Errorf("read %s: %w", src.Name(), rerr)
		}

		if t.limits.MaxLines > 0 && st.Lines >= t.limits.MaxLines {
			st.LimitReached = true
			log.Warn("line limit reached, stopping", "max_lines", t.limits.MaxLines)
			break
		}
		st.Lines++

		if st.Lines == 1 && t.sep.SkipFirstLine {
			st.Skipped++
			continue
		}

		var (
			rec *T
			row *RowError
		)
		if tooLong {
			row = &RowError{
				Line: st.Lines,
				Raw:  line,
				Err:  &ParseError{Line: st.Lines, Err: fmt.Errorf("%w: limit %d bytes", ErrLineTooLong, t.limits.MaxLineLength)},
			}
		} else {
			rec, err = t.LoadRecord(line)
			if err != nil {
				var pe *ParseError
				if !errors.As(err, &pe) || errors.Is(err, ErrConfig) || errors.Is(err, ErrSecurity) {
					return st, err
				}
				pe.Line = st.Lines
				row = &RowError{Line: st.Lines, Raw: line, Err: err}
			}
		}

		if row != nil {
			st.Unresolvable++
		} else {
			st.Records++
		}
		if !emit(rec, row) {
			st.Aborted = true
			log.Info("decode aborted by listener", "line", st.Lines)
			break
		}
	}

	log.Debug("decode finished",
		"lines", st.Lines,
		"records", st.Records,
		"unresolvable", st.Unresolvable,
	)
	return st, nil
}

// readLine reads one line without its terminator. Lines longer than limit
// are consumed in full but only a limit-sized prefix is kept, and tooLong
// is set. io.EOF is returned only when no bytes remain.
func readLine(br *bufio.Reader, limit int) (line string, tooLong bool, err error) {
	var (
		buf   []byte
		total int
	)
	for {
		frag, rerr := br.ReadSlice('\n')
		total += len(frag)
		if room := limit + 2 - len(buf); room > 0 {
			buf = append(buf, frag[:min(room, len(frag))]...)
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		if rerr != nil && rerr != io.EOF {
			return "", false, rerr
		}
		if total == 0 {
			return "", false, io.EOF
		}
		break
	}

	buf = bytes.TrimSuffix(buf, []byte("\n"))
	buf = bytes.TrimSuffix(buf, []byte("\r"))
	if len(buf) > limit {
		return string(buf[:limit]), true, nil
	}
	return string(buf), false, nil
}
