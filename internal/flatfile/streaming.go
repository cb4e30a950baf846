package flatfile

// streaming.go wraps raw sources for line decoding without buffering the
// whole input:
//
//   - sizeGuard: fails the read once a source passes MaxFileSize
//   - countingReader: tracks raw bytes for Stats.Bytes
//   - decodingReader: strips a BOM and converts the character set to UTF-8,
//     replacing invalid sequences
//
// wrapSource applies them in that order.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// countingReader counts bytes read from the underlying reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sizeGuard returns ErrFileTooLarge once more than max bytes were read.
// Rows before that point have already reached the listener.
type sizeGuard struct {
	r         io.Reader
	remaining int64
	max       int64
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.remaining -= int64(n)
	if g.remaining < 0 {
		return n, configErr("read source", "%w: more than %d bytes", ErrFileTooLarge, g.max)
	}
	return n, err
}

// lookupEncoding resolves a character set name. Empty and UTF-8 names give
// a BOM-aware UTF-8 decoder; other names follow the WHATWG labels.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

func decodingReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
}

// wrapSource layers the size guard, byte counter and character decoder over
// an opened source.
func wrapSource(r io.Reader, enc encoding.Encoding, maxSize int64) (io.Reader, *countingReader) {
	if maxSize > 0 {
		r = &sizeGuard{r: r, remaining: maxSize, max: maxSize}
	}
	counter := &countingReader{r: r}
	return decodingReader(counter, enc), counter
}
