package flatfile

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync/atomic"
)

// Source opens the raw bytes of a flat file. Open may reject the source
// before any line is read, for example when it exceeds limits.MaxFileSize.
type Source interface {
	Open(ctx context.Context, limits Limits) (io.ReadCloser, error)
	Name() string
}

type fileSource struct {
	path string
}

// File returns a Source reading a file on disk.
func File(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Name() string { return s.path }

func (s *fileSource) Open(ctx context.Context, limits Limits) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, configErr("open source", "%w: %s", ErrSourceNotFound, s.path)
	case errors.Is(err, fs.ErrPermission):
		return nil, configErr("open source", "%w: %s", ErrNotReadable, s.path)
	case err != nil:
		return nil, configErr("open source", "%s: %w", s.path, err)
	case info.IsDir():
		return nil, configErr("open source", "%w: %s", ErrIsDirectory, s.path)
	case limits.MaxFileSize > 0 && info.Size() > limits.MaxFileSize:
		return nil, configErr("open source", "%w: %s is %d bytes, limit %d",
			ErrFileTooLarge, s.path, info.Size(), limits.MaxFileSize)
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, configErr("open source", "%w: %s", ErrNotReadable, s.path)
		}
		return nil, configErr("open source", "%s: %w", s.path, err)
	}
	return f, nil
}

type readerSource struct {
	r    io.Reader
	name string
	used atomic.Bool
}

// Reader wraps an already open stream. It can be opened once; if r is an
// io.Closer it is closed when decoding ends.
func Reader(r io.Reader) Source {
	return NamedReader("reader", r)
}

// NamedReader is Reader with a name for logs and errors.
func NamedReader(name string, r io.Reader) Source {
	return &readerSource{r: r, name: name}
}

func (s *readerSource) Name() string { return s.name }

// Open rejects a reader whose size is known up front and exceeds
// limits.MaxFileSize, the same way File does. Streams of unknown size are
// capped while reading instead.
func (s *readerSource) Open(ctx context.Context, limits Limits) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.r == nil {
		return nil, configErr("open source", "%s: nil reader", s.name)
	}
	if s.used.Swap(true) {
		return nil, configErr("open source", "%w: %s", ErrSourceConsumed, s.name)
	}
	rc, ok := s.r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(s.r)
	}
	if size, known := knownSize(s.r); known && limits.MaxFileSize > 0 && size > limits.MaxFileSize {
		rc.Close()
		return nil, configErr("open source", "%w: %s is %d bytes, limit %d",
			ErrFileTooLarge, s.name, size, limits.MaxFileSize)
	}
	return rc, nil
}

// knownSize reports the bytes left in r when r can tell without reading:
// in-memory readers through Len, regular files through Stat.
func knownSize(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len()), true
	case interface{ Stat() (fs.FileInfo, error) }:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		return info.Size(), true
	}
	return 0, false
}
