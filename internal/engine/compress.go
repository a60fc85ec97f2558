package engine

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// countingReader tracks how many bytes were read from the underlying file.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// source is an open, decompressing reader over one input file.
type source struct {
	io.Reader
	file    *os.File
	counter *countingReader
	closers []func() error
}

func (s *source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	if err := s.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Bytes is the number of (compressed) bytes read so far.
func (s *source) Bytes() int64 { return s.counter.n }

func openSource(path string, c Compression) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	counter := &countingReader{r: f}
	s := &source{file: f, counter: counter}

	switch c {
	case CompressionNone:
		s.Reader = counter
	case CompressionGzip:
		zr, err := gzip.NewReader(counter)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		s.Reader = zr
		s.closers = append(s.closers, zr.Close)
	case CompressionBzip2:
		s.Reader = bzip2.NewReader(counter)
	case CompressionXz:
		xr, err := xz.NewReader(counter)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("xz: %w", err)
		}
		s.Reader = xr
	case CompressionZstd:
		zr, err := zstd.NewReader(counter)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("zstd: %w", err)
		}
		s.Reader = zr
		s.closers = append(s.closers, func() error { zr.Close(); return nil })
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
	return s, nil
}

// inputFiles expands a path into the files to read: the path itself, or
// every regular file under a directory whose name ends in ext.
func inputFiles(path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	ext = strings.ToLower(ext)
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && !strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matching %q in %s", ext, path)
	}
	sort.Strings(files)
	return files, nil
}
