// Package engine wraps the query engine behind the Backend interface.
//
// The engine is an in-memory SQLite database into which delimited,
// line-delimited JSON and parquet files are loaded as tables. A Backend is
// not safe for concurrent use; callers are expected to serialize access
// (see the dispatch package).
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bawdo/datashell/internal/render"
)

// DefaultHeadRows is the row count used by head when none is given.
const DefaultHeadRows = 5

// Backend is the capability set every command executes against.
type Backend interface {
	Connect(ctx context.Context, opts ConnectOpts) (render.Displayable, error)
	List(ctx context.Context) (render.Displayable, error)
	Schema(ctx context.Context, name string) (render.Displayable, error)
	Describe(ctx context.Context, name string) (render.Displayable, error)
	Head(ctx context.Context, name string, n int) (render.Displayable, error)
	Query(ctx context.Context, query string) (render.Displayable, error)
}

// ConnectOpts names a data source to register.
type ConnectOpts struct {
	Name string
	Conn DatasetConn
}

// DatasetConn describes where a dataset comes from. The set of
// implementations is closed: RelationalConn, CSVConn, ParquetConn and
// NDJSONConn.
type DatasetConn interface {
	Kind() string
	Source() string
	isDatasetConn()
}

// FileOpts locates a file (or a directory of files) and how to decode it.
type FileOpts struct {
	Filename    string
	Ext         string // only files with this suffix are read when Filename is a directory
	Compression Compression
}

// RelationalConn is a database connection string. Registering one reports
// a notice and does nothing else.
type RelationalConn struct {
	DSN string
}

// CSVConn is a delimited text file with a header row.
type CSVConn struct {
	File FileOpts
}

// ParquetConn is a columnar parquet file.
type ParquetConn struct {
	Filename string
}

// NDJSONConn is a file with one JSON object per line.
type NDJSONConn struct {
	File FileOpts
}

func (RelationalConn) isDatasetConn() {}
func (CSVConn) isDatasetConn()        {}
func (ParquetConn) isDatasetConn()    {}
func (NDJSONConn) isDatasetConn()     {}

func (c RelationalConn) Kind() string {
	if strings.HasPrefix(strings.ToLower(c.DSN), "mysql://") {
		return "mysql"
	}
	return "postgres"
}
func (CSVConn) Kind() string     { return "csv" }
func (ParquetConn) Kind() string { return "parquet" }
func (NDJSONConn) Kind() string  { return "ndjson" }

func (c RelationalConn) Source() string { return sanitizeDSN(c.DSN) }
func (c CSVConn) Source() string        { return c.File.Filename }
func (c ParquetConn) Source() string    { return c.Filename }
func (c NDJSONConn) Source() string     { return c.File.Filename }

// Compression is the codec a file is compressed with.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXz
	CompressionZstd
)

var compressionNames = map[Compression]string{
	CompressionNone:  "none",
	CompressionGzip:  "gzip",
	CompressionBzip2: "bzip2",
	CompressionXz:    "xz",
	CompressionZstd:  "zstd",
}

var compressionSuffixes = map[string]Compression{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".bz2":  CompressionBzip2,
	".xz":   CompressionXz,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Suffix returns the canonical file suffix for c, empty for none.
func (c Compression) Suffix() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionBzip2:
		return ".bz2"
	case CompressionXz:
		return ".xz"
	case CompressionZstd:
		return ".zst"
	}
	return ""
}

// CompressionOf returns the compression implied by the final suffix of
// name, CompressionNone when there is none.
func CompressionOf(name string) Compression {
	return compressionSuffixes[strings.ToLower(filepath.Ext(name))]
}

// ParseCompression maps a name such as "gzip" or "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "uncompressed" {
		return CompressionNone, nil
	}
	for c, name := range compressionNames {
		if name == s {
			return c, nil
		}
	}
	switch s {
	case "gz":
		return CompressionGzip, nil
	case "bz2":
		return CompressionBzip2, nil
	case "zst":
		return CompressionZstd, nil
	}
	return CompressionNone, fmt.Errorf("unknown compression %q (none, gzip, bzip2, xz, zstd)", s)
}

// ParseDescriptor infers the dataset kind from a connection string or file
// name. A trailing compression suffix (".gz", ".bz2", ".xz", ".zst") sets
// the compression and is stripped before the format extension is read.
func ParseDescriptor(source string) (DatasetConn, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty source")
	}
	lower := strings.ToLower(source)
	for _, scheme := range []string{"postgres://", "postgresql://", "mysql://"} {
		if strings.HasPrefix(lower, scheme) {
			return RelationalConn{DSN: source}, nil
		}
	}

	rest := lower
	comp := CompressionOf(rest)
	if comp != CompressionNone {
		rest = strings.TrimSuffix(rest, filepath.Ext(rest))
	}
	ext := filepath.Ext(rest)
	opts := FileOpts{Filename: source, Ext: ext + comp.Suffix(), Compression: comp}

	switch ext {
	case ".csv":
		return CSVConn{File: opts}, nil
	case ".ndjson", ".jsonl", ".json":
		return NDJSONConn{File: opts}, nil
	case ".parquet":
		if comp != CompressionNone {
			return nil, fmt.Errorf("parquet files cannot be %s compressed", comp)
		}
		return ParquetConn{Filename: source}, nil
	}
	return nil, fmt.Errorf("cannot infer dataset kind from %q (want .csv, .parquet, .ndjson)", source)
}

// DefaultName derives a dataset name from a source: the base file name
// with every extension removed.
func DefaultName(source string) string {
	base := filepath.Base(strings.TrimRight(source, "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// NewFileConn builds a file-backed DatasetConn for an explicit format,
// for sources such as directories whose kind cannot be inferred.
func NewFileConn(format string, opts FileOpts) (DatasetConn, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		if opts.Ext == "" {
			opts.Ext = ".csv" + opts.Compression.Suffix()
		}
		return CSVConn{File: opts}, nil
	case "ndjson", "jsonl", "json":
		if opts.Ext == "" {
			opts.Ext = ".ndjson" + opts.Compression.Suffix()
		}
		return NDJSONConn{File: opts}, nil
	case "parquet":
		if opts.Compression != CompressionNone {
			return nil, fmt.Errorf("parquet files cannot be %s compressed", opts.Compression)
		}
		return ParquetConn{Filename: opts.Filename}, nil
	}
	return nil, fmt.Errorf("unknown format %q (csv, parquet, ndjson)", format)
}
