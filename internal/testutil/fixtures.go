package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// WriteFile writes content to name inside a per-test temp dir and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// WriteGzip writes gzip-compressed content to name inside a temp dir.
func WriteGzip(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture %s: %v", name, err)
	}
	defer func() { _ = f.Close() }()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("gzip fixture %s: %v", name, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip fixture %s: %v", name, err)
	}
	return path
}

// TwoByTwoCSV is a two-column, two-row delimited dataset.
const TwoByTwoCSV = "id,name\n1,alice\n2,bob\n"
