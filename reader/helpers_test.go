package reader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/ulikunitz/xz"
)

// eventRow is the parquet fixture row
type eventRow struct {
	Time   string  `parquet:"timestamp"`
	Host   string  `parquet:"host"`
	Status int64   `parquet:"status"`
	Bytes  float64 `parquet:"bytes"`
}

// writeParquetFile writes rows to a parquet file in dir
func writeParquetFile(t *testing.T, dir, name string, rows []eventRow) string {
	t.Helper()
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[eventRow](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write test data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return path
}

// writeFile writes content to a file in dir, compressed with comp
func writeFile(t *testing.T, dir, name string, content []byte, comp Compression) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	var buf bytes.Buffer
	switch comp {
	case CompressionGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
	case CompressionZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("zstd write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("zstd close: %v", err)
		}
	case CompressionXZ:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			t.Fatalf("xz writer: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("xz write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("xz close: %v", err)
		}
	default:
		buf.Write(content)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func sampleEvents() []eventRow {
	return []eventRow{
		{Time: "2024-01-15T10:00:00Z", Host: "web-1", Status: 200, Bytes: 512},
		{Time: "2024-01-15T10:05:00Z", Host: "web-2", Status: 404, Bytes: 128.5},
		{Time: "2024-01-15T10:10:00Z", Host: "web-1", Status: 500, Bytes: 0},
	}
}
