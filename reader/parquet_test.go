package reader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParquetReader_ReadAll(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "events.parquet", sampleEvents())

	r, err := NewParquetReader(path)
	require.NoError(t, err)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	require.Len(t, rows, 3)
	require.Equal(t, "web-1", rows[0]["host"])
	require.EqualValues(t, 404, rows[1]["status"])
	require.EqualValues(t, 128.5, rows[1]["bytes"])
}

func TestReadFile_Parquet(t *testing.T) {
	path := writeParquetFile(t, t.TempDir(), "events.parquet", sampleEvents())

	records, err := ReadFile(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, time.Date(2024, 1, 15, 10, 5, 0, 0, time.UTC), records[1]["_time"])
}

func TestReadFile_CompressedParquet(t *testing.T) {
	dir := t.TempDir()
	plain := writeParquetFile(t, dir, "events.parquet", sampleEvents())
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	path := writeFile(t, dir, "events.parquet.gz", data, CompressionGzip)

	records, err := ReadFile(path, Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "web-1", records[2]["host"])
}

func TestNewParquetReader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewParquetReader(filepath.Join(dir, "missing.parquet"))
	require.Error(t, err)

	bad := writeFile(t, dir, "bad.parquet", []byte("this is not parquet"), CompressionNone)
	_, err = NewParquetReader(bad)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open parquet file")
}
