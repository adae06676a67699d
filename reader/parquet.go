package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// ParquetReader reads parquet files and returns rows as maps.
//
// It keeps the underlying file handle open until Close so that row groups
// can be read lazily.
type ParquetReader struct {
	file   io.Closer
	pqFile *parquet.File
}

// NewParquetReader opens a parquet file. Compressed files are inflated
// into memory first since parquet needs random access.
func NewParquetReader(path string) (*ParquetReader, error) {
	comp, err := DetectCompression(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if comp != CompressionNone {
		rc, err := OpenDecompressed(path)
		if err != nil {
			return nil, err
		}
		data, readErr := io.ReadAll(rc)
		_ = rc.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", path, readErr)
		}
		return openParquet(bytes.NewReader(data), int64(len(data)), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	r, err := openParquet(file, stat.Size(), file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func openParquet(r io.ReaderAt, size int64, closer io.Closer) (*ParquetReader, error) {
	pqFile, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return &ParquetReader{file: closer, pqFile: pqFile}, nil
}

// ReadAll reads all rows into memory. Each row is a map of column name
// to value.
func (r *ParquetReader) ReadAll() ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, r.pqFile.NumRows())

	reader := parquet.NewReader(r.pqFile)
	defer func() { _ = reader.Close() }()

	for {
		row := make(map[string]interface{})
		err := reader.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Close releases the file handle. It is safe to call Close multiple
// times.
func (r *ParquetReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func readParquet(path string) ([]map[string]interface{}, error) {
	r, err := NewParquetReader(path)
	if err != nil {
		return nil, err
	}
	rows, readErr := r.ReadAll()
	closeErr := r.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return rows, nil
}
