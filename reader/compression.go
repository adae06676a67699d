package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression is the compression format of a file
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionXZ
)

// String returns the name of the compression format
func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionXZ:
		return "xz"
	default:
		return "none"
	}
}

// Magic byte signatures
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// compressionOf detects the compression format from leading bytes
func compressionOf(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(header, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXZ
	}
	return CompressionNone
}

// DetectCompression reads the first bytes of a file and reports its
// compression format
func DetectCompression(path string) (Compression, error) {
	f, err := os.Open(path)
	if err != nil {
		return CompressionNone, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(xzMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return CompressionNone, err
	}
	return compressionOf(header[:n]), nil
}

// decompressedFile closes the decoder and then the file
type decompressedFile struct {
	io.Reader
	closers []func() error
}

func (d *decompressedFile) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// OpenDecompressed opens a file and returns a reader over its
// decompressed content. Uncompressed files are returned as is.
func OpenDecompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	header, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out := &decompressedFile{Reader: br, closers: []func() error{f.Close}}
	switch compressionOf(header) {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		out.Reader = gz
		out.closers = append([]func() error{gz.Close}, out.closers...)

	case CompressionZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		out.Reader = dec
		out.closers = append([]func() error{func() error { dec.Close(); return nil }}, out.closers...)

	case CompressionXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		out.Reader = xr
	}
	return out, nil
}
