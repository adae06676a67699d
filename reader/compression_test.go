package reader

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	content := []byte(`{"host":"web-1"}` + "\n")

	tests := []struct {
		name string
		comp Compression
	}{
		{"plain", CompressionNone},
		{"gzip", CompressionGzip},
		{"zstd", CompressionZstd},
		{"xz", CompressionXZ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "events.jsonl", content, tt.comp)

			comp, err := DetectCompression(path)
			require.NoError(t, err)
			require.Equal(t, tt.comp, comp)

			rc, err := OpenDecompressed(path)
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			require.Equal(t, content, data)

			records, err := ReadFile(path, Options{})
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Equal(t, "web-1", records[0]["host"])
		})
	}
}

func TestDetectCompression_ShortFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tiny.log", []byte("x"), CompressionNone)
	comp, err := DetectCompression(path)
	require.NoError(t, err)
	require.Equal(t, CompressionNone, comp)

	records, err := ReadFile(path, Options{})
	require.NoError(t, err)
	require.Equal(t, []map[string]interface{}{{"_raw": "x"}}, records)
}

func TestCompressionString(t *testing.T) {
	require.Equal(t, "gzip", CompressionGzip.String())
	require.Equal(t, "zstd", CompressionZstd.String())
	require.Equal(t, "xz", CompressionXZ.String())
	require.Equal(t, "none", CompressionNone.String())
}
