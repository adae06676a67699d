package reader

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtractSchemaInfo(t *testing.T) {
	records := []map[string]interface{}{
		{"host": "web-1", "status": int64(200), "_time": time.Unix(0, 0)},
		{"host": "web-2", "status": "n/a", "tags": []interface{}{"a"}},
		{"host": "web-1", "status": nil, "user": map[string]interface{}{"id": 1}},
		{"latency": 0.5, "ok": true},
	}

	got := ExtractSchemaInfo(records)
	require.Equal(t, []SchemaInfo{
		{Name: "_time", Type: "time", Count: 1, Distinct: 1},
		{Name: "host", Type: "string", Count: 3, Distinct: 2},
		{Name: "latency", Type: "float", Count: 1, Distinct: 1},
		{Name: "ok", Type: "bool", Count: 1, Distinct: 1},
		{Name: "status", Type: "int|string", Count: 3, Distinct: 2, Null: 1},
		{Name: "tags", Type: "array", Count: 1, Distinct: 1},
		{Name: "user", Type: "object", Count: 1, Distinct: 1},
	}, got)
}

func TestExtractSchemaInfo_Empty(t *testing.T) {
	require.Empty(t, ExtractSchemaInfo(nil))
	require.Equal(t, []SchemaInfo{{Name: "x", Type: "null", Count: 1, Null: 1}},
		ExtractSchemaInfo([]map[string]interface{}{{"x": nil}}))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.log", []byte("same content\n"), CompressionNone)
	b := writeFile(t, dir, "b.log", []byte("same content\n"), CompressionNone)
	c := writeFile(t, dir, "c.log", []byte("other content\n"), CompressionNone)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	require.Len(t, fa, 16)
	require.Equal(t, fa, fb)
	require.NotEqual(t, fa, fc)

	_, err = Fingerprint(filepath.Join(dir, "missing.log"))
	require.Error(t, err)
}
