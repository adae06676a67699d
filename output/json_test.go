package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJSONLinesFormatter_Format(t *testing.T) {
	tests := []struct {
		name      string
		rows      []map[string]interface{}
		wantLines []string
	}{
		{
			name: "empty rows",
			rows: []map[string]interface{}{},
		},
		{
			name: "multiple rows",
			rows: []map[string]interface{}{
				{"host": "web-1", "count": int64(3)},
				{"host": "web-2", "count": int64(1)},
			},
			wantLines: []string{
				`{"count":3,"host":"web-1"}`,
				`{"count":1,"host":"web-2"}`,
			},
		},
		{
			name: "nil, multivalue and time",
			rows: []map[string]interface{}{
				{
					"user":  nil,
					"tags":  []interface{}{"a", "b"},
					"_time": time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
				},
			},
			wantLines: []string{
				`{"_time":"2024-01-15T10:00:00Z","tags":["a","b"],"user":null}`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatter := NewJSONLinesFormatter(&buf)

			require.NoError(t, formatter.Format(tt.rows, nil))

			out := strings.TrimSuffix(buf.String(), "\n")
			if len(tt.wantLines) == 0 {
				require.Empty(t, out)
				return
			}
			require.Equal(t, tt.wantLines, strings.Split(out, "\n"))
		})
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewJSONFormatter(&buf)

	rows := []map[string]interface{}{
		{"host": "web-1", "avg": 1.5},
		{"host": "web-2"},
	}
	require.NoError(t, formatter.Format(rows, []string{"host", "avg"}))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, []map[string]interface{}{
		{"host": "web-1", "avg": 1.5},
		{"host": "web-2"},
	}, decoded)
}

func TestJSONFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewJSONFormatter(&buf)
	require.NoError(t, formatter.Format(nil, nil))
	require.Equal(t, "[]\n", buf.String())
}

func TestJSONFormatter_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	formatter := NewJSONLinesFormatter(&first)
	formatter.SetOutput(&second)

	require.NoError(t, formatter.Format([]map[string]interface{}{{"a": 1}}, nil))
	require.Empty(t, first.String())
	require.Equal(t, "{\"a\":1}\n", second.String())
}
