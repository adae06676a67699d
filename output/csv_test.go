package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCSVFormatter_Format(t *testing.T) {
	tests := []struct {
		name   string
		rows   []map[string]interface{}
		fields []string
		want   string
	}{
		{
			name: "empty rows",
			rows: []map[string]interface{}{},
			want: "",
		},
		{
			name:   "empty rows with fields",
			rows:   []map[string]interface{}{},
			fields: []string{"host", "count"},
			want:   "host,count\n",
		},
		{
			name: "field order",
			rows: []map[string]interface{}{
				{"host": "web-1", "count": int64(3)},
				{"host": "web-2"},
			},
			fields: []string{"host", "count"},
			want:   "host,count\nweb-1,3\nweb-2,\n",
		},
		{
			name: "union of keys sorted",
			rows: []map[string]interface{}{
				{"b": 1},
				{"a": 2.5},
			},
			want: "a,b\n,1\n2.5,\n",
		},
		{
			name: "value rendering",
			rows: []map[string]interface{}{
				{
					"t":  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
					"mv": []interface{}{"x", "y"},
					"ok": true,
					"f":  float64(1e21),
				},
			},
			fields: []string{"t", "mv", "ok", "f"},
			want:   "t,mv,ok,f\n2024-01-15T10:00:00Z,\"x\ny\",true,1000000000000000000000\n",
		},
		{
			name: "formula injection",
			rows: []map[string]interface{}{
				{"v": "=SUM(A1:A2)"},
				{"v": "@cmd"},
				{"v": "-it's"},
				{"v": -5},
			},
			want: "v\n'=SUM(A1:A2)\n'@cmd\n'-it''s\n-5\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatter := NewCSVFormatter(&buf)
			require.NoError(t, formatter.Format(tt.rows, tt.fields))
			require.Equal(t, tt.want, buf.String())
		})
	}
}
