package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		want    interface{}
		wantErr bool
	}{
		{"jsonl", &JSONLinesFormatter{}, false},
		{"json", &JSONFormatter{}, false},
		{"CSV", &CSVFormatter{}, false},
		{"table", &TableFormatter{}, false},
		{"xml", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f, err := NewFormatter(tt.name, &buf)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "unsupported format")
				return
			}
			require.NoError(t, err)
			require.IsType(t, tt.want, f)
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"int", int64(42), "42"},
		{"float", 2.5, "2.5"},
		{"whole float", float64(3), "3"},
		{"bool", false, "false"},
		{"multivalue", []interface{}{"a", int64(1)}, "a\n1"},
		{"object", map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, formatValue(tt.v))
		})
	}
}

func TestColumns(t *testing.T) {
	rows := []map[string]interface{}{{"b": 1}, {"a": 1, "c": 2}}
	require.Equal(t, []string{"a", "b", "c"}, columns(rows, nil))
	require.Equal(t, []string{"c", "a"}, columns(rows, []string{"c", "a"}))
}
