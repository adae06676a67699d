package reader

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []map[string]interface{}
	}{
		{
			name:  "header and rows",
			input: "host,status\nweb-1,200\nweb-2,404\n",
			want: []map[string]interface{}{
				{"host": "web-1", "status": "200"},
				{"host": "web-2", "status": "404"},
			},
		},
		{
			name:  "empty cells are left out",
			input: "host,owner\nweb-1,\n",
			want:  []map[string]interface{}{{"host": "web-1"}},
		},
		{
			name:  "byte order mark and blank header",
			input: "\ufeffhost,,host\na,b,c\n",
			want:  []map[string]interface{}{{"host": "a", "column_2": "b", "column_3": "c"}},
		},
		{
			name:  "ragged row",
			input: "a\n1,2\n",
			want:  []map[string]interface{}{{"a": "1", "column_2": "2"}},
		},
		{
			name:  "header only",
			input: "a,b\n",
			want:  []map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV_Invalid(t *testing.T) {
	_, err := readCSV(strings.NewReader("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid CSV")
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"host", "owner"},
		{"web-1", "alice"},
		{"web-2", "bob"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := readXLSX(&buf)
	require.NoError(t, err)
	require.Equal(t, []map[string]interface{}{
		{"host": "web-1", "owner": "alice"},
		{"host": "web-2", "owner": "bob"},
	}, got)
}

func TestReadXLSX_Invalid(t *testing.T) {
	_, err := readXLSX(strings.NewReader("not a workbook"))
	require.Error(t, err)
}
