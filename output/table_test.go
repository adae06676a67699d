package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewTableFormatter(&buf)

	rows := []map[string]interface{}{
		{"host": "web-1", "count": int64(3), "tags": []interface{}{"a", "b"}},
		{"host": "web-2", "count": int64(12)},
	}
	require.NoError(t, formatter.Format(rows, []string{"host", "count", "tags"}))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 5)

	// header keeps the field names as given
	require.Contains(t, lines[1], "host")
	require.Contains(t, lines[1], "count")
	require.Less(t, strings.Index(lines[1], "host"), strings.Index(lines[1], "count"))
	require.Contains(t, out, "web-1")
	require.Contains(t, out, "a,b")
	require.Contains(t, out, "12")
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(nil, nil))
	require.Empty(t, buf.String())
}

func TestTableCell(t *testing.T) {
	require.Equal(t, "line one line two", tableCell("line one\nline two"))
	require.Equal(t, "", tableCell(nil))

	long := tableCell(strings.Repeat("x", 200))
	require.Len(t, []rune(long), maxCellWidth)
	require.True(t, strings.HasSuffix(long, "..."))
}
