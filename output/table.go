package output

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// maxCellWidth truncates long cells in table output
const maxCellWidth = 80

// TableFormatter outputs rows as an aligned text table
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders rows under a header of the columns. Multivalue cells are
// joined with commas and long cells are cut at maxCellWidth runes.
func (t *TableFormatter) Format(rows []map[string]interface{}, fields []string) error {
	cols := columns(rows, fields)
	if len(cols) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(cols)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = tableCell(row[col])
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

func tableCell(v interface{}) string {
	var s string
	if mv, ok := v.([]interface{}); ok {
		parts := make([]string, len(mv))
		for i, item := range mv {
			parts[i] = formatValue(item)
		}
		s = strings.Join(parts, ",")
	} else {
		s = formatValue(v)
	}
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-3]) + "..."
	}
	return s
}
