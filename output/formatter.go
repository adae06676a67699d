package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes rows with the given column order. A nil fields list
	// uses every key of every row, sorted.
	Format(rows []map[string]interface{}, fields []string) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Formats lists the names accepted by NewFormatter
var Formats = []string{"json", "jsonl", "csv", "table"}

// NewFormatter returns the formatter registered under name
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case "jsonl":
		return NewJSONLinesFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported format '%s' (supported: %s)", name, strings.Join(Formats, ", "))
}

// columns returns fields, or the sorted union of row keys when fields is
// empty
func columns(rows []map[string]interface{}, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}
	set := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			set[col] = true
		}
	}
	cols := make([]string, 0, len(set))
	for col := range set {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// formatValue renders a value as text. Multivalues are joined with
// newlines and objects are written as JSON.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, "\n")
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
