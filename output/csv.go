package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes a header row and one line per row. Missing fields are
// empty cells.
func (c *CSVFormatter) Format(rows []map[string]interface{}, fields []string) error {
	csvWriter := csv.NewWriter(c.writer)

	cols := columns(rows, fields)
	if len(cols) > 0 {
		if err := csvWriter.Write(cols); err != nil {
			return err
		}
	}

	for _, row := range rows {
		record := make([]string, len(cols))
		for i, col := range cols {
			record[i] = csvValue(row[col])
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// csvValue renders a cell, quoting text that a spreadsheet would run as
// a formula
func csvValue(v interface{}) string {
	s := formatValue(v)
	if _, isString := v.(string); !isString || s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(s, "'", "''")
	}
	return s
}
