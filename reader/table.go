package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readCSV reads a CSV file with a header row. Cells stay strings; the
// query engine compares numeric strings as numbers.
func readCSV(r io.Reader) ([]map[string]interface{}, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	return tableRecords(rows), nil
}

// readXLSX reads the first sheet of a workbook with a header row
func readXLSX(r io.Reader) ([]map[string]interface{}, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid XLSX: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return tableRecords(rows), nil
}

// tableRecords maps rows to records keyed by the header row. Empty cells
// are left out of the record.
func tableRecords(rows [][]string) []map[string]interface{} {
	records := make([]map[string]interface{}, 0, max(len(rows)-1, 0))
	if len(rows) == 0 {
		return records
	}
	header := normalizeHeader(rows[0])

	for _, row := range rows[1:] {
		rec := make(map[string]interface{}, len(header))
		for i, cell := range row {
			if cell == "" {
				continue
			}
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			rec[name] = cell
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// normalizeHeader trims header cells and names empty or repeated
// columns column_N
func normalizeHeader(cells []string) []string {
	header := make([]string, len(cells))
	seen := make(map[string]bool, len(cells))
	for i, cell := range cells {
		name := strings.TrimSpace(cell)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" || seen[name] {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name] = true
		header[i] = name
	}
	return header
}
