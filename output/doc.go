// Package output renders query results.
//
// Supported formats:
//   - jsonl: one JSON object per line
//   - json: a single JSON array
//   - csv: comma-separated values with a header row
//   - table: an aligned text table for terminals
//
// Columns follow the field list of the result; without one, the union of
// all row keys is used in sorted order.
//
// Example usage:
//
//	formatter, err := output.NewFormatter("table", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := formatter.Format(result.Data, result.Fields); err != nil {
//	    log.Fatal(err)
//	}
package output
