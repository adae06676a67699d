// Package query parses and executes pipelined search queries over
// in-memory records.
//
// A query is a chain of commands separated by pipes. Each command takes
// the records produced by the previous one and returns a new set:
//
//	search status>=500 host=web* | stats count, avg(latency) by host | sort -count | head 5
//
// Records are map[string]interface{} values. Two keys are reserved: _time
// holds the event timestamp and _raw the original event text. A query
// that does not start with a command is an implicit search.
//
// # Commands
//
//   - Filtering: search, where, regex, dedup, uniq, head, tail
//   - Projection: table, fields, rename, fillnull, replace, convert
//   - Evaluation: eval, rex, spath, makemv, mvexpand, bin
//   - Aggregation: stats, eventstats, streamstats, top, rare, chart,
//     timechart, addtotals
//   - Correlation: lookup, inputlookup, join, transaction
//   - Generation and ordering: makeresults, sort, reverse
//
// # Basic Usage
//
//	exec := query.NewExecutor(records, lookups, query.Options{})
//	result := exec.Execute(`search level=error | stats count by service`)
//	if !result.Success {
//	    log.Fatal(result.Error)
//	}
//	for _, row := range result.Data {
//	    fmt.Println(row)
//	}
//
// Parse can be used on its own to validate a query or inspect its AST:
//
//	q, err := query.Parse(`eval mb=round(bytes/1024/1024, 2)`)
//
// # Errors
//
// Every user-facing failure is an *Error carrying an ErrorCode, an
// optional position in the query text and, for misspelled commands and
// functions, a "did you mean" suggestion. Errors inside a single record
// (a failed eval, an unparsable value) do not fail the query: the record
// is skipped or the value is null, and one warning per command is added
// to the result.
//
// # Limits
//
// The query text, pipeline length and expression depth are bounded (see
// ValidateQuery). Execution checks the time budget and context
// cancellation between commands, and adds a warning when a command
// produces more than Options.MaxResults records.
//
// # Concurrency
//
// An Executor never modifies its input records or lookup tables and may
// run queries from several goroutines at once.
package query
