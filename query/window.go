package query

// rowInfo is a record with its position in the input
type rowInfo struct {
	row           LogRecord
	originalIndex int
}

// executeStreamstats adds running aggregates to every record in input
// order. Each record sees the earlier records of its group, plus itself
// when Current is set, limited to the last Window records (0 means
// unbounded). With Global the window counts records across all groups.
func executeStreamstats(cmd *StreamstatsCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, len(records))
	history := make(map[string][]rowInfo)

	for i, rec := range records {
		key := ""
		if len(cmd.GroupBy) > 0 {
			key, _ = groupKey(rec, cmd.GroupBy)
		}

		seen := history[key]
		if cmd.Current {
			seen = append(seen, rowInfo{row: rec, originalIndex: i})
		}
		window := windowRecords(seen, cmd.Window, cmd.Global, i)

		row := copyRecord(rec, len(cmd.Aggregations))
		if len(window) > 0 {
			aggregateGroup(cmd.Aggregations, window, row)
		}
		out[i] = row

		if !cmd.Current {
			seen = append(seen, rowInfo{row: rec, originalIndex: i})
		}
		history[key] = seen
	}
	return out
}

// windowRecords selects the records of a group history inside the
// window. A global window spans the last size input positions; otherwise
// it spans the last size records of the group.
func windowRecords(history []rowInfo, size int, global bool, current int) []LogRecord {
	start := 0
	if size > 0 {
		if global {
			for start < len(history) && history[start].originalIndex <= current-size {
				start++
			}
		} else if len(history) > size {
			start = len(history) - size
		}
	}
	window := make([]LogRecord, 0, len(history)-start)
	for _, info := range history[start:] {
		window = append(window, info.row)
	}
	return window
}
