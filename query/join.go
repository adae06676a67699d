package query

import (
	"fmt"
	"strings"
)

// lookupTable returns a named table, warning when it does not exist
func (c *execContext) lookupTable(command, name string) ([]LogRecord, bool) {
	rows, ok := c.exec.lookups[name]
	if !ok {
		c.warn(fmt.Sprintf("%s: lookup table %q not found", command, name))
	}
	return rows, ok
}

// executeLookup enriches records with the fields of the matching lookup
// row. The last table row with a key wins; unmatched records pass
// through unchanged. A missing table is a warning.
func (c *execContext) executeLookup(cmd *LookupCommand, records []LogRecord) []LogRecord {
	table, ok := c.lookupTable("lookup", cmd.Table)
	if !ok {
		return records
	}

	index := make(map[string]LogRecord, len(table))
	for _, row := range table {
		v, ok := getField(row, cmd.Field)
		if !ok || v == nil {
			continue
		}
		index[valueToString(v)] = row
	}

	local := cmd.LocalField
	if local == "" {
		local = cmd.Field
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		v, ok := getField(rec, local)
		if !ok || v == nil {
			out[i] = rec
			continue
		}
		match, ok := index[valueToString(v)]
		if !ok {
			out[i] = rec
			continue
		}

		row := copyRecord(rec, len(match))
		if len(cmd.OutputFields) == 0 {
			for k, val := range match {
				if k == cmd.Field {
					continue
				}
				if _, exists := row[k]; exists && cmd.OutputNew {
					continue
				}
				row[k] = val
			}
		} else {
			for _, m := range cmd.OutputFields {
				target := m.Target
				if target == "" {
					target = m.Source
				}
				if _, exists := row[target]; exists && cmd.OutputNew {
					continue
				}
				if val, ok := match[m.Source]; ok {
					row[target] = val
				}
			}
		}
		out[i] = row
	}
	return out
}

// executeInputlookup returns the rows of a lookup table as records
func (c *execContext) executeInputlookup(cmd *InputlookupCommand) []LogRecord {
	table, ok := c.lookupTable("inputlookup", cmd.Table)
	if !ok {
		return []LogRecord{}
	}
	out := make([]LogRecord, len(table))
	for i, row := range table {
		out[i] = copyRecord(row, 0)
	}
	return out
}

// executeJoin joins records with a subsearch result or a lookup table on
// the join fields. Each record joins with up to Max matching rows; right
// side values win except for the join fields. Inner joins drop records
// without a match.
func (c *execContext) executeJoin(cmd *JoinCommand, records []LogRecord) ([]LogRecord, error) {
	var right []LogRecord
	if cmd.Subsearch != nil {
		order := c.fieldOrder
		sub, err := c.run(cmd.Subsearch, c.exec.records)
		c.fieldOrder = order
		if err != nil {
			return nil, err
		}
		right = sub
	} else {
		table, ok := c.lookupTable("join", cmd.Table)
		if !ok {
			return records, nil
		}
		right = table
	}

	fields := cmd.Fields
	if len(fields) == 0 {
		fields = commonFields(records, right)
		if len(fields) == 0 {
			c.warn("join: no common fields to join on")
			if cmd.Type == JoinInner {
				return []LogRecord{}, nil
			}
			return records, nil
		}
	}

	index := make(map[string][]LogRecord)
	for _, row := range right {
		key, complete := groupKey(row, fields)
		if complete {
			index[key] = append(index[key], row)
		}
	}

	isJoinField := make(map[string]bool, len(fields))
	for _, f := range fields {
		isJoinField[f] = true
	}

	out := make([]LogRecord, 0, len(records))
	for _, rec := range records {
		key, complete := groupKey(rec, fields)
		var matches []LogRecord
		if complete {
			matches = index[key]
		}
		if len(matches) == 0 {
			if cmd.Type != JoinInner {
				out = append(out, rec)
			}
			continue
		}
		if cmd.Max > 0 && len(matches) > cmd.Max {
			matches = matches[:cmd.Max]
		}
		for _, m := range matches {
			row := copyRecord(rec, len(m))
			for k, v := range m {
				if !isJoinField[k] {
					row[k] = v
				}
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// commonFields returns the non-internal fields present on both sides
func commonFields(left, right []LogRecord) []string {
	rightKeys := make(map[string]bool)
	for _, k := range unionKeys(right) {
		rightKeys[k] = true
	}
	var common []string
	for _, k := range unionKeys(left) {
		if rightKeys[k] && !strings.HasPrefix(k, "_") {
			common = append(common, k)
		}
	}
	return common
}
