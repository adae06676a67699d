package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// expandFields resolves a field list that may contain * wildcards
// against the keys of records, keeping list order. Wildcard matches are
// added in sorted order.
func (c *execContext) expandFields(fields []string, records []LogRecord) []string {
	var keys []string
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		if !strings.Contains(f, "*") {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
			continue
		}
		if keys == nil {
			keys = unionKeys(records)
		}
		re := c.wildcardRegexp(f, true)
		for _, k := range keys {
			if !seen[k] && re.MatchString(k) {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// unionKeys returns the sorted union of record keys
func unionKeys(records []LogRecord) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// executeTable projects records onto the listed fields in order. Absent
// fields are omitted.
func (c *execContext) executeTable(cmd *TableCommand, records []LogRecord) []LogRecord {
	fields := c.expandFields(cmd.Fields, records)
	c.setFieldOrder(fields)

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		row := make(LogRecord, len(fields))
		for _, f := range fields {
			if v, ok := getField(rec, f); ok {
				row[f] = v
			}
		}
		out[i] = row
	}
	return out
}

// executeFields keeps or removes fields
func (c *execContext) executeFields(cmd *FieldsCommand, records []LogRecord) []LogRecord {
	fields := c.expandFields(cmd.Fields, records)
	out := make([]LogRecord, len(records))

	if cmd.Exclude {
		drop := make(map[string]bool, len(fields))
		for _, f := range fields {
			drop[f] = true
		}
		for i, rec := range records {
			row := make(LogRecord, len(rec))
			for k, v := range rec {
				if !drop[k] {
					row[k] = v
				}
			}
			out[i] = row
		}
		return out
	}

	c.setFieldOrder(fields)
	for i, rec := range records {
		row := make(LogRecord, len(fields))
		for _, f := range fields {
			if v, ok := getField(rec, f); ok {
				row[f] = v
			}
		}
		out[i] = row
	}
	return out
}

// executeSort sorts records by the sort keys. The sort is stable and
// records missing a key sort last in either direction.
func executeSort(cmd *SortCommand, records []LogRecord) []LogRecord {
	sorted := make([]LogRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		for _, key := range cmd.Fields {
			vi, _ := getField(sorted[i], key.Field)
			vj, _ := getField(sorted[j], key.Field)

			if vi == nil || vj == nil {
				if vi == nil && vj == nil {
					continue
				}
				return vj == nil
			}

			cmp := compareValues(vi, vj)
			if cmp != 0 {
				if key.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})

	if cmd.Limit > 0 && len(sorted) > cmd.Limit {
		sorted = sorted[:cmd.Limit]
	}
	return sorted
}

// executeHead keeps the first Count records
func executeHead(cmd *HeadCommand, records []LogRecord) []LogRecord {
	n := min(max(cmd.Count, 0), len(records))
	out := make([]LogRecord, n)
	copy(out, records[:n])
	return out
}

// executeTail keeps the last Count records
func executeTail(cmd *TailCommand, records []LogRecord) []LogRecord {
	n := min(max(cmd.Count, 0), len(records))
	out := make([]LogRecord, n)
	copy(out, records[len(records)-n:])
	return out
}

// executeDedup keeps the first Keep records of every key. Records missing
// a key field are dropped unless KeepEmpty is set. With Consecutive only
// adjacent repeats are removed.
func executeDedup(cmd *DedupCommand, records []LogRecord) []LogRecord {
	keep := cmd.Keep
	if keep <= 0 {
		keep = 1
	}

	out := make([]LogRecord, 0, len(records))
	seen := make(map[string]int)
	prevKey := ""
	run := 0

	for _, rec := range records {
		key, complete := groupKey(rec, cmd.Fields)
		if !complete {
			if cmd.KeepEmpty {
				out = append(out, rec)
			}
			continue
		}

		if cmd.Consecutive {
			if len(out) > 0 && key == prevKey {
				run++
			} else {
				run = 1
			}
			prevKey = key
			if run <= keep {
				out = append(out, rec)
			}
			continue
		}

		seen[key]++
		if seen[key] <= keep {
			out = append(out, rec)
		}
	}
	return out
}

// renameTarget matches a field name against a rename source; a * in the
// source captures the part carried over to the * in the target
func renameTarget(from, to, field string) (string, bool) {
	if !strings.Contains(from, "*") {
		return to, field == from
	}
	prefix, suffix, _ := strings.Cut(from, "*")
	if len(field) < len(prefix)+len(suffix) || !strings.HasPrefix(field, prefix) || !strings.HasSuffix(field, suffix) {
		return "", false
	}
	middle := field[len(prefix) : len(field)-len(suffix)]
	return strings.Replace(to, "*", middle, 1), true
}

// executeRename renames fields. A rename onto an existing field replaces
// it.
func (c *execContext) executeRename(cmd *RenameCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, len(records))
	for i, rec := range records {
		row := copyRecord(rec, 0)
		for _, r := range cmd.Renames {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			for _, k := range keys {
				target, ok := renameTarget(r.From, r.To, k)
				if !ok || target == k {
					continue
				}
				v := row[k]
				delete(row, k)
				row[target] = v
			}
		}
		out[i] = row
	}

	if len(c.fieldOrder) > 0 {
		order := make([]string, len(c.fieldOrder))
		for i, f := range c.fieldOrder {
			order[i] = f
			for _, r := range cmd.Renames {
				if target, ok := renameTarget(r.From, r.To, f); ok {
					order[i] = target
				}
			}
		}
		c.setFieldOrder(order)
	}
	return out
}

// executeFillnull sets missing or null fields to Value. Without a field
// list every field present in any record is filled.
func executeFillnull(cmd *FillnullCommand, records []LogRecord) []LogRecord {
	fields := cmd.Fields
	if len(fields) == 0 {
		fields = unionKeys(records)
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		row := copyRecord(rec, len(fields))
		for _, f := range fields {
			if v, ok := row[f]; !ok || v == nil {
				row[f] = cmd.Value
			}
		}
		out[i] = row
	}
	return out
}

// wildcardReplacer rewrites whole values matching old, where each * in
// old captures text substituted for the matching * in new
type wildcardReplacer struct {
	re  *regexp.Regexp
	new []string
}

func newWildcardReplacer(r Replacement) *wildcardReplacer {
	parts := strings.Split(r.Old, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return &wildcardReplacer{
		re:  regexp.MustCompile("(?s)^" + strings.Join(parts, "(.*)") + "$"),
		new: strings.Split(r.New, "*"),
	}
}

func (w *wildcardReplacer) replace(s string) (string, bool) {
	m := w.re.FindStringSubmatch(s)
	if m == nil {
		return s, false
	}
	var b strings.Builder
	for i, part := range w.new {
		b.WriteString(part)
		if i+1 < len(w.new) && i+1 < len(m) {
			b.WriteString(m[i+1])
		}
	}
	return b.String(), true
}

// executeReplace rewrites matching values of the listed fields (all
// fields when none are listed). The first matching replacement wins.
func (c *execContext) executeReplace(cmd *ReplaceCommand, records []LogRecord) []LogRecord {
	replacers := make([]*wildcardReplacer, len(cmd.Replacements))
	for i, r := range cmd.Replacements {
		replacers[i] = newWildcardReplacer(r)
	}

	apply := func(v interface{}) interface{} {
		s := valueToString(v)
		for _, r := range replacers {
			if out, ok := r.replace(s); ok {
				return out
			}
		}
		return v
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		fields := cmd.Fields
		if len(fields) == 0 {
			fields = make([]string, 0, len(rec))
			for k := range rec {
				fields = append(fields, k)
			}
		} else {
			fields = c.expandFields(fields, []LogRecord{rec})
		}

		row := copyRecord(rec, 0)
		for _, f := range fields {
			v, ok := row[f]
			if !ok || v == nil {
				continue
			}
			if mv, ok := v.([]interface{}); ok {
				vals := make([]interface{}, len(mv))
				for j, item := range mv {
					vals[j] = apply(item)
				}
				row[f] = vals
				continue
			}
			row[f] = apply(v)
		}
		out[i] = row
	}
	return out
}

// executeReverse reverses record order
func executeReverse(records []LogRecord) []LogRecord {
	out := make([]LogRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out
}

// executeUniq removes records identical to the record before them
func executeUniq(records []LogRecord) []LogRecord {
	out := make([]LogRecord, 0, len(records))
	prev := ""
	for i, rec := range records {
		key := recordKey(rec)
		if i > 0 && key == prev {
			continue
		}
		prev = key
		out = append(out, rec)
	}
	return out
}

// recordKey creates a key from every field of a record
func recordKey(rec LogRecord) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\x00||\x00")
		}
		b.WriteString(k)
		b.WriteString("\x00:\x00")
		b.WriteString(fmt.Sprintf("%#v", rec[k]))
	}
	return b.String()
}

// executeMakeresults generates Count records stamped with the query clock
func (c *execContext) executeMakeresults(cmd *MakeresultsCommand) ([]LogRecord, error) {
	n := max(cmd.Count, 0)
	if n > maxGeneratedRows {
		return nil, NewMemoryLimitError("makeresults", int64(n), maxGeneratedRows)
	}
	out := make([]LogRecord, n)
	for i := range out {
		out[i] = LogRecord{"_time": c.now.UTC()}
	}
	return out, nil
}

// executeMakemv splits a string field into a multivalue, by Delim or by
// the matches of the Tokenizer regex
func executeMakemv(cmd *MakemvCommand, records []LogRecord) ([]LogRecord, error) {
	var tokenizer *regexp.Regexp
	if cmd.Tokenizer != "" {
		re, err := compileRegex(cmd.Tokenizer)
		if err != nil {
			return nil, NewRegexError("makemv", cmd.Tokenizer, err)
		}
		tokenizer = re
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		v, ok := rec[cmd.Field]
		if !ok || v == nil {
			out[i] = rec
			continue
		}
		if _, isMV := v.([]interface{}); isMV {
			out[i] = rec
			continue
		}

		s := valueToString(v)
		var parts []string
		if tokenizer != nil {
			for _, m := range tokenizer.FindAllStringSubmatch(s, -1) {
				if len(m) > 1 {
					parts = append(parts, m[1])
				} else {
					parts = append(parts, m[0])
				}
			}
		} else {
			parts = strings.Split(s, cmd.Delim)
		}

		values := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			if p == "" && !cmd.AllowEmpty {
				continue
			}
			values = append(values, p)
		}

		row := copyRecord(rec, 0)
		if len(values) == 0 {
			delete(row, cmd.Field)
		} else {
			row[cmd.Field] = values
		}
		out[i] = row
	}
	return out, nil
}

// executeMvexpand emits one record per value of a multivalue field. Limit
// caps the values expanded per record.
func executeMvexpand(cmd *MvexpandCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, 0, len(records))
	for _, rec := range records {
		v, ok := rec[cmd.Field]
		if !ok || v == nil {
			out = append(out, rec)
			continue
		}
		values := toMultivalue(v)
		if cmd.Limit > 0 && len(values) > cmd.Limit {
			values = values[:cmd.Limit]
		}
		for _, item := range values {
			row := copyRecord(rec, 0)
			row[cmd.Field] = item
			out = append(out, row)
		}
	}
	return out
}

// executeAddtotals adds a per-record sum of the numeric fields (Row) and
// a trailing record of per-field sums (Col)
func (c *execContext) executeAddtotals(cmd *AddtotalsCommand, records []LogRecord) []LogRecord {
	match := func(field string) bool {
		if field == cmd.FieldName || field == cmd.LabelField || strings.HasPrefix(field, "_") {
			return false
		}
		if len(cmd.Fields) == 0 {
			return true
		}
		for _, f := range cmd.Fields {
			if f == field || (strings.Contains(f, "*") && c.wildcardRegexp(f, true).MatchString(field)) {
				return true
			}
		}
		return false
	}

	out := make([]LogRecord, len(records), len(records)+1)
	colSums := make(map[string]float64)
	var colOrder []string

	for i, rec := range records {
		row := rec
		total := 0.0
		for k, v := range rec {
			if !match(k) {
				continue
			}
			n, ok := numericValue(v)
			if !ok {
				continue
			}
			total += n
			if _, seen := colSums[k]; !seen {
				colOrder = append(colOrder, k)
			}
			colSums[k] += n
		}
		if cmd.Row {
			row = copyRecord(rec, 1)
			row[cmd.FieldName] = total
			if _, seen := colSums[cmd.FieldName]; !seen {
				colOrder = append(colOrder, cmd.FieldName)
			}
			colSums[cmd.FieldName] += total
		}
		out[i] = row
	}

	if cmd.Col {
		summary := make(LogRecord, len(colSums)+1)
		for _, k := range colOrder {
			if k == cmd.FieldName && !cmd.Row {
				continue
			}
			summary[k] = colSums[k]
		}
		if cmd.LabelField != "" {
			summary[cmd.LabelField] = cmd.Label
		}
		out = append(out, summary)
	}
	return out
}

// executeConvert converts field values. A conversion with an alias
// writes to the alias and leaves the source untouched.
func (c *execContext) executeConvert(cmd *ConvertCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, len(records))
	for i, rec := range records {
		row := copyRecord(rec, len(cmd.Conversions))
		for _, conv := range cmd.Conversions {
			fields := c.expandFields([]string{conv.Field}, []LogRecord{rec})
			for _, f := range fields {
				v, ok := rec[f]
				if !ok || v == nil {
					continue
				}
				converted, ok := convertValue(conv.Function, v, cmd.TimeFormat)
				if !ok {
					continue
				}
				target := f
				if conv.Alias != "" {
					target = conv.Alias
				}
				row[target] = converted
			}
		}
		out[i] = row
	}
	return out
}

var (
	leadingNumber = regexp.MustCompile(`^\s*([-+]?\d+(\.\d+)?)`)
	memoryValue   = regexp.MustCompile(`(?i)^\s*([-+]?\d+(\.\d+)?)\s*([kmg]?)b?\s*$`)
)

// convertValue applies one convert function. ok is false when the value
// does not convert and should stay as it is.
func convertValue(fn string, v interface{}, timeFormat string) (interface{}, bool) {
	s := valueToString(v)
	switch fn {
	case "auto", "num":
		if n, ok := numericValue(v); ok {
			return n, true
		}
		if fn == "auto" {
			if n, ok := parseNumber(strings.ReplaceAll(s, ",", "")); ok {
				return n, true
			}
		}
		return nil, false
	case "none":
		return v, true
	case "rmcomma":
		n, ok := parseNumber(strings.ReplaceAll(s, ",", ""))
		return n, ok
	case "rmunit":
		m := leadingNumber.FindStringSubmatch(s)
		if m == nil {
			return nil, false
		}
		n, ok := parseNumber(m[1])
		return n, ok
	case "memk":
		m := memoryValue.FindStringSubmatch(s)
		if m == nil {
			return nil, false
		}
		n, _ := strconv.ParseFloat(m[1], 64)
		switch strings.ToLower(m[3]) {
		case "m":
			n *= 1024
		case "g":
			n *= 1024 * 1024
		}
		return n, true
	case "dur2sec":
		return durationSeconds(s)
	case "ctime":
		t, ok := toTime(v)
		if !ok {
			return nil, false
		}
		return strftime(t, timeFormat), true
	case "mktime":
		t, err := strptime(s, timeFormat)
		if err != nil {
			return nil, false
		}
		return timeToEpoch(t), true
	}
	return nil, false
}

// durationSeconds parses [D+]HH:MM:SS into seconds
func durationSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	days := 0.0
	if d, rest, ok := strings.Cut(s, "+"); ok {
		n, ok := parseNumber(d)
		if !ok {
			return 0, false
		}
		days = n
		s = rest
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, p := range parts {
		n, ok := parseNumber(p)
		if !ok {
			return 0, false
		}
		total = total*60 + n
	}
	return days*86400 + total, true
}
