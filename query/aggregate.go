package query

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Group represents a group of records for aggregation
type Group struct {
	Key     string        // Key built from the group-by values
	Values  []interface{} // Group-by values of the first record, in field order
	Records []LogRecord   // All records in the group
}

// groupKey builds the key of a record from the stringified values of
// fields. complete is false when a field is missing or null.
func groupKey(rec LogRecord, fields []string) (string, bool) {
	var keyBuilder strings.Builder
	complete := true
	for i, f := range fields {
		if i > 0 {
			keyBuilder.WriteString("\x00||\x00") // unlikely separator
		}
		v, ok := getField(rec, f)
		if !ok || v == nil {
			complete = false
			keyBuilder.WriteString("\x00null\x00")
			continue
		}
		keyBuilder.WriteString(valueToString(v))
	}
	return keyBuilder.String(), complete
}

// groupRecords partitions records by fields, in first-seen group order
func groupRecords(records []LogRecord, fields []string) []*Group {
	if len(fields) == 0 {
		return []*Group{{Records: records}}
	}

	index := make(map[string]*Group)
	var groups []*Group
	for _, rec := range records {
		key, _ := groupKey(rec, fields)
		if g, exists := index[key]; exists {
			g.Records = append(g.Records, rec)
			continue
		}
		values := make([]interface{}, len(fields))
		for i, f := range fields {
			values[i], _ = getField(rec, f)
		}
		g := &Group{Key: key, Values: values, Records: []LogRecord{rec}}
		index[key] = g
		groups = append(groups, g)
	}
	return groups
}

// aggregationValues collects the non-null values of field, flattening
// multivalues
func aggregationValues(field string, records []LogRecord) []interface{} {
	values := make([]interface{}, 0, len(records))
	for _, rec := range records {
		v, ok := getField(rec, field)
		if !ok || v == nil {
			continue
		}
		for _, item := range toMultivalue(v) {
			if item != nil {
				values = append(values, item)
			}
		}
	}
	return values
}

// numericValues keeps the values that convert to numbers
func numericValues(values []interface{}) []float64 {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if n, ok := numericValue(v); ok {
			nums = append(nums, n)
		}
	}
	return nums
}

// computeAggregate evaluates one aggregation over a group of records.
// count counts rows regardless of nulls; numeric aggregations ignore
// values that are not numbers and give 0 when none are left.
func computeAggregate(agg Aggregation, records []LogRecord) interface{} {
	fn := agg.Function
	if fn == "count" || fn == "c" {
		return int64(len(records))
	}
	if agg.Field == "" {
		return nil
	}

	values := aggregationValues(agg.Field, records)

	switch fn {
	case "sum":
		return sumOf(numericValues(values))
	case "avg", "mean":
		nums := numericValues(values)
		if len(nums) == 0 {
			return float64(0)
		}
		return sumOf(nums) / float64(len(nums))
	case "min", "max":
		return minMax(values, fn == "max")
	case "range":
		nums := numericValues(values)
		if len(nums) == 0 {
			return float64(0)
		}
		lo, hi := nums[0], nums[0]
		for _, n := range nums[1:] {
			lo, hi = math.Min(lo, n), math.Max(hi, n)
		}
		return hi - lo
	case "dc", "distinct_count":
		return int64(len(distinctStrings(values)))
	case "values":
		distinct := distinctStrings(values)
		sort.Strings(distinct)
		out := make([]interface{}, len(distinct))
		for i, s := range distinct {
			out[i] = s
		}
		return out
	case "list":
		out := make([]interface{}, len(values))
		copy(out, values)
		return out
	case "first":
		if len(values) == 0 {
			return nil
		}
		return values[0]
	case "last":
		if len(values) == 0 {
			return nil
		}
		return values[len(values)-1]
	case "earliest", "latest":
		return byTime(agg.Field, records, fn == "latest")
	case "stdev", "stdevp", "var", "varp":
		return dispersion(fn, numericValues(values))
	case "median":
		return percentile(numericValues(values), 50)
	case "mode":
		return modeOf(values)
	}

	if m := percentileRe.FindStringSubmatch(fn); m != nil {
		p, _ := strconv.ParseFloat(m[1], 64)
		return percentile(numericValues(values), p)
	}
	return nil
}

func sumOf(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}

// minMax compares numerically when any value is a number, otherwise
// lexically
func minMax(values []interface{}, wantMax bool) interface{} {
	if nums := numericValues(values); len(nums) > 0 {
		best := nums[0]
		for _, n := range nums[1:] {
			if (wantMax && n > best) || (!wantMax && n < best) {
				best = n
			}
		}
		return best
	}
	var best string
	for i, v := range values {
		s := valueToString(v)
		if i == 0 || (wantMax && s > best) || (!wantMax && s < best) {
			best = s
		}
	}
	if len(values) == 0 {
		return nil
	}
	return best
}

// distinctStrings returns the distinct stringified values in first-seen
// order
func distinctStrings(values []interface{}) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := valueToString(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// byTime returns the value of field from the record with the smallest
// (or largest) _time. Records without a time fall back to input order.
func byTime(field string, records []LogRecord, latest bool) interface{} {
	var best interface{}
	var bestTime time.Time
	found := false
	for _, rec := range records {
		v, ok := getField(rec, field)
		if !ok || v == nil {
			continue
		}
		t, hasTime := toTime(rec["_time"])
		if !found {
			best, bestTime, found = v, t, true
			continue
		}
		if !hasTime {
			if latest {
				best = v
			}
			continue
		}
		if (latest && !t.Before(bestTime)) || (!latest && t.Before(bestTime)) {
			best, bestTime = v, t
		}
	}
	return best
}

// dispersion computes sample or population variance and deviation
func dispersion(fn string, nums []float64) float64 {
	n := float64(len(nums))
	sample := fn == "stdev" || fn == "var"
	if n == 0 || (sample && n < 2) {
		return 0
	}
	mean := sumOf(nums) / n
	sq := 0.0
	for _, x := range nums {
		sq += (x - mean) * (x - mean)
	}
	div := n
	if sample {
		div = n - 1
	}
	variance := sq / div
	if strings.HasPrefix(fn, "stdev") {
		return math.Sqrt(variance)
	}
	return variance
}

// percentile interpolates linearly between closest ranks. The 50th
// percentile of an even count is the mean of the middle two.
func percentile(nums []float64, p float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// modeOf returns the most frequent value; ties go to the first seen
func modeOf(values []interface{}) interface{} {
	counts := make(map[string]int)
	var best interface{}
	bestCount := 0
	for _, v := range values {
		s := valueToString(v)
		counts[s]++
		if counts[s] > bestCount {
			best, bestCount = v, counts[s]
		}
	}
	return best
}

// aggregateGroup writes every aggregation of a group into row
func aggregateGroup(aggs []Aggregation, records []LogRecord, row LogRecord) {
	for _, agg := range aggs {
		if v := computeAggregate(agg, records); v != nil {
			row[agg.OutputName()] = v
		}
	}
}

// aggregationOrder returns the by fields followed by the aggregation
// output names
func aggregationOrder(by []string, aggs []Aggregation) []string {
	order := make([]string, 0, len(by)+len(aggs))
	order = append(order, by...)
	for _, agg := range aggs {
		order = append(order, agg.OutputName())
	}
	return order
}

// executeStats emits one row per group in first-seen order. Records
// missing a by field form a group whose row lacks that field. Without
// BY, empty input still yields one row.
func (c *execContext) executeStats(cmd *StatsCommand, records []LogRecord) []LogRecord {
	c.setFieldOrder(aggregationOrder(cmd.GroupBy, cmd.Aggregations))

	if len(cmd.GroupBy) > 0 && len(records) == 0 {
		return []LogRecord{}
	}

	groups := groupRecords(records, cmd.GroupBy)
	out := make([]LogRecord, 0, len(groups))
	for _, g := range groups {
		row := make(LogRecord, len(cmd.GroupBy)+len(cmd.Aggregations))
		for i, f := range cmd.GroupBy {
			if g.Values[i] != nil {
				row[f] = g.Values[i]
			}
		}
		aggregateGroup(cmd.Aggregations, g.Records, row)
		out = append(out, row)
	}
	return out
}

// executeEventstats adds the aggregates of each record's group to the
// record, keeping record order and count
func executeEventstats(cmd *EventstatsCommand, records []LogRecord) []LogRecord {
	results := make(map[string]LogRecord)
	for _, g := range groupRecords(records, cmd.GroupBy) {
		row := make(LogRecord, len(cmd.Aggregations))
		aggregateGroup(cmd.Aggregations, g.Records, row)
		results[g.Key] = row
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		key := ""
		if len(cmd.GroupBy) > 0 {
			key, _ = groupKey(rec, cmd.GroupBy)
		}
		row := copyRecord(rec, len(cmd.Aggregations))
		for k, v := range results[key] {
			row[k] = v
		}
		out[i] = row
	}
	return out
}

// executeTop ranks the values of a field by frequency, descending for
// top and ascending for rare. Each by group is ranked separately.
// Records missing the field are not counted, and percentages are
// relative to the records in the group that have it. Ties keep
// first-seen order.
func (c *execContext) executeTop(cmd *TopCommand, records []LogRecord, rare bool) []LogRecord {
	order := append([]string{cmd.Field}, cmd.GroupBy...)
	if cmd.ShowCount {
		order = append(order, cmd.CountField)
	}
	if cmd.ShowPercent {
		order = append(order, cmd.PercentField)
	}
	c.setFieldOrder(order)

	type entry struct {
		value interface{}
		count int64
	}

	var out []LogRecord
	for _, g := range groupRecords(records, cmd.GroupBy) {
		index := make(map[string]*entry)
		var entries []*entry
		var counted int64
		for _, rec := range g.Records {
			v, ok := getField(rec, cmd.Field)
			if !ok || v == nil {
				continue
			}
			counted++
			key := valueToString(v)
			if e, exists := index[key]; exists {
				e.count++
				continue
			}
			e := &entry{value: v, count: 1}
			index[key] = e
			entries = append(entries, e)
		}

		sort.SliceStable(entries, func(i, j int) bool {
			if rare {
				return entries[i].count < entries[j].count
			}
			return entries[i].count > entries[j].count
		})
		if cmd.Limit > 0 && len(entries) > cmd.Limit {
			entries = entries[:cmd.Limit]
		}

		total := float64(counted)
		for _, e := range entries {
			row := make(LogRecord, len(order))
			row[cmd.Field] = e.value
			for i, f := range cmd.GroupBy {
				if g.Values[i] != nil {
					row[f] = g.Values[i]
				}
			}
			if cmd.ShowCount {
				row[cmd.CountField] = e.count
			}
			if cmd.ShowPercent {
				row[cmd.PercentField] = roundTo(float64(e.count)/total*100, 2)
			}
			out = append(out, row)
		}
	}
	if out == nil {
		out = []LogRecord{}
	}
	return out
}
