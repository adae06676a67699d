package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// defaultSpan is the timechart bucket size when span is missing or invalid
const defaultSpan = time.Hour

// splitSpan splits a span such as 30s, 1.5h or 10 into its number and
// unit. A bare number has an empty unit.
func splitSpan(s string) (float64, string, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		if s == "" {
			return 0, "", fmt.Errorf("empty span")
		}
		// a bare unit means one of it
		return 1, s, nil
	}
	n, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || n <= 0 {
		return 0, "", fmt.Errorf("invalid span %q", s)
	}
	return n, s[i:], nil
}

// unitDuration maps a span unit to its length. M is a month of 30 days
// and y a year of 365 days; m is a minute.
func unitDuration(unit string) (time.Duration, bool) {
	const day = 24 * time.Hour
	switch unit {
	case "", "s", "sec", "secs", "second", "seconds":
		return time.Second, true
	case "ms":
		return time.Millisecond, true
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "h", "hr", "hrs", "hour", "hours":
		return time.Hour, true
	case "d", "day", "days":
		return day, true
	case "w", "week", "weeks":
		return 7 * day, true
	case "M", "mon", "month", "months":
		return 30 * day, true
	case "q", "qtr", "quarter", "quarters":
		return 90 * day, true
	case "y", "yr", "year", "years":
		return 365 * day, true
	}
	return 0, false
}

// bucketStart aligns t to a multiple of span since the epoch
func bucketStart(t time.Time, span time.Duration) time.Time {
	ns := t.UnixNano()
	start := ns - ((ns%int64(span))+int64(span))%int64(span)
	return time.Unix(0, start).UTC()
}

// splitValue renders the column name part of a split-by value
func splitValue(rec LogRecord, field string) string {
	v, ok := getField(rec, field)
	if !ok || v == nil {
		return "NULL"
	}
	return valueToString(v)
}

// seriesColumn names the column of one aggregation and split value. A
// single aggregation is named by the split value alone.
func seriesColumn(agg Aggregation, split string, single bool) string {
	if single {
		return split
	}
	return agg.OutputName() + ": " + split
}

// limitSeries keeps the limit most frequent split values; the rest are
// reported as OTHER. limit 0 keeps all.
func limitSeries(records []LogRecord, field string, limit int) map[string]string {
	counts := make(map[string]int)
	var order []string
	for _, rec := range records {
		s := splitValue(rec, field)
		if counts[s] == 0 {
			order = append(order, s)
		}
		counts[s]++
	}
	names := make(map[string]string, len(order))
	if limit <= 0 || len(order) <= limit {
		for _, s := range order {
			names[s] = s
		}
		return names
	}
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	for i, s := range ranked {
		if i < limit {
			names[s] = s
		} else {
			names[s] = "OTHER"
		}
	}
	return names
}

// isCountAggregation reports whether an empty cell of the aggregation is 0
func isCountAggregation(agg Aggregation) bool {
	switch agg.Function {
	case "count", "c", "dc", "distinct_count":
		return true
	}
	return false
}

// executeTimechart buckets records by _time and aggregates every bucket,
// optionally with one column per split-by value. Records without a
// timestamp are skipped. Buckets are emitted in time order.
func (c *execContext) executeTimechart(cmd *TimechartCommand, records []LogRecord) ([]LogRecord, error) {
	span := defaultSpan
	if d, err := parseDuration(cmd.Span); err == nil && d > 0 {
		span = d
	} else {
		c.warn(fmt.Sprintf("timechart: invalid span %q, using 1h", cmd.Span))
	}

	buckets := make(map[int64][]LogRecord)
	var starts []int64
	var timed []LogRecord
	for _, rec := range records {
		t, ok := toTime(rec["_time"])
		if !ok {
			continue
		}
		start := bucketStart(t, span).UnixNano()
		if _, exists := buckets[start]; !exists {
			starts = append(starts, start)
		}
		buckets[start] = append(buckets[start], rec)
		timed = append(timed, rec)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	if cmd.Continuous && len(starts) > 1 {
		n := (starts[len(starts)-1]-starts[0])/int64(span) + 1
		if n > maxGeneratedRows {
			return nil, NewMemoryLimitError("timechart", n, maxGeneratedRows)
		}
		filled := make([]int64, 0, n)
		for s := starts[0]; s <= starts[len(starts)-1]; s += int64(span) {
			filled = append(filled, s)
		}
		starts = filled
	}

	var columns []string
	var series map[string]string
	single := len(cmd.Aggregations) == 1
	if cmd.SplitBy != "" {
		series = limitSeries(timed, cmd.SplitBy, cmd.Limit)
		seen := make(map[string]bool)
		for _, rec := range timed {
			name := series[splitValue(rec, cmd.SplitBy)]
			if seen[name] {
				continue
			}
			seen[name] = true
			for _, agg := range cmd.Aggregations {
				columns = append(columns, seriesColumn(agg, name, single))
			}
		}
	} else {
		for _, agg := range cmd.Aggregations {
			columns = append(columns, agg.OutputName())
		}
	}
	c.setFieldOrder(append([]string{"_time"}, columns...))

	out := make([]LogRecord, 0, len(starts))
	for _, start := range starts {
		bucket := buckets[start]
		row := LogRecord{"_time": time.Unix(0, start).UTC()}

		if cmd.SplitBy == "" {
			for _, agg := range cmd.Aggregations {
				if len(bucket) == 0 && !isCountAggregation(agg) {
					continue
				}
				if v := computeAggregate(agg, bucket); v != nil {
					row[agg.OutputName()] = v
				}
			}
			out = append(out, row)
			continue
		}

		c.fillSeries(row, bucket, cmd.SplitBy, series, cmd.Aggregations, single)
		out = append(out, row)
	}
	return out, nil
}

// fillSeries aggregates records per split value into row. Series with no
// records get 0 for counting aggregations.
func (c *execContext) fillSeries(row LogRecord, records []LogRecord, splitBy string, series map[string]string, aggs []Aggregation, single bool) {
	parts := make(map[string][]LogRecord)
	for _, rec := range records {
		name := series[splitValue(rec, splitBy)]
		parts[name] = append(parts[name], rec)
	}

	names := make(map[string]bool, len(series))
	for _, name := range series {
		names[name] = true
	}
	for name := range names {
		for _, agg := range aggs {
			col := seriesColumn(agg, name, single)
			part := parts[name]
			if len(part) == 0 {
				if isCountAggregation(agg) {
					row[col] = int64(0)
				}
				continue
			}
			if v := computeAggregate(agg, part); v != nil {
				row[col] = v
			}
		}
	}
}

// executeChart aggregates records into one row per RowField value and,
// with a ColumnField, one column per column value
func (c *execContext) executeChart(cmd *ChartCommand, records []LogRecord) []LogRecord {
	var rowFields []string
	if cmd.RowField != "" {
		rowFields = []string{cmd.RowField}
	}

	var columns []string
	var series map[string]string
	single := len(cmd.Aggregations) == 1
	if cmd.ColumnField != "" {
		series = limitSeries(records, cmd.ColumnField, 0)
		seen := make(map[string]bool)
		for _, rec := range records {
			name := series[splitValue(rec, cmd.ColumnField)]
			if seen[name] {
				continue
			}
			seen[name] = true
			for _, agg := range cmd.Aggregations {
				columns = append(columns, seriesColumn(agg, name, single))
			}
		}
	} else {
		for _, agg := range cmd.Aggregations {
			columns = append(columns, agg.OutputName())
		}
	}
	c.setFieldOrder(append(append([]string{}, rowFields...), columns...))

	if len(records) == 0 && len(rowFields) > 0 {
		return []LogRecord{}
	}

	groups := groupRecords(records, rowFields)
	out := make([]LogRecord, 0, len(groups))
	for _, g := range groups {
		row := make(LogRecord, len(columns)+1)
		if cmd.RowField != "" && g.Values[0] != nil {
			row[cmd.RowField] = g.Values[0]
		}
		if cmd.ColumnField == "" {
			aggregateGroup(cmd.Aggregations, g.Records, row)
		} else {
			c.fillSeries(row, g.Records, cmd.ColumnField, series, cmd.Aggregations, single)
		}
		out = append(out, row)
	}
	return out
}

// executeBin replaces a field value with the start of its bin. Time
// values bin to a time span; numbers bin to a "lo-hi" range of width
// span, or of a rounded width giving at most Bins bins.
func executeBin(cmd *BinCommand, records []LogRecord) ([]LogRecord, error) {
	target := cmd.Field
	if cmd.Alias != "" {
		target = cmd.Alias
	}

	var timeSpan time.Duration
	numSpan := 0.0
	if cmd.Span != "" {
		n, unit, err := splitSpan(cmd.Span)
		if err != nil {
			return nil, NewInvalidArgumentError("bin", err.Error())
		}
		if unit == "" && cmd.Field != "_time" {
			numSpan = n
		} else {
			d, ok := unitDuration(unit)
			if !ok {
				return nil, NewInvalidArgumentError("bin", fmt.Sprintf("unknown span unit %q", unit))
			}
			timeSpan = time.Duration(n * float64(d))
		}
	} else {
		numSpan = autoSpan(records, cmd.Field, cmd.Bins)
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		v, ok := getField(rec, cmd.Field)
		if !ok || v == nil {
			out[i] = rec
			continue
		}

		row := copyRecord(rec, 1)
		if timeSpan > 0 {
			t, ok := toTime(v)
			if !ok {
				out[i] = rec
				continue
			}
			row[target] = bucketStart(t, timeSpan)
			out[i] = row
			continue
		}

		n, ok := numericValue(v)
		if !ok || numSpan <= 0 {
			out[i] = rec
			continue
		}
		lo := math.Floor(n/numSpan) * numSpan
		row[target] = formatFloat(lo) + "-" + formatFloat(lo+numSpan)
		out[i] = row
	}
	return out, nil
}

// autoSpan picks a power of ten giving at most bins bins over the value
// range of field
func autoSpan(records []LogRecord, field string, bins int) float64 {
	if bins <= 0 {
		bins = 100
	}
	nums := numericValues(aggregationValues(field, records))
	if len(nums) == 0 {
		return 1
	}
	lo, hi := nums[0], nums[0]
	for _, n := range nums[1:] {
		lo, hi = math.Min(lo, n), math.Max(hi, n)
	}
	if hi == lo {
		return 1
	}
	span := math.Pow(10, math.Ceil(math.Log10((hi-lo)/float64(bins))))
	for (math.Floor(hi/span)-math.Floor(lo/span))+1 > float64(bins) {
		span *= 10
	}
	return span
}
