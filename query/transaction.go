package query

import (
	"sort"
	"strings"
	"time"
)

// transaction is a run of related events
type transaction struct {
	events   []LogRecord
	start    time.Time
	last     time.Time
	hasTime  bool
	complete bool
}

// matchBoundary tests a startswith/endswith condition. A string literal
// is a case-insensitive substring of _raw; any other expression must be
// truthy.
func (c *execContext) matchBoundary(expr Expression, rec LogRecord) bool {
	if expr == nil {
		return false
	}
	if lit, ok := expr.(*LiteralExpr); ok {
		if s, ok := lit.Value.(string); ok {
			raw := valueToString(rec["_raw"])
			return strings.Contains(strings.ToLower(raw), strings.ToLower(s))
		}
	}
	v, err := c.evaluate(expr, rec)
	return err == nil && isTruthy(v)
}

// executeTransaction groups events by the key fields, orders each group
// by _time and cuts it into transactions. A transaction closes before an
// event that exceeds maxspan or maxpause, when maxevents is reached or
// when an event matches startswith, and after an event that matches
// endswith. Every segment is emitted unless keepevicted=false drops the
// incomplete ones. Each transaction becomes one record: the first
// event's fields plus duration, eventcount and the joined _raw.
func (c *execContext) executeTransaction(cmd *TransactionCommand, records []LogRecord) []LogRecord {
	var txns []*transaction

	for _, g := range groupRecords(records, cmd.Fields) {
		if len(g.Records) == 0 {
			continue
		}
		if _, complete := groupKey(g.Records[0], cmd.Fields); len(cmd.Fields) > 0 && !complete {
			continue
		}
		events := sortByTime(g.Records)

		var cur *transaction
		closeCurrent := func(ended bool) {
			if cur == nil {
				return
			}
			cur.complete = (cmd.EndsWith == nil || ended) &&
				(cmd.StartsWith == nil || c.matchBoundary(cmd.StartsWith, cur.events[0]))
			txns = append(txns, cur)
			cur = nil
		}

		for _, rec := range events {
			t, hasTime := toTime(rec["_time"])
			if cur != nil {
				switch {
				case cmd.MaxEvents > 0 && len(cur.events) >= cmd.MaxEvents:
					closeCurrent(false)
				case cmd.StartsWith != nil && c.matchBoundary(cmd.StartsWith, rec):
					closeCurrent(false)
				case hasTime && cur.hasTime && cmd.MaxSpan > 0 && t.Sub(cur.start) > cmd.MaxSpan:
					closeCurrent(false)
				case hasTime && cur.hasTime && cmd.MaxPause > 0 && t.Sub(cur.last) > cmd.MaxPause:
					closeCurrent(false)
				}
			}
			if cur == nil {
				cur = &transaction{start: t, last: t, hasTime: hasTime}
			}
			cur.events = append(cur.events, rec)
			if hasTime {
				cur.last = t
			}
			if cmd.EndsWith != nil && c.matchBoundary(cmd.EndsWith, rec) {
				closeCurrent(true)
			}
		}
		closeCurrent(false)
	}

	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].hasTime && txns[j].hasTime {
			return txns[i].start.Before(txns[j].start)
		}
		return txns[i].hasTime && !txns[j].hasTime
	})

	evict := cmd.KeepEvicted != nil && !*cmd.KeepEvicted
	markClosed := cmd.KeepEvicted != nil && *cmd.KeepEvicted

	out := make([]LogRecord, 0, len(txns))
	for _, txn := range txns {
		if evict && !txn.complete {
			continue
		}
		out = append(out, txn.record(markClosed))
	}
	return out
}

// record builds the output record of a transaction
func (t *transaction) record(markClosed bool) LogRecord {
	row := copyRecord(t.events[0], 4)

	raws := make([]string, 0, len(t.events))
	for _, ev := range t.events {
		if raw, ok := ev["_raw"]; ok && raw != nil {
			raws = append(raws, valueToString(raw))
		}
	}
	if len(raws) > 0 {
		row["_raw"] = strings.Join(raws, "\n")
	}

	duration := 0.0
	if t.hasTime {
		duration = t.last.Sub(t.start).Seconds()
	}
	row["duration"] = duration
	row["eventcount"] = int64(len(t.events))
	if markClosed {
		closed := int64(0)
		if t.complete {
			closed = 1
		}
		row["closed_txn"] = closed
	}
	return row
}

// sortByTime returns records ordered by _time; records without a time
// keep their relative order after the timed ones
func sortByTime(records []LogRecord) []LogRecord {
	type timed struct {
		rec LogRecord
		t   time.Time
		ok  bool
	}
	items := make([]timed, len(records))
	for i, rec := range records {
		t, ok := toTime(rec["_time"])
		items[i] = timed{rec: rec, t: t, ok: ok}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ok && items[j].ok {
			return items[i].t.Before(items[j].t)
		}
		return items[i].ok && !items[j].ok
	})
	out := make([]LogRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}
