package reader

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timeFields are tried in order when no time field is configured
var timeFields = []string{"_time", "timestamp", "time", "@timestamp"}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"02/Jan/2006:15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"2006-01-02",
}

// parseTime converts a timestamp value to UTC. Strings are tried against
// the known layouts and then as epoch numbers. Epoch values above 1e12
// are taken as milliseconds.
func parseTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochTime(f)
		}
	case int64:
		return epochTime(float64(val))
	case int32:
		return epochTime(float64(val))
	case int:
		return epochTime(float64(val))
	case float64:
		return epochTime(val)
	}
	return time.Time{}, false
}

func epochTime(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, false
	}
	if f > 1e12 {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// normalizeTime sets _time from the configured time field, or from the
// first known time field. Values that do not parse leave the record
// unchanged.
func normalizeTime(records []map[string]interface{}, field string) {
	candidates := timeFields
	if field != "" {
		candidates = []string{field}
	}
	for _, rec := range records {
		for _, name := range candidates {
			v, ok := rec[name]
			if !ok || v == nil {
				continue
			}
			if t, ok := parseTime(v); ok {
				rec["_time"] = t
				break
			}
		}
	}
}
