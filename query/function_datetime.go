package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Date/Time Functions

// timeLayouts are the string forms accepted for timestamps
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime converts a timestamp value: a time.Time, epoch seconds, or a
// string in one of the common ISO forms. Times are in UTC.
func toTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return val.UTC(), true
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	if secs, ok := toFloat64(v); ok {
		return epochToTime(secs), true
	}
	return time.Time{}, false
}

// epochToTime converts fractional unix seconds
func epochToTime(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// timeToEpoch converts to fractional unix seconds
func timeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// TimeFunc returns the wall-clock time in epoch seconds, read on each call
type TimeFunc struct{}

func (f *TimeFunc) Name() string  { return "time" }
func (f *TimeFunc) MinArity() int { return 0 }
func (f *TimeFunc) MaxArity() int { return 0 }
func (f *TimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	return timeToEpoch(time.Now()), nil
}

// StrftimeFunc formats a timestamp: strftime(X, format)
type StrftimeFunc struct{}

func (f *StrftimeFunc) Name() string  { return "strftime" }
func (f *StrftimeFunc) MinArity() int { return 2 }
func (f *StrftimeFunc) MaxArity() int { return 2 }
func (f *StrftimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	t, ok := toTime(args[0])
	if !ok {
		return nil, NewTypeError(fmt.Sprintf("strftime: %q is not a timestamp", valueToString(args[0])))
	}
	return strftime(t, valueToString(args[1])), nil
}

// strftimeLayouts maps directives to Go layouts
var strftimeLayouts = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'z': "-0700",
	'Z': "MST",
	'F': "2006-01-02",
	'T': "15:04:05",
	'D': "01/02/06",
	'c': "Mon Jan _2 15:04:05 2006",
	'x': "01/02/06",
	'X': "15:04:05",
}

// strftime formats t with C-style % directives. Unknown directives are
// copied through.
func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' || i+1 >= len(format) {
			b.WriteByte(ch)
			continue
		}
		i++
		d := format[i]

		// %3N, %6N, %9N: subsecond digits
		if d >= '1' && d <= '9' && i+1 < len(format) && format[i+1] == 'N' {
			digits := int(d - '0')
			ns := fmt.Sprintf("%09d", t.Nanosecond())
			b.WriteString(ns[:digits])
			i++
			continue
		}

		switch d {
		case '%':
			b.WriteByte('%')
		case 's':
			b.WriteString(strconv.FormatInt(t.Unix(), 10))
		case 'N':
			b.WriteString(fmt.Sprintf("%03d", t.Nanosecond()/1e6))
		case 'w':
			b.WriteString(strconv.Itoa(int(t.Weekday())))
		case 'u':
			wd := int(t.Weekday())
			if wd == 0 {
				wd = 7
			}
			b.WriteString(strconv.Itoa(wd))
		case 'V':
			_, week := t.ISOWeek()
			b.WriteString(fmt.Sprintf("%02d", week))
		default:
			layout, ok := strftimeLayouts[d]
			if !ok {
				b.WriteByte('%')
				b.WriteByte(d)
				continue
			}
			b.WriteString(t.Format(layout))
		}
	}
	return b.String()
}

// StrptimeFunc parses a string into epoch seconds: strptime(X, format).
// A value that does not match the format gives null.
type StrptimeFunc struct{}

func (f *StrptimeFunc) Name() string  { return "strptime" }
func (f *StrptimeFunc) MinArity() int { return 2 }
func (f *StrptimeFunc) MaxArity() int { return 2 }
func (f *StrptimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	t, err := strptime(valueToString(args[0]), valueToString(args[1]))
	if err != nil {
		return nil, nil
	}
	return timeToEpoch(t), nil
}

// strptime parses value with C-style % directives
func strptime(value, format string) (time.Time, error) {
	if format == "%s" {
		secs, ok := parseNumber(value)
		if !ok {
			return time.Time{}, fmt.Errorf("%q is not epoch seconds", value)
		}
		return epochToTime(secs), nil
	}

	var layout strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' || i+1 >= len(format) {
			layout.WriteByte(ch)
			continue
		}
		i++
		d := format[i]
		if d >= '1' && d <= '9' && i+1 < len(format) && format[i+1] == 'N' {
			layout.WriteString(strings.Repeat("0", int(d-'0')))
			i++
			continue
		}
		switch d {
		case '%':
			layout.WriteByte('%')
		case 'N':
			layout.WriteString("000")
		default:
			l, ok := strftimeLayouts[d]
			if !ok {
				return time.Time{}, fmt.Errorf("unsupported directive %%%c", d)
			}
			layout.WriteString(l)
		}
	}
	t, err := time.Parse(layout.String(), strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("strptime: %w", err)
	}
	return t.UTC(), nil
}

// RelativeTimeFunc applies a relative time modifier to a timestamp:
// relative_time(X, "-1d@d")
type RelativeTimeFunc struct{}

func (f *RelativeTimeFunc) Name() string  { return "relative_time" }
func (f *RelativeTimeFunc) MinArity() int { return 2 }
func (f *RelativeTimeFunc) MaxArity() int { return 2 }
func (f *RelativeTimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	t, ok := toTime(args[0])
	if !ok {
		return nil, NewTypeError(fmt.Sprintf("relative_time: %q is not a timestamp", valueToString(args[0])))
	}
	out, err := relativeTime(t, valueToString(args[1]))
	if err != nil {
		return nil, NewInvalidArgumentError("relative_time", err.Error())
	}
	return timeToEpoch(out), nil
}

// relativeTime applies a modifier of the form [+-N<unit>]...[@<unit>]
func relativeTime(t time.Time, modifier string) (time.Time, error) {
	mod := strings.TrimSpace(modifier)
	if mod == "" || mod == "now" {
		return t, nil
	}

	offsets, snap, _ := strings.Cut(mod, "@")
	for offsets != "" {
		sign := 1
		switch offsets[0] {
		case '+':
			offsets = offsets[1:]
		case '-':
			sign = -1
			offsets = offsets[1:]
		default:
			return t, fmt.Errorf("invalid time modifier %q", modifier)
		}

		i := 0
		for i < len(offsets) && offsets[i] >= '0' && offsets[i] <= '9' {
			i++
		}
		n := 1
		if i > 0 {
			n, _ = strconv.Atoi(offsets[:i])
		}
		j := i
		for j < len(offsets) && offsets[j] != '+' && offsets[j] != '-' {
			j++
		}
		unit := offsets[i:j]
		offsets = offsets[j:]

		var err error
		t, err = addTimeUnit(t, sign*n, unit)
		if err != nil {
			return t, err
		}
	}

	if snap != "" {
		return snapTime(t, snap)
	}
	return t, nil
}

// canonicalUnit maps unit spellings to s, m, h, d, w, mon, q, y
func canonicalUnit(unit string) (string, bool) {
	switch unit {
	case "s", "sec", "secs", "second", "seconds":
		return "s", true
	case "m", "min", "mins", "minute", "minutes":
		return "m", true
	case "h", "hr", "hrs", "hour", "hours":
		return "h", true
	case "d", "day", "days":
		return "d", true
	case "w", "week", "weeks":
		return "w", true
	case "mon", "month", "months", "M":
		return "mon", true
	case "q", "qtr", "qtrs", "quarter", "quarters":
		return "q", true
	case "y", "yr", "yrs", "year", "years":
		return "y", true
	}
	return "", false
}

func addTimeUnit(t time.Time, n int, unit string) (time.Time, error) {
	u, ok := canonicalUnit(unit)
	if !ok {
		return t, fmt.Errorf("unknown time unit %q", unit)
	}
	switch u {
	case "s":
		return t.Add(time.Duration(n) * time.Second), nil
	case "m":
		return t.Add(time.Duration(n) * time.Minute), nil
	case "h":
		return t.Add(time.Duration(n) * time.Hour), nil
	case "d":
		return t.AddDate(0, 0, n), nil
	case "w":
		return t.AddDate(0, 0, 7*n), nil
	case "mon":
		return t.AddDate(0, n, 0), nil
	case "q":
		return t.AddDate(0, 3*n, 0), nil
	}
	return t.AddDate(n, 0, 0), nil
}

// snapTime truncates t to the start of a unit. w0..w6 snap to the
// previous given weekday (0 is Sunday).
func snapTime(t time.Time, snap string) (time.Time, error) {
	t = t.UTC()
	if len(snap) == 2 && snap[0] == 'w' && snap[1] >= '0' && snap[1] <= '6' {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		back := (int(day.Weekday()) - int(snap[1]-'0') + 7) % 7
		return day.AddDate(0, 0, -back), nil
	}

	u, ok := canonicalUnit(snap)
	if !ok {
		return t, fmt.Errorf("unknown snap unit %q", snap)
	}
	switch u {
	case "s":
		return t.Truncate(time.Second), nil
	case "m":
		return t.Truncate(time.Minute), nil
	case "h":
		return t.Truncate(time.Hour), nil
	case "d":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case "w":
		return snapTime(t, "w0")
	case "mon":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case "q":
		m := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), m, 1, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
}
