package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Conversion and Conditional Functions

// ToStringFunc converts a value to a string: tostring(X [, format]).
// format is "hex", "commas" or "duration".
type ToStringFunc struct{}

func (f *ToStringFunc) Name() string  { return "tostring" }
func (f *ToStringFunc) MinArity() int { return 1 }
func (f *ToStringFunc) MaxArity() int { return 2 }
func (f *ToStringFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	if len(args) == 1 {
		return valueToString(args[0]), nil
	}

	format := strings.ToLower(valueToString(args[1]))
	n, ok := toFloat64(args[0])
	if !ok {
		return valueToString(args[0]), nil
	}
	switch format {
	case "hex":
		return fmt.Sprintf("0x%X", int64(n)), nil
	case "commas":
		return formatCommas(n), nil
	case "duration":
		return formatDuration(int64(n)), nil
	}
	return nil, NewInvalidArgumentError("tostring", fmt.Sprintf("unknown format %q, expected hex, commas or duration", format))
}

// formatCommas renders n with thousands separators and at most two
// decimals
func formatCommas(n float64) string {
	neg := n < 0
	n = math.Abs(n)
	whole := int64(n)
	frac := roundTo(n-float64(whole), 2)
	if frac >= 1 {
		whole++
		frac = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if frac > 0 {
		b.WriteString(strings.TrimPrefix(strconv.FormatFloat(frac, 'f', -1, 64), "0"))
	}
	return b.String()
}

// formatDuration renders seconds as [D+]HH:MM:SS
func formatDuration(secs int64) string {
	neg := secs < 0
	if neg {
		secs = -secs
	}
	days := secs / 86400
	secs %= 86400
	s := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	if days > 0 {
		s = fmt.Sprintf("%d+%s", days, s)
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ToNumberFunc converts a string to a number: tonumber(X [, base]).
// Values that do not parse give null.
type ToNumberFunc struct{}

func (f *ToNumberFunc) Name() string  { return "tonumber" }
func (f *ToNumberFunc) MinArity() int { return 1 }
func (f *ToNumberFunc) MaxArity() int { return 2 }
func (f *ToNumberFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	if len(args) == 2 {
		base, err := argInt("tonumber", args, 1)
		if err != nil {
			return nil, err
		}
		if base < 2 || base > 36 {
			return nil, NewInvalidArgumentError("tonumber", fmt.Sprintf("base must be between 2 and 36, got %d", base))
		}
		s := strings.TrimSpace(valueToString(args[0]))
		if base == 16 {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		}
		n, err := strconv.ParseInt(s, base, 64)
		if err != nil {
			return nil, nil
		}
		return float64(n), nil
	}
	if b, ok := args[0].(bool); ok {
		if b {
			return float64(1), nil
		}
		return float64(0), nil
	}
	n, ok := toFloat64(args[0])
	if !ok {
		return nil, nil
	}
	return n, nil
}

// IfFunc returns X when the condition is truthy, else Y: if(cond, X, Y)
type IfFunc struct{}

func (f *IfFunc) Name() string  { return "if" }
func (f *IfFunc) MinArity() int { return 3 }
func (f *IfFunc) MaxArity() int { return 3 }
func (f *IfFunc) Evaluate(args []interface{}) (interface{}, error) {
	if isTruthy(args[0]) {
		return args[1], nil
	}
	return args[2], nil
}

// CaseFunc returns the value paired with the first truthy condition:
// case(cond1, value1, cond2, value2, ...)
type CaseFunc struct{}

func (f *CaseFunc) Name() string  { return "case" }
func (f *CaseFunc) MinArity() int { return 2 }
func (f *CaseFunc) MaxArity() int { return -1 }
func (f *CaseFunc) Evaluate(args []interface{}) (interface{}, error) {
	if len(args)%2 != 0 {
		return nil, NewInvalidArgumentError("case", "case expects condition/value pairs")
	}
	for i := 0; i < len(args); i += 2 {
		if isTruthy(args[i]) {
			return args[i+1], nil
		}
	}
	return nil, nil
}

// ValidateFunc returns the message paired with the first false
// condition: validate(cond1, msg1, ...). All true gives null.
type ValidateFunc struct{}

func (f *ValidateFunc) Name() string  { return "validate" }
func (f *ValidateFunc) MinArity() int { return 2 }
func (f *ValidateFunc) MaxArity() int { return -1 }
func (f *ValidateFunc) Evaluate(args []interface{}) (interface{}, error) {
	if len(args)%2 != 0 {
		return nil, NewInvalidArgumentError("validate", "validate expects condition/message pairs")
	}
	for i := 0; i < len(args); i += 2 {
		if !isTruthy(args[i]) {
			return args[i+1], nil
		}
	}
	return nil, nil
}

// CoalesceFunc returns the first non-null argument
type CoalesceFunc struct{}

func (f *CoalesceFunc) Name() string  { return "coalesce" }
func (f *CoalesceFunc) MinArity() int { return 1 }
func (f *CoalesceFunc) MaxArity() int { return -1 }
func (f *CoalesceFunc) Evaluate(args []interface{}) (interface{}, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

// NullIfFunc returns null if the two arguments are equal, else the first
type NullIfFunc struct{}

func (f *NullIfFunc) Name() string  { return "nullif" }
func (f *NullIfFunc) MinArity() int { return 2 }
func (f *NullIfFunc) MaxArity() int { return 2 }
func (f *NullIfFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] != nil && compare(args[0], "=", args[1]) {
		return nil, nil
	}
	return args[0], nil
}

// NullFunc returns null
type NullFunc struct{}

func (f *NullFunc) Name() string  { return "null" }
func (f *NullFunc) MinArity() int { return 0 }
func (f *NullFunc) MaxArity() int { return 0 }
func (f *NullFunc) Evaluate(args []interface{}) (interface{}, error) {
	return nil, nil
}

// IsNullFunc implements isnull and isnotnull
type IsNullFunc struct {
	negate bool
}

func (f *IsNullFunc) Name() string {
	if f.negate {
		return "isnotnull"
	}
	return "isnull"
}
func (f *IsNullFunc) MinArity() int { return 1 }
func (f *IsNullFunc) MaxArity() int { return 1 }
func (f *IsNullFunc) Evaluate(args []interface{}) (interface{}, error) {
	return (args[0] == nil) != f.negate, nil
}

// BoolFunc implements true() and false()
type BoolFunc struct {
	value bool
}

func (f *BoolFunc) Name() string  { return strconv.FormatBool(f.value) }
func (f *BoolFunc) MinArity() int { return 0 }
func (f *BoolFunc) MaxArity() int { return 0 }
func (f *BoolFunc) Evaluate(args []interface{}) (interface{}, error) {
	return f.value, nil
}

// TypeCheckFunc implements the type predicates isnum, isint, isstr and
// isbool. Numeric strings count as numbers.
type TypeCheckFunc struct {
	name string
}

func (f *TypeCheckFunc) Name() string  { return f.name }
func (f *TypeCheckFunc) MinArity() int { return 1 }
func (f *TypeCheckFunc) MaxArity() int { return 1 }
func (f *TypeCheckFunc) Evaluate(args []interface{}) (interface{}, error) {
	v := args[0]
	switch f.name {
	case "isnum":
		return isNumeric(v), nil
	case "isint":
		n, ok := numericValue(v)
		return ok && n == math.Trunc(n), nil
	case "isstr":
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		_, num := parseNumber(s)
		return !num, nil
	case "isbool":
		switch val := v.(type) {
		case bool:
			return true, nil
		case string:
			l := strings.ToLower(val)
			return l == "true" || l == "false", nil
		}
		return false, nil
	}
	return nil, NewRuntimeError("", fmt.Errorf("unknown type predicate %q", f.name))
}

// numericValue converts numbers and numeric strings, but not timestamps
func numericValue(v interface{}) (float64, bool) {
	if _, ok := v.(time.Time); ok {
		return 0, false
	}
	return toFloat64(v)
}

func isNumeric(v interface{}) bool {
	_, ok := numericValue(v)
	return ok
}

// TypeOfFunc names the type of its argument: Number, String, Boolean,
// Multivalue, Object, Time or Invalid for null
type TypeOfFunc struct{}

func (f *TypeOfFunc) Name() string  { return "typeof" }
func (f *TypeOfFunc) MinArity() int { return 1 }
func (f *TypeOfFunc) MaxArity() int { return 1 }
func (f *TypeOfFunc) Evaluate(args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case nil:
		return "Invalid", nil
	case bool:
		return "Boolean", nil
	case string:
		if _, ok := parseNumber(v); ok {
			return "Number", nil
		}
		return "String", nil
	case []interface{}, []string:
		return "Multivalue", nil
	case map[string]interface{}:
		return "Object", nil
	case time.Time:
		return "Time", nil
	}
	if isNumeric(args[0]) {
		return "Number", nil
	}
	return "Invalid", nil
}
