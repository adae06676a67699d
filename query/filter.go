package query

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
)

// abs returns the absolute value of a float64
func abs(x float64) float64 {
	return math.Abs(x)
}

// toFloat64 converts a value to float64 if possible. Numeric strings and
// timestamps (as unix seconds) convert; booleans do not.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, !math.IsNaN(val)
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case time.Time:
		return float64(val.UnixNano()) / 1e9, true
	case string:
		return parseNumber(val)
	default:
		return 0, false
	}
}

// parseNumber parses a decimal number string; words such as "inf" or
// "nan" are not numbers here
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	c := s[0]
	if c != '-' && c != '+' && c != '.' && (c < '0' || c > '9') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// valueToString renders any record value as text. Multivalues join with a
// space; maps and slices of other shapes render as JSON.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = valueToString(item)
		}
		return strings.Join(parts, " ")
	case []string:
		return strings.Join(val, " ")
	case map[string]interface{}:
		b, err := oj.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		if n, ok := toFloat64(v); ok {
			return formatFloat(n)
		}
		b, err := oj.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isTruthy follows the language's loose truthiness: nil, false, 0, NaN
// and "" are false
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	case []interface{}:
		return len(val) > 0
	}
	if n, ok := toFloat64(v); ok {
		return n != 0
	}
	return true
}

// compareNumbers compares two numbers
func compareNumbers(left float64, operator string, right float64) bool {
	switch operator {
	case "=":
		return numbersEqual(left, right)
	case "!=":
		return !numbersEqual(left, right)
	case "<":
		return left < right
	case ">":
		return left > right
	case "<=":
		return left <= right || numbersEqual(left, right)
	case ">=":
		return left >= right || numbersEqual(left, right)
	default:
		return false
	}
}

// numbersEqual uses a relative epsilon for large numbers, absolute for small
func numbersEqual(left, right float64) bool {
	const epsilon = 1e-9 // Use small epsilon for floating point comparison
	diff := abs(left - right)
	maxAbs := max(abs(left), abs(right))
	return diff < epsilon*max(1.0, maxAbs)
}

// compareStrings compares two strings (case-sensitive)
func compareStrings(left string, operator string, right string) bool {
	switch operator {
	case "=":
		return left == right
	case "!=":
		return left != right
	case "<":
		return left < right
	case ">":
		return left > right
	case "<=":
		return left <= right
	case ">=":
		return left >= right
	default:
		return false
	}
}

// compare applies a comparison operator. Values compare numerically when
// both convert to numbers, otherwise as strings. nil is only equal to
// nil and is never ordered.
func compare(left interface{}, operator string, right interface{}) bool {
	if left == nil || right == nil {
		switch operator {
		case "=":
			return left == nil && right == nil
		case "!=":
			return !(left == nil && right == nil)
		}
		return false
	}

	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			return compareStrings(strconv.FormatBool(lb), operator, strconv.FormatBool(rb))
		}
	}

	leftNum, leftIsNum := toFloat64(left)
	rightNum, rightIsNum := toFloat64(right)
	if leftIsNum && rightIsNum {
		return compareNumbers(leftNum, operator, rightNum)
	}

	return compareStrings(valueToString(left), operator, valueToString(right))
}

// compareValues orders two values for sorting: numbers before strings,
// nil last. Returns -1, 0 or +1.
func compareValues(a, b interface{}) int {
	// Handle nil values
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}

	// Try numeric comparison
	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	switch {
	case aIsNum && bIsNum:
		if aNum < bNum {
			return -1
		}
		if aNum > bNum {
			return 1
		}
		return 0
	case aIsNum:
		return -1
	case bIsNum:
		return 1
	}

	return strings.Compare(valueToString(a), valueToString(b))
}

// getField looks up a field. A dotted name that is not a key itself
// walks nested objects.
func getField(rec LogRecord, name string) (interface{}, bool) {
	if v, ok := rec[name]; ok {
		return v, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(rec)
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// copyRecord returns a shallow copy with room for extra fields
func copyRecord(rec LogRecord, extra int) LogRecord {
	out := make(LogRecord, len(rec)+extra)
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// wildcardRegexp translates a pattern where * matches anything into a
// case-insensitive regex, escaping every other metacharacter. anchored
// selects whole-value matching.
func (c *execContext) wildcardRegexp(pattern string, anchored bool) *regexp.Regexp {
	key := "u:" + pattern
	if anchored {
		key = "a:" + pattern
	}
	if re, ok := c.wildcards[key]; ok {
		return re
	}
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	src := "(?is)" + strings.Join(parts, ".*")
	if anchored {
		src = "(?is)^" + strings.Join(parts, ".*") + "$"
	}
	re := regexp.MustCompile(src)
	c.wildcards[key] = re
	return re
}

// executeSearch keeps records matching the condition chain. The chain is
// folded left to right: the operator after condition i combines the
// result so far with condition i+1.
func (c *execContext) executeSearch(cmd *SearchCommand, records []LogRecord) []LogRecord {
	if len(cmd.Conditions) == 0 {
		return records
	}

	out := make([]LogRecord, 0, len(records))
	for _, rec := range records {
		result := true
		prev := LogicalNone
		for _, cond := range cmd.Conditions {
			m := c.matchCondition(cond, rec)
			if cond.Negated {
				m = !m
			}
			if prev == LogicalOr {
				result = result || m
			} else {
				result = result && m
			}
			prev = cond.LogicalOp
		}
		if result {
			out = append(out, rec)
		}
	}
	return out
}

func (c *execContext) matchCondition(cond SearchCondition, rec LogRecord) bool {
	if cond.Field == "" {
		return c.matchAnyField(cond.Value, rec)
	}

	value, exists := getField(rec, cond.Field)

	switch cond.Operator {
	case "IN":
		if !exists {
			return false
		}
		for _, v := range cond.Values {
			if c.matchValue(value, v) {
				return true
			}
		}
		return false
	case "=":
		return exists && c.matchValue(value, cond.Value)
	case "!=":
		return !exists || !c.matchValue(value, cond.Value)
	}

	if !exists || value == nil {
		return false
	}
	return compare(value, cond.Operator, cond.Value)
}

// matchValue tests one field value against a search value: wildcards
// match the whole value, numbers compare numerically, everything else is
// a case-insensitive string match
func (c *execContext) matchValue(value interface{}, want string) bool {
	if mv, ok := value.([]interface{}); ok {
		for _, item := range mv {
			if c.matchValue(item, want) {
				return true
			}
		}
		return false
	}
	if strings.Contains(want, "*") {
		return c.wildcardRegexp(want, true).MatchString(valueToString(value))
	}
	if n, ok := toFloat64(value); ok {
		if w, ok := parseNumber(want); ok {
			return numbersEqual(n, w)
		}
	}
	return strings.EqualFold(valueToString(value), want)
}

// matchAnyField does an unscoped case-insensitive substring match over
// every value of the record, _raw included
func (c *execContext) matchAnyField(want string, rec LogRecord) bool {
	if strings.Trim(want, "*") == "" {
		return true
	}
	if strings.Contains(want, "*") {
		re := c.wildcardRegexp(want, false)
		for _, v := range rec {
			if re.MatchString(valueToString(v)) {
				return true
			}
		}
		return false
	}
	needle := strings.ToLower(want)
	for _, v := range rec {
		if strings.Contains(strings.ToLower(valueToString(v)), needle) {
			return true
		}
	}
	return false
}

// executeWhere keeps records whose expression is truthy. A record whose
// evaluation fails is dropped and counted in a warning.
func (c *execContext) executeWhere(cmd *WhereCommand, records []LogRecord) []LogRecord {
	out := make([]LogRecord, 0, len(records))
	var rowErrs rowErrors
	for _, rec := range records {
		v, err := c.evaluate(cmd.Expr, rec)
		if err != nil {
			rowErrs.add(err)
			continue
		}
		if isTruthy(v) {
			out = append(out, rec)
		}
	}
	c.warnRows("where", rowErrs)
	return out
}

// executeRegex keeps (or with !=, drops) records whose field matches
func (c *execContext) executeRegex(cmd *RegexCommand, records []LogRecord) ([]LogRecord, error) {
	re, err := compileRegex(cmd.Pattern)
	if err != nil {
		return nil, NewRegexError("regex", cmd.Pattern, err)
	}

	out := make([]LogRecord, 0, len(records))
	for _, rec := range records {
		v, ok := getField(rec, cmd.Field)
		matched := ok && re.MatchString(valueToString(v))
		if matched != cmd.Negate {
			out = append(out, rec)
		}
	}
	return out, nil
}

// compileRegex compiles a user pattern. Go accepts (?<name>...) as well as
// (?P<name>...).
func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(pattern)
}

// likeRegexp translates SQL LIKE wildcards (% and _) into a regex
func (c *execContext) likeRegexp(pattern string) *regexp.Regexp {
	key := "like:" + pattern
	if re, ok := c.wildcards[key]; ok {
		return re
	}
	re := regexp.MustCompile(likePattern(pattern))
	c.wildcards[key] = re
	return re
}
