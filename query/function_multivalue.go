package query

import (
	"sort"
	"strings"
)

// Multivalue Functions

// MvCountFunc returns the number of values of a field
type MvCountFunc struct{}

func (f *MvCountFunc) Name() string  { return "mvcount" }
func (f *MvCountFunc) MinArity() int { return 1 }
func (f *MvCountFunc) MaxArity() int { return 1 }
func (f *MvCountFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int64(len(toMultivalue(args[0]))), nil
}

// MvIndexFunc returns a value or an inclusive range of values:
// mvindex(X, start [, end]). Indexes are 0-based; negative counts from
// the end.
type MvIndexFunc struct{}

func (f *MvIndexFunc) Name() string  { return "mvindex" }
func (f *MvIndexFunc) MinArity() int { return 2 }
func (f *MvIndexFunc) MaxArity() int { return 3 }
func (f *MvIndexFunc) Evaluate(args []interface{}) (interface{}, error) {
	values := toMultivalue(args[0])
	if len(values) == 0 {
		return nil, nil
	}
	start, err := argInt("mvindex", args, 1)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start += len(values)
	}
	if start < 0 || start >= len(values) {
		return nil, nil
	}
	if len(args) == 2 {
		return values[start], nil
	}

	end, err := argInt("mvindex", args, 2)
	if err != nil {
		return nil, err
	}
	if end < 0 {
		end += len(values)
	}
	if end >= len(values) {
		end = len(values) - 1
	}
	if end < start {
		return nil, nil
	}
	out := make([]interface{}, end-start+1)
	copy(out, values[start:end+1])
	return multivalueResult(out), nil
}

// MvAppendFunc concatenates values and multivalues, skipping nulls
type MvAppendFunc struct{}

func (f *MvAppendFunc) Name() string  { return "mvappend" }
func (f *MvAppendFunc) MinArity() int { return 1 }
func (f *MvAppendFunc) MaxArity() int { return -1 }
func (f *MvAppendFunc) Evaluate(args []interface{}) (interface{}, error) {
	var out []interface{}
	for _, arg := range args {
		for _, v := range toMultivalue(arg) {
			if v != nil {
				out = append(out, v)
			}
		}
	}
	return multivalueResult(out), nil
}

// MvDedupFunc removes duplicate values, keeping first occurrences
type MvDedupFunc struct{}

func (f *MvDedupFunc) Name() string  { return "mvdedup" }
func (f *MvDedupFunc) MinArity() int { return 1 }
func (f *MvDedupFunc) MaxArity() int { return 1 }
func (f *MvDedupFunc) Evaluate(args []interface{}) (interface{}, error) {
	seen := make(map[string]bool)
	var out []interface{}
	for _, v := range toMultivalue(args[0]) {
		key := valueToString(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return multivalueResult(out), nil
}

// MvSortFunc sorts values lexicographically
type MvSortFunc struct{}

func (f *MvSortFunc) Name() string  { return "mvsort" }
func (f *MvSortFunc) MinArity() int { return 1 }
func (f *MvSortFunc) MaxArity() int { return 1 }
func (f *MvSortFunc) Evaluate(args []interface{}) (interface{}, error) {
	values := toMultivalue(args[0])
	out := make([]interface{}, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool {
		return valueToString(out[i]) < valueToString(out[j])
	})
	return multivalueResult(out), nil
}

// MvJoinFunc joins values with a delimiter: mvjoin(X, delim)
type MvJoinFunc struct{}

func (f *MvJoinFunc) Name() string  { return "mvjoin" }
func (f *MvJoinFunc) MinArity() int { return 2 }
func (f *MvJoinFunc) MaxArity() int { return 2 }
func (f *MvJoinFunc) Evaluate(args []interface{}) (interface{}, error) {
	values := toMultivalue(args[0])
	if len(values) == 0 {
		return nil, nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valueToString(v)
	}
	return strings.Join(parts, valueToString(args[1])), nil
}

// MvFindFunc returns the index of the first value matching a regex, or
// null: mvfind(X, regex)
type MvFindFunc struct{}

func (f *MvFindFunc) Name() string  { return "mvfind" }
func (f *MvFindFunc) MinArity() int { return 2 }
func (f *MvFindFunc) MaxArity() int { return 2 }
func (f *MvFindFunc) Evaluate(args []interface{}) (interface{}, error) {
	pattern := valueToString(args[1])
	re, err := compileRegex(pattern)
	if err != nil {
		return nil, NewRegexError("mvfind", pattern, err)
	}
	for i, v := range toMultivalue(args[0]) {
		if re.MatchString(valueToString(v)) {
			return int64(i), nil
		}
	}
	return nil, nil
}

// maxRangeValues bounds the size of an mvrange result
const maxRangeValues = 10000

// MvRangeFunc builds a numeric sequence: mvrange(start, end [, step]).
// end is exclusive.
type MvRangeFunc struct{}

func (f *MvRangeFunc) Name() string  { return "mvrange" }
func (f *MvRangeFunc) MinArity() int { return 2 }
func (f *MvRangeFunc) MaxArity() int { return 3 }
func (f *MvRangeFunc) Evaluate(args []interface{}) (interface{}, error) {
	start, err := argNumber("mvrange", args, 0)
	if err != nil {
		return nil, err
	}
	end, err := argNumber("mvrange", args, 1)
	if err != nil {
		return nil, err
	}
	step := 1.0
	if len(args) == 3 {
		if step, err = argNumber("mvrange", args, 2); err != nil {
			return nil, err
		}
	}
	if step == 0 {
		return nil, NewInvalidArgumentError("mvrange", "mvrange step must not be zero")
	}

	var out []interface{}
	for v := start; (step > 0 && v < end) || (step < 0 && v > end); v += step {
		if len(out) >= maxRangeValues {
			return nil, NewInvalidArgumentError("mvrange", "mvrange produces too many values")
		}
		out = append(out, v)
	}
	return multivalueResult(out), nil
}

// MvZipFunc pairs two multivalues element-wise: mvzip(X, Y [, delim]).
// The result is as long as the shorter input.
type MvZipFunc struct{}

func (f *MvZipFunc) Name() string  { return "mvzip" }
func (f *MvZipFunc) MinArity() int { return 2 }
func (f *MvZipFunc) MaxArity() int { return 3 }
func (f *MvZipFunc) Evaluate(args []interface{}) (interface{}, error) {
	left := toMultivalue(args[0])
	right := toMultivalue(args[1])
	delim := ","
	if len(args) == 3 {
		delim = valueToString(args[2])
	}
	n := min(len(left), len(right))
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = valueToString(left[i]) + delim + valueToString(right[i])
	}
	return multivalueResult(out), nil
}
