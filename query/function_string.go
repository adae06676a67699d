package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String Functions

// LenFunc returns the character length of a string
type LenFunc struct{}

func (f *LenFunc) Name() string  { return "len" }
func (f *LenFunc) MinArity() int { return 1 }
func (f *LenFunc) MaxArity() int { return 1 }
func (f *LenFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return int64(utf8.RuneCountInString(valueToString(args[0]))), nil
}

// UpperFunc converts a string to uppercase
type UpperFunc struct{}

func (f *UpperFunc) Name() string  { return "upper" }
func (f *UpperFunc) MinArity() int { return 1 }
func (f *UpperFunc) MaxArity() int { return 1 }
func (f *UpperFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToUpper(valueToString(args[0])), nil
}

// LowerFunc converts a string to lowercase
type LowerFunc struct{}

func (f *LowerFunc) Name() string  { return "lower" }
func (f *LowerFunc) MinArity() int { return 1 }
func (f *LowerFunc) MaxArity() int { return 1 }
func (f *LowerFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToLower(valueToString(args[0])), nil
}

// SubstrFunc extracts a substring: substr(X, start [, length]). start is
// 1-based; a negative start counts from the end.
type SubstrFunc struct{}

func (f *SubstrFunc) Name() string  { return "substr" }
func (f *SubstrFunc) MinArity() int { return 2 }
func (f *SubstrFunc) MaxArity() int { return 3 }
func (f *SubstrFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	runes := []rune(valueToString(args[0]))

	start, err := argInt("substr", args, 1)
	if err != nil {
		return nil, err
	}
	switch {
	case start < 0:
		start = len(runes) + start
	case start > 0:
		start--
	}
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		return "", nil
	}

	end := len(runes)
	if len(args) == 3 {
		n, err := argInt("substr", args, 2)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, NewInvalidArgumentError("substr", "substr length must not be negative")
		}
		if start+n < end {
			end = start + n
		}
	}
	return string(runes[start:end]), nil
}

// TrimFunc trims characters from one or both ends of a string:
// trim(X [, chars]). The default set is whitespace.
type TrimFunc struct {
	name string
}

func (f *TrimFunc) Name() string  { return f.name }
func (f *TrimFunc) MinArity() int { return 1 }
func (f *TrimFunc) MaxArity() int { return 2 }
func (f *TrimFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str := valueToString(args[0])
	cutset := " \t\r\n"
	if len(args) == 2 {
		cutset = valueToString(args[1])
	}
	switch f.name {
	case "ltrim":
		return strings.TrimLeft(str, cutset), nil
	case "rtrim":
		return strings.TrimRight(str, cutset), nil
	}
	return strings.Trim(str, cutset), nil
}

// ReplaceFunc replaces regex matches: replace(X, regex, replacement).
// Backreferences are written \1.
type ReplaceFunc struct{}

var backrefPattern = regexp.MustCompile(`\\(\d)`)

func (f *ReplaceFunc) Name() string  { return "replace" }
func (f *ReplaceFunc) MinArity() int { return 3 }
func (f *ReplaceFunc) MaxArity() int { return 3 }
func (f *ReplaceFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	pattern := valueToString(args[1])
	re, err := compileRegex(pattern)
	if err != nil {
		return nil, NewRegexError("replace", pattern, err)
	}
	repl := backrefPattern.ReplaceAllString(valueToString(args[2]), "$${$1}")
	return re.ReplaceAllString(valueToString(args[0]), repl), nil
}

// SplitFunc splits a string into a multivalue: split(X, delim)
type SplitFunc struct{}

func (f *SplitFunc) Name() string  { return "split" }
func (f *SplitFunc) MinArity() int { return 2 }
func (f *SplitFunc) MaxArity() int { return 2 }
func (f *SplitFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	str := valueToString(args[0])
	delim := valueToString(args[1])

	var parts []string
	if delim == "" {
		for _, r := range str {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(str, delim)
	}
	out := make([]interface{}, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return multivalueResult(out), nil
}

// URLDecodeFunc decodes a URL-encoded string
type URLDecodeFunc struct{}

func (f *URLDecodeFunc) Name() string  { return "urldecode" }
func (f *URLDecodeFunc) MinArity() int { return 1 }
func (f *URLDecodeFunc) MaxArity() int { return 1 }
func (f *URLDecodeFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	s, err := url.QueryUnescape(valueToString(args[0]))
	if err != nil {
		return nil, NewInvalidArgumentError("urldecode", err.Error())
	}
	return s, nil
}

// PrintfFunc formats its arguments: printf(format, args...). Verbs are
// %s %d %i %f %e %g %x %X %o %c %% with optional flags, width and
// precision.
type PrintfFunc struct{}

var printfVerb = regexp.MustCompile(`%[-+ 0#']*(\d+)?(\.\d+)?[sdifeEgGxXoc%]`)

func (f *PrintfFunc) Name() string  { return "printf" }
func (f *PrintfFunc) MinArity() int { return 1 }
func (f *PrintfFunc) MaxArity() int { return -1 }
func (f *PrintfFunc) Evaluate(args []interface{}) (interface{}, error) {
	format := valueToString(args[0])
	rest := args[1:]
	next := 0

	var formatErr error
	out := printfVerb.ReplaceAllStringFunc(format, func(verb string) string {
		if verb == "%%" {
			return "%"
		}
		if next >= len(rest) {
			formatErr = NewInvalidArgumentError("printf", fmt.Sprintf("missing argument for %s", verb))
			return ""
		}
		arg := rest[next]
		next++

		directive := strings.ReplaceAll(verb, "'", "")
		conv := directive[len(directive)-1]
		switch conv {
		case 'd', 'i', 'x', 'X', 'o', 'c':
			n, _ := toFloat64(arg)
			if conv == 'i' {
				directive = directive[:len(directive)-1] + "d"
			}
			if conv == 'c' {
				return string(rune(int64(n)))
			}
			return fmt.Sprintf(directive, int64(n))
		case 'f', 'e', 'E', 'g', 'G':
			n, _ := toFloat64(arg)
			return fmt.Sprintf(directive, n)
		}
		return fmt.Sprintf(directive, valueToString(arg))
	})
	if formatErr != nil {
		return nil, formatErr
	}
	return out, nil
}

// MatchFunc reports whether a string matches a regex: match(X, regex)
type MatchFunc struct{}

func (f *MatchFunc) Name() string  { return "match" }
func (f *MatchFunc) MinArity() int { return 2 }
func (f *MatchFunc) MaxArity() int { return 2 }
func (f *MatchFunc) Evaluate(args []interface{}) (interface{}, error) {
	pattern := valueToString(args[1])
	re, err := compileRegex(pattern)
	if err != nil {
		return nil, NewRegexError("match", pattern, err)
	}
	if args[0] == nil {
		return false, nil
	}
	return re.MatchString(valueToString(args[0])), nil
}

// LikeFunc reports whether a string matches a SQL LIKE pattern:
// like(X, pattern)
type LikeFunc struct{}

func (f *LikeFunc) Name() string  { return "like" }
func (f *LikeFunc) MinArity() int { return 2 }
func (f *LikeFunc) MaxArity() int { return 2 }
func (f *LikeFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil || args[1] == nil {
		return false, nil
	}
	re := regexp.MustCompile(likePattern(valueToString(args[1])))
	return re.MatchString(valueToString(args[0])), nil
}

// likePattern translates SQL LIKE wildcards (% and _) into an anchored,
// case-insensitive regex source
func likePattern(pattern string) string {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
