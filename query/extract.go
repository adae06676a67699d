package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// executeRex extracts the named groups of a regex from a field, or with
// mode=sed rewrites the field with a s/// or y/// expression. The pattern
// is compiled once; an invalid pattern aborts the query.
func executeRex(cmd *RexCommand, records []LogRecord) ([]LogRecord, error) {
	if cmd.Mode == "sed" {
		return executeRexSed(cmd, records)
	}

	re, err := compileRegex(cmd.Pattern)
	if err != nil {
		return nil, NewRegexError("rex", cmd.Pattern, err)
	}
	names := re.SubexpNames()

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		v, ok := getField(rec, cmd.Field)
		if !ok || v == nil {
			out[i] = rec
			continue
		}
		s := valueToString(v)

		limit := cmd.MaxMatch
		if limit <= 0 {
			limit = -1
		}
		matches := re.FindAllStringSubmatchIndex(s, limit)
		if len(matches) == 0 {
			out[i] = rec
			continue
		}

		row := copyRecord(rec, len(names))
		for g, name := range names {
			if name == "" {
				continue
			}
			var values []interface{}
			for _, m := range matches {
				if m[2*g] < 0 {
					continue
				}
				values = append(values, s[m[2*g]:m[2*g+1]])
			}
			if v := multivalueResult(values); v != nil {
				row[name] = v
			}
		}
		out[i] = row
	}
	return out, nil
}

// sedExpr is a parsed s/regex/replacement/flags or y/from/to/ expression
type sedExpr struct {
	re     *regexp.Regexp
	repl   string
	global bool
	nth    int
	trans  *strings.Replacer
}

// parseSed parses a sed expression. Any character after s or y is the
// delimiter.
func parseSed(expr string) (*sedExpr, error) {
	if len(expr) < 2 || (expr[0] != 's' && expr[0] != 'y') {
		return nil, fmt.Errorf("sed expression must start with s or y")
	}
	delim := string(expr[1])
	parts := strings.Split(expr[2:], delim)
	if len(parts) < 2 {
		return nil, fmt.Errorf("sed expression %q is incomplete", expr)
	}
	flags := ""
	if len(parts) > 2 {
		flags = parts[2]
	}

	if expr[0] == 'y' {
		from, to := []rune(parts[0]), []rune(parts[1])
		if len(from) != len(to) {
			return nil, fmt.Errorf("y/// needs sets of equal length")
		}
		pairs := make([]string, 0, 2*len(from))
		for i := range from {
			pairs = append(pairs, string(from[i]), string(to[i]))
		}
		return &sedExpr{trans: strings.NewReplacer(pairs...)}, nil
	}

	re, err := compileRegex(parts[0])
	if err != nil {
		return nil, err
	}
	e := &sedExpr{re: re, repl: backrefPattern.ReplaceAllString(parts[1], "$${$1}")}
	for _, f := range flags {
		switch {
		case f == 'g':
			e.global = true
		case f >= '1' && f <= '9':
			e.nth = int(f - '0')
		default:
			return nil, fmt.Errorf("unknown sed flag %q", f)
		}
	}
	return e, nil
}

func (e *sedExpr) apply(s string) string {
	if e.trans != nil {
		return e.trans.Replace(s)
	}
	if e.global {
		return e.re.ReplaceAllString(s, e.repl)
	}
	nth := max(e.nth, 1)
	matches := e.re.FindAllStringSubmatchIndex(s, nth)
	if len(matches) < nth {
		return s
	}
	m := matches[nth-1]
	var dst []byte
	dst = e.re.ExpandString(dst, e.repl, s, m)
	return s[:m[0]] + string(dst) + s[m[1]:]
}

func executeRexSed(cmd *RexCommand, records []LogRecord) ([]LogRecord, error) {
	sed, err := parseSed(cmd.Pattern)
	if err != nil {
		return nil, NewRegexError("rex", cmd.Pattern, err)
	}

	out := make([]LogRecord, len(records))
	for i, rec := range records {
		v, ok := getField(rec, cmd.Field)
		if !ok || v == nil {
			out[i] = rec
			continue
		}
		row := copyRecord(rec, 0)
		row[cmd.Field] = sed.apply(valueToString(v))
		out[i] = row
	}
	return out, nil
}

// executeSpath extracts values from a JSON field. With a path the value
// goes to Output (or a field named after the path); without one every
// leaf is flattened into the record. Values that are not JSON are left
// alone.
func (c *execContext) executeSpath(cmd *SpathCommand, records []LogRecord) ([]LogRecord, error) {
	var x jp.Expr
	if cmd.Path != "" {
		var err error
		x, err = jp.ParseString(jsonPathExpr(cmd.Path))
		if err != nil {
			return nil, NewInvalidArgumentError("spath", fmt.Sprintf("invalid path %q: %v", cmd.Path, err))
		}
	}
	target := cmd.Output
	if target == "" {
		target = cmd.Path
	}

	out := make([]LogRecord, len(records))
	skipped := 0
	for i, rec := range records {
		v, _ := getField(rec, cmd.Input)
		doc, ok := parseJSONValue(v)
		if !ok {
			if v != nil {
				skipped++
			}
			out[i] = rec
			continue
		}

		if x == nil {
			fields := make(map[string]interface{})
			flattenJSON("", doc, fields)
			row := copyRecord(rec, len(fields))
			for k, val := range fields {
				row[k] = val
			}
			out[i] = row
			continue
		}

		results := x.Get(doc)
		if len(results) == 0 {
			out[i] = rec
			continue
		}
		row := copyRecord(rec, 1)
		if len(results) == 1 {
			row[target] = results[0]
		} else {
			row[target] = []interface{}(results)
		}
		out[i] = row
	}

	if skipped > 0 {
		c.warn(fmt.Sprintf("spath: %d record(s) with a non-JSON %s field", skipped, cmd.Input))
	}
	return out, nil
}
