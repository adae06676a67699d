package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// JSON Functions

// JSONExtractFunc extracts values from a JSON document:
// json_extract(X [, path...]). With no path the whole document is
// returned; several paths return a multivalue.
type JSONExtractFunc struct{}

func (f *JSONExtractFunc) Name() string  { return "json_extract" }
func (f *JSONExtractFunc) MinArity() int { return 1 }
func (f *JSONExtractFunc) MaxArity() int { return -1 }
func (f *JSONExtractFunc) Evaluate(args []interface{}) (interface{}, error) {
	doc, ok := parseJSONValue(args[0])
	if !ok {
		return nil, nil
	}
	if len(args) == 1 {
		return doc, nil
	}

	var out []interface{}
	for _, p := range args[1:] {
		v, err := extractPath(doc, valueToString(p))
		if err != nil {
			return nil, NewInvalidArgumentError("json_extract", err.Error())
		}
		if len(args) == 2 {
			return v, nil
		}
		out = append(out, v)
	}
	return out, nil
}

// SpathFunc extracts one path from a JSON document: spath(X, path)
type SpathFunc struct{}

func (f *SpathFunc) Name() string  { return "spath" }
func (f *SpathFunc) MinArity() int { return 2 }
func (f *SpathFunc) MaxArity() int { return 2 }
func (f *SpathFunc) Evaluate(args []interface{}) (interface{}, error) {
	doc, ok := parseJSONValue(args[0])
	if !ok {
		return nil, nil
	}
	v, err := extractPath(doc, valueToString(args[1]))
	if err != nil {
		return nil, NewInvalidArgumentError("spath", err.Error())
	}
	return v, nil
}

// parseJSONValue returns v as a decoded JSON document. Strings are
// parsed; maps and lists are already documents.
func parseJSONValue(v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case map[string]interface{}, []interface{}:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" || (s[0] != '{' && s[0] != '[') {
			return nil, false
		}
		doc, err := oj.ParseString(s)
		if err != nil {
			return nil, false
		}
		return doc, true
	}
	return nil, false
}

// jsonPathExpr translates a dotted path with {} array markers
// (a.b{}.c, a.b{0}) into JSONPath. Paths starting with $ are used as is.
func jsonPathExpr(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "$") {
		return path
	}
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		name, index, hasIndex := strings.Cut(seg, "{")
		if name != "" {
			b.WriteString(".")
			b.WriteString(name)
		}
		if hasIndex {
			index = strings.TrimSuffix(index, "}")
			if index == "" {
				b.WriteString("[*]")
			} else {
				b.WriteString("[" + index + "]")
			}
		}
	}
	return b.String()
}

// extractPath applies a path to a document. No match gives nil; several
// matches give a multivalue.
func extractPath(doc interface{}, path string) (interface{}, error) {
	x, err := jp.ParseString(jsonPathExpr(path))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	results := x.Get(doc)
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	}
	return results, nil
}

// flattenJSON adds every leaf of v to out under dotted names. Array
// elements collect into a multivalue named with a {} suffix.
func flattenJSON(prefix string, v interface{}, out map[string]interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := k
			if prefix != "" {
				name = prefix + "." + k
			}
			flattenJSON(name, val[k], out)
		}
	case []interface{}:
		for _, item := range val {
			flattenJSON(prefix+"{}", item, out)
		}
	default:
		if prev, ok := out[prefix]; ok && strings.Contains(prefix, "{}") {
			out[prefix] = append(toMultivalue(prev), val)
			return
		}
		out[prefix] = val
	}
}
