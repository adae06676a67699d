package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRex(t *testing.T) {
	result := run(t, webLogs(), `rex "(?<method>[A-Z]+) (?<path>\S+)"`)
	require.Equal(t, "GET", result.Data[0]["method"])
	require.Equal(t, "/index.html", result.Data[0]["path"])
	require.Equal(t, "POST", result.Data[2]["method"])

	result = run(t, webLogs(), `rex field=host "web-(?<num>\d+)"`)
	require.Equal(t, []interface{}{"1", "2", "1", "3", "1"}, column(result.Data, "num"))

	records := []LogRecord{{"_raw": "a=1 b=2 c=3"}, {"_raw": "nothing here"}, {"other": "x"}}
	result = run(t, records, `rex max_match=0 "(?<k>\w)=(?<v>\d)"`)
	require.Equal(t, []interface{}{"a", "b", "c"}, result.Data[0]["k"])
	require.Equal(t, []interface{}{"1", "2", "3"}, result.Data[0]["v"])
	require.Equal(t, LogRecord{"_raw": "nothing here"}, result.Data[1])
	require.Equal(t, LogRecord{"other": "x"}, result.Data[2])

	result = run(t, records[:1], `rex "(?<k>\w)=(?<v>\d)"`)
	require.Equal(t, "a", result.Data[0]["k"])
}

func TestRex_OptionalGroup(t *testing.T) {
	result := run(t, []LogRecord{{"_raw": "y"}}, `rex "(?<a>x)?(?<b>y)"`)
	require.Equal(t, "y", result.Data[0]["b"])
	require.NotContains(t, result.Data[0], "a")
}

func TestRex_Sed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expr     string
		expected string
	}{
		{"first match", "foo foo", "s/foo/bar/", "bar foo"},
		{"global", "GET /index.html 200", "s/[0-9]/#/g", "GET /index.html ###"},
		{"nth match", "foo", "s/o/0/2", "fo0"},
		{"backreference", "web-1", `s/web-(\d)/srv\1/`, "srv1"},
		{"other delimiter", "/a/b", "s|/|:|g", ":a:b"},
		{"transliterate", "aabbcc", "y/abc/xyz/", "xxyyzz"},
		{"no match", "abc", "s/z/y/", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []LogRecord{{"msg": tt.input}}
			result := run(t, records, `rex field=msg mode=sed "`+tt.expr+`"`)
			require.Equal(t, tt.expected, result.Data[0]["msg"])
		})
	}
}

func TestRex_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"bad pattern", `rex "("`},
		{"bad sed flag", `rex mode=sed "s/a/b/q"`},
		{"incomplete sed", `rex mode=sed "s/a"`},
		{"uneven transliteration", `rex mode=sed "y/ab/c/"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewExecutor(webLogs(), nil, Options{}).Execute(tt.query)
			require.False(t, result.Success)
			require.Equal(t, CodeRegex, result.Error.Code)
			require.Equal(t, "rex", result.Error.Command)
		})
	}
}

func TestSpath(t *testing.T) {
	doc := `{"user":{"name":"ann","tags":["a","b"]},"n":1}`
	records := []LogRecord{{"_raw": doc}}

	result := run(t, records, "spath")
	rec := result.Data[0]
	require.Equal(t, int64(1), rec["n"])
	require.Equal(t, "ann", rec["user.name"])
	require.Equal(t, []interface{}{"a", "b"}, rec["user.tags{}"])

	result = run(t, records, "spath output=u path=user.name")
	require.Equal(t, "ann", result.Data[0]["u"])
	require.NotContains(t, result.Data[0], "user.name")

	result = run(t, records, `spath "user.tags{}"`)
	require.Equal(t, []interface{}{"a", "b"}, result.Data[0]["user.tags{}"])

	result = run(t, records, `spath "user.tags{1}"`)
	require.Equal(t, "b", result.Data[0]["user.tags{1}"])

	result = run(t, records, "spath path=user.missing")
	require.Equal(t, records, result.Data)
}

func TestSpath_Input(t *testing.T) {
	records := []LogRecord{
		{"payload": map[string]interface{}{"id": int64(7)}},
		{"payload": "not json"},
		{},
	}
	result := run(t, records, "spath input=payload path=id")
	require.Equal(t, []interface{}{int64(7), nil, nil}, column(result.Data, "id"))
	require.Equal(t, []string{"spath: 1 record(s) with a non-JSON payload field"}, result.Warnings)
}

func TestJSONPathExpr(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"a.b", "$.a.b"},
		{"a.b{}", "$.a.b[*]"},
		{"a{0}.c", "$.a[0].c"},
		{"{}", "$[*]"},
		{"$.x..y", "$.x..y"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.expected, jsonPathExpr(tt.path))
		})
	}
}
