package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func hostTables() map[string][]LogRecord {
	return map[string][]LogRecord{
		"hosts": {
			{"host": "web-1", "dc": "east"},
			{"host": "web-2", "dc": "west"},
		},
		"dups": {
			{"host": "web-1", "rack": "a"},
			{"host": "web-1", "rack": "b"},
		},
		"levels": {
			{"host": "web-2", "level": "override"},
		},
	}
}

func runWith(t *testing.T, records []LogRecord, q string) *ExecutionResult {
	t.Helper()
	result := NewExecutor(records, hostTables(), Options{}).Execute(q)
	require.True(t, result.Success, "query %q failed: %v", q, result.Error)
	return result
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		field    string
		expected []interface{}
	}{
		{
			"all fields",
			"lookup hosts host",
			"dc",
			[]interface{}{"east", "west", "east", nil, "east"},
		},
		{
			"output alias",
			"lookup hosts host OUTPUT dc AS datacenter",
			"datacenter",
			[]interface{}{"east", "west", "east", nil, "east"},
		},
		{
			"last row wins",
			"lookup dups host",
			"rack",
			[]interface{}{"b", nil, "b", nil, "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runWith(t, webLogs(), tt.query)
			require.Equal(t, 5, result.Count)
			require.Equal(t, tt.expected, column(result.Data, tt.field))
			require.Empty(t, result.Warnings)
		})
	}
}

func TestLookup_LocalFieldAndOutputNew(t *testing.T) {
	records := []LogRecord{{"server": "web-2"}, {"server": "web-1", "dc": "mine"}}

	result := runWith(t, records, "lookup hosts host AS server")
	require.Equal(t, []LogRecord{
		{"server": "web-2", "dc": "west"},
		{"server": "web-1", "dc": "east"},
	}, result.Data)

	result = runWith(t, records, "lookup hosts host AS server OUTPUTNEW dc")
	require.Equal(t, []interface{}{"west", "mine"}, column(result.Data, "dc"))
}

func TestLookup_MissingTable(t *testing.T) {
	result := runWith(t, webLogs(), "lookup nope host")
	require.Equal(t, []string{`lookup: lookup table "nope" not found`}, result.Warnings)
	require.Equal(t, webLogs(), result.Data)
}

func TestInputlookup(t *testing.T) {
	result := runWith(t, nil, "inputlookup hosts")
	require.Equal(t, []LogRecord{
		{"host": "web-1", "dc": "east"},
		{"host": "web-2", "dc": "west"},
	}, result.Data)

	result = runWith(t, nil, `inputlookup hosts | where dc = "east"`)
	require.Equal(t, 1, result.Count)

	result = runWith(t, webLogs(), "inputlookup nope")
	require.Equal(t, 0, result.Count)
	require.Equal(t, []string{`inputlookup: lookup table "nope" not found`}, result.Warnings)
}

func TestJoin_Subsearch(t *testing.T) {
	result := runWith(t, webLogs(), "join host [search level=error | stats count AS errors by host]")
	require.Equal(t, 3, result.Count)
	require.Equal(t, []interface{}{"web-1", "web-1", "web-1"}, column(result.Data, "host"))
	require.Equal(t, []interface{}{int64(2), int64(2), int64(2)}, column(result.Data, "errors"))

	result = runWith(t, webLogs(), "join type=left host [search level=error | stats count AS errors by host]")
	require.Equal(t, 5, result.Count)
	require.Equal(t, []interface{}{int64(2), nil, int64(2), nil, int64(2)}, column(result.Data, "errors"))

	common := runWith(t, webLogs(), "join [search level=error | stats count AS errors by host]")
	require.Equal(t, 3, common.Count)
}

func TestJoin_SubsearchReadsBaseRecords(t *testing.T) {
	result := runWith(t, webLogs(), "search host=web-3 | join host [search host=web-3 | eval seen=1]")
	require.Equal(t, 1, result.Count)
	require.Equal(t, float64(1), result.Data[0]["seen"])
}

func TestJoin_Table(t *testing.T) {
	tests := []struct {
		name  string
		query string
		count int
	}{
		{"inner", "join host hosts", 4},
		{"outer", "join type=outer host hosts", 5},
		{"max one", "join host dups", 3},
		{"unbounded", "join max=0 host dups", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runWith(t, webLogs(), tt.query)
			require.Equal(t, tt.count, result.Count)
		})
	}

	result := runWith(t, webLogs(), "join max=0 host dups")
	require.Equal(t, []interface{}{"a", "b", "a", "b", "a", "b"}, column(result.Data, "rack"))

	result = runWith(t, webLogs(), "join host levels")
	require.Equal(t, []LogRecord{{
		"_time": baseTime.Add(10 * time.Minute), "host": "web-2", "status": int64(404), "bytes": int64(128),
		"level": "override", "_raw": "GET /missing 404",
	}}, result.Data)
}

func TestJoin_MissingTable(t *testing.T) {
	result := runWith(t, webLogs(), "join host nope")
	require.Equal(t, 5, result.Count)
	require.Equal(t, []string{`join: lookup table "nope" not found`}, result.Warnings)
}

func TestCommonFields(t *testing.T) {
	left := []LogRecord{{"_time": 1, "host": "a", "x": 1}}
	right := []LogRecord{{"_time": 2, "host": "a", "y": 2}, {"x": 3}}
	require.Equal(t, []string{"host", "x"}, commonFields(left, right))
}
