package query

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// webLogs is a small access log shared by the executor tests
func webLogs() []LogRecord {
	return []LogRecord{
		{"_time": baseTime, "host": "web-1", "status": int64(200), "bytes": int64(512), "level": "info", "_raw": "GET /index.html 200"},
		{"_time": baseTime.Add(10 * time.Minute), "host": "web-2", "status": int64(404), "bytes": int64(128), "level": "warn", "_raw": "GET /missing 404"},
		{"_time": baseTime.Add(20 * time.Minute), "host": "web-1", "status": int64(500), "bytes": int64(64), "level": "error", "_raw": "POST /api/login 500 Internal Error"},
		{"_time": baseTime.Add(70 * time.Minute), "host": "web-3", "status": int64(200), "bytes": int64(2048), "level": "info", "_raw": "GET /download 200"},
		{"_time": baseTime.Add(80 * time.Minute), "host": "web-1", "status": int64(503), "bytes": int64(0), "level": "error", "_raw": "GET /api/health 503 unavailable"},
	}
}

// run executes q over records and fails the test if the query fails
func run(t *testing.T, records []LogRecord, q string) *ExecutionResult {
	t.Helper()
	result := NewExecutor(records, nil, Options{}).Execute(q)
	require.True(t, result.Success, "query %q failed: %v", q, result.Error)
	return result
}

// column collects one field of every record
func column(records []LogRecord, field string) []interface{} {
	out := make([]interface{}, len(records))
	for i, rec := range records {
		out[i] = rec[field]
	}
	return out
}

func TestExecutor_Scenarios(t *testing.T) {
	t.Run("where on numbers", func(t *testing.T) {
		records := []LogRecord{{"status": int64(200)}, {"status": int64(404)}, {"status": int64(500)}}
		result := run(t, records, "where status >= 400")
		require.Equal(t, 2, result.Count)
		require.Equal(t, []interface{}{int64(404), int64(500)}, column(result.Data, "status"))
	})

	t.Run("stats count by level", func(t *testing.T) {
		records := []LogRecord{{"level": "error"}, {"level": "info"}, {"level": "error"}}
		result := run(t, records, "* | stats count by level")
		require.Equal(t, []LogRecord{
			{"level": "error", "count": int64(2)},
			{"level": "info", "count": int64(1)},
		}, result.Data)
		require.Equal(t, []string{"level", "count"}, result.Fields)
	})

	t.Run("implicit search after a pipe", func(t *testing.T) {
		records := []LogRecord{{"_raw": "an error here"}, {"_raw": "all fine"}}
		result := run(t, records, "* | error")
		require.Equal(t, 1, result.Count)
		require.Equal(t, "an error here", result.Data[0]["_raw"])
	})

	t.Run("unterminated call", func(t *testing.T) {
		result := NewExecutor(nil, nil, Options{}).Execute("foo(")
		require.False(t, result.Success)
		require.Equal(t, CodeParse, result.Error.Code)
	})

	t.Run("rex extracts an address", func(t *testing.T) {
		records := []LogRecord{{"_raw": "connect from 10.0.0.1 ok"}}
		result := run(t, records, `rex field=_raw "(?<ip>\d+\.\d+\.\d+\.\d+)"`)
		require.Equal(t, "10.0.0.1", result.Data[0]["ip"])
	})
}

func TestExecutor_Search(t *testing.T) {
	tests := []struct {
		name  string
		query string
		hosts []interface{}
	}{
		{"wildcard value", "host=web-*", []interface{}{"web-1", "web-2", "web-1", "web-3", "web-1"}},
		{"case insensitive", "host=WEB-1", []interface{}{"web-1", "web-1", "web-1"}},
		{"numeric comparison", "status>=500", []interface{}{"web-1", "web-1"}},
		{"free text", "error", []interface{}{"web-1", "web-1"}},
		{"negation", "NOT host=web-1", []interface{}{"web-2", "web-3"}},
		{"left to right fold", "host=web-2 OR host=web-3 status=200", []interface{}{"web-3"}},
		{"in list", "status IN (404, 503)", []interface{}{"web-2", "web-1"}},
		{"free text and field", "search GET status=200", []interface{}{"web-1", "web-3"}},
		{"not equals", "search status!=200", []interface{}{"web-2", "web-1", "web-1"}},
		{"not equals on missing field", "search region!=eu", []interface{}{"web-1", "web-2", "web-1", "web-3", "web-1"}},
		{"match all", "search *", []interface{}{"web-1", "web-2", "web-1", "web-3", "web-1"}},
		{"wildcard free text", "search *login*", []interface{}{"web-1"}},
		{"number equality ignores format", "search bytes=512.0", []interface{}{"web-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, webLogs(), tt.query)
			require.Equal(t, tt.hosts, column(result.Data, "host"))
		})
	}
}

func TestExecutor_SearchMetacharacters(t *testing.T) {
	records := []LogRecord{{"path": "/a.b"}, {"path": "/axb"}}
	result := run(t, records, `search path="/a.*"`)
	require.Equal(t, []interface{}{"/a.b"}, column(result.Data, "path"))
}

func TestExecutor_Where(t *testing.T) {
	tests := []struct {
		name  string
		query string
		count int
	}{
		{"and", `where bytes > 100 AND level != "error"`, 3},
		{"or", `where status = 404 OR status = 503`, 2},
		{"like operator", `where host LIKE "web-%"`, 5},
		{"like function", `where like(_raw, "GET%")`, 4},
		{"like ignores case", `where _raw LIKE "%internal error"`, 1},
		{"in list", "where status IN (404, 503)", 2},
		{"is null", "where region IS NULL", 5},
		{"is not null", "where host IS NOT NULL", 5},
		{"string ordering", `where host > "web-1"`, 2},
		{"arithmetic", "where bytes * 2 >= 1024", 2},
		{"function", "where len(host) = 5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, webLogs(), tt.query)
			require.Equal(t, tt.count, result.Count)
		})
	}
}

func TestExecutor_RowErrorsBecomeWarnings(t *testing.T) {
	result := run(t, webLogs(), "where bytes * host > 1")
	require.Equal(t, 0, result.Count)
	require.Equal(t, []string{`where: 5 row(s) skipped: cannot apply * to non-numeric value "web-1"`}, result.Warnings)

	result = run(t, webLogs(), "eval x = bytes * host")
	require.Equal(t, 5, result.Count)
	for _, rec := range result.Data {
		require.NotContains(t, rec, "x")
	}
	require.Equal(t, []string{`eval: 5 row(s) skipped: cannot apply * to non-numeric value "web-1"`}, result.Warnings)
}

func TestExecutor_UnknownFunction(t *testing.T) {
	result := run(t, webLogs(), "eval x = lenn(host)")
	require.Equal(t, 5, result.Count)
	require.NotContains(t, result.Data[0], "x")
	require.Equal(t, []string{`unknown function "lenn" evaluates to null`}, result.Warnings)

	strict := NewExecutor(webLogs(), nil, Options{StrictFunctions: true}).Execute("eval x = lenn(host)")
	require.True(t, strict.Success)
	require.Equal(t, []string{`eval: 5 row(s) skipped: unknown function "lenn"`}, strict.Warnings)
}

func TestExecutor_Arity(t *testing.T) {
	result := run(t, webLogs(), "eval x = len()")
	require.Equal(t, []string{"eval: 5 row(s) skipped: len expects 1 argument(s), got 0"}, result.Warnings)
}

func TestExecutor_FailureShape(t *testing.T) {
	queries := []string{
		"fooo x=1",
		"where (a > 1",
		"search x | serch y",
		`search "unterminated`,
		"search x |",
		`rex "("`,
		`regex "[a-"`,
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			result := NewExecutor(webLogs(), nil, Options{}).Execute(q)
			require.False(t, result.Success)
			require.NotNil(t, result.Error)
			require.NotEmpty(t, result.Error.Code)
			require.NotEmpty(t, result.Error.Message)
			require.NotNil(t, result.Data)
			require.Empty(t, result.Data)
			require.NotNil(t, result.Fields)
			require.Empty(t, result.Fields)
			require.Zero(t, result.Count)
			_, err := uuid.Parse(result.QueryID)
			require.NoError(t, err)
		})
	}
}

func TestExecutor_RegexErrorCarriesCommand(t *testing.T) {
	result := NewExecutor(webLogs(), nil, Options{}).Execute(`search * | rex "("`)
	require.False(t, result.Success)
	require.Equal(t, CodeRegex, result.Error.Code)
	require.Equal(t, "rex", result.Error.Command)
}

func TestExecutor_QueryID(t *testing.T) {
	exec := NewExecutor(webLogs(), nil, Options{})
	a := exec.Execute("head 1")
	b := exec.Execute("head 1")
	_, err := uuid.Parse(a.QueryID)
	require.NoError(t, err)
	require.NotEqual(t, a.QueryID, b.QueryID)
}

func TestExecutor_EmptyQuery(t *testing.T) {
	result := run(t, webLogs(), "")
	require.Equal(t, 5, result.Count)
}

func TestExecutor_MaxResultsWarning(t *testing.T) {
	result := NewExecutor(webLogs(), nil, Options{MaxResults: 2}).Execute("search * | head 3 | stats count")
	require.True(t, result.Success)
	require.Equal(t, []string{
		"search produced 5 results, more than the limit of 2",
		"head produced 3 results, more than the limit of 2",
	}, result.Warnings)
	require.Equal(t, int64(3), result.Data[0]["count"])
}

func TestExecutor_WarningsAreDeduplicated(t *testing.T) {
	result := run(t, webLogs(), "eval x = nope(1), y = nope(2)")
	require.Equal(t, []string{`unknown function "nope" evaluates to null`}, result.Warnings)
}

func TestExecutor_Budget(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result := NewExecutor(webLogs(), nil, Options{}).ExecuteContext(ctx, "search *")
		require.False(t, result.Success)
		require.Equal(t, CodeRuntime, result.Error.Code)
		require.Contains(t, result.Error.Message, "query cancelled")
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		result := NewExecutor(webLogs(), nil, Options{}).ExecuteContext(ctx, "search *")
		require.False(t, result.Success)
		require.Equal(t, CodeTimeout, result.Error.Code)
	})

	t.Run("time budget", func(t *testing.T) {
		result := NewExecutor(webLogs(), nil, Options{Timeout: time.Nanosecond}).Execute("search * | head 1")
		require.False(t, result.Success)
		require.Equal(t, CodeTimeout, result.Error.Code)
		require.Equal(t, "search", result.Error.Command)
	})
}

func TestExecutor_DoesNotModifyInput(t *testing.T) {
	records := webLogs()
	records[0]["tags"] = "a,b"
	records[1]["payload"] = `{"user":{"name":"ann"}}`
	snapshot := webLogs()
	snapshot[0]["tags"] = "a,b"
	snapshot[1]["payload"] = `{"user":{"name":"ann"}}`

	lookups := map[string][]LogRecord{"hosts": {{"host": "web-1", "dc": "east"}}}
	lookupSnapshot := map[string][]LogRecord{"hosts": {{"host": "web-1", "dc": "east"}}}

	exec := NewExecutor(records, lookups, Options{})
	queries := []string{
		"eval bytes = bytes * 2, host = upper(host)",
		"rename host AS server",
		"fillnull value=x region",
		`replace "web-*" WITH "srv-*" IN host`,
		"convert num(status)",
		"bin bytes span=100",
		`makemv delim="," tags | mvexpand tags`,
		`rex "(?<verb>[A-Z]+)"`,
		`rex mode=sed "s/GET/PUT/"`,
		"spath input=payload",
		"lookup hosts host",
		"inputlookup hosts | eval dc = \"west\"",
		"eventstats count by host",
		"streamstats count",
		"addtotals col=true",
		"sort -bytes | reverse",
		"join host hosts",
		"transaction host",
		"fields - _raw",
		"table host",
	}
	for _, q := range queries {
		result := exec.Execute(q)
		require.True(t, result.Success, "%s: %v", q, result.Error)
	}

	require.Equal(t, snapshot, records)
	require.Equal(t, lookupSnapshot, lookups)
}

func TestExecutor_Concurrent(t *testing.T) {
	exec := NewExecutor(webLogs(), nil, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := "stats count by host"
			if i%2 == 1 {
				q = "eval x = nope(1) | where status >= 500"
			}
			result := exec.Execute(q)
			switch {
			case !result.Success:
				errs <- result.Error
			case i%2 == 0 && result.Count != 3:
				errs <- fmt.Errorf("expected 3 groups, got %d", result.Count)
			case i%2 == 1 && len(result.Warnings) != 1:
				errs <- fmt.Errorf("expected 1 warning, got %v", result.Warnings)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestExecutor_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogfmtLogger(log.NewSyncWriter(&buf))
	exec := NewExecutor(webLogs(), nil, Options{Logger: logger})

	ok := exec.Execute("head 2")
	require.Contains(t, buf.String(), `msg="query executed"`)
	require.Contains(t, buf.String(), "query_id="+ok.QueryID)
	require.Contains(t, buf.String(), "rows=2")

	buf.Reset()
	failed := exec.Execute("fooo x=1")
	require.Contains(t, buf.String(), `msg="query failed"`)
	require.Contains(t, buf.String(), "code=UNKNOWN_COMMAND")
	require.Contains(t, buf.String(), "query_id="+failed.QueryID)
}

func TestExecutor_Fields(t *testing.T) {
	t.Run("projection order first", func(t *testing.T) {
		result := run(t, webLogs(), "table status, host")
		require.Equal(t, []string{"status", "host"}, result.Fields)
	})

	t.Run("remaining keys sorted", func(t *testing.T) {
		result := run(t, webLogs(), "head 1")
		require.Equal(t, []string{"_raw", "_time", "bytes", "host", "level", "status"}, result.Fields)
	})

	t.Run("rename follows projection", func(t *testing.T) {
		result := run(t, webLogs(), "stats count by host | rename host AS server")
		require.Equal(t, []string{"server", "count"}, result.Fields)
	})

	t.Run("sampled from the first records", func(t *testing.T) {
		records := make([]LogRecord, 150)
		for i := range records {
			records[i] = LogRecord{"n": int64(i)}
			if i >= fieldSampleSize {
				records[i]["late"] = true
			}
		}
		result := run(t, records, "search *")
		require.Equal(t, []string{"n"}, result.Fields)
		require.Equal(t, 150, result.Count)
	})
}

func TestExecutor_Clock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exec := NewExecutor(nil, nil, Options{Now: func() time.Time { return now }})

	result := exec.Execute("makeresults count=3 | eval t = now()")
	require.True(t, result.Success)
	require.Equal(t, 3, result.Count)
	for _, rec := range result.Data {
		require.True(t, now.Equal(rec["_time"].(time.Time)))
		require.Equal(t, float64(now.Unix()), rec["t"])
	}
}

// Properties that must hold for any input

func TestProperty_TableIdempotent(t *testing.T) {
	first := run(t, webLogs(), "table host, status")
	second := run(t, first.Data, "table host, status")
	require.Equal(t, first.Data, second.Data)
	require.Equal(t, first.Fields, second.Fields)
}

func TestProperty_DedupUnique(t *testing.T) {
	result := run(t, webLogs(), "dedup host, level")
	seen := make(map[string]bool)
	for _, rec := range result.Data {
		key := fmt.Sprint(rec["host"], "|", rec["level"])
		require.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
	}
	require.Equal(t, []interface{}{"web-1", "web-2", "web-1", "web-3"}, column(result.Data, "host"))
}

func TestProperty_StatsCompleteness(t *testing.T) {
	for _, field := range []string{"host", "level", "status"} {
		t.Run(field, func(t *testing.T) {
			result := run(t, webLogs(), "stats count by "+field)

			distinct := make(map[string]bool)
			for _, rec := range webLogs() {
				distinct[valueToString(rec[field])] = true
			}
			require.Len(t, result.Data, len(distinct))

			total := int64(0)
			for _, rec := range result.Data {
				total += rec["count"].(int64)
			}
			require.Equal(t, int64(5), total)
		})
	}
}

func TestProperty_TopRarePercent(t *testing.T) {
	top := run(t, webLogs(), "top host")
	sum := 0.0
	for _, rec := range top.Data {
		sum += rec["percent"].(float64)
	}
	require.InDelta(t, 100, sum, 1e-9)

	sparse := run(t, []LogRecord{{"h": "a"}, {"h": "a"}, {"x": int64(1)}, {"h": "b"}}, "top h")
	require.Equal(t, []interface{}{66.67, 33.33}, column(sparse.Data, "percent"))
	sum = 0
	for _, rec := range sparse.Data {
		sum += rec["percent"].(float64)
	}
	require.InDelta(t, 100, sum, 0.01)

	limited := run(t, webLogs(), "top 1 host")
	rare := run(t, webLogs(), "rare 1 host")
	require.Equal(t, "web-1", limited.Data[0]["host"])
	require.NotEqual(t, limited.Data[0]["host"], rare.Data[0]["host"])
}

func TestProperty_SortDirection(t *testing.T) {
	asc := run(t, webLogs(), "sort bytes")
	nums := make([]float64, 0, asc.Count)
	for _, v := range column(asc.Data, "bytes") {
		n, _ := toFloat64(v)
		nums = append(nums, n)
	}
	require.True(t, sort.Float64sAreSorted(nums))

	desc := run(t, webLogs(), "sort -bytes")
	require.Equal(t, []interface{}{int64(2048), int64(512), int64(128), int64(64), int64(0)}, column(desc.Data, "bytes"))

	multi := run(t, webLogs(), "sort host, -status")
	require.Equal(t, []interface{}{int64(503), int64(500), int64(200), int64(404), int64(200)}, column(multi.Data, "status"))
}

func TestProperty_TimechartCoverage(t *testing.T) {
	for _, span := range []string{"5m", "30m", "1h", "1d"} {
		t.Run(span, func(t *testing.T) {
			d, err := parseDuration(span)
			require.NoError(t, err)
			result := run(t, webLogs(), "timechart span="+span+" count")

			total := int64(0)
			var prev time.Time
			for i, row := range result.Data {
				start := row["_time"].(time.Time)
				if i > 0 {
					require.True(t, start.After(prev), "buckets out of order")
				}
				prev = start
				total += row["count"].(int64)
			}
			require.Equal(t, int64(5), total)

			for _, rec := range webLogs() {
				ts := rec["_time"].(time.Time)
				hits := 0
				for _, row := range result.Data {
					start := row["_time"].(time.Time)
					if !ts.Before(start) && ts.Before(start.Add(d)) {
						hits++
					}
				}
				require.Equal(t, 1, hits, "record at %s", ts)
			}
		})
	}
}

func TestProperty_ErrorShape(t *testing.T) {
	for _, q := range []string{"where (a > 1", "fooo x=1", "stats count by", strings.Repeat("(", 3)} {
		result := NewExecutor(webLogs(), nil, Options{}).Execute(q)
		require.False(t, result.Success, q)
		require.NotEmpty(t, result.Error.Code, q)
		require.NotEmpty(t, result.Error.Message, q)
		require.Empty(t, result.Data, q)
		require.Zero(t, result.Count, q)
	}
}
