package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
)

// accessRow is the parquet fixture row
type accessRow struct {
	Time   string `parquet:"timestamp"`
	Host   string `parquet:"host"`
	Status int64  `parquet:"status"`
}

func createTestParquetFile(t *testing.T, dir, filename string, rows []accessRow) string {
	t.Helper()
	testFile := filepath.Join(dir, filename)

	f, err := os.Create(testFile)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	writer := parquet.NewGenericWriter[accessRow](f)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("failed to write test data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close file: %v", err)
	}
	return testFile
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func accessRows() []accessRow {
	return []accessRow{
		{Time: "2024-01-15T10:00:00Z", Host: "web-1", Status: 200},
		{Time: "2024-01-15T10:01:00Z", Host: "web-2", Status: 404},
		{Time: "2024-01-15T10:02:00Z", Host: "web-1", Status: 500},
		{Time: "2024-01-15T10:03:00Z", Host: "web-1", Status: 503},
	}
}

// runCLI runs the command and returns exit code, stdout and stderr
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeLines(t *testing.T, out string) []map[string]interface{} {
	t.Helper()
	var rows []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	return rows
}

func TestRun_BasicQuery(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "access.parquet", accessRows())

	code, stdout, stderr := runCLI(t, "-f", "jsonl", "-q", "where status >= 400 | stats count by host | sort host", file)
	require.Equal(t, 0, code, stderr)

	rows := decodeLines(t, stdout)
	require.Equal(t, []map[string]interface{}{
		{"host": "web-1", "count": float64(2)},
		{"host": "web-2", "count": float64(1)},
	}, rows)
}

func TestRun_CSVWithLookup(t *testing.T) {
	dir := t.TempDir()
	events := writeTestFile(t, dir, "events.jsonl", `{"host":"web-1","msg":"a"}
{"host":"web-3","msg":"b"}
`)
	hosts := writeTestFile(t, dir, "hosts.csv", "host,owner\nweb-1,alice\nweb-2,bob\n")

	code, stdout, stderr := runCLI(t,
		"-f", "csv",
		"-lookup", "hosts="+hosts,
		"-q", "lookup hosts host OUTPUT owner | table host owner",
		events)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "host,owner\nweb-1,alice\nweb-3,\n", stdout)
}

func TestRun_ConfigFileAndFlagOverride(t *testing.T) {
	dir := t.TempDir()
	file := createTestParquetFile(t, dir, "access.parquet", accessRows())
	cfg := writeTestFile(t, dir, "splcat.yaml", "format: csv\nlog_level: error\n")

	code, stdout, stderr := runCLI(t, "-config", cfg, "-q", "head 1 | table host status", file)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "host,status\nweb-1,200\n", stdout)

	code, stdout, stderr = runCLI(t, "-config", cfg, "-f", "jsonl", "-q", "head 1 | table host", file)
	require.Equal(t, 0, code, stderr)
	require.Equal(t, `{"host":"web-1"}`+"\n", stdout)
}

func TestRun_Limit(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "access.parquet", accessRows())

	code, stdout, stderr := runCLI(t, "-f", "jsonl", "-limit", "2", "-q", "table host", file)
	require.Equal(t, 0, code, stderr)
	require.Len(t, decodeLines(t, stdout), 2)
}

func TestRun_NoInputFiles(t *testing.T) {
	code, stdout, stderr := runCLI(t, "-f", "jsonl", "-q", "makeresults count=2 | eval n=1 | table n")
	require.Equal(t, 0, code, stderr)
	require.Len(t, decodeLines(t, stdout), 2)
}

func TestRun_Schema(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "access.parquet", accessRows())

	code, stdout, stderr := runCLI(t, "-f", "csv", "-schema", file)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "name,type,count,distinct,null\n")
	require.Contains(t, stdout, "host,string,4,2,0\n")
	require.Contains(t, stdout, "_time,time,4,4,0\n")
}

func TestRun_Functions(t *testing.T) {
	code, stdout, _ := runCLI(t, "-f", "csv", "-functions")
	require.Equal(t, 0, code)
	require.True(t, strings.HasPrefix(stdout, "function\n"))
	require.Contains(t, stdout, "\nstrftime\n")
	require.Contains(t, stdout, "\nnow\n")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	file := createTestParquetFile(t, dir, "access.parquet", accessRows())

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{
			name:       "unknown command with suggestion",
			args:       []string{"-q", "serch status=200", file},
			wantCode:   1,
			wantStderr: "did you mean: search?",
		},
		{
			name:       "missing query",
			args:       []string{file},
			wantCode:   1,
			wantStderr: "missing -q query",
		},
		{
			name:       "missing file",
			args:       []string{"-q", "head 1", filepath.Join(dir, "missing.jsonl")},
			wantCode:   1,
			wantStderr: "Please check the file path",
		},
		{
			name:       "unsupported format",
			args:       []string{"-f", "xml", "-q", "head 1", file},
			wantCode:   1,
			wantStderr: "unsupported format",
		},
		{
			name:       "schema with query",
			args:       []string{"-schema", "-q", "head 1", file},
			wantCode:   1,
			wantStderr: "cannot be used together",
		},
		{
			name:       "negative limit",
			args:       []string{"-limit", "-1", "-q", "head 1", file},
			wantCode:   1,
			wantStderr: "-limit must be non-negative",
		},
		{
			name:       "bad lookup flag",
			args:       []string{"-lookup", "hosts", "-q", "head 1", file},
			wantCode:   2,
			wantStderr: "expected name=path",
		},
		{
			name:       "bad input format",
			args:       []string{"-input-format", "avro", "-q", "head 1", file},
			wantCode:   1,
			wantStderr: "unsupported input format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			require.Equal(t, tt.wantCode, code)
			require.Contains(t, stderr, tt.wantStderr)
		})
	}
}

func TestRun_WarningsGoToStderr(t *testing.T) {
	file := createTestParquetFile(t, t.TempDir(), "access.parquet", accessRows())

	code, stdout, stderr := runCLI(t, "-f", "jsonl", "-q", "lookup nosuch host", file)
	require.Equal(t, 0, code)
	require.Contains(t, stderr, "Warning: lookup: lookup table \"nosuch\" not found")
	require.Len(t, decodeLines(t, stdout), 4)
}

func TestLookupFlags(t *testing.T) {
	l := lookupFlags{}
	require.NoError(t, l.Set("hosts=a.csv"))
	require.NoError(t, l.Set(" codes =b=c.csv"))
	require.Equal(t, lookupFlags{"hosts": "a.csv", "codes": "b=c.csv"}, l)
	require.Error(t, l.Set("=x.csv"))
	require.Error(t, l.Set("hosts="))
}
