package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vegasq/splcat/internal/config"
	"github.com/vegasq/splcat/output"
	"github.com/vegasq/splcat/query"
	"github.com/vegasq/splcat/reader"
)

// lookupFlags collects repeated -lookup name=path flags
type lookupFlags map[string]string

func (l lookupFlags) String() string {
	parts := make([]string, 0, len(l))
	for name, path := range l {
		parts = append(parts, name+"="+path)
	}
	return strings.Join(parts, ",")
}

func (l lookupFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	l[strings.TrimSpace(name)] = path
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("splcat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		queryFlag   = fs.String("q", "", "search query (e.g., \"search status>=500 | stats count by host\")")
		configFlag  = fs.String("config", "", "path to a YAML config file")
		formatFlag  = fs.String("f", "", "output format: "+strings.Join(output.Formats, ", "))
		inputFlag   = fs.String("input-format", "", "input format: auto, parquet, json, csv, xlsx, text")
		timeField   = fs.String("time-field", "", "field parsed into _time")
		limitFlag   = fs.Int("limit", 0, "limit number of rows printed (0 = unlimited)")
		maxResults  = fs.Int("max-results", 0, "row count above which a warning is reported")
		timeoutFlag = fs.Duration("timeout", 0, "query time budget")
		strictFlag  = fs.Bool("strict", false, "unknown eval functions are errors")
		logLevel    = fs.String("log-level", "", "log level: debug, info, warn, error, none")
		schemaFlag  = fs.Bool("schema", false, "show a field summary of the input instead of running a query")
		funcsFlag   = fs.Bool("functions", false, "list the eval functions and exit")
	)
	lookups := lookupFlags{}
	fs.Var(lookups, "lookup", "lookup table as name=path (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: splcat [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Run a pipelined search query over log and data files.\n\n")
		fmt.Fprintf(stderr, "IMPORTANT: All flags must come BEFORE file arguments.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  splcat -q 'search status>=500 | stats count by host' access.jsonl\n")
		fmt.Fprintf(stderr, "  splcat -f csv -q 'timechart span=5m count by status' 'logs/**/*.jsonl.gz'\n")
		fmt.Fprintf(stderr, "  splcat -lookup hosts=hosts.csv -q 'lookup hosts host OUTPUT owner' events.parquet\n")
		fmt.Fprintf(stderr, "  splcat -schema events.parquet\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	// explicit flags win over the config file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "f":
			cfg.Format = *formatFlag
		case "input-format":
			cfg.InputFormat = *inputFlag
		case "time-field":
			cfg.TimeField = *timeField
		case "max-results":
			cfg.MaxResults = *maxResults
		case "timeout":
			cfg.Timeout = *timeoutFlag
		case "strict":
			cfg.StrictFunctions = *strictFlag
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	for name, path := range lookups {
		cfg.Lookups[name] = path
	}

	if *limitFlag < 0 {
		fmt.Fprintf(stderr, "Error: -limit must be non-negative, got %d\n", *limitFlag)
		return 1
	}
	if *schemaFlag && *queryFlag != "" {
		fmt.Fprintf(stderr, "Error: -schema and -q cannot be used together\n")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	levelOpt, _ := cfg.LevelFilter()
	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	logger = level.NewFilter(logger, levelOpt)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	formatter, err := output.NewFormatter(cfg.Format, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *funcsFlag {
		names := query.GetGlobalRegistry().Names()
		rows := make([]map[string]interface{}, len(names))
		for i, name := range names {
			rows[i] = map[string]interface{}{"function": name}
		}
		return writeRows(formatter, rows, []string{"function"}, stderr)
	}

	inputFormat, err := reader.ParseFormat(cfg.InputFormat)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	records := []map[string]interface{}{}
	if fs.NArg() > 0 {
		start := time.Now()
		records, err = reader.ReadFiles(fs.Args(), reader.Options{Format: inputFormat, TimeField: cfg.TimeField})
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(stderr, "Please check the file path and try again.\n")
			}
			return 1
		}
		level.Debug(logger).Log("msg", "input loaded", "files", fs.NArg(), "records", len(records), "duration", time.Since(start))
	}

	if *schemaFlag {
		if fs.NArg() == 0 {
			fmt.Fprintf(stderr, "Error: missing input file argument\n\n")
			fs.Usage()
			return 1
		}
		infos := reader.ExtractSchemaInfo(records)
		rows := make([]map[string]interface{}, len(infos))
		for i, info := range infos {
			rows[i] = map[string]interface{}{
				"name":     info.Name,
				"type":     info.Type,
				"count":    info.Count,
				"distinct": info.Distinct,
				"null":     info.Null,
			}
		}
		return writeRows(formatter, rows, []string{"name", "type", "count", "distinct", "null"}, stderr)
	}

	if *queryFlag == "" {
		fmt.Fprintf(stderr, "Error: missing -q query\n\n")
		fs.Usage()
		return 1
	}

	tables, err := reader.ReadLookups(cfg.Lookups)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	exec := query.NewExecutor(records, tables, query.Options{
		MaxResults:      cfg.MaxResults,
		Timeout:         cfg.Timeout,
		StrictFunctions: cfg.StrictFunctions,
		Logger:          logger,
	})
	result := exec.ExecuteContext(ctx, *queryFlag)

	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	if !result.Success {
		fmt.Fprintf(stderr, "Error: %v\n", result.Error)
		return 1
	}

	rows := result.Data
	if *limitFlag > 0 && len(rows) > *limitFlag {
		rows = rows[:*limitFlag]
	}
	return writeRows(formatter, rows, result.Fields, stderr)
}

func writeRows(formatter output.Formatter, rows []map[string]interface{}, fields []string, stderr io.Writer) int {
	if err := formatter.Format(rows, fields); err != nil {
		fmt.Fprintf(stderr, "Error formatting output: %v\n", err)
		return 1
	}
	return 0
}
