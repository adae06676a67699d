package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

// LogRecord is one event: an open map with the reserved keys _time and _raw
type LogRecord = map[string]interface{}

const (
	// DefaultMaxResults is the row count above which a stage adds a warning
	DefaultMaxResults = 50000

	// DefaultTimeout is the time budget of one query
	DefaultTimeout = 30 * time.Second

	// fieldSampleSize bounds how many output records contribute to Fields
	fieldSampleSize = 100

	// maxGeneratedRows bounds the records a command may create from
	// nothing: makeresults rows and timechart cont=true buckets
	maxGeneratedRows = 100000
)

// Options configures an Executor. Zero values select the defaults.
type Options struct {
	MaxResults int
	Timeout    time.Duration

	// StrictFunctions makes an unknown eval function a row error instead
	// of evaluating to null
	StrictFunctions bool

	Logger log.Logger

	// Now is the clock behind now(), relative_time and makeresults
	Now func() time.Time
}

// ExecutionResult is the outcome of one query. A failed query has
// Success=false, an Error, empty Data and Fields and a zero Count.
type ExecutionResult struct {
	Success       bool          `json:"success"`
	Data          []LogRecord   `json:"data"`
	Fields        []string      `json:"fields"`
	Count         int           `json:"count"`
	ExecutionTime time.Duration `json:"-"`
	Error         *Error        `json:"error,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	QueryID       string        `json:"queryId"`
}

// Executor runs queries against a fixed record set and lookup tables.
// Inputs are never modified. An Executor may run queries concurrently;
// each call keeps its state in its own execution context.
type Executor struct {
	records []LogRecord
	lookups map[string][]LogRecord
	opts    Options
	logger  log.Logger
}

// NewExecutor creates an executor over records. lookups maps a table
// name to its rows and may be nil.
func NewExecutor(records []LogRecord, lookups map[string][]LogRecord, opts Options) *Executor {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if lookups == nil {
		lookups = map[string][]LogRecord{}
	}
	return &Executor{
		records: records,
		lookups: lookups,
		opts:    opts,
		logger:  log.With(opts.Logger, "component", "executor"),
	}
}

// Execute runs a query
func (e *Executor) Execute(query string) *ExecutionResult {
	return e.ExecuteContext(context.Background(), query)
}

// ExecuteContext runs a query. Cancellation and the time budget are
// checked between pipeline stages; a running stage is not interrupted.
func (e *Executor) ExecuteContext(ctx context.Context, query string) *ExecutionResult {
	start := time.Now()
	id := uuid.NewString()
	logger := log.With(e.logger, "query_id", id)

	result := &ExecutionResult{QueryID: id}
	fail := func(err *Error) *ExecutionResult {
		result.Success = false
		result.Error = err
		result.Data = []LogRecord{}
		result.Fields = []string{}
		result.Count = 0
		result.ExecutionTime = time.Since(start)
		level.Warn(logger).Log("msg", "query failed", "code", err.Code, "err", err.Message)
		return result
	}

	q, err := Parse(query)
	if err != nil {
		return fail(asError(err, ""))
	}

	c := newExecContext(ctx, e, logger, start)
	records, err := c.run(q, e.records)
	if err != nil {
		return fail(asError(err, ""))
	}
	if records == nil {
		records = []LogRecord{}
	}

	result.Success = true
	result.Data = records
	result.Fields = c.fieldList(records)
	result.Count = len(records)
	result.Warnings = c.warnings
	result.ExecutionTime = time.Since(start)

	level.Info(logger).Log(
		"msg", "query executed",
		"commands", len(q.Commands),
		"rows", result.Count,
		"warnings", len(result.Warnings),
		"duration", result.ExecutionTime,
	)
	return result
}

// execContext holds the state of one Execute call
type execContext struct {
	ctx      context.Context
	exec     *Executor
	logger   log.Logger
	start    time.Time
	now      time.Time
	warnings []string
	warned   map[string]bool

	// fieldOrder is the column order set by the last projecting command
	fieldOrder []string

	wildcards map[string]*regexp.Regexp
}

func newExecContext(ctx context.Context, e *Executor, logger log.Logger, start time.Time) *execContext {
	return &execContext{
		ctx:       ctx,
		exec:      e,
		logger:    logger,
		start:     start,
		now:       e.opts.Now(),
		warned:    make(map[string]bool),
		wildcards: make(map[string]*regexp.Regexp),
	}
}

// run folds the commands over records, left to right
func (c *execContext) run(q *Query, records []LogRecord) ([]LogRecord, error) {
	for _, cmd := range q.Commands {
		if err := c.checkBudget(cmd); err != nil {
			return nil, err
		}

		stageStart := time.Now()
		out, err := c.executeCommand(cmd, records)
		if err != nil {
			return nil, asError(err, cmd.Name())
		}

		if len(out) > c.exec.opts.MaxResults {
			c.warn(fmt.Sprintf("%s produced %d results, more than the limit of %d", cmd.Name(), len(out), c.exec.opts.MaxResults))
		}
		level.Debug(c.logger).Log(
			"msg", "stage executed",
			"command", cmd.Name(),
			"rows_in", len(records),
			"rows_out", len(out),
			"duration", time.Since(stageStart),
		)
		records = out
	}
	return records, nil
}

// checkBudget fails when the context is done or the time budget is spent
func (c *execContext) checkBudget(cmd Command) error {
	if err := c.ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return NewTimeoutError(cmd.Name(), c.exec.opts.Timeout)
		}
		return NewRuntimeError(cmd.Name(), fmt.Errorf("query cancelled: %w", err))
	}
	if time.Since(c.start) > c.exec.opts.Timeout {
		return NewTimeoutError(cmd.Name(), c.exec.opts.Timeout)
	}
	return nil
}

// executeCommand dispatches one stage
func (c *execContext) executeCommand(cmd Command, records []LogRecord) ([]LogRecord, error) {
	switch cmd := cmd.(type) {
	case *SearchCommand:
		return c.executeSearch(cmd, records), nil
	case *WhereCommand:
		return c.executeWhere(cmd, records), nil
	case *TableCommand:
		return c.executeTable(cmd, records), nil
	case *FieldsCommand:
		return c.executeFields(cmd, records), nil
	case *SortCommand:
		return executeSort(cmd, records), nil
	case *HeadCommand:
		return executeHead(cmd, records), nil
	case *TailCommand:
		return executeTail(cmd, records), nil
	case *DedupCommand:
		return executeDedup(cmd, records), nil
	case *StatsCommand:
		return c.executeStats(cmd, records), nil
	case *EventstatsCommand:
		return executeEventstats(cmd, records), nil
	case *StreamstatsCommand:
		return executeStreamstats(cmd, records), nil
	case *TopCommand:
		return c.executeTop(cmd, records, false), nil
	case *RareCommand:
		return c.executeTop(&cmd.TopCommand, records, true), nil
	case *TimechartCommand:
		return c.executeTimechart(cmd, records)
	case *ChartCommand:
		return c.executeChart(cmd, records), nil
	case *EvalCommand:
		return c.executeEval(cmd, records), nil
	case *RexCommand:
		return executeRex(cmd, records)
	case *RenameCommand:
		return c.executeRename(cmd, records), nil
	case *SpathCommand:
		return c.executeSpath(cmd, records)
	case *LookupCommand:
		return c.executeLookup(cmd, records), nil
	case *InputlookupCommand:
		return c.executeInputlookup(cmd), nil
	case *JoinCommand:
		return c.executeJoin(cmd, records)
	case *TransactionCommand:
		return c.executeTransaction(cmd, records), nil
	case *FillnullCommand:
		return executeFillnull(cmd, records), nil
	case *ReplaceCommand:
		return c.executeReplace(cmd, records), nil
	case *RegexCommand:
		return c.executeRegex(cmd, records)
	case *BinCommand:
		return executeBin(cmd, records)
	case *MakemvCommand:
		return executeMakemv(cmd, records)
	case *MvexpandCommand:
		return executeMvexpand(cmd, records), nil
	case *AddtotalsCommand:
		return c.executeAddtotals(cmd, records), nil
	case *ReverseCommand:
		return executeReverse(records), nil
	case *UniqCommand:
		return executeUniq(records), nil
	case *MakeresultsCommand:
		return c.executeMakeresults(cmd)
	case *ConvertCommand:
		return c.executeConvert(cmd, records), nil
	default:
		return nil, NewRuntimeError(cmd.Name(), fmt.Errorf("command %q is not supported", cmd.Name()))
	}
}

// warn records a non-fatal warning once per query
func (c *execContext) warn(msg string) {
	if c.warned[msg] {
		return
	}
	c.warned[msg] = true
	c.warnings = append(c.warnings, msg)
	level.Debug(c.logger).Log("msg", "warning", "warning", msg)
}

// rowErrors counts per-row evaluation failures of one command
type rowErrors struct {
	count int
	first error
}

func (r *rowErrors) add(err error) {
	if r.first == nil {
		r.first = err
	}
	r.count++
}

// warnRows turns the row failures of a command into one warning
func (c *execContext) warnRows(command string, r rowErrors) {
	if r.count == 0 {
		return
	}
	msg := r.first.Error()
	var qe *Error
	if errors.As(r.first, &qe) {
		msg = qe.Message
	}
	c.warn(fmt.Sprintf("%s: %d row(s) skipped: %s", command, r.count, msg))
}

// setFieldOrder records the column order of a projecting command
func (c *execContext) setFieldOrder(fields []string) {
	order := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" || strings.Contains(f, "*") || seen[f] {
			continue
		}
		seen[f] = true
		order = append(order, f)
	}
	c.fieldOrder = order
}

// fieldList returns the union of keys of the first records: fields named
// by the last projecting command first, then the rest sorted
func (c *execContext) fieldList(records []LogRecord) []string {
	seen := make(map[string]bool)
	for i, rec := range records {
		if i >= fieldSampleSize {
			break
		}
		for k := range rec {
			seen[k] = true
		}
	}

	fields := make([]string, 0, len(seen))
	for _, f := range c.fieldOrder {
		if seen[f] {
			fields = append(fields, f)
			delete(seen, f)
		}
	}
	rest := make([]string, 0, len(seen))
	for f := range seen {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	return append(fields, rest...)
}
