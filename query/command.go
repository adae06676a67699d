package query

import "time"

// Command is one pipeline stage. The set of variants is closed; the
// executor switches over all of them.
type Command interface {
	command()
	// Name returns the command keyword, used in errors and logs
	Name() string
}

// LogicalOp joins a search condition with the one that follows it
type LogicalOp string

const (
	LogicalNone LogicalOp = ""
	LogicalAnd  LogicalOp = "AND"
	LogicalOr   LogicalOp = "OR"
)

// SearchCondition is one term of a search command. A condition with an
// empty Field matches Value as a substring of any field.
type SearchCondition struct {
	Field     string
	Operator  string // =, !=, >, >=, <, <=, IN
	Value     string
	Values    []string // IN list
	Negated   bool
	LogicalOp LogicalOp // how the next condition combines with this one
}

// SearchCommand filters records by a left-to-right chain of conditions
type SearchCommand struct {
	Conditions []SearchCondition
}

// WhereCommand keeps records for which Expr is truthy
type WhereCommand struct {
	Expr Expression
}

// TableCommand projects records onto Fields in order
type TableCommand struct {
	Fields []string
}

// SortField is one sort key
type SortField struct {
	Field string
	Desc  bool
}

// SortCommand sorts records; Limit 0 keeps all
type SortCommand struct {
	Fields []SortField
	Limit  int
}

// HeadCommand keeps the first Count records
type HeadCommand struct {
	Count int
}

// TailCommand keeps the last Count records
type TailCommand struct {
	Count int
}

// DedupCommand drops records whose Fields tuple was already seen
type DedupCommand struct {
	Fields      []string
	Keep        int // records kept per key, default 1
	Consecutive bool
	KeepEmpty   bool
}

// FieldsCommand keeps (Exclude=false) or removes (Exclude=true) fields
type FieldsCommand struct {
	Fields  []string
	Exclude bool
}

// Aggregation is one function(field) AS alias item
type Aggregation struct {
	Function string
	Field    string
	Alias    string
}

// OutputName returns the column an aggregation writes to
func (a Aggregation) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	if a.Field != "" {
		return a.Function + "(" + a.Field + ")"
	}
	return a.Function
}

// StatsCommand computes one row per group
type StatsCommand struct {
	Aggregations []Aggregation
	GroupBy      []string
}

// EventstatsCommand adds group aggregates to every record
type EventstatsCommand struct {
	Aggregations []Aggregation
	GroupBy      []string
}

// StreamstatsCommand adds running aggregates to every record. Window 0
// means unbounded; Current controls whether a record sees itself.
type StreamstatsCommand struct {
	Aggregations []Aggregation
	GroupBy      []string
	Window       int
	Current      bool
	Global       bool
}

// TopCommand lists the most frequent values of Field
type TopCommand struct {
	Field        string
	GroupBy      []string
	Limit        int
	CountField   string
	PercentField string
	ShowCount    bool
	ShowPercent  bool
}

// RareCommand lists the least frequent values of Field
type RareCommand struct {
	TopCommand
}

// TimechartCommand aggregates records into _time buckets
type TimechartCommand struct {
	Span         string
	Aggregations []Aggregation
	SplitBy      string
	Continuous   bool
	Limit        int
}

// ChartCommand aggregates records into rows by RowField and columns by
// ColumnField
type ChartCommand struct {
	Aggregations []Aggregation
	RowField     string
	ColumnField  string
}

// EvalAssignment is one field = expression pair
type EvalAssignment struct {
	Field string
	Expr  Expression
}

// EvalCommand evaluates assignments left to right for every record
type EvalCommand struct {
	Assignments []EvalAssignment
}

// RexCommand extracts named capture groups from Field
type RexCommand struct {
	Field    string
	Pattern  string
	MaxMatch int    // 0 means unlimited
	Mode     string // "" or "sed"
}

// Rename is one from AS to pair; a trailing * renames by prefix
type Rename struct {
	From string
	To   string
}

// RenameCommand renames fields
type RenameCommand struct {
	Renames []Rename
}

// FieldMapping maps a lookup table field to a record field
type FieldMapping struct {
	Source string
	Target string
}

// LookupCommand enriches records from a lookup table
type LookupCommand struct {
	Table        string
	Field        string // key in the lookup table
	LocalField   string // key in the record, defaults to Field
	OutputFields []FieldMapping
	OutputNew    bool // only fill fields the record does not have
}

// InputlookupCommand replaces the record set with a lookup table
type InputlookupCommand struct {
	Table string
}

// JoinType selects what happens to records without a match
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinOuter JoinType = "outer"
)

// JoinCommand joins records with a lookup table or a subsearch
type JoinCommand struct {
	Type      JoinType
	Fields    []string
	Max       int // 0 means unlimited
	Table     string
	Subsearch *Query
}

// TransactionCommand groups related events into transactions
type TransactionCommand struct {
	Fields      []string
	MaxSpan     time.Duration
	MaxPause    time.Duration
	MaxEvents   int
	StartsWith  Expression
	EndsWith    Expression

	// KeepEvicted is nil unless keepevicted was given. true marks every
	// transaction with closed_txn; false drops the ones that were not
	// both opened by StartsWith and closed by EndsWith.
	KeepEvicted *bool
}

// FillnullCommand replaces missing values
type FillnullCommand struct {
	Value  interface{}
	Fields []string
}

// Replacement is one old WITH new pair; both sides may contain *
type Replacement struct {
	Old string
	New string
}

// ReplaceCommand rewrites field values
type ReplaceCommand struct {
	Replacements []Replacement
	Fields       []string
}

// RegexCommand filters records by a regular expression
type RegexCommand struct {
	Field   string
	Pattern string
	Negate  bool
}

// BinCommand discretises a numeric or time field
type BinCommand struct {
	Field string
	Alias string
	Span  string
	Bins  int
}

// MakemvCommand splits a field into a multivalue
type MakemvCommand struct {
	Field      string
	Delim      string
	Tokenizer  string
	AllowEmpty bool
}

// MvexpandCommand emits one record per value of a multivalue field
type MvexpandCommand struct {
	Field string
	Limit int
}

// AddtotalsCommand sums numeric fields per row and/or per column
type AddtotalsCommand struct {
	Fields     []string
	Row        bool
	Col        bool
	FieldName  string
	LabelField string
	Label      string
}

// ReverseCommand reverses record order
type ReverseCommand struct{}

// UniqCommand removes records identical to the preceding one
type UniqCommand struct{}

// MakeresultsCommand generates Count records
type MakeresultsCommand struct {
	Count int
}

// Conversion is one fn(field) AS alias item of convert
type Conversion struct {
	Function string
	Field    string
	Alias    string
}

// ConvertCommand converts field values
type ConvertCommand struct {
	TimeFormat  string
	Conversions []Conversion
}

// SpathCommand extracts values from a JSON field
type SpathCommand struct {
	Input  string
	Output string
	Path   string
}

func (*SearchCommand) command()      {}
func (*WhereCommand) command()       {}
func (*TableCommand) command()       {}
func (*SortCommand) command()        {}
func (*HeadCommand) command()        {}
func (*TailCommand) command()        {}
func (*DedupCommand) command()       {}
func (*FieldsCommand) command()      {}
func (*StatsCommand) command()       {}
func (*EventstatsCommand) command()  {}
func (*StreamstatsCommand) command() {}
func (*TopCommand) command()         {}
func (*RareCommand) command()        {}
func (*TimechartCommand) command()   {}
func (*ChartCommand) command()       {}
func (*EvalCommand) command()        {}
func (*RexCommand) command()         {}
func (*RenameCommand) command()      {}
func (*LookupCommand) command()      {}
func (*InputlookupCommand) command() {}
func (*JoinCommand) command()        {}
func (*TransactionCommand) command() {}
func (*FillnullCommand) command()    {}
func (*ReplaceCommand) command()     {}
func (*RegexCommand) command()       {}
func (*BinCommand) command()         {}
func (*MakemvCommand) command()      {}
func (*MvexpandCommand) command()    {}
func (*AddtotalsCommand) command()   {}
func (*ReverseCommand) command()     {}
func (*UniqCommand) command()        {}
func (*MakeresultsCommand) command() {}
func (*ConvertCommand) command()     {}
func (*SpathCommand) command()       {}

func (*SearchCommand) Name() string      { return "search" }
func (*WhereCommand) Name() string       { return "where" }
func (*TableCommand) Name() string       { return "table" }
func (*SortCommand) Name() string        { return "sort" }
func (*HeadCommand) Name() string        { return "head" }
func (*TailCommand) Name() string        { return "tail" }
func (*DedupCommand) Name() string       { return "dedup" }
func (*FieldsCommand) Name() string      { return "fields" }
func (*StatsCommand) Name() string       { return "stats" }
func (*EventstatsCommand) Name() string  { return "eventstats" }
func (*StreamstatsCommand) Name() string { return "streamstats" }
func (*TopCommand) Name() string         { return "top" }
func (*RareCommand) Name() string        { return "rare" }
func (*TimechartCommand) Name() string   { return "timechart" }
func (*ChartCommand) Name() string       { return "chart" }
func (*EvalCommand) Name() string        { return "eval" }
func (*RexCommand) Name() string         { return "rex" }
func (*RenameCommand) Name() string      { return "rename" }
func (*LookupCommand) Name() string      { return "lookup" }
func (*InputlookupCommand) Name() string { return "inputlookup" }
func (*JoinCommand) Name() string        { return "join" }
func (*TransactionCommand) Name() string { return "transaction" }
func (*FillnullCommand) Name() string    { return "fillnull" }
func (*ReplaceCommand) Name() string     { return "replace" }
func (*RegexCommand) Name() string       { return "regex" }
func (*BinCommand) Name() string         { return "bin" }
func (*MakemvCommand) Name() string      { return "makemv" }
func (*MvexpandCommand) Name() string    { return "mvexpand" }
func (*AddtotalsCommand) Name() string   { return "addtotals" }
func (*ReverseCommand) Name() string     { return "reverse" }
func (*UniqCommand) Name() string        { return "uniq" }
func (*MakeresultsCommand) Name() string { return "makeresults" }
func (*ConvertCommand) Name() string     { return "convert" }
func (*SpathCommand) Name() string       { return "spath" }
