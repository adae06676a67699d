package query

import (
	"regexp"
	"strings"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota

	// Structure
	TokenPipe     // |
	TokenComma    // ,
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenDot      // .

	// Comparison operators
	TokenEquals    // =
	TokenNotEquals // !=
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenLess      // <
	TokenLessEq    // <=

	// Arithmetic operators (* is TokenWildcard)
	TokenPlus    // +
	TokenMinus   // -
	TokenSlash   // /
	TokenPercent // %

	// Literals and words
	TokenString
	TokenNumber
	TokenWildcard
	TokenIdent
	TokenKeyword
	TokenOperator
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenPipe:      "PIPE",
	TokenComma:     "COMMA",
	TokenLParen:    "LPAREN",
	TokenRParen:    "RPAREN",
	TokenLBracket:  "LBRACKET",
	TokenRBracket:  "RBRACKET",
	TokenDot:       "DOT",
	TokenEquals:    "EQUALS",
	TokenNotEquals: "NOT_EQUALS",
	TokenGreater:   "GREATER",
	TokenGreaterEq: "GREATER_EQ",
	TokenLess:      "LESS",
	TokenLessEq:    "LESS_EQ",
	TokenPlus:      "PLUS",
	TokenMinus:     "MINUS",
	TokenSlash:     "SLASH",
	TokenPercent:   "PERCENT",
	TokenString:    "STRING",
	TokenNumber:    "NUMBER",
	TokenWildcard:  "WILDCARD",
	TokenIdent:     "IDENTIFIER",
	TokenKeyword:   "KEYWORD",
	TokenOperator:  "OPERATOR",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token. Position is the byte offset of the
// token's first character in the query text.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

// Commands lists every command name the parser recognises, in the order
// used for "did you mean" suggestions.
var Commands = []string{
	"search",
	"where",
	"table",
	"sort",
	"head",
	"tail",
	"dedup",
	"fields",
	"stats",
	"eventstats",
	"streamstats",
	"top",
	"rare",
	"timechart",
	"chart",
	"eval",
	"rex",
	"rename",
	"spath",
	"lookup",
	"inputlookup",
	"join",
	"transaction",
	"fillnull",
	"replace",
	"regex",
	"bin",
	"bucket",
	"makemv",
	"mvexpand",
	"addtotals",
	"reverse",
	"uniq",
	"makeresults",
	"convert",
}

var keywordSet = func() map[string]bool {
	m := make(map[string]bool, len(Commands))
	for _, c := range Commands {
		m[c] = true
	}
	return m
}()

// Operators are word operators, matched case-insensitively and stored
// upper case.
var Operators = []string{"AND", "OR", "NOT", "AS", "BY", "IN", "LIKE", "IS", "OVER", "OUTPUT", "OUTPUTNEW"}

var operatorSet = func() map[string]bool {
	m := make(map[string]bool, len(Operators))
	for _, o := range Operators {
		m[o] = true
	}
	return m
}()

// IsKeyword reports whether word (any case) is a command name
func IsKeyword(word string) bool {
	return keywordSet[strings.ToLower(word)]
}

// IsOperator reports whether word (any case) is a word operator
func IsOperator(word string) bool {
	return operatorSet[strings.ToUpper(word)]
}

// AggregationFunctions is the set of function names accepted by stats,
// eventstats, streamstats, chart and timechart. Percentiles (perc95, p99,
// exactperc50, upperperc90) are matched by pattern.
var AggregationFunctions = []string{
	"count", "c", "sum", "avg", "mean", "min", "max", "range",
	"values", "list", "dc", "distinct_count", "first", "last",
	"earliest", "latest", "stdev", "stdevp", "var", "varp",
	"median", "mode",
}

var aggregationSet = func() map[string]bool {
	m := make(map[string]bool, len(AggregationFunctions))
	for _, f := range AggregationFunctions {
		m[f] = true
	}
	return m
}()

var percentileRe = regexp.MustCompile(`^(?:perc|p|exactperc|upperperc)(\d{1,2}(?:\.\d+)?|100)$`)

// IsAggregationFunction reports whether name is a recognised aggregation
func IsAggregationFunction(name string) bool {
	name = strings.ToLower(name)
	return aggregationSet[name] || percentileRe.MatchString(name)
}

// Query is a parsed pipeline
type Query struct {
	Commands []Command
}

// Expression is a node of a where/eval expression tree
type Expression interface {
	expr()
}

// LiteralExpr is a number (float64), string, bool or nil
type LiteralExpr struct {
	Value interface{}
}

// FieldExpr references a record field; dotted names traverse nested maps
type FieldExpr struct {
	Name string
}

// FunctionExpr is a call such as if(x>1, "a", "b")
type FunctionExpr struct {
	Name string
	Args []Expression
}

// ComparisonExpr compares Left with Right. For IN, Values holds the list
// and Right is nil. For IS NULL, Right is nil and Negate selects IS NOT.
type ComparisonExpr struct {
	Operator string // =, !=, <, <=, >, >=, LIKE, IN, IS
	Left     Expression
	Right    Expression
	Values   []Expression
	Negate   bool
}

// LogicalExpr combines boolean operands. NOT uses only Left.
type LogicalExpr struct {
	Operator string // AND, OR, NOT
	Left     Expression
	Right    Expression
}

// ArithmeticExpr is a binary numeric operation; "." concatenates strings
type ArithmeticExpr struct {
	Operator string // +, -, *, /, %, .
	Left     Expression
	Right    Expression
}

func (*LiteralExpr) expr()    {}
func (*FieldExpr) expr()      {}
func (*FunctionExpr) expr()   {}
func (*ComparisonExpr) expr() {}
func (*LogicalExpr) expr()    {}
func (*ArithmeticExpr) expr() {}
