package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses a token stream into a Query
type Parser struct {
	tokens       []Token
	input        string
	pos          int
	nesting      int // open subsearch brackets
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser. input is the text the tokens were read
// from; it is used to rebuild words that the lexer split, such as
// web-01.example.com or 1h.
func NewParser(tokens []Token, input string) *Parser {
	return &Parser{
		tokens:       tokens,
		input:        input,
		depthCounter: NewExpressionDepthCounter(),
	}
}

// Parse tokenizes and parses a query
func Parse(query string) (*Query, error) {
	// Validate query length
	if err := ValidateQuery(query); err != nil {
		return nil, asError(err, "")
	}

	tokens, err := Tokenize(query)
	if err != nil {
		return nil, err
	}

	// Validate token count
	if err := ValidateTokens(tokens); err != nil {
		return nil, asError(err, "")
	}

	return NewParser(tokens, query).parsePipeline()
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Position: len(p.input)}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	return p.peekN(1)
}

func (p *Parser) peekN(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return Token{Type: TokenEOF, Position: len(p.input)}
	}
	return p.tokens[p.pos+n]
}

// advance consumes the current token and returns it
func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool {
	return p.current().Type == t
}

// checkOp reports whether the current token is the word operator op
func (p *Parser) checkOp(op string) bool {
	tok := p.current()
	return tok.Type == TokenOperator && tok.Value == op
}

// checkWord reports whether the current token is an identifier equal to
// word, ignoring case
func (p *Parser) checkWord(word string) bool {
	tok := p.current()
	return tok.Type == TokenIdent && strings.EqualFold(tok.Value, word)
}

// checkOption reports whether the current tokens read name=
func (p *Parser) checkOption(name string) bool {
	return p.checkWord(name) && p.peek().Type == TokenEquals
}

// atCommandEnd reports whether the current command has no more tokens
func (p *Parser) atCommandEnd() bool {
	switch p.current().Type {
	case TokenEOF, TokenPipe:
		return true
	case TokenRBracket:
		return p.nesting > 0
	}
	return false
}

// expect consumes a token of type t or fails with a parse error
func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if !p.check(t) {
		return Token{}, p.errorf("expected %s, got %s", what, describe(p.current()))
	}
	return p.advance(), nil
}

// errorf builds a parse error at the current token
func (p *Parser) errorf(format string, args ...interface{}) *Error {
	return NewParseError(fmt.Sprintf(format, args...), p.current().Position)
}

// describe renders a token for error messages
func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of query"
	case TokenString:
		return strconv.Quote(tok.Value)
	}
	return "'" + tok.Value + "'"
}

// adjacent reports whether the current token starts exactly where the
// previous one ended
func (p *Parser) adjacent() bool {
	if p.pos == 0 || p.pos >= len(p.tokens) {
		return false
	}
	return tokenEnd(p.tokens[p.pos-1], p.input) == p.tokens[p.pos].Position
}

func isWordStart(t TokenType) bool {
	switch t {
	case TokenIdent, TokenKeyword, TokenNumber, TokenWildcard, TokenSlash:
		return true
	}
	return false
}

func isWordPart(t TokenType) bool {
	switch t {
	case TokenIdent, TokenKeyword, TokenOperator, TokenNumber, TokenWildcard, TokenDot, TokenMinus, TokenSlash:
		return true
	}
	return false
}

// readWord consumes a run of adjacent word tokens and returns the source
// text they cover, so host=web-01.example.com and span=1h read as single
// values.
func (p *Parser) readWord() (string, bool) {
	if !isWordStart(p.current().Type) {
		return "", false
	}
	start := p.advance()
	end := tokenEnd(start, p.input)
	for isWordPart(p.current().Type) && p.adjacent() {
		end = tokenEnd(p.advance(), p.input)
	}
	return p.input[start.Position:end], true
}

// parseFieldName reads a field name, which may contain wildcards
func (p *Parser) parseFieldName(what string) (string, error) {
	if p.check(TokenString) {
		return p.advance().Value, nil
	}
	word, ok := p.readWord()
	if !ok {
		return "", p.errorf("expected %s, got %s", what, describe(p.current()))
	}
	if err := ValidateFieldName(word); err != nil {
		return "", asError(err, "")
	}
	return word, nil
}

// parseFieldList reads field names separated by optional commas, stopping
// at the command end or at stop
func (p *Parser) parseFieldList(stop func() bool) ([]string, error) {
	var fields []string
	for !p.atCommandEnd() && (stop == nil || !stop()) {
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		if !isWordStart(p.current().Type) && !p.check(TokenString) {
			break
		}
		f, err := p.parseFieldName("field name")
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// parseValue reads a quoted string or a bare word
func (p *Parser) parseValue(what string) (string, error) {
	if p.check(TokenString) {
		return p.advance().Value, nil
	}
	if p.check(TokenMinus) {
		// -word, as in sort options or signed spans
		minus := p.advance()
		word, ok := p.readWord()
		if !ok {
			return "", NewParseError("expected "+what, minus.Position)
		}
		return "-" + word, nil
	}
	word, ok := p.readWord()
	if !ok {
		return "", p.errorf("expected %s, got %s", what, describe(p.current()))
	}
	return word, nil
}

// parseOption consumes name=value and returns the value
func (p *Parser) parseOption() (string, string, error) {
	name := strings.ToLower(p.advance().Value)
	p.advance() // =
	value, err := p.parseValue("value for " + name)
	return name, value, err
}

func (p *Parser) parseIntOption(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, p.errorAtPrev("invalid value %q for %s: expected a non-negative integer", value, name)
	}
	return n, nil
}

func (p *Parser) parseBoolOption(name, value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "t", "1", "yes":
		return true, nil
	case "false", "f", "0", "no":
		return false, nil
	}
	return false, p.errorAtPrev("invalid value %q for %s: expected true or false", value, name)
}

// errorAtPrev builds a parse error at the most recently consumed token
func (p *Parser) errorAtPrev(format string, args ...interface{}) *Error {
	position := -1
	if p.pos > 0 && p.pos <= len(p.tokens) {
		position = p.tokens[p.pos-1].Position
	}
	return NewParseError(fmt.Sprintf(format, args...), position)
}

// parseCount reads an optional leading integer
func (p *Parser) parseCount(def int) (int, error) {
	if !p.check(TokenNumber) {
		return def, nil
	}
	tok := p.advance()
	n, err := strconv.Atoi(tok.Value)
	if err != nil || n < 0 {
		return 0, NewParseError(fmt.Sprintf("expected a non-negative integer, got %q", tok.Value), tok.Position)
	}
	return n, nil
}

// parsePipeline parses commands separated by pipes until EOF, or until the
// closing bracket of a subsearch
func (p *Parser) parsePipeline() (*Query, error) {
	q := &Query{}

	// a leading pipe is allowed: | makeresults
	if p.check(TokenPipe) {
		p.advance()
	}

	for !p.atPipelineEnd() {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		q.Commands = append(q.Commands, cmd)

		if p.check(TokenPipe) {
			p.advance()
			if p.atPipelineEnd() {
				return nil, p.errorf("expected a command after '|'")
			}
			continue
		}
		if !p.atPipelineEnd() {
			return nil, p.errorf("unexpected %s", describe(p.current()))
		}
	}

	return q, nil
}

func (p *Parser) atPipelineEnd() bool {
	if p.check(TokenEOF) {
		return true
	}
	return p.nesting > 0 && p.check(TokenRBracket)
}

// parseCommand parses one pipeline stage
func (p *Parser) parseCommand() (Command, error) {
	tok := p.current()

	if tok.Type == TokenKeyword {
		if p.peek().Type == TokenEquals && p.peek().Position == tokenEnd(tok, p.input) {
			// a field that happens to share a command's name: top=5
			return p.parseSearch()
		}
		p.advance()
		cmd, err := p.parseKeywordCommand(tok)
		if err != nil {
			return nil, err
		}
		if !p.atCommandEnd() {
			return nil, p.errorf("unexpected %s in %s", describe(p.current()), tok.Value)
		}
		return cmd, nil
	}

	if tok.Type == TokenIdent && p.inCommandPosition() {
		return nil, NewUnknownCommandError(tok.Value, tok.Position)
	}

	return p.parseSearch()
}

// inCommandPosition decides whether a leading identifier names a command
// rather than starting an implicit search, at the start of the query and
// after a pipe alike. Only option syntax makes it a command (fooo x=1);
// a bare word (| error) is a search term.
func (p *Parser) inCommandPosition() bool {
	return p.peek().Type == TokenIdent && p.peekN(2).Type == TokenEquals
}

func (p *Parser) adjacentAt(i int) bool {
	if i <= 0 || i >= len(p.tokens) {
		return false
	}
	return tokenEnd(p.tokens[i-1], p.input) == p.tokens[i].Position
}

func (p *Parser) parseKeywordCommand(tok Token) (Command, error) {
	switch tok.Value {
	case "search":
		return p.parseSearch()
	case "where":
		return p.parseWhere()
	case "table":
		return p.parseTable()
	case "fields":
		return p.parseFields()
	case "sort":
		return p.parseSort()
	case "head":
		return p.parseHead()
	case "tail":
		return p.parseTail()
	case "dedup":
		return p.parseDedup()
	case "stats":
		aggs, by, err := p.parseAggregations(tok.Value, nil)
		if err != nil {
			return nil, err
		}
		return &StatsCommand{Aggregations: aggs, GroupBy: by}, nil
	case "eventstats":
		aggs, by, err := p.parseAggregations(tok.Value, nil)
		if err != nil {
			return nil, err
		}
		return &EventstatsCommand{Aggregations: aggs, GroupBy: by}, nil
	case "streamstats":
		return p.parseStreamstats()
	case "top":
		cmd, err := p.parseTop(tok.Value)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case "rare":
		cmd, err := p.parseTop(tok.Value)
		if err != nil {
			return nil, err
		}
		return &RareCommand{TopCommand: *cmd}, nil
	case "timechart":
		return p.parseTimechart()
	case "chart":
		return p.parseChart()
	case "eval":
		return p.parseEval()
	case "rex":
		return p.parseRex()
	case "rename":
		return p.parseRename()
	case "spath":
		return p.parseSpath()
	case "lookup":
		return p.parseLookup()
	case "inputlookup":
		table, err := p.parseValue("lookup table name")
		if err != nil {
			return nil, err
		}
		return &InputlookupCommand{Table: table}, nil
	case "join":
		return p.parseJoin()
	case "transaction":
		return p.parseTransaction()
	case "fillnull":
		return p.parseFillnull()
	case "replace":
		return p.parseReplace()
	case "regex":
		return p.parseRegex()
	case "bin", "bucket":
		return p.parseBin()
	case "makemv":
		return p.parseMakemv()
	case "mvexpand":
		return p.parseMvexpand()
	case "addtotals":
		return p.parseAddtotals()
	case "reverse":
		return &ReverseCommand{}, nil
	case "uniq":
		return &UniqCommand{}, nil
	case "makeresults":
		return p.parseMakeresults()
	case "convert":
		return p.parseConvert()
	default:
		return nil, NewUnknownCommandError(tok.Value, tok.Position)
	}
}

// parseSearch parses a chain of search conditions. The logical operator
// after a condition decides how the next one combines with the result so
// far; there is no precedence at this level.
func (p *Parser) parseSearch() (*SearchCommand, error) {
	cmd := &SearchCommand{}

	for !p.atCommandEnd() {
		negated := false
		for p.checkOp("NOT") {
			negated = !negated
			p.advance()
		}

		cond, err := p.parseSearchCondition()
		if err != nil {
			return nil, err
		}
		cond.Negated = negated

		if p.checkOp("AND") || p.checkOp("OR") {
			cond.LogicalOp = LogicalOp(p.advance().Value)
			if p.atCommandEnd() {
				return nil, p.errorf("expected a search term after %s", cond.LogicalOp)
			}
		}
		cmd.Conditions = append(cmd.Conditions, cond)
	}

	return cmd, nil
}

func (p *Parser) parseSearchCondition() (SearchCondition, error) {
	tok := p.current()

	switch {
	case tok.Type == TokenString:
		p.advance()
		return SearchCondition{Operator: "=", Value: tok.Value}, nil

	case isWordStart(tok.Type):
		word, _ := p.readWord()
		if op, ok := p.comparisonOperator(); ok {
			if tok.Type == TokenNumber || tok.Type == TokenWildcard || tok.Type == TokenSlash {
				return SearchCondition{}, NewParseError(fmt.Sprintf("invalid field name %q", word), tok.Position)
			}
			value, err := p.parseValue("value after " + op)
			if err != nil {
				return SearchCondition{}, err
			}
			return SearchCondition{Field: word, Operator: op, Value: value}, nil
		}
		if p.checkOp("IN") {
			p.advance()
			values, err := p.parseValueList()
			if err != nil {
				return SearchCondition{}, err
			}
			return SearchCondition{Field: word, Operator: "IN", Values: values}, nil
		}
		return SearchCondition{Operator: "=", Value: word}, nil

	case tok.Type == TokenOperator && tok.Value != "AND" && tok.Value != "OR" && tok.Value != "NOT":
		// a word such as "as" or "by" used as a search term
		p.advance()
		return SearchCondition{Operator: "=", Value: p.input[tok.Position:tokenEnd(tok, p.input)]}, nil
	}

	return SearchCondition{}, p.errorf("unexpected %s in search", describe(tok))
}

// comparisonOperator consumes a comparison token if one is current
func (p *Parser) comparisonOperator() (string, bool) {
	switch p.current().Type {
	case TokenEquals, TokenNotEquals, TokenGreater, TokenGreaterEq, TokenLess, TokenLessEq:
		op := p.advance().Value
		if op == "=" && p.check(TokenEquals) && p.adjacent() {
			p.advance() // ==
		}
		return op, true
	}
	return "", false
}

// parseValueList reads ( v1, v2, ... )
func (p *Parser) parseValueList() ([]string, error) {
	if _, err := p.expect(TokenLParen, "'(' after IN"); err != nil {
		return nil, err
	}
	var values []string
	for !p.check(TokenRParen) {
		if p.check(TokenEOF) {
			return nil, p.errorf("expected ')' to close IN list")
		}
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		v, err := p.parseValue("value in IN list")
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	p.advance()
	return values, nil
}
