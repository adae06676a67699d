package query

import (
	"fmt"
	"strings"
	"time"
)

func (p *Parser) parseWhere() (*WhereCommand, error) {
	if p.atCommandEnd() {
		return nil, p.errorf("where requires an expression")
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &WhereCommand{Expr: expr}, nil
}

func (p *Parser) parseTable() (*TableCommand, error) {
	fields, err := p.parseFieldList(nil)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, p.errorf("table requires at least one field")
	}
	return &TableCommand{Fields: fields}, nil
}

func (p *Parser) parseFields() (*FieldsCommand, error) {
	cmd := &FieldsCommand{}
	switch {
	case p.check(TokenMinus):
		p.advance()
		cmd.Exclude = true
	case p.check(TokenPlus):
		p.advance()
	}
	fields, err := p.parseFieldList(nil)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, p.errorf("fields requires at least one field")
	}
	cmd.Fields = fields
	return cmd, nil
}

// parseSort parses: sort [N] [limit=N] [-|+]field, ... [desc]
func (p *Parser) parseSort() (*SortCommand, error) {
	cmd := &SortCommand{}
	limit, err := p.parseCount(0)
	if err != nil {
		return nil, err
	}
	cmd.Limit = limit

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
			continue
		case p.checkOption("limit"):
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			if cmd.Limit, err = p.parseIntOption(name, value); err != nil {
				return nil, err
			}
			continue
		case len(cmd.Fields) > 0 && (p.checkWord("desc") || p.checkWord("d")) && p.peekEndsCommand():
			p.advance()
			for i := range cmd.Fields {
				cmd.Fields[i].Desc = !cmd.Fields[i].Desc
			}
			continue
		}

		desc := false
		switch {
		case p.check(TokenMinus):
			p.advance()
			desc = true
		case p.check(TokenPlus):
			p.advance()
		}
		field, err := p.parseFieldName("sort field")
		if err != nil {
			return nil, err
		}
		cmd.Fields = append(cmd.Fields, SortField{Field: field, Desc: desc})
	}

	if len(cmd.Fields) == 0 {
		return nil, p.errorf("sort requires at least one field")
	}
	return cmd, nil
}

// peekEndsCommand reports whether the token after the current one ends
// the command
func (p *Parser) peekEndsCommand() bool {
	switch p.peek().Type {
	case TokenEOF, TokenPipe:
		return true
	case TokenRBracket:
		return p.nesting > 0
	}
	return false
}

func (p *Parser) parseHead() (*HeadCommand, error) {
	n, err := p.parseLimit()
	if err != nil {
		return nil, err
	}
	return &HeadCommand{Count: n}, nil
}

func (p *Parser) parseTail() (*TailCommand, error) {
	n, err := p.parseLimit()
	if err != nil {
		return nil, err
	}
	return &TailCommand{Count: n}, nil
}

// parseLimit reads head/tail's count: N, limit=N or nothing (10)
func (p *Parser) parseLimit() (int, error) {
	if p.checkOption("limit") {
		name, value, err := p.parseOption()
		if err != nil {
			return 0, err
		}
		return p.parseIntOption(name, value)
	}
	return p.parseCount(10)
}

// parseDedup parses: dedup [N] field, ... [consecutive=bool] [keepempty=bool]
func (p *Parser) parseDedup() (*DedupCommand, error) {
	keep, err := p.parseCount(1)
	if err != nil {
		return nil, err
	}
	if keep == 0 {
		keep = 1
	}
	cmd := &DedupCommand{Keep: keep}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.checkOption("consecutive"), p.checkOption("keepempty"):
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			b, err := p.parseBoolOption(name, value)
			if err != nil {
				return nil, err
			}
			if name == "consecutive" {
				cmd.Consecutive = b
			} else {
				cmd.KeepEmpty = b
			}
		default:
			field, err := p.parseFieldName("dedup field")
			if err != nil {
				return nil, err
			}
			cmd.Fields = append(cmd.Fields, field)
		}
	}

	if len(cmd.Fields) == 0 {
		return nil, p.errorf("dedup requires at least one field")
	}
	return cmd, nil
}

// atOption reports whether the current tokens start a name=value option
func (p *Parser) atOption() bool {
	return p.current().Type == TokenIdent && p.peek().Type == TokenEquals
}

// parseAggregations parses fn(field) [AS alias] items and a trailing BY
// clause. Unrecognised function names are skipped without error. option is
// called for name=value pairs; a nil option rejects them.
func (p *Parser) parseAggregations(command string, option func(name, value string) error) ([]Aggregation, []string, error) {
	var (
		aggs    []Aggregation
		groupBy []string
	)

	for !p.atCommandEnd() {
		tok := p.current()
		switch {
		case tok.Type == TokenComma:
			p.advance()

		case p.checkOp("BY"):
			p.advance()
			fields, err := p.parseFieldList(p.atOption)
			if err != nil {
				return nil, nil, err
			}
			if len(fields) == 0 {
				return nil, nil, p.errorf("expected field after BY in %s", command)
			}
			groupBy = append(groupBy, fields...)

		case tok.Type == TokenIdent && p.peek().Type == TokenEquals:
			if option == nil {
				return nil, nil, p.errorf("unexpected option %q in %s", tok.Value, command)
			}
			name, value, err := p.parseOption()
			if err != nil {
				return nil, nil, err
			}
			if err := option(name, value); err != nil {
				return nil, nil, err
			}

		case tok.Type == TokenIdent || tok.Type == TokenKeyword:
			agg, ok, err := p.parseAggregation()
			if err != nil {
				return nil, nil, err
			}
			if ok {
				aggs = append(aggs, agg)
			}

		default:
			return nil, nil, p.errorf("unexpected %s in %s", describe(tok), command)
		}
	}

	return aggs, groupBy, nil
}

// parseAggregation parses one fn[(field)] [AS alias]. ok is false for a
// function name that is not an aggregation.
func (p *Parser) parseAggregation() (Aggregation, bool, error) {
	name := p.advance().Value
	agg := Aggregation{Function: strings.ToLower(name)}

	if p.check(TokenLParen) {
		p.advance()
		if !p.check(TokenRParen) {
			field, err := p.parseFieldName("field in " + name + "()")
			if err != nil {
				return agg, false, err
			}
			agg.Field = field
		}
		if _, err := p.expect(TokenRParen, "')' after "+name+" field"); err != nil {
			return agg, false, err
		}
	}

	if p.checkOp("AS") {
		p.advance()
		alias, err := p.parseFieldName("alias after AS")
		if err != nil {
			return agg, false, err
		}
		agg.Alias = alias
	}

	if !IsAggregationFunction(agg.Function) {
		return agg, false, nil
	}
	if agg.Function == "c" {
		agg.Function = "count"
	}
	if agg.Field == "*" {
		agg.Field = ""
	}
	return agg, true, nil
}

func (p *Parser) parseStreamstats() (*StreamstatsCommand, error) {
	cmd := &StreamstatsCommand{Current: true}
	aggs, by, err := p.parseAggregations("streamstats", func(name, value string) error {
		var err error
		switch name {
		case "window":
			cmd.Window, err = p.parseIntOption(name, value)
		case "current":
			cmd.Current, err = p.parseBoolOption(name, value)
		case "global":
			cmd.Global, err = p.parseBoolOption(name, value)
		default:
			err = p.errorAtPrev("unknown streamstats option %q", name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	cmd.Aggregations, cmd.GroupBy = aggs, by
	return cmd, nil
}

// parseTop parses: top|rare [N] [options] field [, field] [by fields]
func (p *Parser) parseTop(command string) (*TopCommand, error) {
	limit, err := p.parseCount(10)
	if err != nil {
		return nil, err
	}
	cmd := &TopCommand{Limit: limit, CountField: "count", PercentField: "percent", ShowCount: true, ShowPercent: true}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "limit":
				cmd.Limit, err = p.parseIntOption(name, value)
			case "countfield":
				cmd.CountField = value
			case "percentfield":
				cmd.PercentField = value
			case "showcount":
				cmd.ShowCount, err = p.parseBoolOption(name, value)
			case "showperc":
				cmd.ShowPercent, err = p.parseBoolOption(name, value)
			default:
				err = p.errorAtPrev("unknown %s option %q", command, name)
			}
			if err != nil {
				return nil, err
			}
		case p.checkOp("BY"):
			p.advance()
			by, err := p.parseFieldList(p.atOption)
			if err != nil {
				return nil, err
			}
			if len(by) == 0 {
				return nil, p.errorf("expected field after BY in %s", command)
			}
			cmd.GroupBy = append(cmd.GroupBy, by...)
		default:
			field, err := p.parseFieldName("field name for " + command)
			if err != nil {
				return nil, err
			}
			if cmd.Field != "" {
				// top a, b behaves like top a by b: a is ranked within
				// each b group
				cmd.GroupBy = append(cmd.GroupBy, field)
				continue
			}
			cmd.Field = field
		}
	}

	if cmd.Field == "" {
		return nil, p.errorf("expected field name for %s", command)
	}
	return cmd, nil
}

// parseTimechart parses: timechart [span=X] [cont=bool] [limit=N] aggs [by field]
func (p *Parser) parseTimechart() (*TimechartCommand, error) {
	cmd := &TimechartCommand{Span: "1h"}
	aggs, by, err := p.parseAggregations("timechart", func(name, value string) error {
		var err error
		switch name {
		case "span":
			cmd.Span = value
		case "cont":
			cmd.Continuous, err = p.parseBoolOption(name, value)
		case "limit":
			cmd.Limit, err = p.parseIntOption(name, value)
		default:
			err = p.errorAtPrev("unknown timechart option %q", name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(by) > 1 {
		return nil, p.errorf("timechart accepts a single BY field")
	}
	cmd.Aggregations = aggs
	if len(by) == 1 {
		cmd.SplitBy = by[0]
	}
	if len(cmd.Aggregations) == 0 {
		cmd.Aggregations = []Aggregation{{Function: "count"}}
	}
	return cmd, nil
}

// parseChart parses: chart aggs [over row] [by column] or chart aggs by row, column
func (p *Parser) parseChart() (*ChartCommand, error) {
	cmd := &ChartCommand{}

	for !p.atCommandEnd() {
		tok := p.current()
		switch {
		case tok.Type == TokenComma:
			p.advance()
		case p.checkOp("OVER"):
			p.advance()
			field, err := p.parseFieldName("field after OVER")
			if err != nil {
				return nil, err
			}
			cmd.RowField = field
		case p.checkOp("BY"):
			p.advance()
			fields, err := p.parseFieldList(nil)
			if err != nil {
				return nil, err
			}
			switch {
			case len(fields) == 0:
				return nil, p.errorf("expected field after BY in chart")
			case cmd.RowField == "" && len(fields) <= 2:
				cmd.RowField = fields[0]
				if len(fields) == 2 {
					cmd.ColumnField = fields[1]
				}
			case cmd.RowField != "" && len(fields) == 1:
				cmd.ColumnField = fields[0]
			default:
				return nil, p.errorf("chart accepts at most one row and one column field")
			}
		case tok.Type == TokenIdent || tok.Type == TokenKeyword:
			agg, ok, err := p.parseAggregation()
			if err != nil {
				return nil, err
			}
			if ok {
				cmd.Aggregations = append(cmd.Aggregations, agg)
			}
		default:
			return nil, p.errorf("unexpected %s in chart", describe(tok))
		}
	}

	if len(cmd.Aggregations) == 0 {
		cmd.Aggregations = []Aggregation{{Function: "count"}}
	}
	return cmd, nil
}

// parseEval parses: eval field = expr [, field = expr ...]
func (p *Parser) parseEval() (*EvalCommand, error) {
	cmd := &EvalCommand{}

	for {
		if !p.check(TokenIdent) && !p.check(TokenKeyword) && !p.check(TokenString) {
			return nil, p.errorf("expected field name for eval, got %s", describe(p.current()))
		}
		var field string
		if p.check(TokenString) {
			field = p.advance().Value
		} else {
			var err error
			if field, err = p.parseFieldRef(); err != nil {
				return nil, asError(err, "eval")
			}
		}

		if !p.check(TokenEquals) {
			return nil, p.errorf("expected '=' after eval field %q, got %s", field, describe(p.current()))
		}
		p.advance()

		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		cmd.Assignments = append(cmd.Assignments, EvalAssignment{Field: field, Expr: expr})

		if !p.check(TokenComma) {
			break
		}
		p.advance()
	}

	return cmd, nil
}

// parseRex parses: rex [field=name] [max_match=N] [mode=sed] "pattern"
func (p *Parser) parseRex() (*RexCommand, error) {
	cmd := &RexCommand{Field: "_raw", MaxMatch: 1}
	havePattern := false

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenString):
			if havePattern {
				return nil, p.errorf("rex accepts a single pattern")
			}
			cmd.Pattern = p.advance().Value
			havePattern = true
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "field":
				cmd.Field = value
			case "max_match":
				cmd.MaxMatch, err = p.parseIntOption(name, value)
			case "mode":
				if !strings.EqualFold(value, "sed") {
					err = p.errorAtPrev("unsupported rex mode %q", value)
				}
				cmd.Mode = "sed"
			default:
				err = p.errorAtPrev("unknown rex option %q", name)
			}
			if err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected pattern string for rex, got %s", describe(p.current()))
		}
	}

	if !havePattern {
		return nil, p.errorf("expected pattern string for rex")
	}
	return cmd, nil
}

// parseRename parses: rename from AS to [, from AS to ...]
func (p *Parser) parseRename() (*RenameCommand, error) {
	cmd := &RenameCommand{}

	for !p.atCommandEnd() {
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		from, err := p.parseFieldName("field to rename")
		if err != nil {
			return nil, err
		}
		if !p.checkOp("AS") {
			return nil, p.errorf("expected AS after %q in rename", from)
		}
		p.advance()
		to, err := p.parseFieldName("new field name")
		if err != nil {
			return nil, err
		}
		cmd.Renames = append(cmd.Renames, Rename{From: from, To: to})
	}

	if len(cmd.Renames) == 0 {
		return nil, p.errorf("rename requires at least one from AS to pair")
	}
	return cmd, nil
}

// parseSpath parses: spath [input=f] [output=f] [path=p | p]
func (p *Parser) parseSpath() (*SpathCommand, error) {
	cmd := &SpathCommand{Input: "_raw"}

	for !p.atCommandEnd() {
		if p.check(TokenIdent) && p.peek().Type == TokenEquals {
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "input":
				cmd.Input = value
			case "output":
				cmd.Output = value
			case "path":
				cmd.Path = value
			default:
				return nil, p.errorAtPrev("unknown spath option %q", name)
			}
			continue
		}
		path, err := p.parseValue("spath path")
		if err != nil {
			return nil, err
		}
		cmd.Path = path
	}

	return cmd, nil
}

// parseLookup parses:
// lookup table field [AS local] [OUTPUT|OUTPUTNEW f [AS g], ...]
func (p *Parser) parseLookup() (*LookupCommand, error) {
	table, err := p.parseValue("lookup table name")
	if err != nil {
		return nil, err
	}
	cmd := &LookupCommand{Table: table}

	if cmd.Field, err = p.parseFieldName("lookup field"); err != nil {
		return nil, err
	}
	if p.checkOp("AS") {
		p.advance()
		if cmd.LocalField, err = p.parseFieldName("record field after AS"); err != nil {
			return nil, err
		}
	}

	if p.checkOp("OUTPUT") || p.checkOp("OUTPUTNEW") {
		cmd.OutputNew = p.advance().Value == "OUTPUTNEW"
		for !p.atCommandEnd() {
			if p.check(TokenComma) {
				p.advance()
				continue
			}
			src, err := p.parseFieldName("output field")
			if err != nil {
				return nil, err
			}
			m := FieldMapping{Source: src, Target: src}
			if p.checkOp("AS") {
				p.advance()
				if m.Target, err = p.parseFieldName("output alias"); err != nil {
					return nil, err
				}
			}
			cmd.OutputFields = append(cmd.OutputFields, m)
		}
	}

	return cmd, nil
}

// parseJoin parses: join [type=T] [max=N] field, ... (table | [subsearch])
// Without a subsearch the last word names the lookup table.
func (p *Parser) parseJoin() (*JoinCommand, error) {
	cmd := &JoinCommand{Type: JoinInner, Max: 1}
	var words []string

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "type":
				switch JoinType(strings.ToLower(value)) {
				case JoinInner, JoinLeft, JoinOuter:
					cmd.Type = JoinType(strings.ToLower(value))
				default:
					return nil, p.errorAtPrev("unknown join type %q", value)
				}
			case "max":
				if cmd.Max, err = p.parseIntOption(name, value); err != nil {
					return nil, err
				}
			default:
				return nil, p.errorAtPrev("unknown join option %q", name)
			}
		case p.check(TokenLBracket):
			sub, err := p.parseSubsearch()
			if err != nil {
				return nil, err
			}
			cmd.Subsearch = sub
		default:
			word, err := p.parseFieldName("join field")
			if err != nil {
				return nil, err
			}
			words = append(words, word)
		}
	}

	if cmd.Subsearch == nil {
		if len(words) < 2 {
			return nil, p.errorf("join requires join fields and a lookup table or [subsearch]")
		}
		cmd.Table = words[len(words)-1]
		words = words[:len(words)-1]
	}
	// no fields with a subsearch joins on the fields both sides share
	cmd.Fields = words
	return cmd, nil
}

// parseSubsearch parses [ pipeline ]
func (p *Parser) parseSubsearch() (*Query, error) {
	open := p.advance()
	p.nesting++
	q, err := p.parsePipeline()
	p.nesting--
	if err != nil {
		return nil, err
	}
	if !p.check(TokenRBracket) {
		return nil, NewParseError("expected ']' to close subsearch", open.Position)
	}
	p.advance()
	if len(q.Commands) == 0 {
		return nil, NewParseError("empty subsearch", open.Position)
	}
	return q, nil
}

// parseTransaction parses:
// transaction field, ... [maxspan=D] [maxpause=D] [maxevents=N]
// [startswith=X] [endswith=X] [keepevicted=bool]
func (p *Parser) parseTransaction() (*TransactionCommand, error) {
	cmd := &TransactionCommand{MaxEvents: 1000}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name := strings.ToLower(p.current().Value)
			if name == "startswith" || name == "endswith" {
				p.advance()
				p.advance()
				expr, err := p.parseTransactionBoundary(name)
				if err != nil {
					return nil, err
				}
				if name == "startswith" {
					cmd.StartsWith = expr
				} else {
					cmd.EndsWith = expr
				}
				continue
			}
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "maxspan", "maxpause":
				d, err := parseDuration(value)
				if err != nil {
					return nil, p.errorAtPrev("invalid %s %q: %v", name, value, err)
				}
				if name == "maxspan" {
					cmd.MaxSpan = d
				} else {
					cmd.MaxPause = d
				}
			case "maxevents":
				if cmd.MaxEvents, err = p.parseIntOption(name, value); err != nil {
					return nil, err
				}
			case "keepevicted":
				keep, err := p.parseBoolOption(name, value)
				if err != nil {
					return nil, err
				}
				cmd.KeepEvicted = &keep
			default:
				return nil, p.errorAtPrev("unknown transaction option %q", name)
			}
		default:
			field, err := p.parseFieldName("transaction field")
			if err != nil {
				return nil, err
			}
			cmd.Fields = append(cmd.Fields, field)
		}
	}

	return cmd, nil
}

// parseTransactionBoundary reads a startswith/endswith value: a string
// matched as a substring of _raw, or eval(expr)
func (p *Parser) parseTransactionBoundary(name string) (Expression, error) {
	if p.check(TokenKeyword) && p.current().Value == "eval" && p.peek().Type == TokenLParen {
		p.advance()
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')' after eval expression"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	value, err := p.parseValue("value for " + name)
	if err != nil {
		return nil, err
	}
	return &LiteralExpr{Value: value}, nil
}

// parseFillnull parses: fillnull [value=X] [field ...]
func (p *Parser) parseFillnull() (*FillnullCommand, error) {
	cmd := &FillnullCommand{Value: float64(0)}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.checkOption("value"):
			valueTok := p.peekN(2)
			_, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			if n, ok := parseNumber(value); ok && valueTok.Type == TokenNumber {
				cmd.Value = n
			} else {
				cmd.Value = value
			}
		default:
			field, err := p.parseFieldName("fillnull field")
			if err != nil {
				return nil, err
			}
			cmd.Fields = append(cmd.Fields, field)
		}
	}

	return cmd, nil
}

// parseReplace parses: replace old WITH new [, old WITH new] [IN field, ...]
func (p *Parser) parseReplace() (*ReplaceCommand, error) {
	cmd := &ReplaceCommand{}

	for !p.atCommandEnd() {
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		if p.checkOp("IN") {
			p.advance()
			fields, err := p.parseFieldList(nil)
			if err != nil {
				return nil, err
			}
			if len(fields) == 0 {
				return nil, p.errorf("expected field after IN in replace")
			}
			cmd.Fields = fields
			break
		}
		old, err := p.parseValue("value to replace")
		if err != nil {
			return nil, err
		}
		if !p.checkWord("with") {
			return nil, p.errorf("expected WITH after %q in replace", old)
		}
		p.advance()
		repl, err := p.parseValue("replacement value")
		if err != nil {
			return nil, err
		}
		cmd.Replacements = append(cmd.Replacements, Replacement{Old: old, New: repl})
	}

	if len(cmd.Replacements) == 0 {
		return nil, p.errorf("replace requires at least one old WITH new pair")
	}
	return cmd, nil
}

// parseRegex parses: regex [field=|field!=]"pattern"
func (p *Parser) parseRegex() (*RegexCommand, error) {
	cmd := &RegexCommand{Field: "_raw"}

	if !p.check(TokenString) {
		field, err := p.parseFieldName("regex field")
		if err != nil {
			return nil, err
		}
		cmd.Field = field
		switch {
		case p.check(TokenEquals):
		case p.check(TokenNotEquals):
			cmd.Negate = true
		default:
			return nil, p.errorf("expected = or != after regex field, got %s", describe(p.current()))
		}
		p.advance()
	}

	tok, err := p.expect(TokenString, "quoted regex pattern")
	if err != nil {
		return nil, err
	}
	cmd.Pattern = tok.Value
	return cmd, nil
}

// parseBin parses: bin [span=X] [bins=N] field [AS alias]
func (p *Parser) parseBin() (*BinCommand, error) {
	cmd := &BinCommand{}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "span":
				cmd.Span = value
			case "bins":
				if cmd.Bins, err = p.parseIntOption(name, value); err != nil {
					return nil, err
				}
			default:
				return nil, p.errorAtPrev("unknown bin option %q", name)
			}
		case p.checkOp("AS"):
			p.advance()
			alias, err := p.parseFieldName("alias after AS")
			if err != nil {
				return nil, err
			}
			cmd.Alias = alias
		default:
			if cmd.Field != "" {
				return nil, p.errorf("bin accepts a single field")
			}
			field, err := p.parseFieldName("bin field")
			if err != nil {
				return nil, err
			}
			cmd.Field = field
		}
	}

	if cmd.Field == "" {
		return nil, p.errorf("bin requires a field")
	}
	if cmd.Span == "" && cmd.Bins == 0 {
		if cmd.Field == "_time" {
			cmd.Span = "1h"
		} else {
			cmd.Bins = 100
		}
	}
	return cmd, nil
}

// parseMakemv parses: makemv [delim=X] [tokenizer=X] [allowempty=bool] field
func (p *Parser) parseMakemv() (*MakemvCommand, error) {
	cmd := &MakemvCommand{Delim: " "}

	for !p.atCommandEnd() {
		if p.check(TokenIdent) && p.peek().Type == TokenEquals {
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "delim":
				cmd.Delim = value
			case "tokenizer":
				cmd.Tokenizer = value
			case "allowempty":
				if cmd.AllowEmpty, err = p.parseBoolOption(name, value); err != nil {
					return nil, err
				}
			default:
				return nil, p.errorAtPrev("unknown makemv option %q", name)
			}
			continue
		}
		if cmd.Field != "" {
			return nil, p.errorf("makemv accepts a single field")
		}
		field, err := p.parseFieldName("makemv field")
		if err != nil {
			return nil, err
		}
		cmd.Field = field
	}

	if cmd.Field == "" {
		return nil, p.errorf("makemv requires a field")
	}
	return cmd, nil
}

// parseMvexpand parses: mvexpand field [limit=N]
func (p *Parser) parseMvexpand() (*MvexpandCommand, error) {
	cmd := &MvexpandCommand{}

	for !p.atCommandEnd() {
		if p.checkOption("limit") {
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			if cmd.Limit, err = p.parseIntOption(name, value); err != nil {
				return nil, err
			}
			continue
		}
		if cmd.Field != "" {
			return nil, p.errorf("mvexpand accepts a single field")
		}
		field, err := p.parseFieldName("mvexpand field")
		if err != nil {
			return nil, err
		}
		cmd.Field = field
	}

	if cmd.Field == "" {
		return nil, p.errorf("mvexpand requires a field")
	}
	return cmd, nil
}

// parseAddtotals parses:
// addtotals [row=bool] [col=bool] [fieldname=X] [labelfield=X] [label=X] [field ...]
func (p *Parser) parseAddtotals() (*AddtotalsCommand, error) {
	cmd := &AddtotalsCommand{Row: true, FieldName: "Total", Label: "Total"}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.check(TokenIdent) && p.peek().Type == TokenEquals:
			name, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			switch name {
			case "row":
				cmd.Row, err = p.parseBoolOption(name, value)
			case "col":
				cmd.Col, err = p.parseBoolOption(name, value)
			case "fieldname":
				cmd.FieldName = value
			case "labelfield":
				cmd.LabelField = value
			case "label":
				cmd.Label = value
			default:
				err = p.errorAtPrev("unknown addtotals option %q", name)
			}
			if err != nil {
				return nil, err
			}
		default:
			field, err := p.parseFieldName("addtotals field")
			if err != nil {
				return nil, err
			}
			cmd.Fields = append(cmd.Fields, field)
		}
	}

	return cmd, nil
}

// parseMakeresults parses: makeresults [count=N]
func (p *Parser) parseMakeresults() (*MakeresultsCommand, error) {
	cmd := &MakeresultsCommand{Count: 1}
	for !p.atCommandEnd() {
		if !p.checkOption("count") {
			return nil, p.errorf("unexpected %s in makeresults", describe(p.current()))
		}
		name, value, err := p.parseOption()
		if err != nil {
			return nil, err
		}
		if cmd.Count, err = p.parseIntOption(name, value); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

var convertFunctions = map[string]bool{
	"auto": true, "num": true, "ctime": true, "mktime": true, "dur2sec": true,
	"rmunit": true, "rmcomma": true, "memk": true, "none": true,
}

// parseConvert parses: convert [timeformat=X] fn(field) [AS alias] ...
func (p *Parser) parseConvert() (*ConvertCommand, error) {
	cmd := &ConvertCommand{TimeFormat: "%m/%d/%Y %H:%M:%S"}

	for !p.atCommandEnd() {
		switch {
		case p.check(TokenComma):
			p.advance()
		case p.checkOption("timeformat"):
			_, value, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			cmd.TimeFormat = value
		case p.check(TokenIdent) && p.peek().Type == TokenLParen:
			fnTok := p.advance()
			fn := strings.ToLower(fnTok.Value)
			if !convertFunctions[fn] {
				return nil, NewParseError(fmt.Sprintf("unknown convert function %q", fnTok.Value), fnTok.Position)
			}
			p.advance()
			field, err := p.parseFieldName("field in " + fn + "()")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRParen, "')'"); err != nil {
				return nil, err
			}
			conv := Conversion{Function: fn, Field: field}
			if p.checkOp("AS") {
				p.advance()
				if conv.Alias, err = p.parseFieldName("alias after AS"); err != nil {
					return nil, err
				}
			}
			cmd.Conversions = append(cmd.Conversions, conv)
		default:
			return nil, p.errorf("expected fn(field) in convert, got %s", describe(p.current()))
		}
	}

	if len(cmd.Conversions) == 0 {
		return nil, p.errorf("convert requires at least one fn(field)")
	}
	return cmd, nil
}

// parseDuration parses a span such as 30s, 5m, 1h, 2d, 1w. A bare number
// is seconds.
func parseDuration(s string) (time.Duration, error) {
	n, unit, err := splitSpan(s)
	if err != nil {
		return 0, err
	}
	d, ok := unitDuration(unit)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return time.Duration(n * float64(d)), nil
}
