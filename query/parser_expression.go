package query

import (
	"strconv"
	"strings"
)

// parseExpression parses a where/eval expression
func (p *Parser) parseExpression() (Expression, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, asError(err, "")
	}
	return expr, nil
}

// parseOr parses OR expressions (lowest precedence)
func (p *Parser) parseOr() (Expression, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.checkOp("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Operator: "OR", Left: left, Right: right}
	}

	return left, nil
}

// parseAnd parses AND expressions (higher precedence than OR)
func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.checkOp("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Operator: "AND", Left: left, Right: right}
	}

	return left, nil
}

// parseNot parses prefix NOT
func (p *Parser) parseNot() (Expression, error) {
	if !p.checkOp("NOT") {
		return p.parseComparison()
	}
	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	p.advance()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &LogicalExpr{Operator: "NOT", Left: operand}, nil
}

// parseComparison parses comparisons, LIKE, IN and IS [NOT] NULL
func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op, ok := p.comparisonOperator(); ok {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ComparisonExpr{Operator: op, Left: left, Right: right}, nil
	}

	negate := false
	if p.checkOp("NOT") && p.peek().Type == TokenOperator && (p.peek().Value == "LIKE" || p.peek().Value == "IN") {
		p.advance()
		negate = true
	}

	var expr Expression
	switch {
	case p.checkOp("LIKE"):
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &ComparisonExpr{Operator: "LIKE", Left: left, Right: right}

	case p.checkOp("IN"):
		p.advance()
		values, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		expr = &ComparisonExpr{Operator: "IN", Left: left, Values: values}

	case p.checkOp("IS"):
		p.advance()
		isNot := false
		if p.checkOp("NOT") {
			p.advance()
			isNot = true
		}
		if !p.checkWord("null") {
			return nil, p.errorf("expected NULL after IS, got %s", describe(p.current()))
		}
		p.advance()
		return &ComparisonExpr{Operator: "IS", Left: left, Negate: isNot}, nil

	default:
		return left, nil
	}

	if negate {
		return &LogicalExpr{Operator: "NOT", Left: expr}, nil
	}
	return expr, nil
}

// parseExpressionList reads ( expr, expr, ... )
func (p *Parser) parseExpressionList() ([]Expression, error) {
	if _, err := p.expect(TokenLParen, "'(' after IN"); err != nil {
		return nil, err
	}
	var values []Expression
	for !p.check(TokenRParen) {
		if p.check(TokenEOF) {
			return nil, p.errorf("expected ')' to close IN list")
		}
		v, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.check(TokenComma) {
			p.advance()
		} else if !p.check(TokenRParen) {
			return nil, p.errorf("expected ',' or ')' in IN list, got %s", describe(p.current()))
		}
	}
	p.advance()
	return values, nil
}

// parseAdditive parses +, - and string concatenation with "."
func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		switch {
		case tok.Type == TokenPlus || tok.Type == TokenMinus || tok.Type == TokenDot:
			p.advance()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = &ArithmeticExpr{Operator: tok.Value, Left: left, Right: right}

		case tok.Type == TokenNumber && strings.HasPrefix(tok.Value, "-"):
			// x -1 lexes the sign into the number
			p.advance()
			n, _ := strconv.ParseFloat(tok.Value[1:], 64)
			var right Expression = &LiteralExpr{Value: n}
			right, err = p.continueMultiplicative(right)
			if err != nil {
				return nil, err
			}
			left = &ArithmeticExpr{Operator: "-", Left: left, Right: right}

		default:
			return left, nil
		}
	}
}

// parseMultiplicative parses *, / and %
func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.continueMultiplicative(left)
}

func (p *Parser) continueMultiplicative(left Expression) (Expression, error) {
	for p.check(TokenWildcard) || p.check(TokenSlash) || p.check(TokenPercent) {
		op := p.advance().Value
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ArithmeticExpr{Operator: op, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary parses prefix minus and plus
func (p *Parser) parseUnary() (Expression, error) {
	switch {
	case p.check(TokenMinus):
		if err := p.depthCounter.Enter(); err != nil {
			return nil, err
		}
		defer p.depthCounter.Exit()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ArithmeticExpr{Operator: "-", Left: &LiteralExpr{Value: float64(0)}, Right: operand}, nil
	case p.check(TokenPlus):
		p.advance()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

// parsePrimary parses literals, field references, function calls and
// parenthesized expressions
func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		n, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, NewParseError("invalid number "+strconv.Quote(tok.Value), tok.Position)
		}
		return &LiteralExpr{Value: n}, nil

	case TokenString:
		p.advance()
		return &LiteralExpr{Value: tok.Value}, nil

	case TokenIdent, TokenKeyword:
		if p.peek().Type == TokenLParen {
			return p.parseFunctionCall()
		}
		if tok.Type == TokenIdent {
			switch strings.ToLower(tok.Value) {
			case "true":
				p.advance()
				return &LiteralExpr{Value: true}, nil
			case "false":
				p.advance()
				return &LiteralExpr{Value: false}, nil
			case "null":
				p.advance()
				return &LiteralExpr{Value: nil}, nil
			}
		}
		name, err := p.parseFieldRef()
		if err != nil {
			return nil, err
		}
		return &FieldExpr{Name: name}, nil

	case TokenOperator:
		// like(field, pattern) shares its name with the LIKE operator
		if tok.Value == "LIKE" && p.peek().Type == TokenLParen {
			return p.parseFunctionCall()
		}

	case TokenLParen:
		if err := p.depthCounter.Enter(); err != nil {
			return nil, err
		}
		defer p.depthCounter.Exit()
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, p.errorf("unexpected %s in expression", describe(tok))
}

// parseFieldRef reads a field name; adjacent dots join path segments
// (user.name) while a spaced dot is concatenation.
func (p *Parser) parseFieldRef() (string, error) {
	start := p.advance()
	end := tokenEnd(start, p.input)
	for p.check(TokenDot) && p.adjacent() {
		next := p.peek()
		if !p.adjacentAt(p.pos+1) || (next.Type != TokenIdent && next.Type != TokenKeyword && next.Type != TokenNumber) {
			break
		}
		p.advance()
		end = tokenEnd(p.advance(), p.input)
	}
	name := p.input[start.Position:end]
	if err := ValidateFieldName(name); err != nil {
		return "", err
	}
	return name, nil
}

// parseFunctionCall parses name(arg, ...)
func (p *Parser) parseFunctionCall() (Expression, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, err
	}
	defer p.depthCounter.Exit()

	name := strings.ToLower(p.advance().Value)
	p.advance() // (

	fn := &FunctionExpr{Name: name}
	if p.check(TokenRParen) {
		p.advance()
		return fn, nil
	}

	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)

		switch {
		case p.check(TokenComma):
			p.advance()
		case p.check(TokenRParen):
			p.advance()
			return fn, nil
		default:
			return nil, p.errorf("expected ',' or ')' in call to %s, got %s", name, describe(p.current()))
		}
	}
}
