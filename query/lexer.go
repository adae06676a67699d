package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes query strings
type Lexer struct {
	input string
	pos   int // byte offset of ch
	next  int // byte offset after ch
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	l.pos = l.next
	if l.next >= len(l.input) {
		l.ch = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.next:])
	l.ch = r
	l.next += w
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.next >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.next:])
	return r
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

// skipWhitespace skips whitespace characters
func (l *Lexer) skipWhitespace() {
	for !l.atEnd() && unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// readString reads a quoted string. A backslash escapes the next
// character; \n and \t are translated, every other escape is kept
// verbatim so regex sources like "\d+" survive.
func (l *Lexer) readString(quote rune) (string, error) {
	start := l.pos
	var result strings.Builder
	l.readChar() // skip opening quote

	for {
		if l.atEnd() {
			return "", NewSyntaxError("unterminated string", start)
		}
		if l.ch == quote {
			l.readChar()
			return result.String(), nil
		}
		if l.ch == '\\' {
			l.readChar()
			if l.atEnd() {
				return "", NewSyntaxError("unterminated string", start)
			}
			switch l.ch {
			case quote:
				result.WriteRune(quote)
			case 'n':
				result.WriteRune('\n')
			case 't':
				result.WriteRune('\t')
			default:
				result.WriteRune('\\')
				result.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
}

// readNumber reads [-]digits[.digits]
func (l *Lexer) readNumber() string {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

// readIdentifier reads an identifier, keyword or word operator
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for !l.atEnd() && (unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' || l.ch == '-') {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	start := l.pos
	single := func(t TokenType) (Token, error) {
		v := string(l.ch)
		l.readChar()
		return Token{Type: t, Value: v, Position: start}, nil
	}

	if l.atEnd() {
		return Token{Type: TokenEOF, Position: len(l.input)}, nil
	}

	switch l.ch {
	case '|':
		return single(TokenPipe)
	case ',':
		return single(TokenComma)
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBracket)
	case ']':
		return single(TokenRBracket)
	case '.':
		return single(TokenDot)
	case '*':
		return single(TokenWildcard)
	case '+':
		return single(TokenPlus)
	case '/':
		return single(TokenSlash)
	case '%':
		return single(TokenPercent)
	case '=':
		return single(TokenEquals)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: TokenNotEquals, Value: "!=", Position: start}, nil
		}
		return Token{}, NewSyntaxError("unexpected character '!'", start)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: TokenLessEq, Value: "<=", Position: start}, nil
		}
		return single(TokenLess)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: TokenGreaterEq, Value: ">=", Position: start}, nil
		}
		return single(TokenGreater)
	case '"', '\'':
		s, err := l.readString(l.ch)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenString, Value: s, Position: start}, nil
	case '-':
		if isDigit(l.peekChar()) {
			return Token{Type: TokenNumber, Value: l.readNumber(), Position: start}, nil
		}
		return single(TokenMinus)
	}

	if isDigit(l.ch) {
		return Token{Type: TokenNumber, Value: l.readNumber(), Position: start}, nil
	}
	if unicode.IsLetter(l.ch) || l.ch == '_' {
		word := l.readIdentifier()
		return Token{Type: identifierType(word), Value: normalizeWord(word), Position: start}, nil
	}
	return Token{}, NewSyntaxError("unexpected character '"+string(l.ch)+"'", start)
}

// identifierType classifies a word; command names win over operators
func identifierType(word string) TokenType {
	switch {
	case IsKeyword(word):
		return TokenKeyword
	case IsOperator(word):
		return TokenOperator
	default:
		return TokenIdent
	}
}

// normalizeWord lower-cases keywords and upper-cases operators
func normalizeWord(word string) string {
	switch identifierType(word) {
	case TokenKeyword:
		return strings.ToLower(word)
	case TokenOperator:
		return strings.ToUpper(word)
	default:
		return word
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize converts a query string into tokens ending with TokenEOF
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token

	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

// tokenEnd returns the byte offset just past tok in the source text
func tokenEnd(tok Token, input string) int {
	if tok.Type == TokenString {
		// quoted source is longer than the value; scan for the closing quote
		return stringEnd(input, tok.Position)
	}
	return tok.Position + len(tok.Value)
}

func stringEnd(input string, start int) int {
	if start >= len(input) {
		return start
	}
	quote := input[start]
	for i := start + 1; i < len(input); i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(input)
}
