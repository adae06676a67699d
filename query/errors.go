package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrorCode classifies a query failure
type ErrorCode string

const (
	CodeSyntax          ErrorCode = "SYNTAX_ERROR"
	CodeParse           ErrorCode = "PARSE_ERROR"
	CodeUnknownCommand  ErrorCode = "UNKNOWN_COMMAND"
	CodeUnknownFunction ErrorCode = "UNKNOWN_FUNCTION"
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeFieldNotFound   ErrorCode = "FIELD_NOT_FOUND"
	CodeType            ErrorCode = "TYPE_ERROR"
	CodeRegex           ErrorCode = "REGEX_ERROR"
	CodeRuntime         ErrorCode = "RUNTIME_ERROR"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeMemoryLimit     ErrorCode = "MEMORY_LIMIT"
)

// Error is the structured error carried by a failed ExecutionResult
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Command    string    `json:"command,omitempty"`
	Position   *int      `json:"position,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`

	// Suggestions holds the raw candidates behind Suggestion
	Suggestions []string `json:"-"`

	err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Position != nil {
		fmt.Fprintf(&b, " at position %d", *e.Position)
	}
	if e.Suggestion != "" {
		b.WriteString(" (")
		b.WriteString(e.Suggestion)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.err }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, &query.Error{Code: query.CodeParse}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func pos(p int) *int { return &p }

// NewSyntaxError reports a lexer failure at a byte offset
func NewSyntaxError(msg string, position int) *Error {
	return &Error{Code: CodeSyntax, Message: msg, Position: pos(position)}
}

// NewParseError reports a malformed construct. A negative position means
// unknown.
func NewParseError(msg string, position int) *Error {
	e := &Error{Code: CodeParse, Message: msg}
	if position >= 0 {
		e.Position = pos(position)
	}
	return e
}

// NewUnknownCommandError reports a word in command position that is not a
// command, with "did you mean" candidates from Commands.
func NewUnknownCommandError(name string, position int) *Error {
	e := &Error{
		Code:     CodeUnknownCommand,
		Message:  fmt.Sprintf("unknown command %q", name),
		Command:  name,
		Position: pos(position),
	}
	e.setSuggestions(suggest(name, Commands))
	return e
}

// NewUnknownFunctionError reports an eval function that is not registered
func NewUnknownFunctionError(name string) *Error {
	e := &Error{
		Code:    CodeUnknownFunction,
		Message: fmt.Sprintf("unknown function %q", name),
	}
	e.setSuggestions(suggest(strings.ToLower(name), globalRegistry.Names()))
	return e
}

// NewInvalidArgumentError reports a bad command or function argument
func NewInvalidArgumentError(command, msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg, Command: command}
}

// NewTypeError reports a value of the wrong type
func NewTypeError(msg string) *Error {
	return &Error{Code: CodeType, Message: msg}
}

// NewFieldNotFoundError reports a required field that is absent
func NewFieldNotFoundError(command, field string) *Error {
	return &Error{Code: CodeFieldNotFound, Message: fmt.Sprintf("field %q not found", field), Command: command}
}

// NewRegexError wraps a pattern compilation failure
func NewRegexError(command, pattern string, err error) *Error {
	return &Error{
		Code:    CodeRegex,
		Message: fmt.Sprintf("invalid regular expression %q: %v", pattern, err),
		Command: command,
		err:     err,
	}
}

// NewRuntimeError wraps an evaluation failure not otherwise classified
func NewRuntimeError(command string, err error) *Error {
	return &Error{Code: CodeRuntime, Message: err.Error(), Command: command, err: err}
}

// NewMemoryLimitError reports a command that would produce more rows than
// the executor allows
func NewMemoryLimitError(command string, rows int64, limit int) *Error {
	return &Error{
		Code:    CodeMemoryLimit,
		Message: fmt.Sprintf("%s would produce %d rows, limit is %d", command, rows, limit),
		Command: command,
	}
}

// NewTimeoutError reports that the time budget ran out before command
func NewTimeoutError(command string, budget fmt.Stringer) *Error {
	return &Error{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("query exceeded time budget of %s", budget),
		Command: command,
	}
}

func (e *Error) setSuggestions(candidates []string) {
	e.Suggestions = candidates
	if len(candidates) > 0 {
		e.Suggestion = "did you mean: " + strings.Join(candidates, ", ") + "?"
	}
}

// asError converts any error into an *Error, keeping existing codes
func asError(err error, command string) *Error {
	var qe *Error
	if errors.As(err, &qe) {
		if qe.Command == "" && command != "" {
			c := *qe
			c.Command = command
			return &c
		}
		return qe
	}
	if errors.Is(err, ErrQueryTooLong) || errors.Is(err, ErrTooManyTokens) || errors.Is(err, ErrExpressionTooDeep) || errors.Is(err, ErrFieldNameTooLong) {
		return &Error{Code: CodeParse, Message: err.Error(), err: err}
	}
	return NewRuntimeError(command, err)
}

const (
	maxSuggestionDistance = 2
	maxSuggestions        = 3
)

// suggest returns up to three vocabulary words within edit distance two of
// word, closest first; equal distances keep vocabulary order.
func suggest(word string, vocabulary []string) []string {
	type candidate struct {
		word     string
		distance int
		index    int
	}
	word = strings.ToLower(word)
	var found []candidate
	for i, v := range vocabulary {
		d := fuzzy.LevenshteinDistance(word, v)
		if d <= maxSuggestionDistance && d > 0 {
			found = append(found, candidate{word: v, distance: d, index: i})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].distance < found[j].distance
	})
	if len(found) > maxSuggestions {
		found = found[:maxSuggestions]
	}
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.word
	}
	return out
}
