package query

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{"with position", NewParseError("boom", 4), "PARSE_ERROR: boom at position 4"},
		{"unknown position", NewParseError("boom", -1), "PARSE_ERROR: boom"},
		{"syntax", NewSyntaxError("unterminated string", 0), "SYNTAX_ERROR: unterminated string at position 0"},
		{
			"suggestion",
			NewUnknownCommandError("stast", 2),
			`UNKNOWN_COMMAND: unknown command "stast" at position 2 (did you mean: stats?)`,
		},
		{"type", NewTypeError("not a number"), "TYPE_ERROR: not a number"},
		{
			"memory limit",
			NewMemoryLimitError("makeresults", 200000, 100000),
			"MEMORY_LIMIT: makeresults would produce 200000 rows, limit is 100000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("bad pattern")
	err := fmt.Errorf("rex: %w", NewRegexError("rex", "(", cause))

	require.True(t, errors.Is(err, &Error{Code: CodeRegex}))
	require.False(t, errors.Is(err, &Error{Code: CodeParse}))
	require.True(t, errors.Is(err, cause))

	var qe *Error
	require.True(t, errors.As(err, &qe))
	require.Equal(t, "rex", qe.Command)
}

func TestAsError(t *testing.T) {
	qe := asError(NewTypeError("x"), "eval")
	require.Equal(t, CodeType, qe.Code)
	require.Equal(t, "eval", qe.Command)

	qe = asError(errors.New("disk on fire"), "lookup")
	require.Equal(t, CodeRuntime, qe.Code)
	require.Equal(t, "disk on fire", qe.Message)

	qe = asError(fmt.Errorf("%w: 300", ErrFieldNameTooLong), "")
	require.Equal(t, CodeParse, qe.Code)
	require.True(t, errors.Is(qe, ErrFieldNameTooLong))
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name     string
		word     string
		expected []string
	}{
		{"one edit", "serch", []string{"search"}},
		{"closest first then vocabulary order", "stat", []string{"stats", "sort", "spath"}},
		{"case insensitive", "HAED", []string{"head"}},
		{"exact match is not a suggestion", "head", []string{}},
		{"too far", "xyzzyplugh", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suggest(tt.word, Commands)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("suggestion %d: expected %q, got %q", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestSuggest_Cap(t *testing.T) {
	got := suggest("ab", []string{"a", "b", "abc", "abd", "x"})
	require.Len(t, got, 3)
	require.Equal(t, []string{"a", "b", "abc"}, got)
}

func TestNewUnknownFunctionError(t *testing.T) {
	err := NewUnknownFunctionError("lenn")
	require.Equal(t, CodeUnknownFunction, err.Code)
	require.NotEmpty(t, err.Suggestions)
	require.Equal(t, "len", err.Suggestions[0])

	err = NewUnknownFunctionError("zzzzzzzz")
	require.Empty(t, err.Suggestions)
	require.Empty(t, err.Suggestion)
}
