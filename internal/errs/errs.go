// Package errs implements the shared diagnostic taxonomy used by the
// scanner, parser, compiler and VM: lexical, syntax, semantic, runtime and
// compilation errors, each carrying a source span for caret-style reporting.
package errs

import (
	"fmt"
	"strings"
)

// Kind classifies where in the pipeline an error originated.
type Kind int

const (
	Lexical Kind = iota
	Syntax
	Semantic
	Runtime
	Compilation
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "LEXICAL ERROR"
	case Syntax:
		return "SYNTAX ERROR"
	case Semantic:
		return "SEMANTIC ERROR"
	case Runtime:
		return "RUNTIME ERROR"
	case Compilation:
		return "COMPILATION ERROR"
	default:
		return "ERROR"
	}
}

// Span is the 1-based line/column where a source region starts; it carries
// no byte offsets or end position.
type Span struct {
	Line   int
	Column int
}

// Error is one diagnostic: its kind, message and source location.
type Error struct {
	Kind    Kind
	Message string
	Span    Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] at line %d, column %d: %s", e.Kind, e.Span.Line, e.Span.Column, e.Message)
}

// Reporter accumulates errors for one source and renders caret diagnostics.
type Reporter struct {
	Source string
	errors []*Error
}

// NewReporter constructs a reporter over the given source text.
func NewReporter(source string) *Reporter {
	return &Reporter{Source: source}
}

// Report records a new error.
func (r *Reporter) Report(kind Kind, span Span, format string, args ...any) {
	r.errors = append(r.errors, &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	})
}

// Errors returns all errors reported so far, in report order.
func (r *Reporter) Errors() []*Error {
	return r.errors
}

// HasErrors reports whether any error has been recorded.
func (r *Reporter) HasErrors() bool {
	return len(r.errors) > 0
}

// Format renders one error using the user-visible caret diagnostic format:
// "[<KIND>] at line <L>, column <C>: <message>\n<source line>\n<spaces>^"
func (r *Reporter) Format(e *Error) string {
	var b strings.Builder
	b.WriteString(e.Error())
	if line := r.lineAt(e.Span.Line); line != "" {
		b.WriteByte('\n')
		b.WriteString(line)
		b.WriteByte('\n')
		col := e.Span.Column - 1
		if col < 0 {
			col = 0
		}
		b.WriteString(strings.Repeat(" ", col))
		b.WriteByte('^')
	}
	return b.String()
}

// FormatAll renders every accumulated error, one per paragraph.
func (r *Reporter) FormatAll() string {
	parts := make([]string, 0, len(r.errors))
	for _, e := range r.errors {
		parts = append(parts, r.Format(e))
	}
	return strings.Join(parts, "\n\n")
}

func (r *Reporter) lineAt(lineNum int) string {
	if r.Source == "" || lineNum <= 0 {
		return ""
	}
	current := 1
	start := 0
	for i := 0; i < len(r.Source); i++ {
		if r.Source[i] == '\n' {
			if current == lineNum {
				return r.Source[start:i]
			}
			current++
			start = i + 1
		}
	}
	if current == lineNum && start < len(r.Source) {
		return r.Source[start:]
	}
	if current == lineNum {
		return ""
	}
	return ""
}
