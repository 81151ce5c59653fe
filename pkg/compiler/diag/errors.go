// Package diag defines the single tagged error type shared by every phase of
// the espg compilation pipeline.
//
// Every failure carries a Kind from a closed taxonomy plus a human-readable
// message. Phases wrap errors coming from nested nodes with the enclosing node
// kind (see WrapNode) so diagnostics keep their locality, while the Kind of the
// innermost failure is preserved for callers and tests.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the category of a compilation failure.
type Kind string

// Error kinds.
const (
	ConfigFileMissing       Kind = "ConfigFileMissing"
	ParseError              Kind = "ParseError"
	ConfigMissing           Kind = "ConfigMissing"
	InvalidConfig           Kind = "InvalidConfig"
	TooManyVariables        Kind = "TooManyVariables"
	AssetFolderMissing      Kind = "AssetFolderMissing"
	AssetFileMissing        Kind = "AssetFileMissing"
	AssetDecodeError        Kind = "AssetDecodeError"
	UnsupportedPixelFormat  Kind = "UnsupportedPixelFormat"
	UndefinedVariable       Kind = "UndefinedVariable"
	InvalidAssignmentTarget Kind = "InvalidAssignmentTarget"
	UnsupportedOperator     Kind = "UnsupportedOperator"
	UnsupportedNode         Kind = "UnsupportedNode"
	InvalidCoordinate       Kind = "InvalidCoordinate"
	AssemblyError           Kind = "AssemblyError"
)

// Error is a structured compilation error.
//
// Line and Column are 1-indexed and zero when the failure has no source
// location (asset and assembly failures, for example). Context holds an
// excerpt of the source around the location, see GenerateErrorContext.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Column  int
	Context string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString(string(e.Kind))
	if e.Line > 0 {
		fmt.Fprintf(&buf, " at line %d, column %d", e.Line, e.Column)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	if e.Context != "" {
		buf.WriteString("\n")
		buf.WriteString(strings.TrimRight(e.Context, "\n"))
	}
	return buf.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. It lets callers
// write errors.Is(err, &diag.Error{Kind: diag.UndefinedVariable}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// New creates an Error without source location.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At creates an Error located at line/column.
func At(kind Kind, line, column int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Line: line, Column: column}
}

// Wrap creates an Error of the given kind around a lower-level cause.
// If cause is already an *Error its kind is kept and only the message is
// prefixed, so wrapping never hides the original category.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var inner *Error
	if errors.As(cause, &inner) && kind != AssemblyError {
		return &Error{
			Kind:    inner.Kind,
			Message: msg + ": " + inner.Message,
			Line:    inner.Line,
			Column:  inner.Column,
			Context: inner.Context,
			Err:     inner.Err,
		}
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// WrapNode prefixes err with the kind of the AST node being compiled.
// The resulting message reads "compiling <outer>: compiling <inner>: ...",
// and the Kind and location of the innermost error are preserved.
func WrapNode(nodeKind string, err error) error {
	if err == nil {
		return nil
	}
	var inner *Error
	if !errors.As(err, &inner) {
		return &Error{Kind: UnsupportedNode, Message: "compiling " + nodeKind, Err: err}
	}
	wrapped := *inner
	wrapped.Message = "compiling " + nodeKind + ": " + inner.Message
	return &wrapped
}

// KindOf returns the Kind of err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// WithContext attaches a source excerpt to err when it carries a location.
// Errors without a location, or that already have context, are returned unchanged.
func WithContext(err error, source string) error {
	var e *Error
	if !errors.As(err, &e) || e.Line <= 0 || e.Context != "" {
		return err
	}
	withCtx := *e
	withCtx.Context = GenerateErrorContext(source, e.Line, e.Column)
	return &withCtx
}

// GenerateErrorContext generates source code context around an error location.
// It includes 2 lines before and 2 lines after the error line, with line numbers
// and a pointer (^) indicating the error column.
//
// Example output:
//
//	  2 | let x = 5;
//	  3 | let y = 10;
//	> 4 | let z = ;
//	    |         ^
//	  5 | let w = 20;
//	  6 | let v = 30;
func GenerateErrorContext(source string, line, column int) string {
	if source == "" || line <= 0 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}

	start := line - 3
	if start < 0 {
		start = 0
	}
	end := line + 2
	if end > len(lines) {
		end = len(lines)
	}

	var buf strings.Builder
	lineNumWidth := len(fmt.Sprintf("%d", end))

	for i := start; i < end; i++ {
		lineNum := i + 1
		lineContent := strings.TrimRight(lines[i], "\r")

		if lineNum == line {
			fmt.Fprintf(&buf, "> %*d | %s\n", lineNumWidth, lineNum, lineContent)
			// "> " + width + " | "
			pointerIndent := 2 + lineNumWidth + 3
			if column > 0 {
				fmt.Fprintf(&buf, "%s%s^\n", strings.Repeat(" ", pointerIndent), strings.Repeat(" ", column-1))
			} else {
				fmt.Fprintf(&buf, "%s^\n", strings.Repeat(" ", pointerIndent))
			}
		} else {
			fmt.Fprintf(&buf, "  %*d | %s\n", lineNumWidth, lineNum, lineContent)
		}
	}

	return buf.String()
}
