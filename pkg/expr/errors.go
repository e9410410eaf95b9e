package expr

import "fmt"

// ErrorKind classifies expression evaluation failures.
type ErrorKind string

const (
	ErrKindSyntax           ErrorKind = "syntax"
	ErrKindUnknownReference ErrorKind = "unknown_reference"
	ErrKindUnknownFunction  ErrorKind = "unknown_function"
	ErrKindType             ErrorKind = "type"
)

// EvalError carries the failing expression and offset so callers can
// surface the exact location without log scraping.
type EvalError struct {
	Kind ErrorKind
	Expr string
	Pos  int
	Msg  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s error in expression %q at offset %d: %s", e.Kind, e.Expr, e.Pos, e.Msg)
}

// IsUnknownReference reports whether err is an EvalError for a context
// path that does not exist at evaluation time.
func IsUnknownReference(err error) bool {
	evalErr, ok := err.(*EvalError)

	return ok && evalErr.Kind == ErrKindUnknownReference
}

func newError(kind ErrorKind, expr string, pos int, format string, args ...any) *EvalError {
	return &EvalError{
		Kind: kind,
		Expr: expr,
		Pos:  pos,
		Msg:  fmt.Sprintf(format, args...),
	}
}
