package mathexpr

import "fmt"

// Reason classifies why an expression could not be evaluated.
type Reason int

const (
	DivisionByZero Reason = iota + 1
	UnexpectedEnd
	MismatchedParentheses
	UnknownFunction
	InvalidNumber
	FunctionCallWithoutParentheses
	UndefinedVariable
	TrailingInput
	DomainError
)

var reasonNames = map[Reason]string{
	DivisionByZero:                 "division by zero",
	UnexpectedEnd:                  "unexpected end of expression",
	MismatchedParentheses:          "mismatched parentheses",
	UnknownFunction:                "unknown function",
	InvalidNumber:                  "invalid number",
	FunctionCallWithoutParentheses: "function call without parentheses",
	UndefinedVariable:              "undefined variable",
	TrailingInput:                  "unexpected trailing input",
	DomainError:                    "result is not a finite number",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// ParseError is returned by every evaluation entry point. Pos is the rune
// offset into the normalized expression.
type ParseError struct {
	Reason Reason
	Pos    int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mathexpr: %s at %d: %s", e.Reason, e.Pos, e.Detail)
	}
	return fmt.Sprintf("mathexpr: %s at %d", e.Reason, e.Pos)
}

// Is matches any *ParseError carrying the same Reason, so the sentinels below
// work with errors.Is regardless of position or detail.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Reason == e.Reason
}

var (
	ErrDivisionByZero                 = &ParseError{Reason: DivisionByZero}
	ErrUnexpectedEnd                  = &ParseError{Reason: UnexpectedEnd}
	ErrMismatchedParentheses          = &ParseError{Reason: MismatchedParentheses}
	ErrUnknownFunction                = &ParseError{Reason: UnknownFunction}
	ErrInvalidNumber                  = &ParseError{Reason: InvalidNumber}
	ErrFunctionCallWithoutParentheses = &ParseError{Reason: FunctionCallWithoutParentheses}
	ErrUndefinedVariable              = &ParseError{Reason: UndefinedVariable}
	ErrTrailingInput                  = &ParseError{Reason: TrailingInput}
	ErrDomain                         = &ParseError{Reason: DomainError}
)

func newError(r Reason, pos int, detail string) *ParseError {
	return &ParseError{Reason: r, Pos: pos, Detail: detail}
}
