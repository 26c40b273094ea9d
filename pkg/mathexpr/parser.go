package mathexpr

import (
	"math"
	"strconv"
)

// Vars binds variable names to values during evaluation.
type Vars map[string]float64

var functions = map[string]func(float64) float64{
	SqrtSymbol: math.Sqrt,
	CbrtSymbol: math.Cbrt,
	"log10":    math.Log10,
	"ln":       math.Log,
	"sin":      math.Sin,
	"cos":      math.Cos,
	"tan":      math.Tan,
	// Calculus wrappers evaluate their argument as-is.
	"integral":   func(v float64) float64 { return v },
	"derivative": func(v float64) float64 { return v },
}

// parser is a recursive-descent evaluator over a normalized expression.
// Every production advances pos and returns a value or a *ParseError.
type parser struct {
	src  []rune
	pos  int
	vars Vars
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// run parses a whole expression and requires all input to be consumed.
func (p *parser) run() (float64, error) {
	v, err := p.expression()
	if err != nil {
		return 0, err
	}
	if !p.eof() {
		if p.peek() == ')' {
			return 0, newError(MismatchedParentheses, p.pos, "unbalanced ')'")
		}
		return 0, newError(TrailingInput, p.pos, string(p.src[p.pos:]))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, newError(DomainError, p.pos, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return v, nil
}

// expression := term (('+'|'-') term)*
func (p *parser) expression() (float64, error) {
	result, err := p.term()
	if err != nil {
		return 0, err
	}
	for !p.eof() {
		op := p.peek()
		if op != '+' && op != '-' {
			break
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			result += rhs
		} else {
			result -= rhs
		}
	}
	return result, nil
}

// term := unary (('*'|'/') unary)*
func (p *parser) term() (float64, error) {
	result, err := p.unary()
	if err != nil {
		return 0, err
	}
	for !p.eof() {
		op := p.peek()
		if op != '*' && op != '/' {
			break
		}
		opPos := p.pos
		p.pos++
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			result *= rhs
			continue
		}
		if rhs == 0 {
			return 0, newError(DivisionByZero, opPos, "")
		}
		result /= rhs
	}
	return result, nil
}

// unary := '-' unary | power
//
// Negation sits below '^', so -2^2 is -(2^2).
func (p *parser) unary() (float64, error) {
	if p.peek() != '-' {
		return p.power()
	}
	p.pos++
	v, err := p.unary()
	return -v, err
}

// power := factor ['^' unary]
func (p *parser) power() (float64, error) {
	base, err := p.factor()
	if err != nil {
		return 0, err
	}
	if p.peek() != '^' {
		return base, nil
	}
	p.pos++
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

// factor := '(' expression ')' | function '(' expression ')' | variable | number
func (p *parser) factor() (float64, error) {
	if p.eof() {
		return 0, newError(UnexpectedEnd, p.pos, "")
	}

	r := p.peek()
	switch {
	case r == '(':
		p.pos++
		v, err := p.expression()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, newError(MismatchedParentheses, p.pos, "expected ')'")
		}
		p.pos++
		return v, nil
	case isIdentStart(r):
		return p.identifier()
	default:
		return p.number()
	}
}

func (p *parser) identifier() (float64, error) {
	start := p.pos
	p.pos = scanIdent(p.src, p.pos)
	name := string(p.src[start:p.pos])

	if p.peek() != '(' {
		if v, ok := p.vars[name]; ok {
			return v, nil
		}
		if IsFunction(name) {
			return 0, newError(FunctionCallWithoutParentheses, start, name)
		}
		return 0, newError(UndefinedVariable, start, name)
	}

	p.pos++
	arg, err := p.expression()
	if err != nil {
		return 0, err
	}
	if p.peek() != ')' {
		return 0, newError(MismatchedParentheses, p.pos, "in call to "+name)
	}
	p.pos++

	canonical, ok := aliases[name]
	if !ok {
		return 0, newError(UnknownFunction, start, name)
	}
	return functions[canonical](arg), nil
}

// number := digits ['.' digits] [exponent]
func (p *parser) number() (float64, error) {
	start := p.pos
	p.pos = scanNumber(p.src, p.pos)

	text := string(p.src[start:p.pos])
	if p.pos == start {
		return 0, newError(InvalidNumber, start, string(p.peek()))
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, newError(InvalidNumber, start, text)
	}
	return v, nil
}
