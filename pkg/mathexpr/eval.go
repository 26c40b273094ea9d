// Package mathexpr normalizes, parses and evaluates arithmetic expressions
// with a small set of one-argument functions and optional variable bindings.
package mathexpr

import (
	"math"
	"strconv"
	"strings"
)

// Evaluate evaluates raw, honouring any trailing binding clause
// ("3x^2+1, x=2").
func Evaluate(raw string) (float64, error) {
	return EvaluateWith(raw, nil)
}

// EvaluateWith evaluates raw with vars in scope. Bindings written in the
// expression itself take precedence over vars.
func EvaluateWith(raw string, vars Vars) (float64, error) {
	expr, clauses := SplitBindings(raw)

	scope := make(Vars, len(vars)+len(clauses))
	for name, v := range vars {
		scope[name] = v
	}
	for _, clause := range clauses {
		name, value, ok := strings.Cut(clause, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return 0, newError(InvalidNumber, 0, "malformed binding "+clause)
		}
		v, err := evaluateNormalized(Normalize(value), nil)
		if err != nil {
			return 0, err
		}
		scope[name] = v
	}

	return evaluateNormalized(Normalize(expr), scope)
}

func evaluateNormalized(expr string, vars Vars) (float64, error) {
	p := &parser{src: []rune(expr), vars: vars}
	return p.run()
}

// ParseAndCalculate evaluates raw and formats the result the way answers are
// stored and sent to clients.
func ParseAndCalculate(raw string) (string, error) {
	v, err := Evaluate(raw)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

// Format renders v with ten significant digits. Negative zero is printed
// as "0".
func Format(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// Tolerance is the relative tolerance used when grading numeric answers.
const Tolerance = 1e-6

// Equal reports whether a and b agree within Tolerance, scaled by the larger
// magnitude (and never less than an absolute Tolerance).
func Equal(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= Tolerance*scale
}

// AnswersMatch grades a submitted answer against the expected one. Both are
// evaluated as expressions and compared with Equal; if either side does not
// evaluate, the trimmed strings are compared case-insensitively.
func AnswersMatch(given, expected string) bool {
	g, gErr := Evaluate(given)
	e, eErr := Evaluate(expected)
	if gErr == nil && eErr == nil {
		return Equal(g, e)
	}
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
