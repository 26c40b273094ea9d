package mathexpr

import (
	"strings"
	"unicode"
)

// Canonical names for the square and cube root after normalization.
const (
	SqrtSymbol = "√"
	CbrtSymbol = "∛"
)

// aliases maps every accepted spelling of a function to its canonical name.
var aliases = map[string]string{
	"sqrt":       SqrtSymbol,
	SqrtSymbol:   SqrtSymbol,
	"cbrt":       CbrtSymbol,
	CbrtSymbol:   CbrtSymbol,
	"log":        "log10",
	"log10":      "log10",
	"ln":         "ln",
	"sin":        "sin",
	"cos":        "cos",
	"tan":        "tan",
	"integral":   "integral",
	"derivative": "derivative",
}

// IsFunction reports whether name is a supported function spelling.
func IsFunction(name string) bool {
	_, ok := aliases[name]
	return ok
}

// Normalize rewrites a raw expression into the form the parser consumes:
// whitespace is removed, "**" becomes "^", function aliases are mapped to
// their canonical names, a trailing "dx" after a closing parenthesis is
// dropped and implicit multiplication is made explicit ("3x" -> "3*x").
//
// Normalize does not look at binding clauses; see SplitBindings.
func Normalize(expr string) string {
	expr = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expr)
	expr = strings.ReplaceAll(expr, "**", "^")
	if strings.HasSuffix(expr, ")dx") {
		expr = strings.TrimSuffix(expr, "dx")
	}

	src := []rune(expr)
	var b strings.Builder
	b.Grow(len(expr) + 8)

	// operandEnd is true when the previous token can be the left side of an
	// implicit multiplication.
	operandEnd := false
	for i := 0; i < len(src); {
		r := src[i]
		switch {
		case isIdentStart(r):
			j := scanIdent(src, i)
			name := string(src[i:j])
			if operandEnd {
				b.WriteByte('*')
			}
			if j < len(src) && src[j] == '(' {
				if canonical, ok := aliases[name]; ok {
					name = canonical
				}
				operandEnd = false
			} else {
				operandEnd = true
			}
			b.WriteString(name)
			i = j
		case isDigit(r) || r == '.':
			j := scanNumber(src, i)
			if operandEnd {
				b.WriteByte('*')
			}
			b.WriteString(string(src[i:j]))
			operandEnd = true
			i = j
		case r == '(':
			if operandEnd {
				b.WriteByte('*')
			}
			b.WriteRune(r)
			operandEnd = false
			i++
		case r == ')':
			b.WriteRune(r)
			operandEnd = true
			i++
		default:
			b.WriteRune(r)
			operandEnd = false
			i++
		}
	}
	return b.String()
}

// SplitBindings separates an expression from a trailing binding clause. The
// clause starts at the first comma outside any brackets and holds
// comma-separated "name=value" pairs, e.g. "3x^2+1, x=2".
func SplitBindings(raw string) (expr string, bindings []string) {
	depth := 0
	for i, r := range raw {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				for _, part := range strings.Split(raw[i+1:], ",") {
					if part = strings.TrimSpace(part); part != "" {
						bindings = append(bindings, part)
					}
				}
				return raw[:i], bindings
			}
		}
	}
	return raw, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || string(r) == SqrtSymbol || string(r) == CbrtSymbol
}

// scanIdent returns the end of an identifier starting at i. Digits are
// allowed after the first rune so that "log10" stays one name.
func scanIdent(src []rune, i int) int {
	if string(src[i]) == SqrtSymbol || string(src[i]) == CbrtSymbol {
		return i + 1
	}
	j := i
	for j < len(src) && (unicode.IsLetter(src[j]) || (j > i && isDigit(src[j]))) {
		j++
	}
	return j
}

// scanNumber returns the end of a number literal starting at i:
// digits, an optional fraction and an optional exponent.
func scanNumber(src []rune, i int) int {
	j := i
	for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
		j++
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			for k < len(src) && isDigit(src[k]) {
				k++
			}
			j = k
		}
	}
	return j
}
