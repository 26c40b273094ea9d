package generator

import (
	"regexp"
	"strconv"
	"strings"
)

// Matrix is a dense square matrix of small integers.
type Matrix [][]int

func (g *Generator) matrix(order int) Matrix {
	m := make(Matrix, order)
	for i := range m {
		m[i] = make([]int, order)
		for j := range m[i] {
			m[i][j] = g.intn(1, 9)
		}
	}
	return m
}

func (g *Generator) matrixProblem() Problem {
	order := g.intn(2, 3)
	a, b := g.matrix(order), g.matrix(order)

	op := "+"
	result := a.Add(b)
	if g.rng.IntN(2) == 1 {
		op = "*"
		result = a.Mul(b)
	}
	return Problem{
		Text:   a.String() + op + b.String(),
		Answer: result.String(),
	}
}

// Add returns m+o. Both must have the same order.
func (m Matrix) Add(o Matrix) Matrix {
	out := make(Matrix, len(m))
	for i := range m {
		out[i] = make([]int, len(m[i]))
		for j := range m[i] {
			out[i][j] = m[i][j] + o[i][j]
		}
	}
	return out
}

// Mul returns the matrix product m*o of two square matrices of the same order.
func (m Matrix) Mul(o Matrix) Matrix {
	n := len(m)
	out := make(Matrix, n)
	for i := range n {
		out[i] = make([]int, n)
		for j := range n {
			for k := range n {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// String renders nested bracket notation: [[1,2],[3,4]].
func (m Matrix) String() string {
	rows := make([]string, len(m))
	for i, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.Itoa(v)
		}
		rows[i] = "[" + strings.Join(cells, ",") + "]"
	}
	return "[" + strings.Join(rows, ",") + "]"
}

var (
	matrixRow     = `\[\d+(?:,\d+)*\]`
	matrixLiteral = `\[` + matrixRow + `(?:,` + matrixRow + `)*\]`
	matrixProblem = regexp.MustCompile(`^` + matrixLiteral + `[+*]` + matrixLiteral + `$`)
	matrixAnswer  = regexp.MustCompile(`^` + matrixLiteral + `$`)
)

// IsMatrixProblem reports whether text is a matrix operation in bracket
// notation.
func IsMatrixProblem(text string) bool {
	return matrixProblem.MatchString(text)
}
