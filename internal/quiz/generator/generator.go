// Package generator produces category-specific practice problems together
// with their expected answers.
package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/mathquiz/pkg/mathexpr"
)

const (
	CategoryAlgebra      = "algebra"
	CategoryCalculus     = "calculus"
	CategoryTrigonometry = "trigonometry"
	CategoryMatrices     = "matrices"
)

// MaxOffered caps how many problems are handed to a client at once.
const MaxOffered = 4

var ErrUnknownCategory = errors.New("generator: unknown category")

// Problem is a rendered problem and the answer a client must submit.
type Problem struct {
	Text   string
	Answer string
}

// Categories lists the supported categories in display order.
func Categories() []string {
	return []string{CategoryAlgebra, CategoryCalculus, CategoryTrigonometry, CategoryMatrices}
}

// Generator is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a generator with a fixed seed, useful for reproducible tests.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a generator seeded from the clock.
func NewRandom() *Generator {
	return New(uint64(time.Now().UnixNano()))
}

// intn returns a value in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

// Generate returns the raw candidates for category. Candidates are not
// filtered; use Offer for what may be shown to a client.
func (g *Generator) Generate(category string) ([]Problem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var texts []string
	switch strings.ToLower(category) {
	case CategoryAlgebra:
		texts = []string{
			g.atPoint(g.polynomial(2)),
			g.atPoint(g.polynomial(3)),
			g.atPoint(fmt.Sprintf("(%s)/(%s)", g.polynomial(2), g.polynomial(1))),
		}
	case CategoryCalculus:
		texts = []string{
			g.atPoint(fmt.Sprintf("integral(%s) dx", g.polynomial(2))),
			g.atPoint(fmt.Sprintf("derivative(%s)", g.polynomial(3))),
		}
	case CategoryTrigonometry:
		texts = []string{g.atPoint(g.trigonometric())}
	case CategoryMatrices:
		return []Problem{g.matrixProblem()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	problems := make([]Problem, 0, len(texts))
	for _, text := range texts {
		answer, err := mathexpr.ParseAndCalculate(text)
		if err != nil {
			// Left without an answer; Valid rejects it.
			answer = ""
		}
		problems = append(problems, Problem{Text: text, Answer: answer})
	}
	return problems, nil
}

// Offer generates problems for category and keeps at most MaxOffered of the
// ones that pass Valid.
func (g *Generator) Offer(category string) ([]Problem, error) {
	candidates, err := g.Generate(category)
	if err != nil {
		return nil, err
	}

	offered := make([]Problem, 0, MaxOffered)
	for _, p := range candidates {
		if !Valid(p) {
			continue
		}
		offered = append(offered, p)
		if len(offered) == MaxOffered {
			break
		}
	}
	return offered, nil
}

// polynomial renders a polynomial of the given degree with coefficients in
// 1..9, highest power first: "3x^2+7x+1".
func (g *Generator) polynomial(degree int) string {
	var b strings.Builder
	for power := degree; power >= 0; power-- {
		coeff := g.intn(1, 9)
		if power < degree {
			b.WriteByte('+')
		}
		switch {
		case power > 1:
			fmt.Fprintf(&b, "%dx^%d", coeff, power)
		case power == 1:
			fmt.Fprintf(&b, "%dx", coeff)
		default:
			fmt.Fprintf(&b, "%d", coeff)
		}
	}
	return b.String()
}

func (g *Generator) trigonometric() string {
	funcs := []string{"sin", "cos", "tan"}
	fn := funcs[g.rng.IntN(len(funcs))]
	return fmt.Sprintf("%s(%d*(x+%d))", fn, g.intn(1, 4), g.intn(1, 4))
}

// atPoint appends the binding clause fixing the point x is evaluated at.
func (g *Generator) atPoint(body string) string {
	return fmt.Sprintf("%s, x=%d", body, g.intn(1, 5))
}
