package generator

import (
	"regexp"
	"unicode"

	"github.com/aussiebroadwan/mathquiz/pkg/mathexpr"
)

var allowedText = regexp.MustCompile(`^[0-9a-z+\-*/^().,=√∛ ]+$`)

// allowedIdents are the only words a displayable problem may contain besides
// function names.
var allowedIdents = map[string]bool{"x": true, "dx": true}

// Valid reports whether p may be offered to a client. Matrix problems must
// be well-formed bracket notation with a bracket answer. Every other problem
// must use only the variable x and known functions, and its text must
// evaluate to the stored answer.
func Valid(p Problem) bool {
	if p.Text == "" || p.Answer == "" {
		return false
	}
	if IsMatrixProblem(p.Text) {
		return matrixAnswer.MatchString(p.Answer)
	}
	if !allowedText.MatchString(p.Text) || !identsAllowed(p.Text) {
		return false
	}

	got, err := mathexpr.ParseAndCalculate(p.Text)
	return err == nil && mathexpr.AnswersMatch(got, p.Answer)
}

func identsAllowed(text string) bool {
	runes := []rune(text)
	for i := 0; i < len(runes); {
		if !unicode.IsLetter(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) {
			j++
		}
		word := string(runes[i:j])
		if !allowedIdents[word] && !mathexpr.IsFunction(word) {
			return false
		}
		i = j
	}
	return true
}
