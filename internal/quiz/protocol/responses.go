package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
)

// Greeting is the first line written on every connection.
const Greeting = "Hello! You are connected to the Math Server. Use 'auth <username> <password>' or 'register <username> <password>'."

const (
	RespRegistered      = "registered"
	RespUserExists      = "user already exists"
	RespAuthOK          = "authentication successful"
	RespAuthFailed      = "authentication failed"
	RespNeedAuth        = "You need to authenticate first. Use 'auth <username> <password>'."
	RespPermission      = "Permission denied"
	RespUnknownCommand  = "unknown command"
	RespUnknownCategory = "unknown category"
	RespInvalidIndex    = "invalid problem index"
	RespCorrect         = "correct"
	RespIncorrect       = "incorrect"
	RespProblemNotFound = "problem not found"
	RespProblemExists   = "problem already exists"
	RespInvalidProblem  = "invalid problem"
	RespAdded           = "added"
	RespUpdated         = "updated"
	RespDeleted         = "deleted"
	RespUserNotFound    = "user not found"
	RespSelfDelete      = "you cannot delete yourself"
	RespSelfDemote      = "you cannot demote yourself"
	RespPromoted        = "promoted"
	RespDemoted         = "demoted"
	RespNotAdmin        = "user is not an admin"
	RespRateLimited     = "too many attempts, try again later"
	RespServerFull      = "server is full"
	RespInternal        = "internal error"
)

// timeLayout renders last-login timestamps, always in UTC.
const timeLayout = "2006-01-02 15:04:05"

func problemsLine(problems []generator.Problem) string {
	pairs := make([]string, len(problems))
	for i, p := range problems {
		pairs[i] = p.Text + "|" + p.Answer
	}
	return "problems:" + strings.Join(pairs, ";")
}

func resultLine(index int, correct bool) string {
	v := "0"
	if correct {
		v = "1"
	}
	return "result:" + strconv.Itoa(index) + "|" + v
}

// counted prefixes lines with a "<tag>:<n>" header so clients know how many
// lines follow.
func counted(tag string, lines []string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, tag+":"+strconv.Itoa(len(lines)))
	return append(out, lines...)
}

func summaryLine(s domain.UserSummary) string {
	last := ""
	if s.LastLogin != nil {
		last = s.LastLogin.UTC().Format(timeLayout)
	}
	return fmt.Sprintf("User: %s | Total: %d | Correct: %d | Last Login: %s",
		s.Username, s.Total, s.Correct, last)
}

func attemptLine(a domain.Attempt) string {
	solved := 0
	if a.Solved {
		solved = 1
	}
	return fmt.Sprintf("Problem: %s | Solved: %d | Attempts: %d", a.ProblemText, solved, a.Attempts)
}

func reportLines(r domain.UserReport) []string {
	lines := make([]string, 0, len(r.Attempts)+1)
	lines = append(lines, summaryLine(r.Summary))
	for _, a := range r.Attempts {
		lines = append(lines, attemptLine(a))
	}
	return counted("stats", lines)
}
