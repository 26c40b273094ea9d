package protocol

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/service"
	"github.com/aussiebroadwan/mathquiz/pkg/mathexpr"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

func (d *Dispatcher) register(ctx context.Context, s *Session, args []string) []string {
	if !d.AuthLimiter.Allow(s.host()) {
		return []string{RespRateLimited}
	}

	err := d.Accounts.Register(ctx, args[0], args[1])
	switch {
	case err == nil:
		return []string{RespRegistered}
	case errors.Is(err, service.ErrDuplicateUser):
		return []string{RespUserExists}
	default:
		return d.internal(ctx, "register", err)
	}
}

func (d *Dispatcher) auth(ctx context.Context, s *Session, args []string) []string {
	l := slogx.FromContext(ctx)

	if !d.AuthLimiter.Allow(s.host()) {
		l.Warn("auth rate limited", slog.String("username", args[0]))
		return []string{RespRateLimited}
	}

	user, err := d.Accounts.Authenticate(ctx, args[0], args[1])
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		l.Info("authentication failed", slog.String("username", args[0]))
		return []string{RespAuthFailed}
	case err != nil:
		return d.internal(ctx, "auth", err)
	}

	s.bind(user)
	l.Info("authenticated", slog.String("username", user.Username))
	return []string{RespAuthOK}
}

func (d *Dispatcher) getProblems(ctx context.Context, s *Session, args []string) []string {
	problems, err := d.Generator.Offer(args[0])
	if errors.Is(err, generator.ErrUnknownCategory) {
		return []string{RespUnknownCategory}
	}
	if err != nil {
		return d.internal(ctx, "get_problems", err)
	}

	s.offer(args[0], problems)
	return []string{problemsLine(problems)}
}

func (d *Dispatcher) checkAnswer(ctx context.Context, s *Session, args []string) []string {
	category, answer := args[0], args[2]

	problems, ok := s.lastOffered(category)
	if !ok {
		var err error
		problems, err = d.Generator.Offer(category)
		if errors.Is(err, generator.ErrUnknownCategory) {
			return []string{RespUnknownCategory}
		}
		if err != nil {
			return d.internal(ctx, "check_answer", err)
		}
		s.offer(category, problems)
	}

	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 || index >= len(problems) {
		return []string{RespInvalidIndex}
	}

	p := problems[index]
	correct := mathexpr.AnswersMatch(answer, p.Answer)
	if err := d.Stats.RecordAttempt(ctx, s.userID, p.Text, p.Answer, correct); err != nil {
		return d.internal(ctx, "check_answer", err)
	}
	return []string{resultLine(index, correct)}
}

func (d *Dispatcher) solve(ctx context.Context, s *Session, args []string) []string {
	text, answer := splitAnswer(args)

	expected, err := d.Problems.Answer(ctx, text)
	if errors.Is(err, service.ErrProblemNotFound) {
		return []string{RespProblemNotFound}
	}
	if err != nil {
		return d.internal(ctx, "solve", err)
	}

	correct := mathexpr.AnswersMatch(answer, expected)
	if err := d.Stats.RecordAttempt(ctx, s.userID, text, expected, correct); err != nil {
		return d.internal(ctx, "solve", err)
	}
	if correct {
		return []string{RespCorrect}
	}
	return []string{RespIncorrect}
}

func (d *Dispatcher) myStats(ctx context.Context, s *Session, _ []string) []string {
	report, err := d.Stats.UserReport(ctx, s.username)
	if err != nil {
		return d.internal(ctx, "mystats", err)
	}
	return reportLines(report)
}

func (d *Dispatcher) categories(context.Context, *Session, []string) []string {
	return []string{"categories:" + strings.Join(generator.Categories(), ";")}
}

func (d *Dispatcher) listProblems(ctx context.Context, _ *Session, _ []string) []string {
	problems, err := d.Problems.List(ctx)
	if err != nil {
		return d.internal(ctx, "list_problems", err)
	}

	lines := make([]string, len(problems))
	for i, p := range problems {
		lines[i] = p.Text
	}
	return counted("problemlist", lines)
}

func (d *Dispatcher) deleteUser(ctx context.Context, s *Session, args []string) []string {
	target := args[0]
	if target == s.username {
		return []string{RespSelfDelete}
	}

	err := d.Accounts.DeleteUser(ctx, target)
	switch {
	case err == nil:
		slogx.FromContext(ctx).Info("user deleted", slog.String("target", target))
		return []string{RespDeleted}
	case errors.Is(err, service.ErrUserNotFound):
		return []string{RespUserNotFound}
	default:
		return d.internal(ctx, "delete", err)
	}
}

func (d *Dispatcher) addProblem(ctx context.Context, _ *Session, args []string) []string {
	// A lone argument is the problem text; its answer is computed.
	text, answer := args[0], ""
	if len(args) > 1 {
		text, answer = splitAnswer(args)
	}

	_, err := d.Problems.AddProblem(ctx, text, answer)
	var perr *mathexpr.ParseError
	switch {
	case err == nil:
		return []string{RespAdded}
	case errors.Is(err, service.ErrDuplicateProblem):
		return []string{RespProblemExists}
	case errors.As(err, &perr), errors.Is(err, service.ErrEmptyProblem):
		return []string{RespInvalidProblem}
	default:
		return d.internal(ctx, "addproblem", err)
	}
}

func (d *Dispatcher) updateProblem(ctx context.Context, _ *Session, args []string) []string {
	text, answer := splitAnswer(args)

	err := d.Problems.UpdateProblem(ctx, text, answer)
	switch {
	case err == nil:
		return []string{RespUpdated}
	case errors.Is(err, service.ErrProblemNotFound):
		return []string{RespProblemNotFound}
	default:
		return d.internal(ctx, "updateproblem", err)
	}
}

func (d *Dispatcher) userStats(ctx context.Context, _ *Session, args []string) []string {
	report, err := d.Stats.UserReport(ctx, args[0])
	if errors.Is(err, service.ErrUserNotFound) {
		return []string{RespUserNotFound}
	}
	if err != nil {
		return d.internal(ctx, "stats", err)
	}
	return reportLines(report)
}

func (d *Dispatcher) allStats(ctx context.Context, _ *Session, _ []string) []string {
	summaries, err := d.Stats.Statistics(ctx)
	if err != nil {
		return d.internal(ctx, "userstats", err)
	}

	lines := make([]string, len(summaries))
	for i, sum := range summaries {
		lines[i] = summaryLine(sum)
	}
	return counted("stats", lines)
}

func (d *Dispatcher) listUsers(ctx context.Context, _ *Session, _ []string) []string {
	users, err := d.Accounts.ListUsers(ctx)
	if err != nil {
		return d.internal(ctx, "list_users", err)
	}

	lines := make([]string, len(users))
	for i, u := range users {
		role := domain.RoleUser
		if u.HasRole(domain.RoleAdmin) {
			role = domain.RoleAdmin
		}
		lines[i] = u.Username + " (" + role + ")"
	}
	return counted("users", lines)
}

func (d *Dispatcher) promote(ctx context.Context, _ *Session, args []string) []string {
	err := d.Accounts.GrantRole(ctx, args[0], domain.RoleAdmin)
	switch {
	case err == nil:
		slogx.FromContext(ctx).Info("user promoted", slog.String("target", args[0]))
		return []string{RespPromoted}
	case errors.Is(err, service.ErrUserNotFound):
		return []string{RespUserNotFound}
	default:
		return d.internal(ctx, "promote", err)
	}
}

func (d *Dispatcher) demote(ctx context.Context, s *Session, args []string) []string {
	if args[0] == s.username {
		return []string{RespSelfDemote}
	}

	err := d.Accounts.RevokeRole(ctx, args[0], domain.RoleAdmin)
	switch {
	case err == nil:
		slogx.FromContext(ctx).Info("user demoted", slog.String("target", args[0]))
		return []string{RespDemoted}
	case errors.Is(err, service.ErrUserNotFound):
		return []string{RespUserNotFound}
	case errors.Is(err, service.ErrRoleNotHeld):
		return []string{RespNotAdmin}
	default:
		return d.internal(ctx, "demote", err)
	}
}
