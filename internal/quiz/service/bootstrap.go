package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

// SampleProblems are stored on first start so "solve" has something to
// answer.
var SampleProblems = []domain.Problem{
	{Text: "2+2", Answer: "4"},
	{Text: "3*3", Answer: "9"},
	{Text: "10-5", Answer: "5"},
}

type BootstrapService struct {
	Accounts *AccountService
	Problems *ProblemService

	AdminUsername string
	AdminPassword string
}

// Seed makes sure at least one administrator exists and the sample problems
// are stored. Safe to call on every start.
func (s *BootstrapService) Seed(ctx context.Context) error {
	l := slogx.FromContext(ctx)

	admins, err := s.Accounts.Store.Roles().CountUsersWithRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}

	if admins == 0 {
		err := s.Accounts.create(ctx, s.AdminUsername, s.AdminPassword, domain.RoleUser, domain.RoleAdmin)
		switch {
		case errors.Is(err, ErrDuplicateUser):
			// The name is taken by a plain user; promote it.
			if err := s.Accounts.GrantRole(ctx, s.AdminUsername, domain.RoleAdmin); err != nil {
				return fmt.Errorf("promote default admin: %w", err)
			}
		case err != nil:
			return fmt.Errorf("create default admin: %w", err)
		}
		l.Warn("seeded default administrator", slog.String("username", s.AdminUsername))
	}

	for _, p := range SampleProblems {
		_, err := s.Problems.AddProblem(ctx, p.Text, p.Answer)
		if err != nil && !errors.Is(err, ErrDuplicateProblem) {
			return fmt.Errorf("seed problem %q: %w", p.Text, err)
		}
	}
	return nil
}
