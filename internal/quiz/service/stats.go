package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store"
	"github.com/aussiebroadwan/mathquiz/pkg/idx"
)

type StatsService struct {
	Store store.Store
}

// RecordAttempt stores one graded submission. A generated problem that has
// never been stored is inserted first with its expected answer, so the stats
// row always has a problem to point at.
func (s *StatsService) RecordAttempt(ctx context.Context, userID, text, expected string, solved bool) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Problems().GetProblemByText(ctx, text)
		if errors.Is(err, store.ErrNotFound) {
			p = domain.Problem{ID: idx.New().String(), Text: text, Answer: expected}
			err = tx.Problems().CreateProblem(ctx, p)
		}
		if err != nil {
			return err
		}
		return tx.Stats().UpsertAttempt(ctx, userID, p.ID, solved)
	})
}

// UserReport is the summary line plus one row per attempted problem.
func (s *StatsService) UserReport(ctx context.Context, username string) (domain.UserReport, error) {
	var report domain.UserReport

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if report.Summary, err = tx.Stats().SummaryForUser(ctx, username); err != nil {
			return err
		}
		report.Attempts, err = tx.Stats().ListAttempts(ctx, user.ID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserReport{}, ErrUserNotFound
	}
	return report, err
}

// Statistics aggregates every user, including those with no attempts.
func (s *StatsService) Statistics(ctx context.Context) ([]domain.UserSummary, error) {
	return s.Store.Stats().Summaries(ctx)
}
