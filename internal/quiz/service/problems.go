package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store"
	"github.com/aussiebroadwan/mathquiz/pkg/idx"
	"github.com/aussiebroadwan/mathquiz/pkg/mathexpr"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

var (
	ErrDuplicateProblem = errors.New("problem already exists")
	ErrProblemNotFound  = errors.New("problem not found")
	ErrEmptyProblem     = errors.New("problem text is empty")
)

type ProblemService struct {
	Store store.Store
}

// AddProblem stores a new problem. An empty answer is filled in by
// evaluating the text; a text the engine rejects then fails with the
// engine's error.
func (s *ProblemService) AddProblem(ctx context.Context, text, answer string) (domain.Problem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Problem{}, ErrEmptyProblem
	}

	if answer == "" {
		computed, err := mathexpr.ParseAndCalculate(text)
		if err != nil {
			return domain.Problem{}, fmt.Errorf("compute answer: %w", err)
		}
		answer = computed
	}

	p := domain.Problem{ID: idx.New().String(), Text: text, Answer: answer}
	if err := s.Store.Problems().CreateProblem(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Problem{}, ErrDuplicateProblem
		}
		return domain.Problem{}, err
	}

	slogx.FromContext(ctx).Info("problem added", slog.String("problem", text))
	return p, nil
}

func (s *ProblemService) UpdateProblem(ctx context.Context, text, answer string) error {
	err := s.Store.Problems().UpdateProblemAnswer(ctx, text, answer)
	if errors.Is(err, store.ErrNotFound) {
		return ErrProblemNotFound
	}
	return err
}

// Answer returns the stored answer for text.
func (s *ProblemService) Answer(ctx context.Context, text string) (string, error) {
	p, err := s.Store.Problems().GetProblemByText(ctx, text)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrProblemNotFound
	}
	if err != nil {
		return "", err
	}
	return p.Answer, nil
}

func (s *ProblemService) List(ctx context.Context) ([]domain.Problem, error) {
	return s.Store.Problems().ListProblems(ctx)
}
