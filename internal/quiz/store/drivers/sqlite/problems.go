package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
)

type problemsRepo struct {
	db dbtx
}

func (r *problemsRepo) GetProblemByText(ctx context.Context, text string) (domain.Problem, error) {
	var p domain.Problem
	err := r.db.QueryRowContext(ctx,
		`SELECT id, text, answer, created_at, updated_at FROM problems WHERE text = ?`, text,
	).Scan(&p.ID, &p.Text, &p.Answer, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Problem{}, mapNotFound(err)
	}
	return p, nil
}

func (r *problemsRepo) CreateProblem(ctx context.Context, p domain.Problem) error {
	now := time.Now().UTC()
	return mapInserted(r.db.ExecContext(ctx,
		`INSERT INTO problems (id, text, answer, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(text) DO NOTHING`,
		p.ID, p.Text, p.Answer, now, now,
	))
}

func (r *problemsRepo) UpdateProblemAnswer(ctx context.Context, text, answer string) error {
	return mapAffected(r.db.ExecContext(ctx,
		`UPDATE problems SET answer = ?, updated_at = ? WHERE text = ?`,
		answer, time.Now().UTC(), text,
	))
}

func (r *problemsRepo) ListProblems(ctx context.Context) ([]domain.Problem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, answer, created_at, updated_at FROM problems ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Problem
	for rows.Next() {
		var p domain.Problem
		if err := rows.Scan(&p.ID, &p.Text, &p.Answer, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
