package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
)

type statsRepo struct {
	db dbtx
}

func (r *statsRepo) UpsertAttempt(ctx context.Context, userID, problemID string, solved bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, problem_id, solved, attempts, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(user_id, problem_id) DO UPDATE SET
		     solved     = excluded.solved,
		     attempts   = user_stats.attempts + 1,
		     updated_at = excluded.updated_at`,
		userID, problemID, solved, time.Now().UTC(),
	)
	return err
}

func (r *statsRepo) ListAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.user_id, s.problem_id, p.text, s.solved, s.attempts, s.updated_at
		   FROM user_stats s
		   JOIN problems p ON p.id = s.problem_id
		  WHERE s.user_id = ?
		  ORDER BY p.created_at, p.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.UserID, &a.ProblemID, &a.ProblemText, &a.Solved, &a.Attempts, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const summarySelect = `
SELECT u.username, u.last_login,
       COALESCE(SUM(s.attempts), 0),
       COALESCE(SUM(s.solved), 0)
  FROM users u
  LEFT JOIN user_stats s ON s.user_id = u.id`

func (r *statsRepo) Summaries(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, summarySelect+`
 GROUP BY u.id
 ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *statsRepo) SummaryForUser(ctx context.Context, username string) (domain.UserSummary, error) {
	row := r.db.QueryRowContext(ctx, summarySelect+`
 WHERE u.username = ?
 GROUP BY u.id`, username)
	s, err := scanSummary(row)
	if err != nil {
		return domain.UserSummary{}, mapNotFound(err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (domain.UserSummary, error) {
	var (
		s         domain.UserSummary
		lastLogin sql.NullTime
	)
	if err := sc.Scan(&s.Username, &lastLogin, &s.Total, &s.Correct); err != nil {
		return domain.UserSummary{}, err
	}
	s.LastLogin = mapNullTimePtr(lastLogin)
	return s, nil
}
