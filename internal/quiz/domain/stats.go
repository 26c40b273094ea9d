package domain

import "time"

// Attempt is the per-(user, problem) statistics row. Solved holds the
// outcome of the latest submission.
type Attempt struct {
	UserID      string
	ProblemID   string
	ProblemText string
	Solved      bool
	Attempts    int
	UpdatedAt   time.Time
}

// UserSummary aggregates a user's attempts. Users without attempts have
// zero counts.
type UserSummary struct {
	Username  string
	Total     int // sum of attempts
	Correct   int // problems whose latest attempt was solved
	LastLogin *time.Time
}

// UserReport is a summary plus the per-problem rows behind it.
type UserReport struct {
	Summary  UserSummary
	Attempts []Attempt
}
