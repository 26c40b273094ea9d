package domain

import "time"

type Problem struct {
	ID        string
	Text      string // unique
	Answer    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
