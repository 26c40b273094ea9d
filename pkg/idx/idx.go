// Package idx hands out ULID identifiers for rows and connections. IDs sort
// by creation time, which keeps "ORDER BY id" stable for rows created in the
// same second.
package idx

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

var (
	once    sync.Once
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
)

func setup() {
	entropy = ulid.Monotonic(rand.Reader, 0)
}

// New returns a fresh ID stamped with the current UTC time. Safe for
// concurrent use.
func New() ID {
	return newAt(time.Now().UTC())
}

func newAt(t time.Time) ID {
	once.Do(setup)

	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

func (id ID) String() string { return string(id) }

// Short is the last eight characters, enough to tell connections apart in
// logs.
func (id ID) Short() string {
	s := string(id)
	if len(s) <= 8 {
		return s
	}
	return s[len(s)-8:]
}
