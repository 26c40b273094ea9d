package server

import "sync"

// Slots caps concurrent clients across every transport. Over the cap new
// clients are refused, never queued.
type Slots struct {
	mu   sync.Mutex
	used int
	max  int
}

func NewSlots(limit int) *Slots {
	return &Slots{max: limit}
}

// TryAcquire takes a slot if one is free.
func (s *Slots) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used >= s.max {
		return false
	}
	s.used++
	return true
}

func (s *Slots) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.used > 0 {
		s.used--
	}
}

func (s *Slots) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *Slots) Max() int { return s.max }
