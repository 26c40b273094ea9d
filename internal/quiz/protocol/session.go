package protocol

import (
	"net"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
)

// Session is the per-connection state owned by the connection handler and
// handed to the Dispatcher on every line. It is not safe for concurrent use;
// a connection processes its lines one at a time.
type Session struct {
	ID         string
	RemoteAddr string

	userID   string
	username string

	// offered holds the last problem set sent for each category so that
	// check_answer grades what the client actually saw.
	offered map[string][]generator.Problem
}

func NewSession(id, remoteAddr string) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		offered:    make(map[string][]generator.Problem),
	}
}

func (s *Session) Authenticated() bool { return s.username != "" }
func (s *Session) Username() string    { return s.username }

// bind replaces the session identity. Problem sets offered to a previous
// identity are dropped.
func (s *Session) bind(u domain.User) {
	s.userID = u.ID
	s.username = u.Username
	clear(s.offered)
}

// unbind returns the session to the unauthenticated state.
func (s *Session) unbind() {
	s.userID = ""
	s.username = ""
	clear(s.offered)
}

func (s *Session) offer(category string, problems []generator.Problem) {
	s.offered[strings.ToLower(category)] = problems
}

func (s *Session) lastOffered(category string) ([]generator.Problem, bool) {
	p, ok := s.offered[strings.ToLower(category)]
	return p, ok
}

// host is the rate limiting key: the remote IP without its port.
func (s *Session) host() string {
	h, _, err := net.SplitHostPort(s.RemoteAddr)
	if err != nil {
		return s.RemoteAddr
	}
	return h
}
