// Package protocol implements the line-oriented command protocol: it parses
// one command line, enforces authentication and roles, calls the services
// and renders response lines.
package protocol

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/service"
	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

type access int

const (
	anyone access = iota
	authenticated
	adminOnly
)

type handlerFunc func(d *Dispatcher, ctx context.Context, s *Session, args []string) []string

type command struct {
	access access
	// minArgs and maxArgs bound the argument count; maxArgs < 0 means
	// unbounded.
	minArgs, maxArgs int
	handle           handlerFunc
}

var commands = map[string]command{
	"register":      {anyone, 2, 2, (*Dispatcher).register},
	"auth":          {anyone, 2, 2, (*Dispatcher).auth},
	"get_problems":  {authenticated, 1, 1, (*Dispatcher).getProblems},
	"check_answer":  {authenticated, 3, 3, (*Dispatcher).checkAnswer},
	"solve":         {authenticated, 2, -1, (*Dispatcher).solve},
	"mystats":       {authenticated, 0, 0, (*Dispatcher).myStats},
	"categories":    {authenticated, 0, 0, (*Dispatcher).categories},
	"list_problems": {authenticated, 0, 0, (*Dispatcher).listProblems},
	"delete":        {adminOnly, 1, 1, (*Dispatcher).deleteUser},
	"addproblem":    {adminOnly, 1, -1, (*Dispatcher).addProblem},
	"updateproblem": {adminOnly, 2, -1, (*Dispatcher).updateProblem},
	"stats":         {adminOnly, 1, 1, (*Dispatcher).userStats},
	"userstats":     {adminOnly, 0, 0, (*Dispatcher).allStats},
	"list_users":    {adminOnly, 0, 0, (*Dispatcher).listUsers},
	"promote":       {adminOnly, 1, 1, (*Dispatcher).promote},
	"demote":        {adminOnly, 1, 1, (*Dispatcher).demote},
}

// Dispatcher is shared by every connection; per-connection state lives in
// Session.
type Dispatcher struct {
	Accounts  *service.AccountService
	Problems  *service.ProblemService
	Stats     *service.StatsService
	Generator *generator.Generator

	// AuthLimiter throttles register and auth per remote IP. Nil disables it.
	AuthLimiter *ratelimit.Limiter
}

// Dispatch handles one command line and returns the response lines without
// terminators. Every line, blank ones included, gets at least one response
// line so line-synchronous clients never stall. Store calls are detached
// from ctx cancellation so a disconnect never interrupts a write halfway.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return []string{RespUnknownCommand}
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	ctx = context.WithoutCancel(ctx)
	if s.Authenticated() {
		ctx = slogx.WithUser(ctx, s.username)
	}
	l := slogx.FromContext(ctx)

	cmd, ok := commands[verb]
	if !ok {
		l.Debug("unknown command", slog.String("verb", verb))
		return []string{RespUnknownCommand}
	}

	if cmd.access >= authenticated {
		if !s.Authenticated() {
			return []string{RespNeedAuth}
		}
		if ok, resp := d.stillBound(ctx, s, verb); !ok {
			return resp
		}
	}

	if cmd.access == adminOnly {
		isAdmin, err := d.Accounts.IsAdmin(ctx, s.username)
		if err != nil {
			return d.internal(ctx, verb, err)
		}
		if !isAdmin {
			l.Warn("permission denied", slog.String("verb", verb))
			return []string{RespPermission}
		}
	}

	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		return []string{RespUnknownCommand}
	}

	l.Debug("dispatch", slog.String("verb", verb), slog.Int("args", len(args)))
	return cmd.handle(d, ctx, s, args)
}

// stillBound checks the session's account still exists. An account deleted
// (or deleted and registered again) since auth unbinds the session.
func (d *Dispatcher) stillBound(ctx context.Context, s *Session, verb string) (bool, []string) {
	u, err := d.Accounts.GetUser(ctx, s.username)
	switch {
	case errors.Is(err, service.ErrUserNotFound), err == nil && u.ID != s.userID:
		slogx.FromContext(ctx).Info("account no longer exists, session unbound", slog.String("verb", verb))
		s.unbind()
		return false, []string{RespNeedAuth}
	case err != nil:
		return false, d.internal(ctx, verb, err)
	}
	return true, nil
}

func (d *Dispatcher) internal(ctx context.Context, verb string, err error) []string {
	slogx.FromContext(ctx).Error("command failed", slog.String("verb", verb), slog.Any("error", err))
	return []string{RespInternal}
}

// splitAnswer treats the last argument as the answer and the rest as the
// problem text, so problem text may contain spaces.
func splitAnswer(args []string) (text, answer string) {
	n := len(args)
	return strings.Join(args[:n-1], " "), args[n-1]
}
