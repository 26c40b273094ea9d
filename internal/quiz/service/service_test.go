package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/domain"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store/drivers/sqlite"
	"github.com/aussiebroadwan/mathquiz/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

type services struct {
	accounts  *AccountService
	problems  *ProblemService
	stats     *StatsService
	bootstrap *BootstrapService
}

func newServices(t *testing.T) services {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	accounts := &AccountService{Store: st, Hasher: cryptox.NewHasher("test-pepper")}
	problems := &ProblemService{Store: st}
	return services{
		accounts: accounts,
		problems: problems,
		stats:    &StatsService{Store: st},
		bootstrap: &BootstrapService{
			Accounts:      accounts,
			Problems:      problems,
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "alice", "pw"))
	require.ErrorIs(t, s.accounts.Register(ctx, "alice", "pw"), ErrDuplicateUser)

	users, err := s.accounts.ListUsers(ctx)
	require.NoError(t, err)

	count := 0
	for _, u := range users {
		if u.Username == "alice" {
			count++
			require.Equal(t, []string{domain.RoleUser}, u.Roles)
		}
	}
	require.Equal(t, 1, count)

	require.ErrorIs(t, s.accounts.Register(ctx, "", "pw"), ErrInvalidUsername)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.accounts.Now = func() time.Time { return fixed }

	require.NoError(t, s.accounts.Register(ctx, "bob", "secret"))

	_, err := s.accounts.Authenticate(ctx, "bob", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.accounts.Authenticate(ctx, "nobody", "secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := s.accounts.Authenticate(ctx, "bob", "secret")
	require.NoError(t, err)
	require.Equal(t, "bob", user.Username)

	report, err := s.stats.UserReport(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, report.Summary.LastLogin)
	require.True(t, fixed.Equal(*report.Summary.LastLogin))
}

func TestRolesAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "carol", "pw"))

	admin, err := s.accounts.IsAdmin(ctx, "carol")
	require.NoError(t, err)
	require.False(t, admin)

	require.NoError(t, s.accounts.GrantRole(ctx, "carol", domain.RoleAdmin))
	require.NoError(t, s.accounts.GrantRole(ctx, "carol", domain.RoleAdmin))
	admin, err = s.accounts.IsAdmin(ctx, "carol")
	require.NoError(t, err)
	require.True(t, admin)

	require.ErrorIs(t, s.accounts.GrantRole(ctx, "nobody", domain.RoleAdmin), ErrUserNotFound)
	require.ErrorIs(t, s.accounts.GrantRole(ctx, "carol", "root"), ErrUnknownRole)

	require.NoError(t, s.accounts.RevokeRole(ctx, "carol", domain.RoleAdmin))
	require.ErrorIs(t, s.accounts.RevokeRole(ctx, "carol", domain.RoleAdmin), ErrRoleNotHeld)

	require.NoError(t, s.accounts.DeleteUser(ctx, "carol"))
	require.ErrorIs(t, s.accounts.DeleteUser(ctx, "carol"), ErrUserNotFound)
}

func TestProblems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	p, err := s.problems.AddProblem(ctx, "6*7", "")
	require.NoError(t, err)
	require.Equal(t, "42", p.Answer)

	_, err = s.problems.AddProblem(ctx, "6*7", "42")
	require.ErrorIs(t, err, ErrDuplicateProblem)

	_, err = s.problems.AddProblem(ctx, "1/0", "")
	require.Error(t, err)

	_, err = s.problems.AddProblem(ctx, "  ", "1")
	require.ErrorIs(t, err, ErrEmptyProblem)

	require.NoError(t, s.problems.UpdateProblem(ctx, "6*7", "forty-two"))
	answer, err := s.problems.Answer(ctx, "6*7")
	require.NoError(t, err)
	require.Equal(t, "forty-two", answer)

	require.ErrorIs(t, s.problems.UpdateProblem(ctx, "9*9", "81"), ErrProblemNotFound)
	_, err = s.problems.Answer(ctx, "9*9")
	require.ErrorIs(t, err, ErrProblemNotFound)
}

func TestRecordAttemptAndStatistics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "dave", "pw"))
	require.NoError(t, s.accounts.Register(ctx, "erin", "pw"))
	dave, err := s.accounts.Authenticate(ctx, "dave", "pw")
	require.NoError(t, err)

	// Generated problem not yet stored.
	require.NoError(t, s.stats.RecordAttempt(ctx, dave.ID, "x^2+1, x=2", "5", false))
	require.NoError(t, s.stats.RecordAttempt(ctx, dave.ID, "x^2+1, x=2", "5", true))

	answer, err := s.problems.Answer(ctx, "x^2+1, x=2")
	require.NoError(t, err)
	require.Equal(t, "5", answer)

	report, err := s.stats.UserReport(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, 2, report.Summary.Total)
	require.Equal(t, 1, report.Summary.Correct)
	require.Len(t, report.Attempts, 1)
	require.Equal(t, 2, report.Attempts[0].Attempts)

	all, err := s.stats.Statistics(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "erin", all[1].Username)
	require.Zero(t, all[1].Total)

	_, err = s.stats.UserReport(ctx, "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestBootstrapSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.bootstrap.Seed(ctx))
	require.NoError(t, s.bootstrap.Seed(ctx))

	admin, err := s.accounts.IsAdmin(ctx, "admin")
	require.NoError(t, err)
	require.True(t, admin)

	_, err = s.accounts.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)

	list, err := s.problems.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(SampleProblems))
}

func TestBootstrapPromotesExistingUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "admin", "mine"))
	require.NoError(t, s.bootstrap.Seed(ctx))

	admin, err := s.accounts.IsAdmin(ctx, "admin")
	require.NoError(t, err)
	require.True(t, admin)

	// The existing password is kept.
	_, err = s.accounts.Authenticate(ctx, "admin", "mine")
	require.NoError(t, err)
}

func TestConcurrentRecordAttempt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "frank", "pw"))
	frank, err := s.accounts.GetUser(ctx, "frank")
	require.NoError(t, err)

	// The problem row does not exist yet; every writer races to create it.
	const writers = 20
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.stats.RecordAttempt(ctx, frank.ID, "7*6", "42", i%2 == 0)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	report, err := s.stats.UserReport(ctx, "frank")
	require.NoError(t, err)
	require.Len(t, report.Attempts, 1)
	require.Equal(t, writers, report.Attempts[0].Attempts)
	require.Equal(t, writers, report.Summary.Total)

	list, err := s.problems.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestGetUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newServices(t)

	require.NoError(t, s.accounts.Register(ctx, "gina", "pw"))
	u, err := s.accounts.GetUser(ctx, "gina")
	require.NoError(t, err)
	require.Equal(t, "gina", u.Username)

	require.NoError(t, s.accounts.DeleteUser(ctx, "gina"))
	_, err = s.accounts.GetUser(ctx, "gina")
	require.ErrorIs(t, err, ErrUserNotFound)
}
