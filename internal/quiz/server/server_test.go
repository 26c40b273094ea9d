package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/service"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store/drivers/sqlite"
	"github.com/aussiebroadwan/mathquiz/pkg/cryptox"
	"github.com/aussiebroadwan/mathquiz/pkg/mathexpr"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, maxClients int) *Server {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	d := &protocol.Dispatcher{
		Accounts:  &service.AccountService{Store: st, Hasher: cryptox.NewHasher("pepper")},
		Problems:  &service.ProblemService{Store: st},
		Stats:     &service.StatsService{Store: st},
		Generator: generator.New(7),
	}

	srv := New("127.0.0.1:0", d, NewSlots(maxClients), slogx.Discard())
	require.NoError(t, srv.Listen())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(context.Background()) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.NoError(t, <-served)
		_ = st.Close()
	})
	return srv
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, srv *Server) *client {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) write(s string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(s))
	require.NoError(c.t, err)
}

// readLine returns one response line, checking it is CRLF terminated.
func (c *client) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "line %q is not CRLF terminated", line)
	return strings.TrimSuffix(line, "\r\n")
}

func (c *client) command(cmd string) string {
	c.t.Helper()
	c.write(cmd + "\r\n")
	return c.readLine()
}

func TestEndToEnd(t *testing.T) {
	srv := startServer(t, 10)
	c := dial(t, srv)

	require.Equal(t, protocol.Greeting, c.readLine())
	require.Equal(t, "registered", c.command("register bob secret"))
	require.Equal(t, "authentication successful", c.command("auth bob secret"))

	reply := c.command("get_problems algebra")
	require.True(t, strings.HasPrefix(reply, "problems:"), reply)
	entries := strings.Split(strings.TrimPrefix(reply, "problems:"), ";")
	require.GreaterOrEqual(t, len(entries), 1)
	require.LessOrEqual(t, len(entries), 4)

	text, _, ok := strings.Cut(entries[0], "|")
	require.True(t, ok)
	correct, err := mathexpr.ParseAndCalculate(text)
	require.NoError(t, err)

	require.Equal(t, "result:0|1", c.command("check_answer algebra 0 "+correct))
	require.Equal(t, "unknown command", c.command("frobnicate"))
}

func TestPartialLineReassembly(t *testing.T) {
	srv := startServer(t, 10)
	c := dial(t, srv)
	require.Equal(t, protocol.Greeting, c.readLine())
	require.Equal(t, "registered", c.command("register bob secret"))

	c.write("auth bob")
	time.Sleep(50 * time.Millisecond)
	c.write(" secret\r\n")
	require.Equal(t, "authentication successful", c.readLine())

	// Exactly one response: the next line answers the next command.
	require.Equal(t, "categories:algebra;calculus;trigonometry;matrices", c.command("categories"))

	// Bare LF is accepted too.
	c.write("categories\n")
	require.Equal(t, "categories:algebra;calculus;trigonometry;matrices", c.readLine())
}

func TestOverlongLine(t *testing.T) {
	srv := startServer(t, 10)
	c := dial(t, srv)
	require.Equal(t, protocol.Greeting, c.readLine())

	c.write(strings.Repeat("a", MaxLineLength+10) + "\r\n")
	require.Equal(t, "unknown command", c.readLine())
	require.Equal(t, "registered", c.command("register carol pw"))
}

func TestConnectionCap(t *testing.T) {
	srv := startServer(t, 1)

	first := dial(t, srv)
	require.Equal(t, protocol.Greeting, first.readLine())

	second := dial(t, srv)
	require.Equal(t, "server is full", second.readLine())
	_, err := second.r.ReadString('\n')
	require.Error(t, err, "rejected connection must be closed")

	// The first client is unaffected.
	require.Equal(t, "registered", first.command("register bob secret"))

	// Its slot frees up once it leaves.
	require.NoError(t, first.conn.Close())
	require.Eventually(t, func() bool { return srv.slots.InUse() == 0 }, 5*time.Second, 10*time.Millisecond)

	third := dial(t, srv)
	require.Equal(t, protocol.Greeting, third.readLine())
}

func TestShutdownClosesClients(t *testing.T) {
	srv := startServer(t, 10)
	c := dial(t, srv)
	require.Equal(t, protocol.Greeting, c.readLine())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := c.r.ReadString('\n')
	require.Error(t, err)

	_, err = net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.Error(t, err)
}
