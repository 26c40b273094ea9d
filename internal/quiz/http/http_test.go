package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/server"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/service"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store/drivers/sqlite"
	"github.com/aussiebroadwan/mathquiz/pkg/cryptox"
	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, maxClients int, limit ratelimit.Config) (*httptest.Server, *Gateway) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	d := &protocol.Dispatcher{
		Accounts:  &service.AccountService{Store: st, Hasher: cryptox.NewHasher("pepper")},
		Problems:  &service.ProblemService{Store: st},
		Stats:     &service.StatsService{Store: st},
		Generator: generator.New(3),
	}

	gw := NewGateway(d, server.NewSlots(maxClients))
	router := NewRouter("test", st, gw, ratelimit.New(limit), slogx.Discard())
	router.ApplyRoutes()

	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = gw.Close(ctx)
		ts.Close()
		_ = st.Close()
	})
	return ts, gw
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	return string(msg)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, 5, ratelimit.HandshakeLimit)

	t.Run("livez", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/livez")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body.Status)
		require.Equal(t, "test", body.Version)
	})

	t.Run("readyz", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body.Checks["database"])
		require.NotNil(t, body.Clients)
		require.Equal(t, 5, body.Clients.Max)
	})
}

func TestGatewaySession(t *testing.T) {
	ts, _ := newTestServer(t, 5, ratelimit.HandshakeLimit)
	conn := dialWS(t, ts)

	require.Equal(t, protocol.Greeting, readText(t, conn))

	// Two commands in one message, each answered separately.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("register dana pw\r\nauth dana pw\n")))
	require.Equal(t, "registered", readText(t, conn))
	require.Equal(t, "authentication successful", readText(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("categories")))
	require.Equal(t, "categories:algebra;calculus;trigonometry;matrices", readText(t, conn))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("list_users")))
	require.Equal(t, protocol.RespPermission, readText(t, conn))
}

func TestGatewayServerFull(t *testing.T) {
	ts, gw := newTestServer(t, 1, ratelimit.HandshakeLimit)

	first := dialWS(t, ts)
	require.Equal(t, protocol.Greeting, readText(t, first))
	require.Equal(t, 1, gw.Slots.InUse())

	second := dialWS(t, ts)
	require.Equal(t, protocol.RespServerFull, readText(t, second))

	_, _, err := second.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
}

func TestGatewayHandshakeRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, 5, ratelimit.Config{RequestsPerWindow: 1, Window: time.Hour, Burst: 1})

	dialWS(t, ts)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestGatewayCloseDropsClients(t *testing.T) {
	ts, gw := newTestServer(t, 5, ratelimit.HandshakeLimit)
	conn := dialWS(t, ts)
	require.Equal(t, protocol.Greeting, readText(t, conn))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gw.Close(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Equal(t, 0, gw.Slots.InUse())
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b"}, splitMessage("a\r\nb\r\n"))
	require.Equal(t, []string{"a"}, splitMessage("a"))
	require.Equal(t, []string{""}, splitMessage(""))
	require.Equal(t, []string{"a", "", "b"}, splitMessage("a\n\nb"))
}
