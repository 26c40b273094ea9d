package app

import (
	"bufio"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		Port:                0,
		MaxClients:          4,
		HTTPPort:            0,
		DatabaseFile:        filepath.Join(dir, "quiz.db"),
		PepperFile:          filepath.Join(dir, "pepper"),
		AdminUsername:       "admin",
		AdminPassword:       "admin123",
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
		ShutdownGracePeriod: 5 * time.Second,
		AuthLimit:           ratelimit.AuthLimit,
		HandshakeLimit:      ratelimit.HandshakeLimit,
	}
}

func TestApplicationServesAndStops(t *testing.T) {
	application, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.RunContext(ctx) }()

	require.Eventually(t, func() bool { return application.TCPAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", application.TCPAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	read := func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		return strings.TrimSuffix(line, "\r\n")
	}

	require.Equal(t, protocol.Greeting, read())

	_, err = io.WriteString(conn, "auth admin admin123\r\nlist_users\r\n")
	require.NoError(t, err)
	require.Equal(t, "authentication successful", read())
	require.Equal(t, "users:1", read())
	require.Equal(t, "admin (admin)", read())

	_, err = io.WriteString(conn, "solve 2+2 4\r\n")
	require.NoError(t, err)
	require.Equal(t, "correct", read())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
}

func TestApplicationReopensExistingDatabase(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Shutdown())

	// Seeding again must be a no-op rather than a duplicate error.
	second, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, second.Shutdown())
}
