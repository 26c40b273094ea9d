package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/server"
	"github.com/aussiebroadwan/mathquiz/pkg/idx"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// SlotCounter is satisfied by *server.Slots.
type SlotCounter interface {
	TryAcquire() bool
	Release()
	InUse() int
	Max() int
}

// Gateway speaks the line protocol over WebSocket. A text message may carry
// several newline separated commands; every response line goes out as its
// own text message. Gateway clients share the TCP listener's slots.
type Gateway struct {
	Dispatcher server.Dispatcher
	Slots      SlotCounter

	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewGateway(d server.Dispatcher, slots SlotCounter) *Gateway {
	return &Gateway{
		Dispatcher: d,
		Slots:      slots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers on any origin may play; there is no cookie auth to protect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(messageType, data)
}

func (c *wsConn) sendLines(lines ...string) error {
	for _, l := range lines {
		if err := c.send(websocket.TextMessage, []byte(l)); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	raw, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	conn := &wsConn{Conn: raw}

	if !g.Slots.TryAcquire() {
		l.Warn("client limit reached, rejecting websocket")
		_ = conn.sendLines(protocol.RespServerFull)
		_ = conn.send(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, protocol.RespServerFull))
		_ = conn.Close()
		return
	}
	if !g.track(raw) {
		g.Slots.Release()
		_ = conn.Close()
		return
	}
	defer g.untrack(raw)

	g.serve(context.WithoutCancel(r.Context()), conn, r.RemoteAddr)
}

func (g *Gateway) serve(ctx context.Context, conn *wsConn, remoteAddr string) {
	id := idx.New()
	ctx = slogx.WithConn(ctx, id.Short(), remoteAddr, "ws")
	l := slogx.FromContext(ctx)
	session := protocol.NewSession(id.String(), remoteAddr)

	l.Info("client connected", slog.Int("clients", g.Slots.InUse()))
	defer func() {
		l.Info("client disconnected", slog.String("username", session.Username()))
	}()

	conn.SetReadLimit(server.MaxLineLength)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.send(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	if err := conn.sendLines(protocol.Greeting); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.Debug("websocket read failed", slog.Any("error", err))
			}
			return
		}

		for _, line := range splitMessage(string(msg)) {
			if err := conn.sendLines(g.Dispatcher.Dispatch(ctx, session, line)...); err != nil {
				l.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

// splitMessage breaks a message into command lines. A trailing newline does
// not produce an extra empty command.
func splitMessage(msg string) []string {
	msg = strings.TrimSuffix(strings.TrimSuffix(msg, "\n"), "\r")
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (g *Gateway) track(c *websocket.Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.conns[c] = struct{}{}
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(c *websocket.Conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()

	_ = c.Close()
	g.Slots.Release()
	g.wg.Done()
}

// Close drops every open WebSocket and waits for their handlers, or until
// ctx is done. http.Server.Shutdown does not touch hijacked connections.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	for c := range g.conns {
		_ = c.Close()
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
