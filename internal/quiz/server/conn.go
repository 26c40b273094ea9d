package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/pkg/idx"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

const readBufferSize = 4096

// writeLines sends each line followed by "\r\n" in a single write.
func writeLines(w io.Writer, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\r\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// handle serves one accepted connection until the peer disconnects or the
// server shuts down. The caller owns the slot and releases it afterwards.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	id := idx.New()
	ctx = slogx.WithConn(ctx, id.Short(), conn.RemoteAddr().String(), "tcp")
	l := slogx.FromContext(ctx)

	session := protocol.NewSession(id.String(), conn.RemoteAddr().String())
	lines := NewLineBuffer(MaxLineLength)

	l.Info("client connected", slog.Int("clients", s.slots.InUse()))
	defer func() {
		l.Info("client disconnected",
			slog.String("username", session.Username()),
			slog.Int("unterminated_bytes", lines.Pending()),
		)
		lines.Reset()
	}()

	if err := writeLines(conn, protocol.Greeting); err != nil {
		l.Debug("greeting failed", slog.Any("error", err))
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				var resp []string
				if line.TooLong {
					l.Warn("line too long, discarded")
					resp = []string{protocol.RespUnknownCommand}
				} else {
					resp = s.dispatcher.Dispatch(ctx, session, line.Text)
				}
				if werr := writeLines(conn, resp...); werr != nil {
					l.Debug("write failed", slog.Any("error", werr))
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.Debug("read failed", slog.Any("error", err))
			}
			return
		}
	}
}

// reject tells an over-capacity client why it is being dropped.
func reject(conn net.Conn) {
	_ = writeLines(conn, protocol.RespServerFull)
	_ = conn.Close()
}
