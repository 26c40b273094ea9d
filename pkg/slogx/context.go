package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithConn tags the context logger with a connection's ID, remote address
// and transport ("tcp" or "ws").
func WithConn(ctx context.Context, connID, remoteAddr, transport string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With(
		"conn_id", connID,
		"remote_addr", remoteAddr,
		"transport", transport,
	))
}

// WithUser tags the context logger with the authenticated username.
func WithUser(ctx context.Context, username string) context.Context {
	return WithContext(ctx, FromContext(ctx).With("user", username))
}
