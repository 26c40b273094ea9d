// Package http exposes the ops surface next to the TCP listener: health
// probes and a WebSocket gateway speaking the same line protocol.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mathquiz/pkg/httpx"
	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   Pinger
	Gateway *Gateway
	Limiter *ratelimit.Limiter
}

func NewRouter(buildVersion string, st Pinger, gw *Gateway, limiter *ratelimit.Limiter, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		Gateway:      gw,
		Limiter:      limiter,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerGateway()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Gateway.Slots))
}

func (r *Router) registerGateway() {
	r.Mux.Handle("GET /ws",
		httpx.Chain(r.Gateway,
			httpx.RateLimit(r.Limiter, httpx.IPKeyExtractor),
		),
	)
}
