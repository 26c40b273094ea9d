package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mathquiz/pkg/httpx"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Clients *ClientUsage      `json:"clients,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

type ClientUsage struct {
	Connected int `json:"connected"`
	Max       int `json:"max"`
}

// Pinger is satisfied by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivezHandler always answers 200 while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports 503 when the database does not answer a ping.
func ReadyzHandler(startTime time.Time, version string, db Pinger, slots SlotCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}
		status, code := "ok", http.StatusOK

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Clients: &ClientUsage{Connected: slots.InUse(), Max: slots.Max()},
			Checks:  checks,
		})
	}
}
