package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthCheck probes one dependency. A failing critical check makes the service unhealthy;
// any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// HealthHandler reports dependency status
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a health handler over checks
func NewHealthHandler(timeout time.Duration, checks ...HealthCheck) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout}
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	errs := make([]error, len(h.checks))
	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			errs[i] = c.Check(ctx)
		}(i, c)
	}
	wg.Wait()

	resp := healthResponse{Status: "ok", Components: make(map[string]componentStatus, len(h.checks))}
	code := http.StatusOK
	for i, c := range h.checks {
		if errs[i] == nil {
			resp.Components[c.Name] = componentStatus{Status: "ok"}
			continue
		}
		resp.Components[c.Name] = componentStatus{Status: "down", Error: errs[i].Error()}
		if c.Critical {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		} else if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	respondWithJSON(w, code, resp)
}
