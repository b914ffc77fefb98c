// Package health serves liveness and readiness endpoints for the voice
// front-end daemon.
//
//   - /healthz — liveness; 200 as long as the process serves HTTP.
//   - /readyz  — readiness; 200 only when every registered [Probe] passes.
//
// Both endpoints respond with JSON. Readiness responses carry a per-probe
// breakdown so a failing dependency (a provider API, the audio transport)
// can be named from the response alone.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probe is a named readiness check. Check returns nil when the dependency it
// guards is usable; it must respect context cancellation.
type Probe struct {
	// Name keys the probe's entry in the readiness response, e.g.
	// "providers" or "audio".
	Name string

	Check func(ctx context.Context) error
}

// Handler serves the liveness and readiness endpoints. The probe list is
// fixed at construction; the handler is safe for concurrent use.
type Handler struct {
	probes  []Probe
	timeout time.Duration
	started time.Time
}

// Option configures a [Handler].
type Option func(*Handler)

// WithProbeTimeout bounds each probe's execution time. Default 5s.
func WithProbeTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New creates a [Handler] evaluating the given probes, in order, on every
// readiness request.
func New(probes []Probe, opts ...Option) *Handler {
	h := &Handler{
		probes:  append([]Probe(nil), probes...),
		timeout: 5 * time.Second,
		started: time.Now(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// probeResult is one probe's outcome in the readiness response.
type probeResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// payload is the response body of both endpoints.
type payload struct {
	Status        string                 `json:"status"`
	UptimeSeconds int64                  `json:"uptime_s,omitempty"`
	Probes        map[string]probeResult `json:"probes,omitempty"`
}

// Healthz reports liveness: a process that reaches this handler is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, payload{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// Readyz runs every probe and reports 200 when all pass, 503 otherwise.
// Each probe gets its own timeout derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]probeResult, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			results[p.Name] = probeResult{Error: err.Error()}
			ready = false
		} else {
			results[p.Name] = probeResult{OK: true}
		}
	}

	status, label := http.StatusOK, "ok"
	if !ready {
		status, label = http.StatusServiceUnavailable, "unavailable"
	}
	writeJSON(w, status, payload{Status: label, Probes: results})
}

func writeJSON(w http.ResponseWriter, status int, v payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
