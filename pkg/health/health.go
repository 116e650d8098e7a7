// Package health exposes liveness and readiness probes for the API server.
//
// Probes run on a shared background scheduler. A probe flips to unhealthy
// only after failing several consecutive runs, and back to healthy after a
// clean run, so a single slow dependency check does not flap the readiness
// endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports on one dependency. nil means healthy.
type CheckFunc func(ctx context.Context) error

// failAfter is how many consecutive failures mark a probe unhealthy.
const failAfter = 3

type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu       sync.Mutex
	healthy  bool
	failures int
	lastErr  error
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	return &probe{
		name:    name,
		timeout: timeout,
		check:   check,
		healthy: true,
	}
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.check(ctx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.failures++
		if p.failures >= failAfter {
			p.healthy = false
		}
		return
	}
	p.failures = 0
	p.healthy = true
}

// status returns the probe's health and, when unhealthy, a description.
func (p *probe) status() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return true, ""
	}
	if p.lastErr != nil {
		return false, p.lastErr.Error()
	}
	return false, "unhealthy"
}

// Health runs the registered probes and serves the /livez and /readyz
// endpoints. Register every probe before calling Start.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New returns a Health with no probes, in the not-ready state.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez: is this process itself
// functioning.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe for /readyz: can this process serve
// traffic, dependencies included.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start runs all probes once immediately, then on every tick of the given
// interval, until the context is cancelled or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	go func() {
		runAll(ctx, probes)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAll(ctx, probes)
			}
		}
	}()
}

func runAll(ctx context.Context, probes []*probe) {
	for _, p := range probes {
		if ctx.Err() != nil {
			return
		}
		p.run(ctx)
	}
}

// Stop halts the probe scheduler. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the manual readiness gate. Set true once startup completes
// and false at the start of graceful shutdown so load balancers drain first.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.Lock()
	probes := h.readiness
	h.mu.Unlock()

	for _, p := range probes {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 while liveness probes pass, 503 with the
// failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := h.liveness
	h.mu.Unlock()

	writeProbes(w, failing(probes))
}

// ReadyEndpoint serves /readyz. The manual gate shows up as a "_ready"
// pseudo-check so a drained instance is distinguishable from a broken one.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	probes := h.readiness
	h.mu.Unlock()

	failures := failing(probes)
	if !h.ready.Load() {
		failures["_ready"] = "not accepting traffic"
	}
	writeProbes(w, failures)
}

func failing(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if ok, reason := p.status(); !ok {
			out[p.name] = reason
		}
	}
	return out
}

func writeProbes(w http.ResponseWriter, failures map[string]string) {
	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = probeResponse{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
