// Package health implements the /livez and /readyz probe endpoints. Checks
// run on background tickers and flip state only after a number of
// consecutive failures or successes, so a single slow database ping does not
// take the service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// probe is one registered check plus its runtime state. run is only ever
// called from the probe's own goroutine; the consecutive counters therefore
// stay unsynchronized, while healthy and lastErr are read from HTTP handler
// goroutines and use atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	// Healthy until the failure threshold says otherwise.
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= defaultFailureThreshold {
			p.healthy.Store(false)
		}
		return
	}

	p.fails = 0
	if p.oks++; p.oks >= defaultSuccessThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) failureMessage() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if errPtr := p.lastErr.Load(); errPtr != nil && *errPtr != nil {
		return (*errPtr).Error(), true
	}
	return "check is unhealthy", true
}

// Health tracks the service's liveness and readiness probes.
//
// Readiness combines two signals: the explicit SetReady flag, flipped by the
// application around startup and shutdown, and the readiness probes. Both
// must agree for /readyz to return 200.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health with no probes, in the not-ready state.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez. Liveness answers "is this
// process functioning", for example a goroutine leak check.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe for /readyz. Readiness answers "can
// this instance take traffic", for example database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one goroutine per registered probe, each running the check
// at the given interval until Stop or context cancellation. Register all
// probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	all := append(h.snapshot(h.liveness), h.snapshot(h.readiness)...)
	h.mu.Unlock()

	for _, p := range all {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels the probe goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate: true once startup completes,
// false at the beginning of graceful shutdown so the load balancer drains
// this instance.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// is passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if _, failing := p.failureMessage(); failing {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(probes []*probe) []*probe {
	out := make([]*probe, len(probes))
	copy(out, probes)
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while every liveness
// probe passes, 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := h.snapshot(h.liveness)
	h.mu.RUnlock()

	writeStatus(w, failing(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open and
// every readiness probe passes. During shutdown the gate closes first, so
// this endpoint goes 503 while in-flight requests drain.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := h.snapshot(h.readiness)
	h.mu.RUnlock()

	checks := failing(probes)
	if !h.ready.Load() {
		checks["_readiness"] = "service is not ready"
	}
	writeStatus(w, checks)
}

func failing(probes []*probe) map[string]string {
	checks := make(map[string]string)
	for _, p := range probes {
		if msg, bad := p.failureMessage(); bad {
			checks[p.name] = msg
		}
	}
	return checks
}

func writeStatus(w http.ResponseWriter, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(checks) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: checks}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
