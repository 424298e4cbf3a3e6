// Package health provides Kubernetes-style liveness and readiness probes.
//
// Checks run in background goroutines at a fixed interval and use
// consecutive failure/success thresholds to avoid flapping: a check must fail
// several times in a row before it is reported unhealthy, and recover once to
// be reported healthy again.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// failureThreshold is how many consecutive failures mark a check unhealthy.
const failureThreshold = 3

// CheckFunc reports on one component: nil means healthy.
type CheckFunc func(ctx context.Context) error

type kind int

const (
	liveness kind = iota
	readiness
)

// check holds configuration and runtime state for one registered check.
// The healthy flag and lastErr are written by the single run goroutine and
// read by HTTP handlers, so they use atomics; the consecutive-failure counter
// is touched only by the run goroutine.
type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
	fails   int
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	checks []*check
	cancel context.CancelFunc
}

// New creates a Health instance. The service starts not-ready; call
// SetReady(true) once initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check for /livez: is the process alive and
// functioning (goroutine count, deadlock detection).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, liveness, timeout, fn)
}

// AddReadinessCheck registers a check for /readyz: can the service take
// traffic (database connectivity, dependency availability).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(name, readiness, timeout, fn)
}

func (h *Health) add(name string, k kind, timeout time.Duration, fn CheckFunc) {
	c := &check{name: name, kind: k, timeout: timeout, fn: fn}
	c.healthy.Store(true) // assume healthy until proven otherwise

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start launches one goroutine per registered check, each running at the
// given interval until Stop or context cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, len(h.checks))
	copy(checks, h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func(c *check) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}(c)
	}
}

// Stop cancels all background check goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness gate: true after initialization, false
// during graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready AND all readiness
// checks pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(readiness) {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(k kind) []*check {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*check, 0, len(h.checks))
	for _, c := range h.checks {
		if c.kind == k {
			out = append(out, c)
		}
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, 503 with
// per-check failure details otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(liveness)))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness checks pass, 503 with details otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	f := failures(h.snapshot(readiness))
	if !h.ready.Load() {
		f["_readiness"] = "service is not ready"
	}
	writeStatus(w, f)
}

func failures(checks []*check) map[string]string {
	f := make(map[string]string)
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		if p := c.lastErr.Load(); p != nil && *p != nil {
			f[c.name] = (*p).Error()
		} else {
			f[c.name] = "check is unhealthy"
		}
	}
	return f
}

func writeStatus(w http.ResponseWriter, f map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(f) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = f
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
