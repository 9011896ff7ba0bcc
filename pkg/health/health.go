// Package health implements liveness and readiness probes for HTTP services.
//
// Probes are registered once at startup and then sampled on a fixed interval
// by background goroutines. To keep probe state from flapping on a single
// slow sample, a probe has to fail several times in a row before it is
// reported unhealthy, and recover once before it is reported healthy again.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc samples one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureStreak = 3
	defaultRecoverStreak = 1
)

// probe is one registered check plus its sampled state. The streak counters
// are touched only by the sampling goroutine; ok and lastErr are shared with
// HTTP handlers and therefore atomic.
type probe struct {
	name    string
	timeout time.Duration
	sample  CheckFunc

	ok      atomic.Bool
	lastErr atomic.Pointer[error]

	failStreak int
	passStreak int
}

func newProbe(name string, timeout time.Duration, sample CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, sample: sample}
	p.ok.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.sample(sampleCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passStreak = 0
		p.failStreak++
		if p.failStreak >= defaultFailureStreak {
			p.ok.Store(false)
		}
		return
	}

	p.failStreak = 0
	p.passStreak++
	if p.passStreak >= defaultRecoverStreak {
		p.ok.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.ok.Load() {
		return "", false
	}
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error(), true
	}
	return "probe is unhealthy", true
}

// Health tracks liveness and readiness probes for one service. The zero
// value is not usable; construct with New. A Health starts not-ready and
// must be flipped with SetReady once initialization finishes.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns an empty, not-ready Health.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe on the liveness group. Liveness answers
// "is the process wedged": goroutine counts, internal deadlocks.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe on the readiness group. Readiness
// answers "can this instance serve traffic right now": database reachability,
// warmed caches, upstream availability.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one sampling goroutine per registered probe. Each probe is
// sampled immediately and then every interval until Stop is called or ctx is
// cancelled. Register all probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go sampleLoop(ctx, p, interval)
	}
}

func sampleLoop(ctx context.Context, p *probe, interval time.Duration) {
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
}

// SetReady flips the manual readiness gate. Call with true after startup and
// with false at the beginning of graceful shutdown so load balancers stop
// routing to this instance before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// is currently passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if _, failed := p.failure(); failed {
			return false
		}
	}
	return true
}

// Stop cancels the sampling goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type probeReport struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// LiveEndpoint serves the liveness probe: 200 while every liveness check
// passes, 503 with per-probe failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.liveness...)
	h.mu.RUnlock()

	writeReport(w, gatherFailures(probes))
}

// ReadyEndpoint serves the readiness probe: 200 only when the manual gate is
// open and every readiness check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := append([]*probe(nil), h.readiness...)
	h.mu.RUnlock()

	failures := gatherFailures(probes)
	if !ready {
		failures["shutdown"] = "instance is not accepting traffic"
	}
	writeReport(w, failures)
}

// gatherFailures reports the last sampled error per unhealthy probe. It never
// re-runs a check inside a request handler.
func gatherFailures(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			failures[p.name] = msg
		}
	}
	return failures
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	report := probeReport{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		report.Status = "unhealthy"
		report.Failures = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
