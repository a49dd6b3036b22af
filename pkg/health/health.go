// Package health runs background probes against the service's dependencies
// and serves the cached results on /livez and /readyz. Probes run off the
// request path on a fixed interval, so load balancer polling never touches
// postgres or redis directly.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// A probe flips to failing only after consecutive misses, so one dropped
// ping does not pull the service out of rotation. Recovery takes a single
// pass.
const (
	missesBeforeFailing   = 3
	passesBeforeRecovered = 1
)

type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	mu      sync.Mutex
	failing bool
	misses  int
	passes  int
	lastErr error
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.passes = 0
		if p.misses++; p.misses >= missesBeforeFailing {
			p.failing = true
		}
		return
	}
	p.misses = 0
	if p.passes++; p.passes >= passesBeforeRecovered {
		p.failing = false
	}
}

func (p *probe) state() (failing bool, lastErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failing, p.lastErr
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.run(ctx)
		}
	}
}

// Service owns the probe set and the readiness gate. Liveness probes answer
// "should the orchestrator restart this process"; readiness probes answer
// "should it receive orders right now". The gate stays closed until startup
// wiring finishes, and closes again while draining.
type Service struct {
	liveness  []*probe
	readiness []*probe

	ready  atomic.Bool
	cancel context.CancelFunc
}

func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a probe on /livez. Register before Start.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.liveness = append(s.liveness, &probe{name: name, timeout: timeout, check: check})
}

// AddReadinessCheck registers a probe on /readyz. Register before Start.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.readiness = append(s.readiness, &probe{name: name, timeout: timeout, check: check})
}

// Start launches one goroutine per probe, each re-running its check every
// interval until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, p := range s.liveness {
		go p.loop(ctx, interval)
	}
	for _, p := range s.readiness {
		go p.loop(ctx, interval)
	}
}

// Stop halts the probe goroutines. Safe to call more than once.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady opens or closes the readiness gate.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports the gate state; it ignores probe results.
func (s *Service) IsReady() bool {
	return s.ready.Load()
}

// LiveEndpoint answers 200 while every liveness probe passes, else 503
// listing the failing probes.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(s.liveness))
}

// ReadyEndpoint answers 200 only when the readiness gate is open and every
// readiness probe passes. During startup and drain the gate shows up as a
// synthetic "_readiness" failure.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	fails := failures(s.readiness)
	if !s.ready.Load() {
		fails["_readiness"] = "service not accepting traffic"
	}
	writeStatus(w, fails)
}

func failures(probes []*probe) map[string]string {
	fails := make(map[string]string)
	for _, p := range probes {
		if failing, err := p.state(); failing && err != nil {
			fails[p.name] = err.Error()
		}
	}
	return fails
}

func writeStatus(w http.ResponseWriter, fails map[string]string) {
	status, state := http.StatusOK, "ok"
	if len(fails) > 0 {
		status, state = http.StatusServiceUnavailable, "unhealthy"
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("status")
	e.Str(state)
	if len(fails) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for name, msg := range fails {
			e.FieldStart(name)
			e.Str(msg)
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
