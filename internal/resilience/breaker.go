// Package resilience implements the Circuit Breaker & Retry component (C4):
// a closed/open/half-open breaker state machine generalized into a
// per-target registry, plus exponential-backoff retry.
package resilience

import (
	"sync"
	"time"

	"github.com/aegishq/controlplane/internal/obs"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a Breaker.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	OnStateChange    func(target string, from, to State)
}

// DefaultConfig returns the standard breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 1,
	}
}

// ErrCircuitOpen is returned when a call is rejected because the breaker for
// its target is open.
var ErrCircuitOpen = obs.New(obs.External, "resilience.circuit_open", "circuit breaker is open")

// Breaker is a per-target state machine: closed -> open -> half-open -> closed.
type Breaker struct {
	target string
	cfg    Config

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
}

// NewBreaker constructs a Breaker for target in the closed state.
func NewBreaker(target string, cfg Config) *Breaker {
	return &Breaker{target: target, cfg: cfg, state: StateClosed}
}

// Execute runs fn if the breaker admits the call, recording the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	b.afterRequest(err == nil)
	return err
}

func (b *Breaker) beforeRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.RecoveryTimeout {
			return ErrCircuitOpen
		}
		b.setStateLocked(StateHalfOpen)
		return nil
	default:
		return nil
	}
}

func (b *Breaker) afterRequest(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccessLocked()
	} else {
		b.onFailureLocked()
	}
}

func (b *Breaker) onSuccessLocked() {
	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			b.setStateLocked(StateClosed)
		}
	case StateClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) onFailureLocked() {
	switch b.state {
	case StateHalfOpen:
		b.successCount = 0
		b.setStateLocked(StateOpen)
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.setStateLocked(StateOpen)
		}
	}
}

func (b *Breaker) setStateLocked(to State) {
	from := b.state
	b.state = to
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(b.target, from, to)
	}
	obs.BreakerStateChangesTotal.WithLabelValues(b.target, to.String()).Inc()
}

// State reports the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one Breaker per target, created lazily on first use.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry builds a Registry that creates breakers with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// For returns the Breaker for target, creating it if necessary.
func (r *Registry) For(target string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[target]
	if !ok {
		b = NewBreaker(target, r.cfg)
		r.breakers[target] = b
	}
	return b
}

// Snapshot returns the current state of every known breaker, used by the
// readiness probe to find breakers stuck open.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.breakers))
	for target, b := range r.breakers {
		out[target] = b.State()
	}
	return out
}
