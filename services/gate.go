package services

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// CooldownWindow is armed after every completed fresh (non cache-hit)
// recommendation to bound provider cost.
const CooldownWindow = 30 * time.Second

// ErrAlreadyInFlight is the single-flight guard: one recommendation
// computation per session at a time, no matter how many times the UI fires.
var ErrAlreadyInFlight = errors.New("a recommendation is already in progress")

type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooling down, retry in %ds", int(math.Ceil(e.Remaining.Seconds())))
}

// RequestGate is session-scoped mutable state: one per orchestrator instance,
// never global (multiple instances must be independent in tests).
type RequestGate struct {
	mu            sync.Mutex
	inFlight      bool
	cooldownUntil time.Time

	now func() time.Time
}

func NewRequestGate() *RequestGate {
	return &RequestGate{now: time.Now}
}

// NewRequestGateWithClock lets tests drive the cooldown with simulated time.
func NewRequestGateWithClock(now func() time.Time) *RequestGate {
	return &RequestGate{now: now}
}

// GateLease must be released on every exit path, success or failure.
type GateLease struct {
	gate     *RequestGate
	released bool
}

func (g *RequestGate) TryAcquire() (*GateLease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return nil, ErrAlreadyInFlight
	}
	if remaining := g.cooldownUntil.Sub(g.now()); remaining > 0 {
		return nil, &CooldownError{Remaining: remaining}
	}
	g.inFlight = true
	return &GateLease{gate: g}, nil
}

// Release is idempotent so it is safe to defer it and also release early.
func (l *GateLease) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.gate.mu.Lock()
	l.gate.inFlight = false
	l.gate.mu.Unlock()
}

// ArmCooldown is called only after a fresh successful computation; failures
// and cache hits leave the window unarmed so the user may retry immediately.
func (g *RequestGate) ArmCooldown() {
	g.mu.Lock()
	g.cooldownUntil = g.now().Add(CooldownWindow)
	g.mu.Unlock()
}

// RemainingCooldownSeconds is advisory, for countdown labels only. It never
// mutates state.
func (g *RequestGate) RemainingCooldownSeconds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.cooldownUntil.Sub(g.now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}
