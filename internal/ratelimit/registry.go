// Package ratelimit provides process-wide rate limiters shared by all
// jobs of the same collector class.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied when a collector class has no explicit limits.
const (
	DefaultMaxCalls = 10
	DefaultPeriod   = 60 * time.Second
)

// Limiter admits at most maxCalls upstream invocations in any
// trailing period. Acquire blocks cooperatively until a slot is
// available or the context is cancelled.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	maxCalls int
	period   time.Duration
}

// NewLimiter creates a limiter with the given parameters.
func NewLimiter(maxCalls int, period time.Duration) *Limiter {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limitFor(maxCalls, period), maxCalls),
		maxCalls: maxCalls,
		period:   period,
	}
}

// limitFor converts (maxCalls, period) into a token refill rate.
func limitFor(maxCalls int, period time.Duration) rate.Limit {
	return rate.Limit(float64(maxCalls) / period.Seconds())
}

// Acquire blocks until a call slot is available. It fails when the
// context is cancelled while waiting, or up front when the deadline
// cannot accommodate the wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Configure updates the limiter parameters at runtime. In-flight
// waiters are never rejected; they observe the new rate.
func (l *Limiter) Configure(maxCalls int, period time.Duration) {
	if maxCalls <= 0 || period <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxCalls = maxCalls
	l.period = period
	l.limiter.SetLimit(limitFor(maxCalls, period))
	l.limiter.SetBurst(maxCalls)
}

// Params returns the current (maxCalls, period) parameters.
func (l *Limiter) Params() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxCalls, l.period
}

// Registry maps collector class names to shared limiter instances.
// The same *Limiter is returned for a given name across all callers.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter

	defaultCalls  int
	defaultPeriod time.Duration
}

// NewRegistry creates a registry seeding new limiters with the given
// defaults.
func NewRegistry(defaultCalls int, defaultPeriod time.Duration) *Registry {
	if defaultCalls <= 0 {
		defaultCalls = DefaultMaxCalls
	}
	if defaultPeriod <= 0 {
		defaultPeriod = DefaultPeriod
	}
	return &Registry{
		limiters:      make(map[string]*Limiter),
		defaultCalls:  defaultCalls,
		defaultPeriod: defaultPeriod,
	}
}

// Get returns the limiter for a collector class, creating it with the
// registry defaults on first sight.
func (r *Registry) Get(collectorClass string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[collectorClass]; ok {
		return l
	}
	l := NewLimiter(r.defaultCalls, r.defaultPeriod)
	r.limiters[collectorClass] = l
	return l
}

// Configure updates (or creates) the limiter for a collector class.
func (r *Registry) Configure(collectorClass string, maxCalls int, period time.Duration) {
	r.Get(collectorClass).Configure(maxCalls, period)
}

// Acquire blocks on the named class's limiter.
func (r *Registry) Acquire(ctx context.Context, collectorClass string) error {
	return r.Get(collectorClass).Acquire(ctx)
}
