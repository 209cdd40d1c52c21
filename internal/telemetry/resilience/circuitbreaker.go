package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/willwooten/thermidor/internal/telemetry"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker trips open once at least minSamples results have been
// recorded and their failure rate is at or above failureRateOpen; the
// counts are cumulative since the breaker last closed, not a rolling
// window. It cools down for halfOpenAfter, then allows up to
// maxHalfOpenProbes half-open probes before closing again. It guards the
// optional cron-driven workflow re-execution path so scheduled runs that
// keep failing stop being retriggered every tick.
type CircuitBreaker struct {
	mu sync.Mutex

	minSamples        int
	failureRateOpen   float64
	halfOpenAfter     time.Duration
	maxHalfOpenProbes int

	state          breakerState
	openedAt       time.Time
	halfOpenProbes int
	total, fails   int
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(minSamples int, failureRateOpen float64, halfOpenAfter time.Duration, maxHalfOpenProbes int) *CircuitBreaker {
	return &CircuitBreaker{
		minSamples:        minSamples,
		failureRateOpen:   failureRateOpen,
		halfOpenAfter:     halfOpenAfter,
		maxHalfOpenProbes: maxHalfOpenProbes,
	}
}

// Allow reports whether a request may proceed right now.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateOpen:
		if time.Since(c.openedAt) >= c.halfOpenAfter {
			c.state = stateHalfOpen
			// This request is the first half-open probe.
			c.halfOpenProbes = 1
		} else {
			return false
		}
	case stateHalfOpen:
		if c.halfOpenProbes >= c.maxHalfOpenProbes {
			return false
		}
		c.halfOpenProbes++
	}
	return true
}

// RecordResult reports the outcome of a request that Allow permitted.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if !success {
		c.fails++
	}

	switch c.state {
	case stateClosed:
		if c.total >= c.minSamples {
			if float64(c.fails)/float64(c.total) >= c.failureRateOpen {
				c.transitionToOpen()
			}
		}
	case stateHalfOpen:
		if !success {
			c.transitionToOpen()
		} else if c.halfOpenProbes >= c.maxHalfOpenProbes {
			c.reset()
		}
	case stateOpen:
		// Allow() governs timing; nothing to do here.
	}
}

func (c *CircuitBreaker) transitionToOpen() {
	c.state = stateOpen
	c.openedAt = time.Now()
	counter, _ := telemetry.Meter().Int64Counter("thermidor_resilience_circuit_open_total")
	counter.Add(context.Background(), 1)
}

func (c *CircuitBreaker) reset() {
	c.state = stateClosed
	c.openedAt = time.Time{}
	c.total, c.fails = 0, 0
	counter, _ := telemetry.Meter().Int64Counter("thermidor_resilience_circuit_closed_total")
	counter.Add(context.Background(), 1)
}
