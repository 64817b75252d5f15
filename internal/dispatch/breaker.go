// internal/dispatch/breaker.go
package dispatch

import (
    "sync"
    "time"
)

type breakerState int

const (
    breakerClosed breakerState = iota
    breakerOpen
    breakerHalfOpen
)

// Breaker opens after a run of consecutive transient failures, fails
// fast for a cooldown window, then lets a single probe through. The
// probe's outcome closes or reopens the circuit.
type Breaker struct {
    mu          sync.Mutex
    threshold   int
    cooldown    time.Duration
    state       breakerState
    consecutive int
    openedAt    time.Time
    probing     bool
    now         func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
    return &Breaker{
        threshold: threshold,
        cooldown:  cooldown,
        now:       time.Now,
    }
}

// Allow reports whether a call may go out right now.
func (b *Breaker) Allow() bool {
    b.mu.Lock()
    defer b.mu.Unlock()

    switch b.state {
    case breakerClosed:
        return true
    case breakerOpen:
        if b.now().Sub(b.openedAt) < b.cooldown {
            return false
        }
        b.state = breakerHalfOpen
        b.probing = true
        return true
    default: // half-open: one probe at a time
        if b.probing {
            return false
        }
        b.probing = true
        return true
    }
}

func (b *Breaker) Success() {
    b.mu.Lock()
    defer b.mu.Unlock()
    b.state = breakerClosed
    b.consecutive = 0
    b.probing = false
}

func (b *Breaker) Failure() {
    b.mu.Lock()
    defer b.mu.Unlock()

    if b.state == breakerHalfOpen {
        b.state = breakerOpen
        b.openedAt = b.now()
        b.probing = false
        return
    }

    b.consecutive++
    if b.consecutive >= b.threshold {
        b.state = breakerOpen
        b.openedAt = b.now()
    }
}
