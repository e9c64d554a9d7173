// Package pace spaces out repeated requests to a target rate.
package pace

import (
	"context"
	"sync"
	"time"
)

// Pacer schedules requests at a fixed rate using a leaky bucket: credit
// accrues at rate per second, capped at burst, and each request spends one
// unit. The first request is never delayed.
//
// Pacer is safe for concurrent use.
type Pacer struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	credit float64
	last   time.Time
	now    func() time.Time

	scheduled int64
	waited    time.Duration
}

// New returns a pacer for rate requests per second. A rate of zero or less
// disables pacing.
func New(rate float64) *Pacer {
	return NewWithBurst(rate, 1)
}

// NewWithBurst returns a pacer that lets up to burst requests through back
// to back after an idle period.
func NewWithBurst(rate, burst float64) *Pacer {
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		rate:   rate,
		burst:  burst,
		credit: 1,
		now:    time.Now,
	}
}

// Next reserves a slot and returns when it starts. The time is in the past
// or now when a request may go immediately.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.scheduled++
	if p.rate <= 0 {
		return now
	}

	if !p.last.IsZero() {
		if elapsed := now.Sub(p.last).Seconds(); elapsed > 0 {
			p.credit += elapsed * p.rate
		}
		if p.credit > p.burst {
			p.credit = p.burst
		}
	}

	if p.credit >= 1 {
		p.credit--
		p.last = now
		return now
	}

	base := now
	if p.last.After(now) {
		base = p.last
	}
	next := base.Add(time.Duration((1 - p.credit) / p.rate * float64(time.Second)))
	// Credit is consumed up front; accrual restarts at the reserved slot.
	p.credit = 0
	p.last = next
	p.waited += next.Sub(now)
	return next
}

// Wait blocks until the next slot or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	delay := time.Until(p.Next())
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate returns the target rate in requests per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Stats describes how a pacer has been used.
type Stats struct {
	Rate      float64       `json:"rate"`
	Scheduled int64         `json:"scheduled"`
	Waited    time.Duration `json:"waited"`
}

// Stats returns the pacer's counters.
func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Rate: p.rate, Scheduled: p.scheduled, Waited: p.waited}
}
