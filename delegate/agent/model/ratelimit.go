package model

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter applies an AIMD-style adaptive token bucket in front of a
// Client, grounded on the teacher's features/model/middleware.AdaptiveRateLimiter:
// it charges one token per request, blocks until capacity is available, halves its budget on ErrRateLimited, and recovers gradually on
// success. Sized in requests-per-minute rather than tokens-per-minute, since
// the sub-agent driver issues one Complete call per round turn regardless of
// message size.
type RateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	current float64
	min     float64
	max     float64
	step    float64
}

// NewRateLimiter constructs a RateLimiter with an initial and maximum
// requests-per-minute budget. A non-positive initialRPM defaults to 60.
func NewRateLimiter(initialRPM, maxRPM float64) *RateLimiter {
	if initialRPM <= 0 {
		initialRPM = 60
	}
	if maxRPM <= 0 || maxRPM < initialRPM {
		maxRPM = initialRPM
	}
	min := initialRPM * 0.1
	if min < 1 {
		min = 1
	}
	step := initialRPM * 0.05
	if step < 1 {
		step = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(initialRPM/60.0), int(initialRPM)),
		current: initialRPM,
		min:     min,
		max:     maxRPM,
		step:    step,
	}
}

// Wrap returns a Client that enforces the limiter before delegating to next.
func (l *RateLimiter) Wrap(next Client) Client {
	return &limitedClient{next: next, limiter: l}
}

type limitedClient struct {
	next    Client
	limiter *RateLimiter
}

func (c *limitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (l *RateLimiter) observe(err error) {
	if err == nil {
		l.adjust(l.step)
		return
	}
	var rl ErrRateLimited
	if errors.As(err, &rl) {
		l.halve()
	}
}

func (l *RateLimiter) halve() {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.current * 0.5
	if next < l.min {
		next = l.min
	}
	l.setLocked(next)
}

func (l *RateLimiter) adjust(delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.current + delta
	if next > l.max {
		next = l.max
	}
	l.setLocked(next)
}

func (l *RateLimiter) setLocked(rpm float64) {
	if rpm == l.current {
		return
	}
	l.current = rpm
	l.limiter.SetLimit(rate.Limit(rpm / 60.0))
	l.limiter.SetBurst(int(rpm))
}
