package task

import (
	"math"
	"time"
)

// RetryStrategy encapsulates the delay between retry attempts.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelayStrategy performs all retries immediately without waiting.
type NoDelayStrategy struct{}

// SleepDuration always returns zero, causing immediate retries.
func (n NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy implements a capped exponential backoff.
// Usage example:
//
//	WithRetry(&RetryPolicy{
//	    MaxRetries: 3,
//	    Strategy: ExponentialBackoffStrategy{
//	        Base:   100 * time.Millisecond,
//	        Factor: 2,
//	        Max:    5 * time.Second,
//	    },
//	})
type ExponentialBackoffStrategy struct {
	// Base is the starting delay (e.g., 100ms)
	Base time.Duration
	// Factor is multiplied each iteration (e.g., 2 => 100ms, 200ms, 400ms, ...)
	Factor float64
	// Max is the maximum delay allowed (caps the exponential growth)
	Max time.Duration
}

// SleepDuration implements an exponential backoff with a cap at Max.
func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if time.Duration(delay) > e.Max && e.Max > 0 {
		return e.Max
	}
	return time.Duration(delay)
}

// RetryPolicy controls how the executor re-runs business logic after an
// unexpected error. Faults are never retried; validation is not re-run on
// retry. The retry counter lands in result metadata under "retries".
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int
	// Strategy decides the delay between attempts; nil means no delay.
	Strategy RetryStrategy
	// Matches is the allow-list predicate; nil retries any unexpected error.
	Matches func(error) bool
}

func (p *RetryPolicy) allows(attempt int, err error) bool {
	if p == nil || attempt >= p.MaxRetries {
		return false
	}
	if p.Matches != nil && !p.Matches(err) {
		return false
	}
	return true
}

func (p *RetryPolicy) sleep(attempt int, err error) {
	if p == nil || p.Strategy == nil {
		return
	}
	if delay := p.Strategy.SleepDuration(attempt, err); delay > 0 {
		time.Sleep(delay)
	}
}
