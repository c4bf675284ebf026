package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetriesExceeded is returned once every attempt has failed
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy configures how an operation is retried
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the +/- fraction applied to every delay, in [0,1]
	Jitter float64
	// RetryableFunc overrides the default error classification
	RetryableFunc func(error) bool
}

// DefaultPolicy suits short idempotent HTTP reads
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Validate reports a policy that cannot produce sane delays
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	if p.MaxDelay > 0 && p.InitialDelay > p.MaxDelay {
		return fmt.Errorf("initial delay %s exceeds max delay %s", p.InitialDelay, p.MaxDelay)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %v", p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0,1], got %v", p.Jitter)
	}
	return nil
}
