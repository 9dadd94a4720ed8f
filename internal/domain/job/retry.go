package job

import (
	"fmt"
	"math"
	"time"
)

// RetryPolicy bounds the wait for deferred work: at most MaxAttempts polls,
// spaced by an interval that grows by Multiplier up to MaxInterval.
type RetryPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	MaxAttempts int
}

// Validate checks that the policy terminates.
func (p RetryPolicy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("retry interval must be positive")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	return nil
}

// Delay returns the wait before poll number attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.capped(p.Interval)
	}
	d := float64(p.Interval) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(d, 0) || d > float64(math.MaxInt64) {
		return p.capped(time.Duration(math.MaxInt64))
	}
	return p.capped(time.Duration(d))
}

func (p RetryPolicy) capped(d time.Duration) time.Duration {
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

// MaxWait is the longest time the policy can spend sleeping.
func (p RetryPolicy) MaxWait() time.Duration {
	var total time.Duration
	for i := 0; i < p.MaxAttempts; i++ {
		total += p.Delay(i)
	}
	return total
}

//Personal.AI order the ending
