package stepflow

import "time"

// RetryBuilder provides a fluent way to construct RetryConfig values for
// WithRetry or Step.Retry.
//
// The dependency check of a step runs up to Attempts times, Delay apart,
// before the step times out or suspends, so Attempts x Delay bounds how
// long a step waits for its condition.
type RetryBuilder struct {
	cfg RetryConfig
}

// Retry creates a RetryBuilder with the given number of attempts.
//
// attempts <= 0 means the default of 3.
func Retry(attempts int) RetryBuilder {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return RetryBuilder{cfg: RetryConfig{Attempts: attempts, Delay: DefaultDelay}}
}

// Every sets the delay between attempts. delay <= 0 keeps the default of
// one second.
func (r RetryBuilder) Every(delay time.Duration) RetryBuilder {
	if delay > 0 {
		r.cfg.Delay = delay
	}
	return r
}

// Within spreads the attempts evenly over total:
//
//	Retry(10).Within(5 * time.Second) // 10 attempts, 500ms apart
func (r RetryBuilder) Within(total time.Duration) RetryBuilder {
	return r.Every(total / time.Duration(r.cfg.Attempts))
}

// Config returns the built RetryConfig.
func (r RetryBuilder) Config() RetryConfig {
	return r.cfg
}

// Ptr returns a pointer to a copy of the built RetryConfig, for Step.Retry.
func (r RetryBuilder) Ptr() *RetryConfig {
	c := r.cfg
	return &c
}
