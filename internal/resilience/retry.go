package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how DoVal backs off between attempts.
type RetryConfig struct {
	// MaxAttempts counts the first try too, so 1 disables retries.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry; each further retry
	// multiplies it by Multiplier up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction randomizes each delay by up to this fraction either way,
	// so parallel agents do not retry in lockstep.
	JitterFraction float64
}

// DefaultRetryConfig is tuned for the messages API: three attempts, half a
// second to start, doubling, a quarter jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = def.JitterFraction
	}
	return cfg
}

// DoVal calls fn until it returns a value, the error stops being transient,
// the context ends, or attempts run out. Only IsTransient errors are retried;
// a validation or auth failure comes straight back on the first attempt.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	delay := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= cfg.MaxAttempts {
			return zero, err
		}

		wait := jitter(delay, cfg.JitterFraction)
		zap.L().Warn("transient failure, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}
	}
}

// jitter spreads d by up to ±fraction of itself.
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * fraction * float64(d)
	out := time.Duration(float64(d) + spread)
	if out < 0 {
		return 0
	}
	return out
}
