package anthropic

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/resilience"
)

// breakerClient decorates a Client with a circuit breaker so sustained API
// failures short-circuit further calls until the service recovers.
type breakerClient struct {
	inner Client
	cb    *resilience.CircuitBreaker
}

// WithCircuitBreaker wraps c with the given circuit breaker. A nil breaker
// returns c unchanged.
func WithCircuitBreaker(c Client, cb *resilience.CircuitBreaker) Client {
	if cb == nil {
		return c
	}
	return &breakerClient{inner: c, cb: cb}
}

// NewDefaultBreaker builds a circuit breaker tuned for the messages API:
// only transient failures trip it, and state transitions are logged.
func NewDefaultBreaker() *resilience.CircuitBreaker {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.ShouldTrip = resilience.IsTransient
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("anthropic circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return resilience.NewCircuitBreaker(cfg)
}

func (c *breakerClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	return resilience.ExecuteVal(ctx, c.cb, func(ctx context.Context) (*MessageResponse, error) {
		return c.inner.CreateMessage(ctx, req)
	})
}
