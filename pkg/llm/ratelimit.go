package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token-bucket rate limiter so that
// concurrent batch executors collectively stay under a provider's request
// budget. Invoke blocks until a token is available or the context ends.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter allowing rps requests per
// second with the given burst. A non-positive rps disables limiting.
func NewRateLimitedClient(inner Client, rps float64, burst int) *RateLimitedClient {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &RateLimitedClient{
		inner:   inner,
		limiter: limiter,
	}
}

// Name returns the wrapped client's name.
func (c *RateLimitedClient) Name() string {
	return c.inner.Name()
}

// Invoke waits for limiter capacity, then delegates to the wrapped client.
func (c *RateLimitedClient) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.inner.Invoke(ctx, req)
}

var _ Client = (*RateLimitedClient)(nil)
