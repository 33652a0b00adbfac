package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token-bucket limiter so a
// burst of concurrent requests cannot exhaust the upstream quota. Wait
// respects ctx, so a request canceled while queued never reaches the
// upstream.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with the given requests-per-second
// limit and burst size. rps <= 0 disables limiting.
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedProvider{inner: inner, limiter: limiter}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

// Completion waits for limiter capacity, then delegates.
func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.inner.Completion(ctx, req)
}
