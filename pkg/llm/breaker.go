package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the provider circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
	OnStateChange    func(name string, from, to gobreaker.State)
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerProvider guards a provider with a circuit breaker. Only opening a
// stream goes through the breaker; failures after the first chunk belong to
// the stream consumer.
type BreakerProvider struct {
	inner StreamingProvider
	cb    *gobreaker.CircuitBreaker
}

var _ StreamingProvider = &BreakerProvider{}

func NewBreakerProvider(inner StreamingProvider, config BreakerConfig) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: config.OnStateChange,
		// A caller hanging up or running out of time says nothing about the
		// upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return &BreakerProvider{inner: inner, cb: cb}
}

func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Chat(ctx, history, options...)
	})
	if err != nil {
		return "", breakerError(err)
	}
	return out.(string), nil
}

func (b *BreakerProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return b.Chat(ctx, []Message{{Role: "user", Content: prompt}}, options...)
}

func (b *BreakerProvider) Stream(ctx context.Context, history []Message, options ...Option) (ChunkStream, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Stream(ctx, history, options...)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(ChunkStream), nil
}

// breakerError makes a rejected call look like any other upstream failure.
func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &UpstreamError{Provider: "breaker", Err: err}
	}
	return err
}
