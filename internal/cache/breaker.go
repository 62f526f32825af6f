package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerCache short-circuits calls to an unhealthy cache. While the breaker is open
// every call fails fast with gobreaker.ErrOpenState, which callers treat like any
// other cache failure. Misses do not count as failures.
type BreakerCache struct {
	next    TTLCache
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewBreakerCache(next TTLCache, settings BreakerSettings, log *zap.Logger) *BreakerCache {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	threshold := settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("cache_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerCache{next: next, breaker: cb}
}

func (b *BreakerCache) Get(ctx context.Context, key string) ([]byte, error) {
	return b.breaker.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *BreakerCache) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.breaker.Execute(func() ([]byte, error) {
		return nil, b.next.Set(ctx, key, value)
	})
	return err
}

func (b *BreakerCache) State() gobreaker.State {
	return b.breaker.State()
}
