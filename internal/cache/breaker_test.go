package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyCache struct {
	mu    sync.Mutex
	err   error
	calls int
	data  map[string][]byte
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (f *flakyCache) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = value
	return nil
}

func TestBreakerCache_MissesDoNotTrip(t *testing.T) {
	inner := &flakyCache{}
	c := NewBreakerCache(inner, BreakerSettings{Name: "test", ConsecutiveFailures: 2}, nil)

	for i := 0; i < 5; i++ {
		_, err := c.Get(context.Background(), "k")
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestBreakerCache_OpensAfterFailures(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	c := NewBreakerCache(inner, BreakerSettings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	require.Error(t, err)
	err = c.Set(ctx, "k", []byte("v"))
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerCache_PassesThrough(t *testing.T) {
	c := NewBreakerCache(&flakyCache{}, BreakerSettings{Name: "test"}, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
