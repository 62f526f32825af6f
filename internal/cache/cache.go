package cache

import (
	"context"
	"errors"
)

// TTLCache stores opaque payloads that expire after a fixed time-to-live chosen by
// the implementation.
type TTLCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop never stores anything; every Get is a miss. It stands in when no cache
// server is configured.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, []byte) error   { return nil }
