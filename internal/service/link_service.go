package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	linkCacheName  = "links"
	linkCodeLength = 8
)

// LinkService resolves short codes through the same read-through pattern as the
// catalog, with its own cache and TTL.
type LinkService struct {
	links        LinkRepository
	cache        cache.TTLCache
	cacheTimeout time.Duration
	sfg          singleflight.Group
	log          *zap.Logger
	metrics      *metrics.Metrics
}

func NewLinkService(links LinkRepository, c cache.TTLCache, cacheTimeout time.Duration, log *zap.Logger, m *metrics.Metrics) *LinkService {
	return &LinkService{
		links:        links,
		cache:        c,
		cacheTimeout: cacheTimeout,
		log:          log,
		metrics:      m,
	}
}

// CreateLink stores target under code, generating a code when none is given.
func (s *LinkService) CreateLink(ctx context.Context, code, target string) (*domain.ShortLink, error) {
	if code == "" {
		code = strings.ReplaceAll(uuid.NewString(), "-", "")[:linkCodeLength]
	}
	l := &domain.ShortLink{Code: code, Target: target, CreatedAt: time.Now().UTC()}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return s.links.Create(ctx, l)
}

// Resolve returns the target for code.
func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", domain.ErrLinkCodeRequired
	}
	if target, ok := s.cached(ctx, code); ok {
		return target, nil
	}

	v, err, _ := s.sfg.Do(code, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		l, err := s.links.Get(ctx, code)
		if err != nil {
			return "", err
		}
		s.fill(ctx, code, l.Target)
		return l.Target, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *LinkService) cached(ctx context.Context, code string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	target, err := s.cache.Get(ctx, code)
	switch {
	case err == nil:
		s.metrics.CacheLookup(linkCacheName, "hit")
		return string(target), true
	case errors.Is(err, cache.ErrCacheMiss):
		s.metrics.CacheLookup(linkCacheName, "miss")
	default:
		s.metrics.CacheLookup(linkCacheName, "error")
		s.metrics.CacheError(linkCacheName, "get")
		logger.FromContext(ctx, s.log).Warn("cache_get_failed", zap.String("key", code), zap.Error(err))
	}
	return "", false
}

func (s *LinkService) fill(ctx context.Context, code, target string) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, code, []byte(target)); err != nil {
		s.metrics.CacheError(linkCacheName, "set")
		logger.FromContext(ctx, s.log).Warn("cache_set_failed", zap.String("key", code), zap.Error(err))
	}
}
