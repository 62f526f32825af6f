package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	productsCacheKey = "products"
	catalogCacheName = "catalog"
)

// CatalogService owns products. The full listing is served through a read-through
// cache that is never invalidated: writes become visible once the entry expires.
type CatalogService struct {
	products     ProductRepository
	cache        cache.TTLCache
	cacheTimeout time.Duration
	sfg          singleflight.Group // collapses concurrent misses
	log          *zap.Logger
	metrics      *metrics.Metrics
}

func NewCatalogService(products ProductRepository, c cache.TTLCache, cacheTimeout time.Duration, log *zap.Logger, m *metrics.Metrics) *CatalogService {
	return &CatalogService{
		products:     products,
		cache:        c,
		cacheTimeout: cacheTimeout,
		log:          log,
		metrics:      m,
	}
}

// ListProducts returns the JSON encoded catalog. Cache failures fall through to the
// store.
func (s *CatalogService) ListProducts(ctx context.Context) ([]byte, error) {
	if payload, ok := s.cached(ctx); ok {
		return payload, nil
	}

	v, err, _ := s.sfg.Do(productsCacheKey, func() (interface{}, error) {
		// shared by every waiter, so one caller going away must not fail the rest
		ctx := context.WithoutCancel(ctx)

		products, err := s.products.List(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(products)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		s.fill(ctx, payload)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *CatalogService) cached(ctx context.Context) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	payload, err := s.cache.Get(ctx, productsCacheKey)
	switch {
	case err == nil:
		s.metrics.CacheLookup(catalogCacheName, "hit")
		return payload, true
	case errors.Is(err, cache.ErrCacheMiss):
		s.metrics.CacheLookup(catalogCacheName, "miss")
	default:
		s.metrics.CacheLookup(catalogCacheName, "error")
		s.metrics.CacheError(catalogCacheName, "get")
		logger.FromContext(ctx, s.log).Warn("cache_get_failed", zap.String("key", productsCacheKey), zap.Error(err))
	}
	return nil, false
}

func (s *CatalogService) fill(ctx context.Context, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, productsCacheKey, payload); err != nil {
		s.metrics.CacheError(catalogCacheName, "set")
		logger.FromContext(ctx, s.log).Warn("cache_set_failed", zap.String("key", productsCacheKey), zap.Error(err))
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Rating, p.Reviews, p.Version = 0, nil, ""

	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("product_created",
		zap.String("product_id", created.ID),
		zap.String("seller_id", created.SellerID))
	return created, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id, sellerID string) (*domain.Product, error) {
	if sellerID == "" {
		return nil, domain.ErrProductSellerRequired
	}
	return s.products.Get(ctx, id, sellerID)
}

func (s *CatalogService) GetProductPartitionKey(ctx context.Context, id string) (string, error) {
	return s.products.PartitionKey(ctx, id)
}

func (s *CatalogService) GetProductsBySellerID(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	return s.products.ListBySeller(ctx, sellerID)
}

// UpdateProduct replaces the editable fields of a stored product. Reviews, rating and
// creation time are kept from the stored copy, and the write is guarded by the version
// that was read.
func (s *CatalogService) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	current, err := s.products.Get(ctx, p.ID, p.SellerID)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = current.CreatedAt
	p.Rating = current.Rating
	p.Reviews = current.Reviews
	p.Version = current.Version
	p.UpdatedAt = time.Now().UTC()
	return s.products.Update(ctx, p)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id, sellerID string) (bool, error) {
	if sellerID == "" {
		return false, domain.ErrProductSellerRequired
	}
	return s.products.Delete(ctx, id, sellerID)
}
