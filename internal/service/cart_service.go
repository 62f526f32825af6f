package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cartNamespace seeds the name-based cart ids. Changing it orphans every stored cart.
var cartNamespace = uuid.MustParse("0d5f8c8e-3f0b-4c51-9a57-41f7c3b2e6a4")

const defaultCartRetries = 3

// CartID is the id of userID's cart. It is derived from the user id so that two
// concurrent creates for one user collide in the store instead of producing two carts.
func CartID(userID string) string {
	return uuid.NewSHA1(cartNamespace, []byte(userID)).String()
}

type CartService struct {
	repo    CartRepository
	log     *zap.Logger
	metrics *metrics.Metrics
	retries int
}

func NewCartService(repo CartRepository, log *zap.Logger, m *metrics.Metrics) *CartService {
	return &CartService{
		repo:    repo,
		log:     log,
		metrics: m,
		retries: defaultCartRetries,
	}
}

func (s *CartService) CreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := domain.NewCart(CartID(userID), userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByUserID(ctx, userID); err == nil {
		return nil, fmt.Errorf("%w: user %s already has a cart", domain.ErrAlreadyExists, userID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	created, err := s.repo.Create(ctx, cart)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("cart_created",
		zap.String("user_id", userID),
		zap.String("cart_id", created.ID))
	return created, nil
}

// GetCartByUserID returns nil without an error when the user has no cart.
func (s *CartService) GetCartByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrCartUserRequired
	}
	return s.repo.Get(ctx, cartID, userID)
}

// AddItem appends a new line. A product already in the cart gets a second line.
func (s *CartService) AddItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.AppendItem(ctx, cart.ID, userID, item, time.Now().UTC())
	if err != nil {
		logger.FromContext(ctx, s.log).Error("cart_add_item_failed",
			zap.String("user_id", userID),
			zap.String("product_id", item.ProductID),
			zap.Error(err))
		return nil, err
	}
	return updated, nil
}

// RemoveItem drops every line for productID.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	return s.rewrite(ctx, userID, productID, func(c *domain.Cart) {
		kept := make([]domain.CartItem, 0, len(c.Items))
		for _, item := range c.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		c.Items = kept
	})
}

// UpdateQuantity sets the quantity of the first line for productID.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.rewrite(ctx, userID, productID, func(c *domain.Cart) {
		c.Items[c.IndexOf(productID)].Quantity = quantity
	})
}

func (s *CartService) ClearItems(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ClearItems(ctx, cart.ID, userID, time.Now().UTC())
}

// rewrite applies fn to a fresh read of the cart and writes the items back guarded
// by the read version. On a concurrent modification the whole read-decide-write
// cycle runs again, up to s.retries extra times.
func (s *CartService) rewrite(ctx context.Context, userID, productID string, fn func(*domain.Cart)) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.ErrCartProductRequired
	}
	for attempt := 0; ; attempt++ {
		cart, err := s.findCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cart.IndexOf(productID) < 0 {
			return nil, fmt.Errorf("%w: product %s is not in the cart of user %s", domain.ErrNotFound, productID, userID)
		}
		fn(cart)
		cart.UpdatedAt = time.Now().UTC()

		updated, err := s.repo.ReplaceItems(ctx, cart)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= s.retries {
			return nil, err
		}
		s.metrics.CartRetry()
		logger.FromContext(ctx, s.log).Debug("cart_write_conflict",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1))
	}
}

func (s *CartService) findCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no cart for user %s", domain.ErrNotFound, userID)
	}
	return cart, err
}
