package service

import (
	"context"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store    *store.MemoryStore
	carts    *repository.CartRepository
	orders   *repository.OrderRepository
	payments *repository.PaymentRepository
	products *repository.ProductRepository
	reviews  *repository.ReviewRepository
	users    *repository.UserRepository
	links    *repository.LinkRepository
	events   *recordingPublisher
	log      *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	f := &fixture{store: s, events: &recordingPublisher{}, log: zaptest.NewLogger(t)}

	var err error
	f.carts, err = repository.NewCartRepository(ctx, s)
	require.NoError(t, err)
	f.orders, err = repository.NewOrderRepository(ctx, s)
	require.NoError(t, err)
	f.payments, err = repository.NewPaymentRepository(ctx, s)
	require.NoError(t, err)
	f.products, err = repository.NewProductRepository(ctx, s)
	require.NoError(t, err)
	f.reviews, err = repository.NewReviewRepository(ctx, s)
	require.NoError(t, err)
	f.users, err = repository.NewUserRepository(ctx, s)
	require.NoError(t, err)
	f.links, err = repository.NewLinkRepository(ctx, s)
	require.NoError(t, err)
	return f
}

func (f *fixture) cartService() *CartService {
	return NewCartService(f.carts, f.log, nil)
}

func (f *fixture) orderService() *OrderService {
	return NewOrderService(f.orders, f.carts, f.products, f.events, f.log, nil)
}

func (f *fixture) paymentService() *PaymentService {
	return NewPaymentService(f.payments, f.orders, NewSettler(f.products, f.log, nil), f.events, f.log, nil)
}

func (f *fixture) addProduct(t *testing.T, id, sellerID string, stock int, price string) *domain.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), &domain.Product{
		ID:       id,
		SellerID: sellerID,
		Name:     "product " + id,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id, sellerID string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id, sellerID)
	require.NoError(t, err)
	return p.Stock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	m      sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.m.Lock()
	defer p.m.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
