package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_CartTotal(t *testing.T) {
	f := newFixture(t)
	svc := f.cartService()
	ctx := context.Background()

	_, err := svc.CreateCart(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", domain.CartItem{ProductID: "p1", Quantity: 2, Price: dec("10")})
	require.NoError(t, err)

	cart, err := svc.GetCartByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, dec("20").Equal(cart.Total()))
}

func payOrder(t *testing.T, f *fixture, stock int) (*domain.Payment, error) {
	t.Helper()
	ctx := context.Background()
	f.addProduct(t, "p1", "s1", stock, "10")

	o, err := f.orderService().CreateOrder(ctx, "s1", "b1", []domain.OrderedProduct{
		{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 3},
	}, dec("30"))
	require.NoError(t, err)

	payments := f.paymentService()
	p, err := payments.CreatePayment(ctx, paymentRequest(o.ID, "30"))
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, p.Status)

	return payments.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
}

func TestScenario_PaymentSettlesStock(t *testing.T) {
	f := newFixture(t)

	_, err := payOrder(t, f, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, "p1", "s1"))
}

func TestScenario_InsufficientStockKeepsPaymentPaid(t *testing.T) {
	f := newFixture(t)

	p, err := payOrder(t, f, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.NotNil(t, p)

	stored, err := f.payments.Get(context.Background(), p.ID, p.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.Status)
	assert.Equal(t, 2, f.stock(t, "p1", "s1"))
}

func TestScenario_CatalogCacheExpires(t *testing.T) {
	svc, f, counting, mr := setupCatalog(t, 5*time.Second)
	ctx := context.Background()
	f.addProduct(t, "p1", "s1", 1, "1")

	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.listCalls(), "first call misses")

	_, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.listCalls(), "second call is served from cache")

	mr.FastForward(5*time.Second + time.Millisecond)
	_, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.listCalls(), "third call misses after expiry")
}
