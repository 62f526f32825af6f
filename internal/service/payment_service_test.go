package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentRequest(orderID, amount string) CreatePaymentRequest {
	return CreatePaymentRequest{
		OrderID: orderID,
		Amount:  dec(amount),
		Method:  "card",
		Billing: domain.BillingInfo{Name: "Ann Lee", Email: "ann@example.com"},
		Card:    &domain.CardSnapshot{Brand: "visa", Last4: "4242", ExpMonth: 1, ExpYear: 2031},
	}
}

func placeOrder(t *testing.T, f *fixture, lines ...domain.OrderedProduct) *domain.Order {
	t.Helper()
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.PurchasedQuantity))))
	}
	o, err := f.orderService().CreateOrder(context.Background(), "s1", "b1", lines, total)
	require.NoError(t, err)
	return o
}

func TestPaymentService_CreatePayment(t *testing.T) {
	f := newFixture(t)
	svc := f.paymentService()
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, paymentRequest("missing", "10"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	o := placeOrder(t, f, line("p1", 1))

	tests := []struct {
		name string
		mod  func(*CreatePaymentRequest)
	}{
		{"zero amount", func(r *CreatePaymentRequest) { r.Amount = dec("0") }},
		{"negative amount", func(r *CreatePaymentRequest) { r.Amount = dec("-1") }},
		{"no order", func(r *CreatePaymentRequest) { r.OrderID = "" }},
		{"no name", func(r *CreatePaymentRequest) { r.Billing.Name = "" }},
		{"bad email", func(r *CreatePaymentRequest) { r.Billing.Email = "not-an-email" }},
		{"no method", func(r *CreatePaymentRequest) { r.Method = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := paymentRequest(o.ID, "10")
			tt.mod(&req)
			_, err := svc.CreatePayment(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "10"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, p.Status)

	list, err := svc.GetPaymentsByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.GetPaymentsByOrderID(ctx, "other")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentService_PaidSettlesStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 10, "10")
	svc := f.paymentService()
	ctx := context.Background()

	o := placeOrder(t, f, domain.OrderedProduct{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 3})
	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "30"))
	require.NoError(t, err)

	paid, err := svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.Status)
	assert.False(t, paid.PaidAt.IsZero())
	assert.Equal(t, domain.SettlementSettled, paid.Settlement.Status)
	assert.Equal(t, []string{"p1"}, paid.Settlement.Succeeded)
	assert.Equal(t, 7, f.stock(t, "p1", "s1"))

	assert.Contains(t, f.events.types(), events.TypePaymentStatusChanged)
	assert.Contains(t, f.events.types(), events.TypeStockSettled)

	// repeating the status is a no-op and must not settle again
	again, err := svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, again.Status)
	assert.Equal(t, 7, f.stock(t, "p1", "s1"))

	_, err = svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentService_ConcurrentPaidSettlesOnce(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 100, "10")
	svc := f.paymentService()
	ctx := context.Background()

	o := placeOrder(t, f, domain.OrderedProduct{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 3})
	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "30"))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	assert.Equal(t, 97, f.stock(t, "p1", "s1"))

	settled := 0
	for _, typ := range f.events.types() {
		if typ == events.TypeStockSettled {
			settled++
		}
	}
	assert.Equal(t, 1, settled)

	stored, err := svc.GetPayment(ctx, p.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.Status)
	assert.Equal(t, domain.SettlementSettled, stored.Settlement.Status)
}

func TestPaymentService_FailedSettlementKeepsPaidStatus(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 2, "10")
	svc := f.paymentService()
	ctx := context.Background()

	o := placeOrder(t, f, domain.OrderedProduct{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 3})
	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "30"))
	require.NoError(t, err)

	paid, err := svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	var settleErr *SettlementError
	assert.True(t, errors.As(err, &settleErr))

	require.NotNil(t, paid)
	assert.Equal(t, domain.PaymentStatusPaid, paid.Status)
	assert.Equal(t, domain.SettlementFailed, paid.Settlement.Status)
	assert.Equal(t, "p1", paid.Settlement.FailedProductID)

	stored, err := svc.GetPayment(ctx, p.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.Status)
	assert.Equal(t, domain.SettlementFailed, stored.Settlement.Status)
	assert.Equal(t, 2, f.stock(t, "p1", "s1"))
	assert.NotContains(t, f.events.types(), events.TypeStockSettled)
}

func TestPaymentService_FailedStatusDoesNotSettle(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 10, "10")
	svc := f.paymentService()
	ctx := context.Background()

	o := placeOrder(t, f, domain.OrderedProduct{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 3})
	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "30"))
	require.NoError(t, err)

	failed, err := svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	assert.Equal(t, domain.SettlementNone, failed.Settlement.Status)
	assert.Equal(t, 10, f.stock(t, "p1", "s1"))

	_, err = svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestPaymentService_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 10, "10")
	o := placeOrder(t, f, domain.OrderedProduct{ProductID: "p1", SellerID: "s1", Price: dec("10"), PurchasedQuantity: 1})
	f.events.err = errors.New("broker down")
	svc := f.paymentService()
	ctx := context.Background()

	p, err := svc.CreatePayment(ctx, paymentRequest(o.ID, "10"))
	require.NoError(t, err)
	_, err = svc.UpdatePaymentStatus(ctx, p.ID, o.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, 9, f.stock(t, "p1", "s1"))
}
