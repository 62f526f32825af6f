package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusShipped, OrderStatusCompleted, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusShipped, false},
		{OrderStatusFailed, OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrder_TransitionTo(t *testing.T) {
	o := &Order{ID: "o1", Status: OrderStatusPending}

	changed, err := o.TransitionTo(OrderStatusPending)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, o.UpdatedAt.IsZero())

	changed, err = o.TransitionTo(OrderStatusShipped)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, OrderStatusShipped, o.Status)

	_, err = o.TransitionTo(OrderStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, OrderStatusShipped, o.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseOrderStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, s)

	_, err = ParseOrderStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	p, err := ParsePaymentStatus("paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, p)

	_, err = ParsePaymentStatus("PAID")
	assert.ErrorIs(t, err, ErrUnknownPaymentStatus)
}

func TestPayment_TransitionTo(t *testing.T) {
	p := &Payment{ID: "pay1", Status: PaymentStatusPending}

	changed, err := p.TransitionTo(PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, p.PaidAt.IsZero())
	assert.True(t, p.Status.IsTerminal())

	changed, err = p.TransitionTo(PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = p.TransitionTo(PaymentStatusFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProduct_Decrement(t *testing.T) {
	p := Product{ID: "p1", Stock: 3}

	next, err := p.Decrement(3)
	require.NoError(t, err)
	assert.Equal(t, 0, next.Stock)
	assert.Equal(t, 3, p.Stock)

	_, err = p.Decrement(4)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = p.Decrement(0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestOrder_ContainsProduct(t *testing.T) {
	o := &Order{Products: []OrderedProduct{{ProductID: "p1"}, {ProductID: "p2"}}}
	assert.True(t, o.ContainsProduct("p2"))
	assert.False(t, o.ContainsProduct("p3"))
}
