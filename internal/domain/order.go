package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusShipped: {OrderStatusCompleted},
}

var (
	ErrOrderBuyerRequired   = fmt.Errorf("%w: order buyer id is required", ErrInvalidArgument)
	ErrOrderSellerRequired  = fmt.Errorf("%w: order seller id is required", ErrInvalidArgument)
	ErrOrderProductsEmpty   = fmt.Errorf("%w: order must contain at least one product", ErrInvalidArgument)
	ErrOrderInvalidTotal    = fmt.Errorf("%w: order total amount must be greater than zero", ErrInvalidArgument)
	ErrOrderProductRequired = fmt.Errorf("%w: ordered product id is required", ErrInvalidArgument)
	ErrUnknownOrderStatus   = fmt.Errorf("%w: unknown order status", ErrInvalidArgument)
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s. A status is never
// its own successor; callers treat a repeated status as a no-op before asking.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderedProduct is the product snapshot taken at purchase time.
type OrderedProduct struct {
	ProductID         string          `json:"productId"`
	SellerID          string          `json:"sellerId"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	PurchasedQuantity int             `json:"purchasedQuantity"`
	Color             string          `json:"color,omitempty"`
	Size              string          `json:"size,omitempty"`
}

type Order struct {
	ID          string           `json:"id"`
	SellerID    string           `json:"sellerId"`
	BuyerID     string           `json:"buyerId"`
	Products    []OrderedProduct `json:"products"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	Status      OrderStatus      `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Version     string           `json:"version,omitempty"`
}

func NewOrder(id, sellerID, buyerID string, products []OrderedProduct, total decimal.Decimal) (*Order, error) {
	o := &Order{
		ID:          id,
		SellerID:    sellerID,
		BuyerID:     buyerID,
		Products:    products,
		TotalAmount: total,
		Status:      OrderStatusPending,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

func (o *Order) Validate() error {
	if o.BuyerID == "" {
		return ErrOrderBuyerRequired
	}
	if o.SellerID == "" {
		return ErrOrderSellerRequired
	}
	if len(o.Products) == 0 {
		return ErrOrderProductsEmpty
	}
	if !o.TotalAmount.IsPositive() {
		return ErrOrderInvalidTotal
	}
	for _, p := range o.Products {
		if p.ProductID == "" {
			return ErrOrderProductRequired
		}
		if p.PurchasedQuantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// TransitionTo moves the order to next. It returns false without touching the order
// when next equals the current status.
func (o *Order) TransitionTo(next OrderStatus) (bool, error) {
	if o.Status == next {
		return false, nil
	}
	if !o.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidTransition, o.ID, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ContainsProduct reports whether productID is one of the ordered lines.
func (o *Order) ContainsProduct(productID string) bool {
	for _, p := range o.Products {
		if p.ProductID == productID {
			return true
		}
	}
	return false
}
