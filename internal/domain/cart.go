package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCartUserRequired    = fmt.Errorf("%w: cart user id is required", ErrInvalidArgument)
	ErrCartProductRequired = fmt.Errorf("%w: cart item product id is required", ErrInvalidArgument)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidArgument)
	ErrInvalidPrice        = fmt.Errorf("%w: price must be greater than zero", ErrInvalidArgument)
	ErrCartEmpty           = fmt.Errorf("%w: cart is empty", ErrInvalidArgument)
)

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Version   string     `json:"version,omitempty"`
}

// CartItem is one cart line. SellerID is the product's partition key, captured so
// checkout can address the product without an extra lookup.
type CartItem struct {
	ProductID string          `json:"productId"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func NewCart(id, userID string) (*Cart, error) {
	if userID == "" {
		return nil, ErrCartUserRequired
	}
	return &Cart{
		ID:        id,
		UserID:    userID,
		Items:     []CartItem{},
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (i CartItem) Validate() error {
	if i.ProductID == "" {
		return ErrCartProductRequired
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !i.Price.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums price * quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// IndexOf returns the position of the first line for productID, or -1.
func (c *Cart) IndexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
