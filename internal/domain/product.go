package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductSellerRequired = fmt.Errorf("%w: product seller id is required", ErrInvalidArgument)
	ErrProductNameRequired   = fmt.Errorf("%w: product name is required", ErrInvalidArgument)
	ErrNegativeStock         = fmt.Errorf("%w: stock must not be negative", ErrInvalidArgument)
)

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"sellerId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Images      []string        `json:"images"`
	Colors      []string        `json:"colors"`
	Sizes       []string        `json:"sizes"`
	Features    []string        `json:"features"`
	Rating      float64         `json:"rating"`
	Reviews     []string        `json:"reviews"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`

	// Version is the store etag of the last read, used for conditional writes.
	Version string `json:"version,omitempty"`
}

func (p *Product) Validate() error {
	if p.SellerID == "" {
		return ErrProductSellerRequired
	}
	if p.Name == "" {
		return ErrProductNameRequired
	}
	if !p.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Decrement returns a copy of p with quantity removed from stock.
func (p Product) Decrement(quantity int) (Product, error) {
	if quantity <= 0 {
		return p, ErrInvalidQuantity
	}
	left := p.Stock - quantity
	if left < 0 {
		return p, fmt.Errorf("%w: product %s has %d, %d requested", ErrInsufficientStock, p.ID, p.Stock, quantity)
	}
	p.Stock = left
	p.UpdatedAt = time.Now().UTC()
	return p, nil
}
