package service

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// Consumers define the persistence they need; the repository package satisfies these.

type CartRepository interface {
	Create(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
	Get(ctx context.Context, id, userID string) (*domain.Cart, error)
	FindByUserID(ctx context.Context, userID string) (*domain.Cart, error)
	AppendItem(ctx context.Context, id, userID string, item domain.CartItem, at time.Time) (*domain.Cart, error)
	ReplaceItems(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
	ClearItems(ctx context.Context, id, userID string, at time.Time) (*domain.Cart, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id, buyerID string) (*domain.Order, error)
	PartitionKey(ctx context.Context, id string) (string, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error)
	ListByProduct(ctx context.Context, productID string) ([]*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) (*domain.Order, error)
	Delete(ctx context.Context, id, buyerID string) (bool, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	Get(ctx context.Context, id, orderID string) (*domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) (*domain.Product, error)
	Get(ctx context.Context, id, sellerID string) (*domain.Product, error)
	PartitionKey(ctx context.Context, id string) (string, error)
	List(ctx context.Context) ([]*domain.Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) (*domain.Product, error)
	AddReview(ctx context.Context, id, sellerID, reviewID string, rating float64) (*domain.Product, error)
	Delete(ctx context.Context, id, sellerID string) (bool, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID string) ([]*domain.Review, error)
	Delete(ctx context.Context, id, productID string) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type LinkRepository interface {
	Create(ctx context.Context, l *domain.ShortLink) (*domain.ShortLink, error)
	Get(ctx context.Context, code string) (*domain.ShortLink, error)
}
