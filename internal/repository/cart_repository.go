package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type cartItemDocument struct {
	ProductID string `bson:"productId"`
	SellerID  string `bson:"sellerId,omitempty"`
	Quantity  int    `bson:"quantity"`
	Price     string `bson:"price"`
}

type cartDocument struct {
	ID        string             `bson:"_id"`
	ETag      string             `bson:"_etag,omitempty"`
	UserID    string             `bson:"userId"`
	Items     []cartItemDocument `bson:"items"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func newCartItemDocument(item domain.CartItem) cartItemDocument {
	return cartItemDocument{
		ProductID: item.ProductID,
		SellerID:  item.SellerID,
		Quantity:  item.Quantity,
		Price:     moneyString(item.Price),
	}
}

func newCartDocument(c *domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, newCartItemDocument(item))
	}
	return cartDocument{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     items,
		UpdatedAt: c.UpdatedAt,
	}
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := parseMoney(it.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.CartItem{
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Quantity:  it.Quantity,
			Price:     price,
		})
	}
	return &domain.Cart{
		ID:        d.ID,
		UserID:    d.UserID,
		Items:     items,
		UpdatedAt: utc(d.UpdatedAt),
		Version:   d.ETag,
	}, nil
}

func decodeCart(doc store.Document) (*domain.Cart, error) {
	var d cartDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return d.toDomain()
}

// CartRepository stores carts partitioned by /userId.
type CartRepository struct {
	store store.Store
}

func NewCartRepository(ctx context.Context, s store.Store) (*CartRepository, error) {
	if err := ensure(ctx, s, CartsCollection, "/userId"); err != nil {
		return nil, err
	}
	return &CartRepository{store: s}, nil
}

func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	doc, err := encode(newCartDocument(cart))
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, CartsCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create cart for %s: %w", cart.UserID, translate(err))
	}
	return decodeCart(created)
}

func (r *CartRepository) Get(ctx context.Context, id, userID string) (*domain.Cart, error) {
	doc, err := r.store.Read(ctx, CartsCollection, id, userID)
	if err != nil {
		return nil, translate(err)
	}
	return decodeCart(doc)
}

// FindByUserID is a partition-scoped query; a user owns at most one cart.
func (r *CartRepository) FindByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrCartUserRequired
	}
	docs, err := r.store.Query(ctx, CartsCollection, store.Query{PartitionKey: userID})
	if err != nil {
		return nil, translate(err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeCart(docs[0])
}

// AppendItem adds one line with a single atomic patch, so concurrent adds to the
// same cart never overwrite each other.
func (r *CartRepository) AppendItem(ctx context.Context, id, userID string, item domain.CartItem, at time.Time) (*domain.Cart, error) {
	doc, err := r.store.Patch(ctx, CartsCollection, id, userID, []store.PatchOp{
		store.Append("/items", newCartItemDocument(item)),
		store.Set("/updatedAt", at),
	})
	if err != nil {
		return nil, translate(err)
	}
	return decodeCart(doc)
}

// ReplaceItems writes cart.Items back only if the cart is still at cart.Version.
// A concurrent change yields domain.ErrConflict.
func (r *CartRepository) ReplaceItems(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	doc, err := encode(newCartDocument(cart))
	if err != nil {
		return nil, err
	}
	var opts []store.ReplaceOption
	if cart.Version != "" {
		opts = append(opts, store.IfMatch(cart.Version))
	}
	replaced, err := r.store.Replace(ctx, CartsCollection, cart.ID, cart.UserID, doc, opts...)
	if err != nil {
		return nil, translate(err)
	}
	return decodeCart(replaced)
}

func (r *CartRepository) ClearItems(ctx context.Context, id, userID string, at time.Time) (*domain.Cart, error) {
	doc, err := r.store.Patch(ctx, CartsCollection, id, userID, []store.PatchOp{
		store.Set("/items", []cartItemDocument{}),
		store.Set("/updatedAt", at),
	})
	if err != nil {
		return nil, translate(err)
	}
	return decodeCart(doc)
}
