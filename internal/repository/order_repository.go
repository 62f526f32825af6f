package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type orderedProductDocument struct {
	ProductID         string `bson:"productId"`
	SellerID          string `bson:"sellerId"`
	Name              string `bson:"name,omitempty"`
	Price             string `bson:"price"`
	PurchasedQuantity int    `bson:"purchasedQuantity"`
	Color             string `bson:"color,omitempty"`
	Size              string `bson:"size,omitempty"`
}

type orderDocument struct {
	ID          string                   `bson:"_id"`
	ETag        string                   `bson:"_etag,omitempty"`
	SellerID    string                   `bson:"sellerId"`
	BuyerID     string                   `bson:"buyerId"`
	Products    []orderedProductDocument `bson:"products"`
	TotalAmount string                   `bson:"totalAmount"`
	Status      string                   `bson:"status"`
	CreatedAt   time.Time                `bson:"createdAt"`
	UpdatedAt   time.Time                `bson:"updatedAt"`
}

func newOrderDocument(o *domain.Order) orderDocument {
	products := make([]orderedProductDocument, 0, len(o.Products))
	for _, p := range o.Products {
		products = append(products, orderedProductDocument{
			ProductID:         p.ProductID,
			SellerID:          p.SellerID,
			Name:              p.Name,
			Price:             moneyString(p.Price),
			PurchasedQuantity: p.PurchasedQuantity,
			Color:             p.Color,
			Size:              p.Size,
		})
	}
	return orderDocument{
		ID:          o.ID,
		SellerID:    o.SellerID,
		BuyerID:     o.BuyerID,
		Products:    products,
		TotalAmount: moneyString(o.TotalAmount),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (d orderDocument) toDomain() (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s: %w", domain.ErrStoreRead, d.ID, err)
	}
	total, err := parseMoney(d.TotalAmount)
	if err != nil {
		return nil, err
	}
	products := make([]domain.OrderedProduct, 0, len(d.Products))
	for _, p := range d.Products {
		price, err := parseMoney(p.Price)
		if err != nil {
			return nil, err
		}
		products = append(products, domain.OrderedProduct{
			ProductID:         p.ProductID,
			SellerID:          p.SellerID,
			Name:              p.Name,
			Price:             price,
			PurchasedQuantity: p.PurchasedQuantity,
			Color:             p.Color,
			Size:              p.Size,
		})
	}
	return &domain.Order{
		ID:          d.ID,
		SellerID:    d.SellerID,
		BuyerID:     d.BuyerID,
		Products:    products,
		TotalAmount: total,
		Status:      status,
		CreatedAt:   utc(d.CreatedAt),
		UpdatedAt:   utc(d.UpdatedAt),
		Version:     d.ETag,
	}, nil
}

func decodeOrder(doc store.Document) (*domain.Order, error) {
	var d orderDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return d.toDomain()
}

func decodeOrders(docs []store.Document) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// OrderRepository stores orders partitioned by /buyerId.
type OrderRepository struct {
	store store.Store
}

func NewOrderRepository(ctx context.Context, s store.Store) (*OrderRepository, error) {
	if err := ensure(ctx, s, OrdersCollection, "/buyerId"); err != nil {
		return nil, err
	}
	return &OrderRepository{store: s}, nil
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	doc, err := encode(newOrderDocument(o))
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, OrdersCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create order %s: %w", o.ID, translate(err))
	}
	return decodeOrder(created)
}

func (r *OrderRepository) Get(ctx context.Context, id, buyerID string) (*domain.Order, error) {
	doc, err := r.store.Read(ctx, OrdersCollection, id, buyerID)
	if err != nil {
		return nil, translate(err)
	}
	return decodeOrder(doc)
}

// PartitionKey returns the buyerId owning order id.
func (r *OrderRepository) PartitionKey(ctx context.Context, id string) (string, error) {
	return partitionKeyOf(ctx, r.store, OrdersCollection, id, "buyerId")
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	if buyerID == "" {
		return nil, domain.ErrOrderBuyerRequired
	}
	return r.query(ctx, store.Query{PartitionKey: buyerID})
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	if sellerID == "" {
		return nil, domain.ErrOrderSellerRequired
	}
	return r.query(ctx, store.Query{Conditions: []store.Condition{{Path: "/sellerId", Value: sellerID}}})
}

func (r *OrderRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Order, error) {
	if productID == "" {
		return nil, domain.ErrOrderProductRequired
	}
	return r.query(ctx, store.Query{Conditions: []store.Condition{{Path: "/products/productId", Value: productID}}})
}

func (r *OrderRepository) query(ctx context.Context, q store.Query) ([]*domain.Order, error) {
	docs, err := r.store.Query(ctx, OrdersCollection, q)
	if err != nil {
		return nil, translate(err)
	}
	return decodeOrders(docs)
}

// Update replaces the order, conditional on o.Version when it is set.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	doc, err := encode(newOrderDocument(o))
	if err != nil {
		return nil, err
	}
	var opts []store.ReplaceOption
	if o.Version != "" {
		opts = append(opts, store.IfMatch(o.Version))
	}
	replaced, err := r.store.Replace(ctx, OrdersCollection, o.ID, o.BuyerID, doc, opts...)
	if err != nil {
		return nil, translate(err)
	}
	return decodeOrder(replaced)
}

func (r *OrderRepository) Delete(ctx context.Context, id, buyerID string) (bool, error) {
	ok, err := r.store.Delete(ctx, OrdersCollection, id, buyerID)
	return ok, translate(err)
}
