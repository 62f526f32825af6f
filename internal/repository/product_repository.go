package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type productDocument struct {
	ID          string    `bson:"_id"`
	ETag        string    `bson:"_etag,omitempty"`
	SellerID    string    `bson:"sellerId"`
	Name        string    `bson:"name"`
	Description string    `bson:"description,omitempty"`
	Price       string    `bson:"price"`
	Stock       int       `bson:"stock"`
	Category    string    `bson:"category,omitempty"`
	Brand       string    `bson:"brand,omitempty"`
	Images      []string  `bson:"images"`
	Colors      []string  `bson:"colors"`
	Sizes       []string  `bson:"sizes"`
	Features    []string  `bson:"features"`
	Rating      float64   `bson:"rating"`
	Reviews     []string  `bson:"reviews"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func newProductDocument(p *domain.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		SellerID:    p.SellerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       moneyString(p.Price),
		Stock:       p.Stock,
		Category:    p.Category,
		Brand:       p.Brand,
		Images:      orEmpty(p.Images),
		Colors:      orEmpty(p.Colors),
		Sizes:       orEmpty(p.Sizes),
		Features:    orEmpty(p.Features),
		Rating:      p.Rating,
		Reviews:     orEmpty(p.Reviews),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDocument) toDomain() (*domain.Product, error) {
	price, err := parseMoney(d.Price)
	if err != nil {
		return nil, err
	}
	return &domain.Product{
		ID:          d.ID,
		SellerID:    d.SellerID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
		Category:    d.Category,
		Brand:       d.Brand,
		Images:      d.Images,
		Colors:      d.Colors,
		Sizes:       d.Sizes,
		Features:    d.Features,
		Rating:      d.Rating,
		Reviews:     d.Reviews,
		CreatedAt:   utc(d.CreatedAt),
		UpdatedAt:   utc(d.UpdatedAt),
		Version:     d.ETag,
	}, nil
}

func decodeProduct(doc store.Document) (*domain.Product, error) {
	var d productDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return d.toDomain()
}

// ProductRepository stores products partitioned by /sellerId. It serves both seller
// edits and settlement decrements.
type ProductRepository struct {
	store store.Store
}

func NewProductRepository(ctx context.Context, s store.Store) (*ProductRepository, error) {
	if err := ensure(ctx, s, ProductsCollection, "/sellerId"); err != nil {
		return nil, err
	}
	return &ProductRepository{store: s}, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	doc, err := encode(newProductDocument(p))
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, ProductsCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create product %s: %w", p.ID, translate(err))
	}
	return decodeProduct(created)
}

func (r *ProductRepository) Get(ctx context.Context, id, sellerID string) (*domain.Product, error) {
	doc, err := r.store.Read(ctx, ProductsCollection, id, sellerID)
	if err != nil {
		return nil, translate(err)
	}
	return decodeProduct(doc)
}

// PartitionKey returns the sellerId owning product id.
func (r *ProductRepository) PartitionKey(ctx context.Context, id string) (string, error) {
	return partitionKeyOf(ctx, r.store, ProductsCollection, id, "sellerId")
}

// List returns the whole catalog with a cross-partition scan.
func (r *ProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	return r.query(ctx, store.Query{})
}

func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	if sellerID == "" {
		return nil, domain.ErrProductSellerRequired
	}
	return r.query(ctx, store.Query{PartitionKey: sellerID})
}

func (r *ProductRepository) query(ctx context.Context, q store.Query) ([]*domain.Product, error) {
	docs, err := r.store.Query(ctx, ProductsCollection, q)
	if err != nil {
		return nil, translate(err)
	}
	products := make([]*domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Update replaces the product, conditional on p.Version when it is set.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	doc, err := encode(newProductDocument(p))
	if err != nil {
		return nil, err
	}
	var opts []store.ReplaceOption
	if p.Version != "" {
		opts = append(opts, store.IfMatch(p.Version))
	}
	replaced, err := r.store.Replace(ctx, ProductsCollection, p.ID, p.SellerID, doc, opts...)
	if err != nil {
		return nil, translate(err)
	}
	return decodeProduct(replaced)
}

// AddReview appends reviewID and stores the recomputed rating in one patch.
func (r *ProductRepository) AddReview(ctx context.Context, id, sellerID, reviewID string, rating float64) (*domain.Product, error) {
	doc, err := r.store.Patch(ctx, ProductsCollection, id, sellerID, []store.PatchOp{
		store.Append("/reviews", reviewID),
		store.Set("/rating", rating),
		store.Set("/updatedAt", time.Now().UTC()),
	})
	if err != nil {
		return nil, translate(err)
	}
	return decodeProduct(doc)
}

func (r *ProductRepository) Delete(ctx context.Context, id, sellerID string) (bool, error) {
	ok, err := r.store.Delete(ctx, ProductsCollection, id, sellerID)
	return ok, translate(err)
}
