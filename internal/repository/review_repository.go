package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type reviewDocument struct {
	ID        string    `bson:"_id"`
	ETag      string    `bson:"_etag,omitempty"`
	ProductID string    `bson:"productId"`
	UserID    string    `bson:"userId"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

func decodeReview(doc store.Document) (*domain.Review, error) {
	var d reviewDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return &domain.Review{
		ID:        d.ID,
		ProductID: d.ProductID,
		UserID:    d.UserID,
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: utc(d.CreatedAt),
	}, nil
}

// ReviewRepository stores reviews partitioned by /productId.
type ReviewRepository struct {
	store store.Store
}

func NewReviewRepository(ctx context.Context, s store.Store) (*ReviewRepository, error) {
	if err := ensure(ctx, s, ReviewsCollection, "/productId"); err != nil {
		return nil, err
	}
	return &ReviewRepository{store: s}, nil
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	doc, err := encode(reviewDocument{
		ID:        rv.ID,
		ProductID: rv.ProductID,
		UserID:    rv.UserID,
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		CreatedAt: rv.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, ReviewsCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create review %s: %w", rv.ID, translate(err))
	}
	return decodeReview(created)
}

func (r *ReviewRepository) Get(ctx context.Context, id, productID string) (*domain.Review, error) {
	doc, err := r.store.Read(ctx, ReviewsCollection, id, productID)
	if err != nil {
		return nil, translate(err)
	}
	return decodeReview(doc)
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Review, error) {
	if productID == "" {
		return nil, domain.ErrReviewProductRequired
	}
	return r.query(ctx, store.Query{PartitionKey: productID})
}

func (r *ReviewRepository) query(ctx context.Context, q store.Query) ([]*domain.Review, error) {
	docs, err := r.store.Query(ctx, ReviewsCollection, q)
	if err != nil {
		return nil, translate(err)
	}
	reviews := make([]*domain.Review, 0, len(docs))
	for _, doc := range docs {
		rv, err := decodeReview(doc)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id, productID string) (bool, error) {
	ok, err := r.store.Delete(ctx, ReviewsCollection, id, productID)
	return ok, translate(err)
}
