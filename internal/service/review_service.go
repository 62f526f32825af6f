package service

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewService struct {
	reviews  ReviewRepository
	products ProductRepository
	log      *zap.Logger
}

func NewReviewService(reviews ReviewRepository, products ProductRepository, log *zap.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, products: products, log: log}
}

// CreateReview stores the review and links it to the product together with the
// recomputed average rating.
func (s *ReviewService) CreateReview(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	sellerID, err := s.products.PartitionKey(ctx, r.ProductID)
	if err != nil {
		return nil, err
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()

	created, err := s.reviews.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	rating, err := s.averageRating(ctx, r.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.AddReview(ctx, r.ProductID, sellerID, created.ID, rating); err != nil {
		logger.FromContext(ctx, s.log).Error("review_link_failed",
			zap.String("review_id", created.ID),
			zap.String("product_id", r.ProductID),
			zap.Error(err))
		return nil, err
	}
	return created, nil
}

func (s *ReviewService) GetReviewsByProductID(ctx context.Context, productID string) ([]*domain.Review, error) {
	return s.reviews.ListByProduct(ctx, productID)
}

// DeleteReview removes the review and unlinks it from its product.
func (s *ReviewService) DeleteReview(ctx context.Context, id, productID string) (bool, error) {
	if productID == "" {
		return false, domain.ErrReviewProductRequired
	}
	ok, err := s.reviews.Delete(ctx, id, productID)
	if err != nil || !ok {
		return ok, err
	}

	sellerID, err := s.products.PartitionKey(ctx, productID)
	if err != nil {
		return true, err
	}
	product, err := s.products.Get(ctx, productID, sellerID)
	if err != nil {
		return true, err
	}
	kept := make([]string, 0, len(product.Reviews))
	for _, rid := range product.Reviews {
		if rid != id {
			kept = append(kept, rid)
		}
	}
	rating, err := s.averageRating(ctx, productID)
	if err != nil {
		return true, err
	}
	product.Reviews = kept
	product.Rating = rating
	product.UpdatedAt = time.Now().UTC()
	if _, err := s.products.Update(ctx, product); err != nil {
		return true, err
	}
	return true, nil
}

func (s *ReviewService) averageRating(ctx context.Context, productID string) (float64, error) {
	reviews, err := s.reviews.ListByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if len(reviews) == 0 {
		return 0, nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), nil
}
