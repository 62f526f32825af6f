package domain

import (
	"fmt"
	"time"
)

const (
	MinRating = 0
	MaxRating = 5
)

var (
	ErrReviewProductRequired = fmt.Errorf("%w: review product id is required", ErrInvalidArgument)
	ErrReviewUserRequired    = fmt.Errorf("%w: review user id is required", ErrInvalidArgument)
	ErrReviewInvalidRating   = fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidArgument, MinRating, MaxRating)
)

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Review) Validate() error {
	if r.ProductID == "" {
		return ErrReviewProductRequired
	}
	if r.UserID == "" {
		return ErrReviewUserRequired
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ErrReviewInvalidRating
	}
	return nil
}
