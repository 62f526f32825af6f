package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	reviews *service.ReviewService
	log     *zap.Logger
	timeout time.Duration
}

func NewReviewHandler(reviews *service.ReviewService, log *zap.Logger, timeout time.Duration) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, log: log, timeout: orDefault(timeout)}
}

type ReviewRequest struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// CreateReview handles POST /api/v1/reviews. The author is the caller.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rv, err := h.reviews.CreateReview(ctx, &domain.Review{
		ProductID: req.ProductID,
		UserID:    identity(r).Email,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, rv)
}

// ListByProduct handles GET /api/v1/reviews/products/{productID}
func (h *ReviewHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reviews, err := h.reviews.GetReviewsByProductID(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if reviews == nil {
		reviews = []*domain.Review{}
	}
	respondJSON(w, http.StatusOK, reviews)
}

// DeleteReview handles DELETE /api/v1/reviews/{reviewID}/products/{productID}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deleted, err := h.reviews.DeleteReview(ctx, chi.URLParam(r, "reviewID"), chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "not_found", "review not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UserHandler struct {
	users   *service.UserService
	log     *zap.Logger
	timeout time.Duration
}

func NewUserHandler(users *service.UserService, log *zap.Logger, timeout time.Duration) *UserHandler {
	return &UserHandler{users: users, log: log, timeout: orDefault(timeout)}
}

type RegisterUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

type VerifyCredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, err := h.users.Register(ctx, service.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /api/v1/users/{email}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !allowSelf(w, r, normalized) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, err := h.users.GetUser(ctx, normalized)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// VerifyCredentials handles POST /api/v1/users/credentials/verify. The identity
// provider calls it before issuing a token.
func (h *UserHandler) VerifyCredentials(w http.ResponseWriter, r *http.Request) {
	var req VerifyCredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, err := h.users.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

type LinkHandler struct {
	links   *service.LinkService
	log     *zap.Logger
	timeout time.Duration
}

func NewLinkHandler(links *service.LinkService, log *zap.Logger, timeout time.Duration) *LinkHandler {
	return &LinkHandler{links: links, log: log, timeout: orDefault(timeout)}
}

type CreateLinkRequest struct {
	Code   string `json:"code"`
	Target string `json:"target"`
}

// CreateLink handles POST /api/v1/links
func (h *LinkHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	l, err := h.links.CreateLink(ctx, req.Code, req.Target)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

// Redirect handles GET /l/{code}
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	target, err := h.links.Resolve(ctx, chi.URLParam(r, "code"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
