package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts   *service.CartService
	log     *zap.Logger
	timeout time.Duration
}

func NewCartHandler(carts *service.CartService, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, log: log, timeout: orDefault(timeout)}
}

type AddItemRequest struct {
	ProductID string          `json:"productId"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	*domain.Cart
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	items := 0
	for _, it := range c.Items {
		items += it.Quantity
	}
	return CartResponse{Cart: c, TotalItems: items, TotalPrice: c.Total()}
}

// CreateCart handles POST /api/v1/carts/users/{userID}
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.CreateCart(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(cart))
}

// GetCartByUser handles GET /api/v1/carts/users/{userID}
func (h *CartHandler) GetCartByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCartByUserID(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if cart == nil {
		respondError(w, http.StatusNotFound, "not_found", "cart not found")
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// GetCart handles GET /api/v1/carts/{cartID}/users/{userID}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cartID"), userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// AddItem handles POST /api/v1/carts/users/{userID}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	var req AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.AddItem(ctx, userID, domain.CartItem{
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
		Quantity:  req.Quantity,
		Price:     req.Price,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// UpdateQuantity handles PUT /api/v1/carts/users/{userID}/items/{productID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	var req UpdateQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.UpdateQuantity(ctx, userID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// RemoveItem handles DELETE /api/v1/carts/users/{userID}/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, userID, chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}

// ClearItems handles DELETE /api/v1/carts/users/{userID}/items
func (h *CartHandler) ClearItems(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !allowSelf(w, r, userID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.ClearItems(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart))
}
