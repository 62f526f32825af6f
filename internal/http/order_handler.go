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

type OrderHandler struct {
	orders  *service.OrderService
	log     *zap.Logger
	timeout time.Duration
}

func NewOrderHandler(orders *service.OrderService, log *zap.Logger, timeout time.Duration) *OrderHandler {
	return &OrderHandler{orders: orders, log: log, timeout: orDefault(timeout)}
}

type CreateOrderRequest struct {
	SellerID    string                  `json:"sellerId"`
	BuyerID     string                  `json:"buyerId"`
	Products    []domain.OrderedProduct `json:"products"`
	TotalAmount decimal.Decimal         `json:"totalAmount"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// canAccessOrder lets the buyer, the seller and admins through.
func canAccessOrder(w http.ResponseWriter, r *http.Request, o *domain.Order) bool {
	id := identity(r)
	if id.Role == domain.RoleAdmin || id.Email == o.BuyerID || id.Email == o.SellerID {
		return true
	}
	respondError(w, http.StatusForbidden, "forbidden", "order belongs to another user")
	return false
}

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BuyerID == "" {
		req.BuyerID = identity(r).Email
	}
	if !allowSelf(w, r, req.BuyerID) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.CreateOrder(ctx, req.SellerID, req.BuyerID, req.Products, req.TotalAmount)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// Checkout handles POST /api/v1/orders/checkout. It turns the caller's cart into
// one order per seller.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.Checkout(ctx, identity(r).Email)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, orders)
}

// GetPartitionKey handles GET /api/v1/orders/{orderID}/partition-key
func (h *OrderHandler) GetPartitionKey(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "orderID")
	pk, err := h.orders.GetOrderPartitionKey(ctx, id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, PartitionKeyResponse{ID: id, PartitionKey: pk})
}

// GetOrder handles GET /api/v1/orders/{orderID}/buyers/{buyerID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"), chi.URLParam(r, "buyerID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !canAccessOrder(w, r, o) {
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateStatus handles PUT /api/v1/orders/{orderID}/buyers/{buyerID}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, buyerID := chi.URLParam(r, "orderID"), chi.URLParam(r, "buyerID")
	current, err := h.orders.GetOrder(ctx, id, buyerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !canAccessOrder(w, r, current) {
		return
	}
	o, err := h.orders.UpdateOrderStatus(ctx, id, buyerID, status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// DeleteOrder handles DELETE /api/v1/orders/{orderID}/buyers/{buyerID}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deleted, err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID"), chi.URLParam(r, "buyerID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByBuyer handles GET /api/v1/orders/buyers/{buyerID}
func (h *OrderHandler) ListByBuyer(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerID")
	if !allowSelf(w, r, buyerID) {
		return
	}
	h.list(w, r, func(ctx context.Context) ([]*domain.Order, error) {
		return h.orders.GetOrdersByBuyerID(ctx, buyerID)
	})
}

// ListBySeller handles GET /api/v1/orders/sellers/{sellerID}
func (h *OrderHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "sellerID")
	if !allowSelf(w, r, sellerID) {
		return
	}
	h.list(w, r, func(ctx context.Context) ([]*domain.Order, error) {
		return h.orders.GetOrdersBySellerID(ctx, sellerID)
	})
}

// ListByProduct handles GET /api/v1/orders/products/{productID}
func (h *OrderHandler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	h.list(w, r, func(ctx context.Context) ([]*domain.Order, error) {
		return h.orders.GetOrdersByProductID(ctx, productID)
	})
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]*domain.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := fetch(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
