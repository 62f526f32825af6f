package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments *service.PaymentService
	log      *zap.Logger
	timeout  time.Duration
}

func NewPaymentHandler(payments *service.PaymentService, log *zap.Logger, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log, timeout: orDefault(timeout)}
}

type CreatePaymentRequest struct {
	OrderID string               `json:"orderId"`
	Amount  decimal.Decimal      `json:"amount"`
	Method  string               `json:"paymentMethod"`
	Billing domain.BillingInfo   `json:"billing"`
	Card    *domain.CardSnapshot `json:"card,omitempty"`
}

// PaymentStatusResponse is returned when the status change was committed but the
// follow-up settlement was not.
type PaymentStatusResponse struct {
	Payment *domain.Payment `json:"payment"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// CreatePayment handles POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.payments.CreatePayment(ctx, service.CreatePaymentRequest{
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Method:  req.Method,
		Billing: req.Billing,
		Card:    req.Card,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetPayment handles GET /api/v1/payments/{paymentID}/orders/{orderID}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.payments.GetPayment(ctx, chi.URLParam(r, "paymentID"), chi.URLParam(r, "orderID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// ListByOrder handles GET /api/v1/payments/orders/{orderID}
func (h *PaymentHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payments, err := h.payments.GetPaymentsByOrderID(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

// UpdateStatus handles PUT /api/v1/payments/{paymentID}/orders/{orderID}/status
func (h *PaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParsePaymentStatus(req.Status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.payments.UpdatePaymentStatus(ctx, chi.URLParam(r, "paymentID"), chi.URLParam(r, "orderID"), status)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, p)
	case p != nil:
		code, name := classify(err)
		msg := err.Error()
		if code >= http.StatusInternalServerError {
			msg = http.StatusText(code)
		}
		logger.FromContext(r.Context(), h.log).Warn("payment_settlement_incomplete",
			zap.String("payment_id", p.ID),
			zap.String("order_id", p.OrderID),
			zap.Error(err))
		respondJSON(w, code, PaymentStatusResponse{Payment: p, Error: msg, Code: name})
	default:
		handleError(w, r, h.log, err)
	}
}
