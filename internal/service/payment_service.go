package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreatePaymentRequest struct {
	OrderID string
	Amount  decimal.Decimal
	Method  string
	Billing domain.BillingInfo
	Card    *domain.CardSnapshot
}

type PaymentService struct {
	payments  PaymentRepository
	orders    OrderRepository
	settler   *Settler
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewPaymentService(payments PaymentRepository, orders OrderRepository, settler *Settler, publisher events.Publisher, log *zap.Logger, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		payments:  payments,
		orders:    orders,
		settler:   settler,
		publisher: publisher,
		log:       log,
		metrics:   m,
	}
}

func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error) {
	p, err := domain.NewPayment(uuid.NewString(), req.OrderID, req.Amount, req.Method, req.Billing, req.Card)
	if err != nil {
		return nil, err
	}
	if _, err := s.orders.PartitionKey(ctx, req.OrderID); err != nil {
		return nil, fmt.Errorf("payment for order %s: %w", req.OrderID, err)
	}
	created, err := s.payments.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("payment_created",
		zap.String("payment_id", created.ID),
		zap.String("order_id", created.OrderID),
		zap.String("amount", created.Amount.String()))
	return created, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id, orderID string) (*domain.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrPaymentOrderRequired
	}
	return s.payments.Get(ctx, id, orderID)
}

// GetPaymentsByOrderID follows the list policy of orders: no payments is ErrNotFound.
func (s *PaymentService) GetPaymentsByOrderID(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrPaymentOrderRequired
	}
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("%w: no payments for order %s", domain.ErrNotFound, orderID)
	}
	return payments, nil
}

// UpdatePaymentStatus commits the new status first. When the payment becomes paid it
// then settles stock for the order and records the outcome on the payment. A failed
// settlement is returned as *SettlementError together with the paid payment.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, id, orderID string, status domain.PaymentStatus) (*domain.Payment, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("payment_id", id), zap.String("order_id", orderID))

	p, err := s.GetPayment(ctx, id, orderID)
	if err != nil {
		return nil, err
	}
	from := p.Status
	changed, err := p.TransitionTo(status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}
	updated, err := s.payments.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("payment", string(status))
	log.Info("payment_status_changed", zap.String("from", string(from)), zap.String("to", string(status)))
	s.publish(ctx, events.New(events.TypePaymentStatusChanged, updated.OrderID, map[string]string{
		"paymentId": updated.ID,
		"orderId":   updated.OrderID,
		"from":      string(from),
		"to":        string(status),
	}))

	if status != domain.PaymentStatusPaid {
		return updated, nil
	}
	return s.settle(ctx, updated)
}

func (s *PaymentService) settle(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("payment_id", p.ID), zap.String("order_id", p.OrderID))

	var (
		report    SettlementReport
		settleErr error
	)
	order, err := s.order(ctx, p.OrderID)
	if err != nil {
		report = SettlementReport{Err: err}
		settleErr = &SettlementError{OrderID: p.OrderID, Report: report}
	} else {
		report, settleErr = s.settler.Settle(ctx, order)
	}

	p.Settlement = report.State()
	saved, err := s.payments.Update(ctx, p)
	if err != nil {
		log.Error("settlement_record_failed", zap.Error(err))
		return p, errors.Join(settleErr, fmt.Errorf("record settlement of payment %s: %w", p.ID, err))
	}
	if settleErr == nil {
		s.publish(ctx, events.New(events.TypeStockSettled, p.OrderID, map[string]any{
			"paymentId": p.ID,
			"orderId":   p.OrderID,
			"products":  report.Succeeded,
		}))
	}
	return saved, settleErr
}

func (s *PaymentService) order(ctx context.Context, orderID string) (*domain.Order, error) {
	buyerID, err := s.orders.PartitionKey(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, orderID, buyerID)
}

func (s *PaymentService) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		logger.FromContext(ctx, s.log).Warn("event_publish_failed", zap.Error(err))
	}
}
