package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"go.uber.org/zap"
)

const defaultSettleRetries = 3

// SettlementReport describes how far a settlement run got. Decrements listed in
// Succeeded stay applied when a later product fails.
type SettlementReport struct {
	Succeeded       []string
	FailedProductID string
	Remaining       []string
	Err             error
}

func (r SettlementReport) State() domain.SettlementState {
	st := domain.SettlementState{
		Status:          domain.SettlementSettled,
		Succeeded:       r.Succeeded,
		FailedProductID: r.FailedProductID,
	}
	if r.Err != nil {
		st.Status = domain.SettlementFailed
		st.Reason = r.Err.Error()
	}
	return st
}

type SettlementError struct {
	OrderID string
	Report  SettlementReport
}

func (e *SettlementError) Error() string {
	if e.Report.FailedProductID == "" {
		return fmt.Sprintf("settle order %s: %v", e.OrderID, e.Report.Err)
	}
	return fmt.Sprintf("settle order %s: product %s: %v", e.OrderID, e.Report.FailedProductID, e.Report.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Report.Err
}

// Settler decrements stock for every line of an order, one product at a time, and
// stops at the first failure without undoing earlier lines. Settling the same order
// twice decrements twice.
type Settler struct {
	products ProductRepository
	log      *zap.Logger
	metrics  *metrics.Metrics
	retries  int
}

func NewSettler(products ProductRepository, log *zap.Logger, m *metrics.Metrics) *Settler {
	return &Settler{
		products: products,
		log:      log,
		metrics:  m,
		retries:  defaultSettleRetries,
	}
}

func (s *Settler) Settle(ctx context.Context, order *domain.Order) (SettlementReport, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("order_id", order.ID))
	var report SettlementReport

	for i, line := range order.Products {
		sellerID := line.SellerID
		if sellerID == "" {
			sellerID = order.SellerID
		}
		if err := s.decrement(ctx, line.ProductID, sellerID, line.PurchasedQuantity); err != nil {
			report.FailedProductID = line.ProductID
			report.Err = err
			for _, rest := range order.Products[i+1:] {
				report.Remaining = append(report.Remaining, rest.ProductID)
			}
			s.metrics.Settlement("failed")
			log.Warn("settlement_failed",
				zap.String("product_id", line.ProductID),
				zap.Strings("succeeded", report.Succeeded),
				zap.Strings("remaining", report.Remaining),
				zap.Error(err))
			return report, &SettlementError{OrderID: order.ID, Report: report}
		}
		report.Succeeded = append(report.Succeeded, line.ProductID)
	}

	s.metrics.Settlement("settled")
	log.Info("settlement_completed", zap.Int("products", len(report.Succeeded)))
	return report, nil
}

// decrement is a guarded read-modify-write on one product. A concurrent writer
// forces a fresh read, so two settlements never lose each other's decrement.
func (s *Settler) decrement(ctx context.Context, productID, sellerID string, quantity int) error {
	for attempt := 0; ; attempt++ {
		current, err := s.products.Get(ctx, productID, sellerID)
		if err != nil {
			return err
		}
		next, err := current.Decrement(quantity)
		if err != nil {
			return err
		}
		_, err = s.products.Update(ctx, &next)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= s.retries {
			return err
		}
	}
}
