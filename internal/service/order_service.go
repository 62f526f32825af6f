package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderService struct {
	orders    OrderRepository
	carts     CartRepository
	products  ProductRepository
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewOrderService(orders OrderRepository, carts CartRepository, products ProductRepository, publisher events.Publisher, log *zap.Logger, m *metrics.Metrics) *OrderService {
	return &OrderService{
		orders:    orders,
		carts:     carts,
		products:  products,
		publisher: publisher,
		log:       log,
		metrics:   m,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, sellerID, buyerID string, products []domain.OrderedProduct, total decimal.Decimal) (*domain.Order, error) {
	o, err := domain.NewOrder(uuid.NewString(), sellerID, buyerID, products, total)
	if err != nil {
		return nil, err
	}
	created, err := s.orders.Create(ctx, o)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("order_created",
		zap.String("order_id", created.ID),
		zap.String("buyer_id", buyerID),
		zap.String("seller_id", sellerID),
		zap.String("total", created.TotalAmount.String()))
	s.publish(ctx, orderCreated(created))
	return created, nil
}

// Checkout turns the user's cart into one pending order per seller, priced from the
// current catalog, and then empties the cart. Orders already created stay in place if
// a later seller's order fails.
func (s *OrderService) Checkout(ctx context.Context, userID string) ([]*domain.Order, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("user_id", userID))

	cart, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	var sellers []string
	lines := make(map[string][]domain.OrderedProduct)
	for _, item := range cart.Items {
		product, err := s.resolveProduct(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("checkout product %s: %w", item.ProductID, err)
		}
		if _, ok := lines[product.SellerID]; !ok {
			sellers = append(sellers, product.SellerID)
		}
		lines[product.SellerID] = append(lines[product.SellerID], domain.OrderedProduct{
			ProductID:         product.ID,
			SellerID:          product.SellerID,
			Name:              product.Name,
			Price:             product.Price,
			PurchasedQuantity: item.Quantity,
		})
	}

	orders := make([]*domain.Order, 0, len(sellers))
	for _, sellerID := range sellers {
		total := decimal.Zero
		for _, line := range lines[sellerID] {
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.PurchasedQuantity))))
		}
		o, err := domain.NewOrder(uuid.NewString(), sellerID, userID, lines[sellerID], total)
		if err != nil {
			return orders, err
		}
		created, err := s.orders.Create(ctx, o)
		if err != nil {
			log.Error("checkout_order_failed", zap.String("seller_id", sellerID), zap.Int("created", len(orders)), zap.Error(err))
			return orders, err
		}
		orders = append(orders, created)
	}

	if _, err := s.carts.ClearItems(ctx, cart.ID, userID, time.Now().UTC()); err != nil {
		log.Warn("checkout_clear_cart_failed", zap.String("cart_id", cart.ID), zap.Error(err))
	}

	evs := make([]events.Event, 0, len(orders))
	for _, o := range orders {
		evs = append(evs, orderCreated(o))
	}
	s.publish(ctx, evs...)
	log.Info("checkout_completed", zap.Int("orders", len(orders)))
	return orders, nil
}

// resolveProduct reads the current product for a cart line. Lines written without a
// seller id are located with a cross-partition lookup.
func (s *OrderService) resolveProduct(ctx context.Context, item domain.CartItem) (*domain.Product, error) {
	sellerID := item.SellerID
	if sellerID == "" {
		pk, err := s.products.PartitionKey(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		sellerID = pk
	}
	return s.products.Get(ctx, item.ProductID, sellerID)
}

func (s *OrderService) GetOrder(ctx context.Context, id, buyerID string) (*domain.Order, error) {
	if buyerID == "" {
		return nil, domain.ErrOrderBuyerRequired
	}
	return s.orders.Get(ctx, id, buyerID)
}

// GetOrderPartitionKey returns the buyer id needed to address order id.
func (s *OrderService) GetOrderPartitionKey(ctx context.Context, id string) (string, error) {
	return s.orders.PartitionKey(ctx, id)
}

func (s *OrderService) GetOrdersByBuyerID(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return nonEmpty(s.orders.ListByBuyer(ctx, buyerID))
}

func (s *OrderService) GetOrdersBySellerID(ctx context.Context, sellerID string) ([]*domain.Order, error) {
	return nonEmpty(s.orders.ListBySeller(ctx, sellerID))
}

// GetOrdersByProductID returns every order with a line for productID.
func (s *OrderService) GetOrdersByProductID(ctx context.Context, productID string) ([]*domain.Order, error) {
	orders, err := s.orders.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	matched := orders[:0]
	for _, o := range orders {
		if o.ContainsProduct(productID) {
			matched = append(matched, o)
		}
	}
	return nonEmpty(matched, nil)
}

// UpdateOrderStatus applies one legal transition. Repeating the current status
// returns the order unchanged. A concurrent status change yields domain.ErrConflict.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, buyerID string, status domain.OrderStatus) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, id, buyerID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	changed, err := o.TransitionTo(status)
	if err != nil {
		return nil, err
	}
	if !changed {
		return o, nil
	}
	updated, err := s.orders.Update(ctx, o)
	if err != nil {
		return nil, err
	}
	s.metrics.Transition("order", string(status))
	logger.FromContext(ctx, s.log).Info("order_status_changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)))
	s.publish(ctx, events.New(events.TypeOrderStatusChanged, updated.ID, map[string]string{
		"orderId": updated.ID,
		"buyerId": updated.BuyerID,
		"from":    string(from),
		"to":      string(status),
	}))
	return updated, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id, buyerID string) (bool, error) {
	if buyerID == "" {
		return false, domain.ErrOrderBuyerRequired
	}
	return s.orders.Delete(ctx, id, buyerID)
}

func (s *OrderService) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		logger.FromContext(ctx, s.log).Warn("event_publish_failed", zap.Error(err))
	}
}

func orderCreated(o *domain.Order) events.Event {
	ids := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		ids = append(ids, p.ProductID)
	}
	return events.New(events.TypeOrderCreated, o.ID, map[string]any{
		"orderId":     o.ID,
		"buyerId":     o.BuyerID,
		"sellerId":    o.SellerID,
		"totalAmount": o.TotalAmount.String(),
		"products":    ids,
	})
}

// nonEmpty keeps the long-standing contract that an empty listing is ErrNotFound.
func nonEmpty(orders []*domain.Order, err error) ([]*domain.Order, error) {
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders, nil
}
