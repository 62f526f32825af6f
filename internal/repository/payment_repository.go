package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type billingDocument struct {
	Name            string `bson:"name"`
	Email           string `bson:"email"`
	BillingAddress  string `bson:"billingAddress,omitempty"`
	ShippingAddress string `bson:"shippingAddress,omitempty"`
}

type cardDocument struct {
	Brand    string `bson:"brand,omitempty"`
	Last4    string `bson:"last4"`
	ExpMonth int    `bson:"expMonth"`
	ExpYear  int    `bson:"expYear"`
}

type settlementDocument struct {
	Status          string   `bson:"status,omitempty"`
	Succeeded       []string `bson:"succeeded,omitempty"`
	FailedProductID string   `bson:"failedProductId,omitempty"`
	Reason          string   `bson:"reason,omitempty"`
}

type paymentDocument struct {
	ID            string             `bson:"_id"`
	ETag          string             `bson:"_etag,omitempty"`
	OrderID       string             `bson:"orderId"`
	Amount        string             `bson:"amount"`
	Status        string             `bson:"status"`
	PaymentMethod string             `bson:"paymentMethod"`
	Billing       billingDocument    `bson:"billing"`
	Card          *cardDocument      `bson:"card,omitempty"`
	Settlement    settlementDocument `bson:"settlement"`
	CreatedAt     time.Time          `bson:"createdAt"`
	PaidAt        time.Time          `bson:"paidAt,omitempty"`
}

func newPaymentDocument(p *domain.Payment) paymentDocument {
	d := paymentDocument{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        moneyString(p.Amount),
		Status:        string(p.Status),
		PaymentMethod: p.PaymentMethod,
		Billing: billingDocument{
			Name:            p.Billing.Name,
			Email:           p.Billing.Email,
			BillingAddress:  p.Billing.BillingAddress,
			ShippingAddress: p.Billing.ShippingAddress,
		},
		Settlement: settlementDocument{
			Status:          string(p.Settlement.Status),
			Succeeded:       p.Settlement.Succeeded,
			FailedProductID: p.Settlement.FailedProductID,
			Reason:          p.Settlement.Reason,
		},
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}
	if p.Card != nil {
		d.Card = &cardDocument{
			Brand:    p.Card.Brand,
			Last4:    p.Card.Last4,
			ExpMonth: p.Card.ExpMonth,
			ExpYear:  p.Card.ExpYear,
		}
	}
	return d
}

func (d paymentDocument) toDomain() (*domain.Payment, error) {
	status, err := domain.ParsePaymentStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: payment %s: %w", domain.ErrStoreRead, d.ID, err)
	}
	amount, err := parseMoney(d.Amount)
	if err != nil {
		return nil, err
	}
	p := &domain.Payment{
		ID:            d.ID,
		OrderID:       d.OrderID,
		Amount:        amount,
		Status:        status,
		PaymentMethod: d.PaymentMethod,
		Billing: domain.BillingInfo{
			Name:            d.Billing.Name,
			Email:           d.Billing.Email,
			BillingAddress:  d.Billing.BillingAddress,
			ShippingAddress: d.Billing.ShippingAddress,
		},
		Settlement: domain.SettlementState{
			Status:          domain.SettlementStatus(d.Settlement.Status),
			Succeeded:       d.Settlement.Succeeded,
			FailedProductID: d.Settlement.FailedProductID,
			Reason:          d.Settlement.Reason,
		},
		CreatedAt: utc(d.CreatedAt),
		PaidAt:    utc(d.PaidAt),
		Version:   d.ETag,
	}
	if d.Card != nil {
		p.Card = &domain.CardSnapshot{
			Brand:    d.Card.Brand,
			Last4:    d.Card.Last4,
			ExpMonth: d.Card.ExpMonth,
			ExpYear:  d.Card.ExpYear,
		}
	}
	return p, nil
}

func decodePayment(doc store.Document) (*domain.Payment, error) {
	var d paymentDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return d.toDomain()
}

// PaymentRepository stores payments partitioned by /orderId.
type PaymentRepository struct {
	store store.Store
}

func NewPaymentRepository(ctx context.Context, s store.Store) (*PaymentRepository, error) {
	if err := ensure(ctx, s, PaymentsCollection, "/orderId"); err != nil {
		return nil, err
	}
	return &PaymentRepository{store: s}, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	doc, err := encode(newPaymentDocument(p))
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, PaymentsCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create payment %s: %w", p.ID, translate(err))
	}
	return decodePayment(created)
}

func (r *PaymentRepository) Get(ctx context.Context, id, orderID string) (*domain.Payment, error) {
	doc, err := r.store.Read(ctx, PaymentsCollection, id, orderID)
	if err != nil {
		return nil, translate(err)
	}
	return decodePayment(doc)
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	if orderID == "" {
		return nil, domain.ErrPaymentOrderRequired
	}
	docs, err := r.store.Query(ctx, PaymentsCollection, store.Query{PartitionKey: orderID})
	if err != nil {
		return nil, translate(err)
	}
	payments := make([]*domain.Payment, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePayment(doc)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// Update replaces the payment, conditional on p.Version when it is set.
func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	doc, err := encode(newPaymentDocument(p))
	if err != nil {
		return nil, err
	}
	var opts []store.ReplaceOption
	if p.Version != "" {
		opts = append(opts, store.IfMatch(p.Version))
	}
	replaced, err := r.store.Replace(ctx, PaymentsCollection, p.ID, p.OrderID, doc, opts...)
	if err != nil {
		return nil, translate(err)
	}
	return decodePayment(replaced)
}
