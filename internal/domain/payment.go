package domain

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
}

// SettlementStatus records what happened to stock after a payment was marked paid.
type SettlementStatus string

const (
	SettlementNone    SettlementStatus = ""
	SettlementSettled SettlementStatus = "settled"
	SettlementFailed  SettlementStatus = "failed"
)

var (
	ErrPaymentOrderRequired = fmt.Errorf("%w: payment order id is required", ErrInvalidArgument)
	ErrPaymentInvalidAmount = fmt.Errorf("%w: payment amount must be greater than zero", ErrInvalidArgument)
	ErrPaymentNameRequired  = fmt.Errorf("%w: billing name is required", ErrInvalidArgument)
	ErrPaymentInvalidEmail  = fmt.Errorf("%w: billing email is malformed", ErrInvalidArgument)
	ErrPaymentMethodMissing = fmt.Errorf("%w: payment method is required", ErrInvalidArgument)
	ErrUnknownPaymentStatus = fmt.Errorf("%w: unknown payment status", ErrInvalidArgument)
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentStatus, s)
}

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type BillingInfo struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	BillingAddress  string `json:"billingAddress,omitempty"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
}

// CardSnapshot never holds a full card number.
type CardSnapshot struct {
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
}

type SettlementState struct {
	Status          SettlementStatus `json:"status"`
	Succeeded       []string         `json:"succeeded,omitempty"`
	FailedProductID string           `json:"failedProductId,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

type Payment struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	Billing       BillingInfo     `json:"billing"`
	Card          *CardSnapshot   `json:"card,omitempty"`
	Settlement    SettlementState `json:"settlement"`
	CreatedAt     time.Time       `json:"createdAt"`
	PaidAt        time.Time       `json:"paidAt"`

	// Version is the store etag of the last read, used for conditional writes.
	Version string `json:"version,omitempty"`
}

func NewPayment(id, orderID string, amount decimal.Decimal, method string, billing BillingInfo, card *CardSnapshot) (*Payment, error) {
	p := &Payment{
		ID:            id,
		OrderID:       orderID,
		Amount:        amount,
		Status:        PaymentStatusPending,
		PaymentMethod: method,
		Billing:       billing,
		Card:          card,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Now().UTC()
	return p, nil
}

func (p *Payment) Validate() error {
	if p.OrderID == "" {
		return ErrPaymentOrderRequired
	}
	if !p.Amount.IsPositive() {
		return ErrPaymentInvalidAmount
	}
	if p.PaymentMethod == "" {
		return ErrPaymentMethodMissing
	}
	if p.Billing.Name == "" {
		return ErrPaymentNameRequired
	}
	if _, err := mail.ParseAddress(p.Billing.Email); err != nil {
		return ErrPaymentInvalidEmail
	}
	return nil
}

// TransitionTo applies next and refreshes PaidAt. A repeated status is a no-op and
// reports false.
func (p *Payment) TransitionTo(next PaymentStatus) (bool, error) {
	if p.Status == next {
		return false, nil
	}
	if !p.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: payment %s cannot move from %s to %s", ErrInvalidTransition, p.ID, p.Status, next)
	}
	p.Status = next
	p.PaidAt = time.Now().UTC()
	return true, nil
}
