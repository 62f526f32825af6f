// Package repository maps domain entities onto partitioned store collections.
// Each repository owns one collection and its partition-key path.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	CartsCollection    = "carts"
	OrdersCollection   = "orders"
	PaymentsCollection = "payments"
	ProductsCollection = "products"
	ReviewsCollection  = "reviews"
	UsersCollection    = "users"
	LinksCollection    = "links"
)

// translate maps store failures onto domain error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.ErrAlreadyExists
	case errors.Is(err, store.ErrPreconditionFailed):
		return domain.ErrConflict
	case errors.Is(err, store.ErrMissingPartitionKey),
		errors.Is(err, store.ErrPartitionMismatch),
		errors.Is(err, store.ErrMissingID),
		errors.Is(err, store.ErrInvalidPatch):
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	case errors.Is(err, store.ErrRead):
		return fmt.Errorf("%w: %w", domain.ErrStoreRead, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStoreWrite, err)
	}
}

func ensure(ctx context.Context, s store.Store, collection, partitionKeyPath string) error {
	if err := s.EnsureCollection(ctx, collection, partitionKeyPath); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, translate(err))
	}
	return nil
}

func encode(v any) (store.Document, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode document: %w", domain.ErrStoreWrite, err)
	}
	var doc store.Document
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: encode document: %w", domain.ErrStoreWrite, err)
	}
	return doc, nil
}

func decode(doc store.Document, v any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: decode document: %w", domain.ErrStoreRead, err)
	}
	if err := bson.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode document: %w", domain.ErrStoreRead, err)
	}
	return nil
}

// partitionKeyOf resolves the partition-key value of a document given only its id.
// It is a cross-partition query.
func partitionKeyOf(ctx context.Context, s store.Store, collection, id, field string) (string, error) {
	docs, err := s.Query(ctx, collection, store.Query{
		Conditions: []store.Condition{{Path: "/" + store.IDField, Value: id}},
	})
	if err != nil {
		return "", translate(err)
	}
	if len(docs) == 0 {
		return "", domain.ErrNotFound
	}
	pk, _ := docs[0][field].(string)
	return pk, nil
}

// money values are stored as decimal strings so no precision is lost in transit.
func moneyString(d decimal.Decimal) string {
	return d.String()
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: malformed amount %q: %w", domain.ErrStoreRead, s, err)
	}
	return d, nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
