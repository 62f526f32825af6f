package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	return parameters
}

func seededCart(t *testing.T, f *fixture) *CartService {
	t.Helper()
	svc := f.cartService()
	ctx := context.Background()
	_, err := svc.CreateCart(ctx, "u1")
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := svc.AddItem(ctx, "u1", domain.CartItem{
			ProductID: fmt.Sprintf("p-%d", i),
			SellerID:  "s1",
			Quantity:  i,
			Price:     dec("2.50"),
		})
		require.NoError(t, err)
	}
	return svc
}

func TestProperty_UpdateQuantityNonPositiveNeverMutates(t *testing.T) {
	f := newFixture(t)
	svc := seededCart(t, f)
	ctx := context.Background()
	before, err := svc.GetCartByUserID(ctx, "u1")
	require.NoError(t, err)

	properties := gopter.NewProperties(propertyParameters())
	properties.Property("quantity <= 0 is rejected and the cart is untouched", prop.ForAll(
		func(quantity int, line int) bool {
			_, err := svc.UpdateQuantity(ctx, "u1", fmt.Sprintf("p-%d", line), quantity)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				return false
			}
			after, err := svc.GetCartByUserID(ctx, "u1")
			return err == nil && after.Version == before.Version && len(after.Items) == len(before.Items)
		},
		gen.IntRange(-1000, 0),
		gen.IntRange(1, 3),
	))
	properties.TestingRun(t)
}

func TestProperty_RemoveAbsentItemLeavesCartUnchanged(t *testing.T) {
	f := newFixture(t)
	svc := seededCart(t, f)
	ctx := context.Background()
	before, err := svc.GetCartByUserID(ctx, "u1")
	require.NoError(t, err)

	properties := gopter.NewProperties(propertyParameters())
	// identifiers never contain '-', so they never name a seeded line
	properties.Property("removing an absent product is NotFound and changes nothing", prop.ForAll(
		func(productID string) bool {
			_, err := svc.RemoveItem(ctx, "u1", productID)
			if !errors.Is(err, domain.ErrNotFound) {
				return false
			}
			after, err := svc.GetCartByUserID(ctx, "u1")
			if err != nil || after.Version != before.Version || len(after.Items) != len(before.Items) {
				return false
			}
			for i := range after.Items {
				if after.Items[i].ProductID != before.Items[i].ProductID || after.Items[i].Quantity != before.Items[i].Quantity {
					return false
				}
			}
			return true
		},
		gen.Identifier(),
	))
	properties.TestingRun(t)
}

func TestProperty_SettlementAppliesPrefixOnly(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	properties.Property("lines before the first short line are decremented, the rest untouched", prop.ForAll(
		func(stocks []int, quantities []int) bool {
			f := newFixture(t)
			ctx := context.Background()
			lines := make([]domain.OrderedProduct, len(stocks))
			for i := range stocks {
				id := fmt.Sprintf("p%d", i)
				f.addProduct(t, id, "s1", stocks[i], "1")
				lines[i] = domain.OrderedProduct{ProductID: id, SellerID: "s1", Price: dec("1"), PurchasedQuantity: quantities[i]}
			}
			order := &domain.Order{ID: "o1", SellerID: "s1", BuyerID: "b1", Products: lines}

			failAt := len(stocks)
			for i := range stocks {
				if quantities[i] > stocks[i] {
					failAt = i
					break
				}
			}

			report, err := NewSettler(f.products, f.log, nil).Settle(ctx, order)
			if (failAt < len(stocks)) != (err != nil) {
				return false
			}
			if len(report.Succeeded) != failAt {
				return false
			}
			for i := range stocks {
				want := stocks[i]
				if i < failAt {
					want -= quantities[i]
				}
				if f.stock(t, fmt.Sprintf("p%d", i), "s1") != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(0, 6)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
	))
	properties.TestingRun(t)
}

func TestProperty_SettlementIsNotIdempotent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	properties.Property("settling twice decrements twice", prop.ForAll(
		func(quantity int) bool {
			f := newFixture(t)
			ctx := context.Background()
			f.addProduct(t, "p1", "s1", 2*quantity, "1")
			order := &domain.Order{ID: "o1", SellerID: "s1", BuyerID: "b1", Products: []domain.OrderedProduct{
				{ProductID: "p1", SellerID: "s1", Price: dec("1"), PurchasedQuantity: quantity},
			}}
			settler := NewSettler(f.products, f.log, nil)
			if _, err := settler.Settle(ctx, order); err != nil {
				return false
			}
			if _, err := settler.Settle(ctx, order); err != nil {
				return false
			}
			return f.stock(t, "p1", "s1") == 0
		},
		gen.IntRange(1, 50),
	))
	properties.TestingRun(t)
}
