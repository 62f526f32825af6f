package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_Register(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.log)
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{FirstName: "A", LastName: "B", Email: "nope", Password: "longenough"}},
		{"short password", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.io", Password: "short"}},
		{"password over 72 bytes", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.io", Password: strings.Repeat("x", 73)}},
		{"no name", RegisterRequest{Email: "a@b.io", Password: "longenough"}},
		{"unknown role", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.io", Password: "longenough", Role: "owner"}},
		{"admin", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.io", Password: "longenough", Role: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	u, err := svc.Register(ctx, RegisterRequest{FirstName: "Ann", LastName: "Lee", Email: " Ann@Example.com ", Password: "correct horse", Role: "seller"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.ID)
	assert.Equal(t, domain.RoleSeller, u.Role)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterRequest{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "another one"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	long, err := svc.Register(ctx, RegisterRequest{FirstName: "Bo", LastName: "Kim", Email: "bo@example.com", Password: strings.Repeat("x", 72)})
	require.NoError(t, err)
	_, err = svc.VerifyCredentials(ctx, long.Email, strings.Repeat("x", 72))
	assert.NoError(t, err)

	got, err := svc.GetUser(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserService_VerifyCredentials(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, f.log)
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "correct horse"})
	require.NoError(t, err)

	u, err := svc.VerifyCredentials(ctx, "ann@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBuyer, u.Role)

	_, err = svc.VerifyCredentials(ctx, "ann@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.VerifyCredentials(ctx, "bob@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestReviewService(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "p1", "s1", 1, "3")
	svc := NewReviewService(f.reviews, f.products, f.log)
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, &domain.Review{ProductID: "p1", UserID: "u1", Rating: 6})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.CreateReview(ctx, &domain.Review{ProductID: "ghost", UserID: "u1", Rating: 3})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := svc.CreateReview(ctx, &domain.Review{ProductID: "p1", UserID: "u1", Rating: 5, Comment: "great"})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, &domain.Review{ProductID: "p1", UserID: "u2", Rating: 2})
	require.NoError(t, err)

	p, err := f.products.Get(ctx, "p1", "s1")
	require.NoError(t, err)
	assert.Len(t, p.Reviews, 2)
	assert.InDelta(t, 3.5, p.Rating, 0.001)

	list, err := svc.GetReviewsByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	deleted, err := svc.DeleteReview(ctx, first.ID, "p1")
	require.NoError(t, err)
	assert.True(t, deleted)

	p, err = f.products.Get(ctx, "p1", "s1")
	require.NoError(t, err)
	assert.Len(t, p.Reviews, 1)
	assert.InDelta(t, 2.0, p.Rating, 0.001)

	deleted, err = svc.DeleteReview(ctx, first.ID, "p1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestLinkService(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewLinkService(f.links, cache.NewRedisCache(client, "links", 600*time.Second), time.Second, f.log, nil)
	ctx := context.Background()

	_, err := svc.CreateLink(ctx, "bad", "ftp://example.com")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	l, err := svc.CreateLink(ctx, "", "/products/p1")
	require.NoError(t, err)
	assert.Len(t, l.Code, linkCodeLength)

	_, err = svc.CreateLink(ctx, l.Code, "/products/p2")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	target, err := svc.Resolve(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, "/products/p1", target)
	assert.Equal(t, 600*time.Second, mr.TTL("links:"+l.Code))

	// served from cache even when the store no longer has it
	_, err = f.store.Delete(ctx, repository.LinksCollection, l.Code, l.Code)
	require.NoError(t, err)
	target, err = svc.Resolve(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, "/products/p1", target)

	_, err = svc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
