package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	ETag         string    `bson:"_etag,omitempty"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// UserRepository stores users partitioned by /email; the email is also the id.
type UserRepository struct {
	store store.Store
}

func NewUserRepository(ctx context.Context, s store.Store) (*UserRepository, error) {
	if err := ensure(ctx, s, UsersCollection, "/email"); err != nil {
		return nil, err
	}
	return &UserRepository{store: s}, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	doc, err := encode(userDocument{
		ID:           u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, UsersCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", u.Email, translate(err))
	}
	return decodeUser(created)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := r.store.Read(ctx, UsersCollection, email, email)
	if err != nil {
		return nil, translate(err)
	}
	return decodeUser(doc)
}

func decodeUser(doc store.Document) (*domain.User, error) {
	var d userDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %w", domain.ErrStoreRead, d.ID, err)
	}
	return &domain.User{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         role,
		CreatedAt:    utc(d.CreatedAt),
	}, nil
}
