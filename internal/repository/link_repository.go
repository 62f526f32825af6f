package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

type linkDocument struct {
	ID        string    `bson:"_id"`
	ETag      string    `bson:"_etag,omitempty"`
	Code      string    `bson:"code"`
	Target    string    `bson:"target"`
	CreatedAt time.Time `bson:"createdAt"`
}

// LinkRepository stores short links; the code is both id and partition key.
type LinkRepository struct {
	store store.Store
}

func NewLinkRepository(ctx context.Context, s store.Store) (*LinkRepository, error) {
	if err := ensure(ctx, s, LinksCollection, "/code"); err != nil {
		return nil, err
	}
	return &LinkRepository{store: s}, nil
}

func (r *LinkRepository) Create(ctx context.Context, l *domain.ShortLink) (*domain.ShortLink, error) {
	doc, err := encode(linkDocument{ID: l.Code, Code: l.Code, Target: l.Target, CreatedAt: l.CreatedAt})
	if err != nil {
		return nil, err
	}
	created, err := r.store.Create(ctx, LinksCollection, doc)
	if err != nil {
		return nil, fmt.Errorf("create link %s: %w", l.Code, translate(err))
	}
	return decodeLink(created)
}

func (r *LinkRepository) Get(ctx context.Context, code string) (*domain.ShortLink, error) {
	doc, err := r.store.Read(ctx, LinksCollection, code, code)
	if err != nil {
		return nil, translate(err)
	}
	return decodeLink(doc)
}

func decodeLink(doc store.Document) (*domain.ShortLink, error) {
	var d linkDocument
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return &domain.ShortLink{Code: d.Code, Target: d.Target, CreatedAt: utc(d.CreatedAt)}, nil
}
