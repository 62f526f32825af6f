package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type item struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
}

type cartDoc struct {
	ID     string `bson:"_id"`
	ETag   string `bson:"_etag,omitempty"`
	UserID string `bson:"userId"`
	Items  []item `bson:"items"`
	Note   string `bson:"note,omitempty"`
}

func toDoc(t *testing.T, v any) Document {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func fromDoc(t *testing.T, doc Document) cartDoc {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var c cartDoc
	require.NoError(t, bson.Unmarshal(raw, &c))
	return c
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	setup := func(t *testing.T) Store {
		s := newStore(t)
		require.NoError(t, s.EnsureCollection(ctx, "carts", "/userId"))
		require.NoError(t, s.EnsureCollection(ctx, "carts", "/userId"))
		return s
	}

	t.Run("create and read", func(t *testing.T) {
		s := setup(t)
		created, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{}}))
		require.NoError(t, err)
		assert.NotEmpty(t, created[ETagField])

		got, err := s.Read(ctx, "carts", "c1", "u1")
		require.NoError(t, err)
		c := fromDoc(t, got)
		assert.Equal(t, "u1", c.UserID)
		assert.Equal(t, created[ETagField], got[ETagField])
	})

	t.Run("create duplicate", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1"}))
		require.NoError(t, err)
		_, err = s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1"}))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("create without partition key", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1"}))
		assert.ErrorIs(t, err, ErrMissingPartitionKey)
	})

	t.Run("wrong partition key reads as not found", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1"}))
		require.NoError(t, err)

		_, err = s.Read(ctx, "carts", "c1", "u2")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Patch(ctx, "carts", "c1", "u2", []PatchOp{Set("/note", "x")})
		assert.ErrorIs(t, err, ErrNotFound)

		deleted, err := s.Delete(ctx, "carts", "c1", "u2")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = s.Read(ctx, "carts", "c1", "")
		assert.ErrorIs(t, err, ErrMissingPartitionKey)
	})

	t.Run("unknown collection", func(t *testing.T) {
		s := setup(t)
		_, err := s.Read(ctx, "orders", "o1", "b1")
		assert.ErrorIs(t, err, ErrUnknownCollection)
	})

	t.Run("patch appends and sets", func(t *testing.T) {
		s := setup(t)
		created, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{}}))
		require.NoError(t, err)

		patched, err := s.Patch(ctx, "carts", "c1", "u1", []PatchOp{
			Append("/items", item{ProductID: "p1", Quantity: 2}),
			Append("/items", item{ProductID: "p2", Quantity: 1}),
			Set("/note", "gift"),
		})
		require.NoError(t, err)
		assert.NotEqual(t, created[ETagField], patched[ETagField])

		c := fromDoc(t, patched)
		require.Len(t, c.Items, 2)
		assert.Equal(t, "p1", c.Items[0].ProductID)
		assert.Equal(t, "p2", c.Items[1].ProductID)
		assert.Equal(t, "gift", c.Note)
	})

	t.Run("patch replace requires existing path", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{}}))
		require.NoError(t, err)

		_, err = s.Patch(ctx, "carts", "c1", "u1", []PatchOp{{Op: PatchReplace, Path: "/note", Value: "x"}})
		assert.ErrorIs(t, err, ErrInvalidPatch)

		_, err = s.Patch(ctx, "carts", "c1", "u1", []PatchOp{Set("/userId", "u2")})
		assert.ErrorIs(t, err, ErrInvalidPatch)

		_, err = s.Patch(ctx, "carts", "c1", "u1", []PatchOp{Set("/_etag", "forged")})
		assert.ErrorIs(t, err, ErrInvalidPatch)
	})

	t.Run("concurrent appends are not lost", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{}}))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Patch(ctx, "carts", "c1", "u1", []PatchOp{Append("/items", item{ProductID: "p", Quantity: 1})})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Read(ctx, "carts", "c1", "u1")
		require.NoError(t, err)
		assert.Len(t, fromDoc(t, got).Items, 20)
	})

	t.Run("replace with etag", func(t *testing.T) {
		s := setup(t)
		created, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{}}))
		require.NoError(t, err)
		etag := created[ETagField].(string)

		next := toDoc(t, cartDoc{ID: "c1", UserID: "u1", Items: []item{{ProductID: "p1", Quantity: 1}}})
		replaced, err := s.Replace(ctx, "carts", "c1", "u1", next, IfMatch(etag))
		require.NoError(t, err)
		assert.Len(t, fromDoc(t, replaced).Items, 1)

		_, err = s.Replace(ctx, "carts", "c1", "u1", next, IfMatch(etag))
		assert.ErrorIs(t, err, ErrPreconditionFailed)

		_, err = s.Replace(ctx, "carts", "missing", "u1", toDoc(t, cartDoc{ID: "missing", UserID: "u1"}), IfMatch(etag))
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Replace(ctx, "carts", "c1", "u1", toDoc(t, cartDoc{ID: "c1", UserID: "u9"}))
		assert.ErrorIs(t, err, ErrPartitionMismatch)
	})

	t.Run("query scoped and cross partition", func(t *testing.T) {
		s := setup(t)
		for _, c := range []cartDoc{
			{ID: "c1", UserID: "u1", Items: []item{{ProductID: "p1", Quantity: 1}}},
			{ID: "c2", UserID: "u2", Items: []item{{ProductID: "p1", Quantity: 3}, {ProductID: "p2", Quantity: 1}}},
			{ID: "c3", UserID: "u3", Items: []item{{ProductID: "p2", Quantity: 1}}},
		} {
			_, err := s.Create(ctx, "carts", toDoc(t, c))
			require.NoError(t, err)
		}

		all, err := s.Query(ctx, "carts", Query{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		withP1, err := s.Query(ctx, "carts", Query{Conditions: []Condition{{Path: "/items/productId", Value: "p1"}}})
		require.NoError(t, err)
		assert.Len(t, withP1, 2)

		scoped, err := s.Query(ctx, "carts", Query{
			Conditions:   []Condition{{Path: "/items/productId", Value: "p1"}},
			PartitionKey: "u2",
		})
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "c2", fromDoc(t, scoped[0]).ID)

		byID, err := s.Query(ctx, "carts", Query{Conditions: []Condition{{Path: "/_id", Value: "c3"}}})
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, "u3", fromDoc(t, byID[0]).UserID)

		none, err := s.Query(ctx, "carts", Query{PartitionKey: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete", func(t *testing.T) {
		s := setup(t)
		_, err := s.Create(ctx, "carts", toDoc(t, cartDoc{ID: "c1", UserID: "u1"}))
		require.NoError(t, err)

		deleted, err := s.Delete(ctx, "carts", "c1", "u1")
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = s.Read(ctx, "carts", "c1", "u1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
