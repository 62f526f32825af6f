package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Document is the stored shape of an entity. IDField holds the id and ETagField the
// version token written by the store on every mutation.
type Document = bson.M

const (
	IDField   = "_id"
	ETagField = "_etag"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrAlreadyExists       = errors.New("document already exists")
	ErrPreconditionFailed  = errors.New("document etag does not match")
	ErrMissingPartitionKey = errors.New("partition key value is required")
	ErrPartitionMismatch   = errors.New("document partition key does not match")
	ErrMissingID           = errors.New("document id is required")
	ErrUnknownCollection   = errors.New("collection has not been ensured")
	ErrInvalidPatch        = errors.New("invalid patch operation")
	ErrRead                = errors.New("store read failed")
	ErrWrite               = errors.New("store write failed")
)

type PatchOpType string

const (
	PatchAdd     PatchOpType = "add"
	PatchSet     PatchOpType = "set"
	PatchReplace PatchOpType = "replace"
)

// PatchOp addresses a field with a JSON pointer. "/items/-" appends to the items array.
// Replace fails with ErrInvalidPatch when the field does not exist.
type PatchOp struct {
	Op    PatchOpType
	Path  string
	Value any
}

func Set(path string, value any) PatchOp    { return PatchOp{Op: PatchSet, Path: path, Value: value} }
func Add(path string, value any) PatchOp    { return PatchOp{Op: PatchAdd, Path: path, Value: value} }
func Append(path string, value any) PatchOp { return PatchOp{Op: PatchAdd, Path: path + "/-", Value: value} }

// Condition is an equality predicate. A path that crosses an array matches when any
// element satisfies it, so "/items/productId" finds carts holding a product.
type Condition struct {
	Path  string
	Value any
}

// Query with an empty PartitionKey scans every partition.
type Query struct {
	Conditions   []Condition
	PartitionKey string
}

func (q Query) CrossPartition() bool { return q.PartitionKey == "" }

type replaceOptions struct {
	ifMatch string
}

type ReplaceOption func(*replaceOptions)

// IfMatch makes a replace conditional on the stored etag.
func IfMatch(etag string) ReplaceOption {
	return func(o *replaceOptions) { o.ifMatch = etag }
}

type Store interface {
	EnsureCollection(ctx context.Context, name, partitionKeyPath string) error
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	Read(ctx context.Context, collection, id, partitionKey string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Patch(ctx context.Context, collection, id, partitionKey string, ops []PatchOp) (Document, error)
	Replace(ctx context.Context, collection, id, partitionKey string, doc Document, opts ...ReplaceOption) (Document, error)
	Delete(ctx context.Context, collection, id, partitionKey string) (bool, error)
	Close(ctx context.Context) error
}

// fieldPath turns "/a/b" into "a.b". A trailing "/-" marks an append.
func fieldPath(path string) (string, bool, error) {
	if !strings.HasPrefix(path, "/") || len(path) < 2 {
		return "", false, fmt.Errorf("%w: path %q", ErrInvalidPatch, path)
	}
	parts := strings.Split(path[1:], "/")
	appendTo := false
	if parts[len(parts)-1] == "-" {
		appendTo = true
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return "", false, fmt.Errorf("%w: path %q", ErrInvalidPatch, path)
	}
	for _, p := range parts {
		if p == "" || p == "-" {
			return "", false, fmt.Errorf("%w: path %q", ErrInvalidPatch, path)
		}
	}
	return strings.Join(parts, "."), appendTo, nil
}

func documentID(doc Document) (string, error) {
	id, _ := doc[IDField].(string)
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

func checkPartition(doc Document, field, pk string) error {
	if pk == "" {
		return ErrMissingPartitionKey
	}
	got, _ := doc[field].(string)
	if got != pk {
		return fmt.Errorf("%w: %s=%q, want %q", ErrPartitionMismatch, field, got, pk)
	}
	return nil
}

func newETag() string {
	return uuid.NewString()
}
