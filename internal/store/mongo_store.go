package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const DefaultOpTimeout = 5 * time.Second

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// MongoStore keeps one MongoDB collection per entity. The partition key is an
// ordinary field that every point filter includes next to _id.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
	log     *zap.Logger

	mu         sync.RWMutex
	partitions map[string]string
}

func NewMongoStore(db *mongo.Database, timeout time.Duration, log *zap.Logger) *MongoStore {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MongoStore{
		db:         db,
		timeout:    timeout,
		log:        log,
		partitions: make(map[string]string),
	}
}

func (s *MongoStore) EnsureCollection(ctx context.Context, name, partitionKeyPath string) error {
	field, err := partitionField(partitionKeyPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}, {Key: IDField, Value: 1}},
		Options: options.Index().SetName("pk_" + field),
	}
	if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("%w: create index on %s: %w", ErrWrite, name, err)
	}

	s.mu.Lock()
	s.partitions[name] = field
	s.mu.Unlock()
	return nil
}

func (s *MongoStore) collection(name string) (*mongo.Collection, string, error) {
	s.mu.RLock()
	field, ok := s.partitions[name]
	s.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return s.db.Collection(name), field, nil
}

func (s *MongoStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if _, err := documentID(doc); err != nil {
		return nil, err
	}
	if pk, _ := doc[field].(string); pk == "" {
		return nil, ErrMissingPartitionKey
	}

	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[ETagField] = newETag()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := coll.InsertOne(ctx, out); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("%w: insert into %s: %w", ErrWrite, collection, err)
	}
	return out, nil
}

func (s *MongoStore) Read(ctx context.Context, collection, id, partitionKey string) (Document, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if partitionKey == "" {
		return nil, ErrMissingPartitionKey
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc Document
	err = coll.FindOne(ctx, bson.M{IDField: id, field: partitionKey}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find in %s: %w", ErrRead, collection, err)
	}
	return doc, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	filter := bson.M{}
	for _, c := range q.Conditions {
		f, appendTo, err := fieldPath(c.Path)
		if err != nil || appendTo {
			return nil, fmt.Errorf("%w: condition path %q", ErrInvalidPatch, c.Path)
		}
		filter[f] = c.Value
	}
	if q.CrossPartition() {
		s.log.Debug("cross_partition_query", zap.String("collection", collection), zap.Int("conditions", len(q.Conditions)))
	} else {
		filter[field] = q.PartitionKey
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrRead, collection, err)
	}
	docs := make([]Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrRead, collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Patch(ctx context.Context, collection, id, partitionKey string, ops []PatchOp) (Document, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if partitionKey == "" {
		return nil, ErrMissingPartitionKey
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidPatch)
	}

	set := bson.M{}
	push := map[string]bson.A{}
	filter := bson.M{IDField: id, field: partitionKey}
	existing := false
	for _, op := range ops {
		f, appendTo, err := fieldPath(op.Path)
		if err != nil {
			return nil, err
		}
		if f == IDField || f == ETagField {
			return nil, fmt.Errorf("%w: %s is managed by the store", ErrInvalidPatch, f)
		}
		if f == field || strings.HasPrefix(f, field+".") {
			return nil, fmt.Errorf("%w: partition key %s is immutable", ErrInvalidPatch, field)
		}
		switch {
		case op.Op == PatchAdd && appendTo:
			push[f] = append(push[f], op.Value)
		case appendTo:
			return nil, fmt.Errorf("%w: %s cannot append", ErrInvalidPatch, op.Op)
		case op.Op == PatchAdd || op.Op == PatchSet:
			set[f] = op.Value
		case op.Op == PatchReplace:
			set[f] = op.Value
			filter[f] = bson.M{"$exists": true}
			existing = true
		default:
			return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidPatch, op.Op)
		}
	}
	set[ETagField] = newETag()

	update := bson.M{"$set": set}
	if len(push) > 0 {
		each := bson.M{}
		for f, values := range push {
			each[f] = bson.M{"$each": values}
		}
		update["$push"] = each
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc Document
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: patch %s: %w", ErrWrite, collection, err)
	}
	if !existing {
		return nil, ErrNotFound
	}
	found, err := s.exists(ctx, coll, field, id, partitionKey)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("%w: replace target does not exist", ErrInvalidPatch)
	}
	return nil, ErrNotFound
}

func (s *MongoStore) Replace(ctx context.Context, collection, id, partitionKey string, doc Document, opts ...ReplaceOption) (Document, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := checkPartition(doc, field, partitionKey); err != nil {
		return nil, err
	}
	var ro replaceOptions
	for _, opt := range opts {
		opt(&ro)
	}

	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[IDField] = id
	out[ETagField] = newETag()

	filter := bson.M{IDField: id, field: partitionKey}
	if ro.ifMatch != "" {
		filter[ETagField] = ro.ifMatch
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var replaced Document
	err = coll.FindOneAndReplace(ctx, filter, out, options.FindOneAndReplace().SetReturnDocument(options.After)).Decode(&replaced)
	if err == nil {
		return replaced, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: replace in %s: %w", ErrWrite, collection, err)
	}
	if ro.ifMatch == "" {
		return nil, ErrNotFound
	}
	found, err := s.exists(ctx, coll, field, id, partitionKey)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, ErrPreconditionFailed
	}
	return nil, ErrNotFound
}

func (s *MongoStore) Delete(ctx context.Context, collection, id, partitionKey string) (bool, error) {
	coll, field, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	if partitionKey == "" {
		return false, ErrMissingPartitionKey
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := coll.DeleteOne(ctx, bson.M{IDField: id, field: partitionKey})
	if err != nil {
		return false, fmt.Errorf("%w: delete from %s: %w", ErrWrite, collection, err)
	}
	return result.DeletedCount > 0, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *MongoStore) exists(ctx context.Context, coll *mongo.Collection, field, id, pk string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{IDField: id, field: pk}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: count: %w", ErrRead, err)
	}
	return n > 0, nil
}

func partitionField(path string) (string, error) {
	field, appendTo, err := fieldPath(path)
	if err != nil || appendTo || strings.Contains(field, ".") {
		return "", fmt.Errorf("partition key path %q must name a top-level field", path)
	}
	return field, nil
}
