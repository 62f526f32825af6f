package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memCollection struct {
	partitionField string
	docs           map[string]Document
}

// MemoryStore implements Store in process. Documents are copied through BSON on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, name, partitionKeyPath string) error {
	field, err := partitionField(partitionKeyPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.partitionField != field {
			return fmt.Errorf("collection %s already partitioned by %s", name, c.partitionField)
		}
		return nil
	}
	s.collections[name] = &memCollection{partitionField: field, docs: make(map[string]Document)}
	return nil
}

// collection must be called with s.mu held.
func (s *MemoryStore) collection(name string) (*memCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	id, err := documentID(doc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if pk, _ := doc[c.partitionField].(string); pk == "" {
		return nil, ErrMissingPartitionKey
	}
	if _, exists := c.docs[id]; exists {
		return nil, ErrAlreadyExists
	}

	stored, err := copyDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	stored[ETagField] = newETag()
	c.docs[id] = stored
	return copyDocument(stored)
}

// lookup must be called with s.mu held.
func (s *MemoryStore) lookup(collection, id, pk string) (*memCollection, Document, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, nil, err
	}
	if pk == "" {
		return nil, nil, ErrMissingPartitionKey
	}
	doc, ok := c.docs[id]
	if !ok || doc[c.partitionField] != pk {
		return c, nil, ErrNotFound
	}
	return c, doc, nil
}

func (s *MemoryStore) Read(ctx context.Context, collection, id, partitionKey string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, doc, err := s.lookup(collection, id, partitionKey)
	if err != nil {
		return nil, err
	}
	return copyDocument(doc)
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	type cond struct {
		parts []string
		want  any
	}
	conds := make([]cond, 0, len(q.Conditions))
	for _, c := range q.Conditions {
		f, appendTo, err := fieldPath(c.Path)
		if err != nil || appendTo {
			return nil, fmt.Errorf("%w: condition path %q", ErrInvalidPatch, c.Path)
		}
		want, err := normalize(c.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		conds = append(conds, cond{parts: strings.Split(f, "."), want: want})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Document, 0)
	for _, id := range ids {
		doc := c.docs[id]
		if !q.CrossPartition() && doc[c.partitionField] != q.PartitionKey {
			continue
		}
		matched := true
		for _, cd := range conds {
			if !matchPath(map[string]any(doc), cd.parts, cd.want) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		cp, err := copyDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) Patch(ctx context.Context, collection, id, partitionKey string, ops []PatchOp) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidPatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, doc, err := s.lookup(collection, id, partitionKey)
	if err != nil {
		return nil, err
	}

	// ops apply to a copy so a failing op leaves the stored document untouched
	work, err := copyDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	for _, op := range ops {
		f, appendTo, err := fieldPath(op.Path)
		if err != nil {
			return nil, err
		}
		if f == IDField || f == ETagField {
			return nil, fmt.Errorf("%w: %s is managed by the store", ErrInvalidPatch, f)
		}
		if f == c.partitionField || strings.HasPrefix(f, c.partitionField+".") {
			return nil, fmt.Errorf("%w: partition key %s is immutable", ErrInvalidPatch, c.partitionField)
		}
		parts := strings.Split(f, ".")
		switch {
		case op.Op == PatchAdd && appendTo:
			err = appendPath(map[string]any(work), parts, op.Value)
		case appendTo:
			err = fmt.Errorf("%w: %s cannot append", ErrInvalidPatch, op.Op)
		case op.Op == PatchAdd || op.Op == PatchSet:
			err = setPath(map[string]any(work), parts, op.Value, false)
		case op.Op == PatchReplace:
			err = setPath(map[string]any(work), parts, op.Value, true)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrInvalidPatch, op.Op)
		}
		if err != nil {
			return nil, err
		}
	}

	stored, err := copyDocument(work)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	stored[ETagField] = newETag()
	c.docs[id] = stored
	return copyDocument(stored)
}

func (s *MemoryStore) Replace(ctx context.Context, collection, id, partitionKey string, doc Document, opts ...ReplaceOption) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	var ro replaceOptions
	for _, opt := range opts {
		opt(&ro)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, current, err := s.lookup(collection, id, partitionKey)
	if err != nil {
		return nil, err
	}
	if err := checkPartition(doc, c.partitionField, partitionKey); err != nil {
		return nil, err
	}
	if ro.ifMatch != "" && current[ETagField] != ro.ifMatch {
		return nil, ErrPreconditionFailed
	}

	stored, err := copyDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	stored[IDField] = id
	stored[ETagField] = newETag()
	c.docs[id] = stored
	return copyDocument(stored)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id, partitionKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _, err := s.lookup(collection, id, partitionKey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	delete(c.docs, id)
	return true, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func copyDocument(doc Document) (Document, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(v any) (any, error) {
	doc, err := copyDocument(Document{"v": v})
	if err != nil {
		return nil, err
	}
	return doc["v"], nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	}
	return nil, false
}

func matchPath(v any, parts []string, want any) bool {
	if len(parts) == 0 {
		if reflect.DeepEqual(v, want) {
			return true
		}
		if arr, ok := asSlice(v); ok {
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					return true
				}
			}
		}
		return false
	}
	if m, ok := asMap(v); ok {
		next, ok := m[parts[0]]
		if !ok {
			return false
		}
		return matchPath(next, parts[1:], want)
	}
	if arr, ok := asSlice(v); ok {
		if i, err := strconv.Atoi(parts[0]); err == nil {
			return i >= 0 && i < len(arr) && matchPath(arr[i], parts[1:], want)
		}
		for _, el := range arr {
			if matchPath(el, parts, want) {
				return true
			}
		}
	}
	return false
}

// setPath walks maps and array indexes, creating missing maps unless mustExist is set.
func setPath(root map[string]any, parts []string, value any, mustExist bool) error {
	var cur any = root
	for i, p := range parts {
		last := i == len(parts)-1
		if m, ok := asMap(cur); ok {
			next, exists := m[p]
			if last {
				if mustExist && !exists {
					return fmt.Errorf("%w: replace target %s does not exist", ErrInvalidPatch, strings.Join(parts, "."))
				}
				m[p] = value
				return nil
			}
			if !exists {
				if mustExist {
					return fmt.Errorf("%w: replace target %s does not exist", ErrInvalidPatch, strings.Join(parts, "."))
				}
				next = bson.M{}
				m[p] = next
			}
			cur = next
			continue
		}
		if arr, ok := asSlice(cur); ok {
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(arr) {
				return fmt.Errorf("%w: index %q out of range", ErrInvalidPatch, p)
			}
			if last {
				arr[idx] = value
				return nil
			}
			cur = arr[idx]
			continue
		}
		return fmt.Errorf("%w: %s is not a container", ErrInvalidPatch, strings.Join(parts[:i], "."))
	}
	return nil
}

func appendPath(root map[string]any, parts []string, value any) error {
	parentParts, key := parts[:len(parts)-1], parts[len(parts)-1]
	var parent any = root
	for _, p := range parentParts {
		m, ok := asMap(parent)
		if !ok {
			return fmt.Errorf("%w: %s is not an object", ErrInvalidPatch, p)
		}
		parent = m[p]
	}
	m, ok := asMap(parent)
	if !ok {
		return fmt.Errorf("%w: %s has no object parent", ErrInvalidPatch, key)
	}
	existing, present := m[key]
	if !present || existing == nil {
		m[key] = primitive.A{value}
		return nil
	}
	arr, ok := asSlice(existing)
	if !ok {
		return fmt.Errorf("%w: %s is not an array", ErrInvalidPatch, key)
	}
	m[key] = append(primitive.A(arr), value)
	return nil
}
