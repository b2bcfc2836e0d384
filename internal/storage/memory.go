package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

// MemoryStore keeps item rows in insertion order in process memory.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []memoryRecord
	saves   int
}

type memoryRecord struct {
	id     string
	values map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends rows and returns their ids in order.
func (s *MemoryStore) Insert(values ...map[string]any) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(values))
	for _, v := range values {
		id := uuid.NewString()
		s.records = append(s.records, memoryRecord{id: id, values: maps.Clone(v)})
		ids = append(ids, id)
	}
	return ids
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns a copy of the stored values of id.
func (s *MemoryStore) Get(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("item %s: %w", id, common.ErrNotFound)
	}
	return maps.Clone(s.records[i].values), nil
}

// Saves returns the number of successful SaveItems calls.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *MemoryStore) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r memoryRecord) bool { return r.id == id })
}

// snapshot returns the records ordered by keys, then insertion order.
func (s *MemoryStore) snapshot(keys []query.SortKey) []memoryRecord {
	s.mu.RLock()
	rows := slices.Clone(s.records)
	s.mu.RUnlock()
	slices.SortStableFunc(rows, func(a, b memoryRecord) int {
		for _, k := range keys {
			var c int
			if k.PropertyID == KeyPropertyID {
				c = cmp.Compare(a.id, b.id)
			} else {
				c = compareValues(a.values[k.PropertyID], b.values[k.PropertyID])
			}
			if !k.Ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return rows
}

// apply validates the edits and applies them under one lock acquisition.
// Nothing changes when any modified or removed id is unknown.
func (s *MemoryStore) apply(added, modified, removed []memoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range slices.Concat(modified, removed) {
		if s.indexOf(r.id) < 0 {
			return fmt.Errorf("item %s: %w", r.id, common.ErrNotFound)
		}
	}
	for _, r := range modified {
		s.records[s.indexOf(r.id)].values = r.values
	}
	for _, r := range removed {
		if i := s.indexOf(r.id); i >= 0 {
			s.records = slices.Delete(s.records, i, i+1)
		}
	}
	s.records = append(s.records, added...)
	s.saves++
	return nil
}

func (s *MemoryStore) deleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

var _ query.SortValidator = (*MemoryFactory)(nil)

// MemoryFactory builds queries over a MemoryStore.
type MemoryFactory struct {
	store      *MemoryStore
	nativeSort []query.SortKey
	definition *query.Definition
}

// NewMemoryFactory returns a factory over store. Without native sort keys
// unsorted queries follow insertion order.
func NewMemoryFactory(store *MemoryStore, nativeSort ...query.SortKey) *MemoryFactory {
	return &MemoryFactory{store: store, nativeSort: nativeSort}
}

func (f *MemoryFactory) SetDefinition(def *query.Definition) {
	f.definition = def
}

// ValidateSortKeys accepts the key property and the sortable properties of
// the definition.
func (f *MemoryFactory) ValidateSortKeys(keys []query.SortKey) error {
	return validateSort(f.definition, keys)
}

func (f *MemoryFactory) ConstructQuery(ctx context.Context, keys []query.SortKey) (query.Query, error) {
	if f.definition == nil {
		return nil, fmt.Errorf("query factory has no definition: %w", common.ErrInvalidProperty)
	}
	if len(keys) == 0 {
		keys = f.nativeSort
	}
	if err := validateSort(f.definition, keys); err != nil {
		return nil, err
	}
	return &memoryQuery{
		store:      f.store,
		definition: f.definition,
		rows:       f.store.snapshot(keys),
	}, nil
}

// memoryQuery reads from a snapshot taken at construction.
type memoryQuery struct {
	store      *MemoryStore
	definition *query.Definition
	rows       []memoryRecord
}

func (q *memoryQuery) Size(ctx context.Context) (int, error) {
	return len(q.rows), nil
}

func (q *memoryQuery) LoadItems(ctx context.Context, start, count int) ([]*item.Item, error) {
	if start < 0 || start+count > len(q.rows) {
		return nil, fmt.Errorf("window [%d, %d) of %d: %w", start, start+count, len(q.rows), common.ErrShortBatch)
	}
	items := make([]*item.Item, 0, count)
	for _, r := range q.rows[start : start+count] {
		items = append(items, buildItem(q.definition, r.id, maps.Clone(r.values)))
	}
	return items, nil
}

func (q *memoryQuery) ConstructItem() (*item.Item, error) {
	return buildItem(q.definition, uuid.NewString(), nil), nil
}

func (q *memoryQuery) SaveItems(ctx context.Context, added, modified, removed []*item.Item) error {
	records := func(items []*item.Item) ([]memoryRecord, error) {
		out := make([]memoryRecord, 0, len(items))
		for _, it := range items {
			id, err := itemKey(it)
			if err != nil {
				return nil, err
			}
			out = append(out, memoryRecord{id: id, values: recordValues(it)})
		}
		return out, nil
	}
	// added is newest first, the store appends oldest first
	oldestFirst := slices.Clone(added)
	slices.Reverse(oldestFirst)
	a, err := records(oldestFirst)
	if err != nil {
		return err
	}
	m, err := records(modified)
	if err != nil {
		return err
	}
	r, err := records(removed)
	if err != nil {
		return err
	}
	return q.store.apply(a, m, r)
}

func (q *memoryQuery) DeleteAllItems(ctx context.Context) error {
	q.store.deleteAll()
	return nil
}

// compareValues orders values within their kind. Values of different kinds
// compare by rank: nil, bool, number, string, time, anything else.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case nil:
		return 0
	case string:
		return cmp.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	}
	if af, ok := toFloat(a); ok {
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	case time.Time:
		return 4
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 5
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
