package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
	"lazyquery/internal/util"
)

var _ query.SortValidator = (*Factory)(nil)

// Factory builds queries over a Store. The native sort applies whenever a
// view asks for no explicit ordering.
type Factory struct {
	store      *Store
	nativeSort []query.SortKey
	definition *query.Definition
}

// NewFactory returns a query factory over store. At least one native sort
// key is required so that unsorted views still have a deterministic order.
func NewFactory(store *Store, nativeSort []query.SortKey) (*Factory, error) {
	if len(nativeSort) == 0 {
		return nil, fmt.Errorf("native sort is empty: %w", common.ErrInvalidSortSpec)
	}
	return &Factory{
		store:      store,
		nativeSort: slices.Clone(nativeSort),
	}, nil
}

func (f *Factory) SetDefinition(def *query.Definition) {
	f.definition = def
}

// ValidateSortKeys accepts the key property and the sortable properties of
// the definition.
func (f *Factory) ValidateSortKeys(keys []query.SortKey) error {
	return validateSort(f.definition, keys)
}

// NativeSort returns the ordering used when no sort keys are given.
func (f *Factory) NativeSort() []query.SortKey {
	return slices.Clone(f.nativeSort)
}

// ConstructQuery returns a query ordered by keys, or by the native sort when
// keys is empty.
func (f *Factory) ConstructQuery(ctx context.Context, keys []query.SortKey) (query.Query, error) {
	if f.definition == nil {
		return nil, fmt.Errorf("query factory has no definition: %w", common.ErrInvalidProperty)
	}
	if len(keys) == 0 {
		keys = f.nativeSort
	}
	if err := validateSort(f.definition, keys); err != nil {
		return nil, err
	}
	log.Debugf("[Storage] constructing query over %s sorted by %v", f.store.Path(), keys)
	return &sqlQuery{
		store:      f.store,
		definition: f.definition,
		keys:       slices.Clone(keys),
		size:       -1,
	}, nil
}

// sqlQuery pages through the items table. The size is read once, so a query
// reports a stable count for its lifetime.
type sqlQuery struct {
	store      *Store
	definition *query.Definition
	keys       []query.SortKey
	size       int
}

func (q *sqlQuery) Size(ctx context.Context) (int, error) {
	if q.size >= 0 {
		return q.size, nil
	}
	n, err := util.RetryWithResult(ctx, func() (int, error) {
		return q.store.bunDB.CountItems(ctx)
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	q.size = n
	return n, nil
}

func (q *sqlQuery) LoadItems(ctx context.Context, start, count int) ([]*item.Item, error) {
	rows, err := util.RetryWithResult(ctx, func() ([]ItemModel, error) {
		return q.store.bunDB.ListItems(ctx, q.keys, start, count)
	}, util.DatabaseRetryOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load items [%d, %d): %w", start, start+count, err)
	}
	if len(rows) < count {
		return nil, fmt.Errorf("loaded %d of %d items at %d: %w", len(rows), count, start, common.ErrShortBatch)
	}
	items := make([]*item.Item, 0, len(rows))
	for _, row := range rows {
		values, err := decodeValues(row.Data)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", row.ID, err)
		}
		items = append(items, buildItem(q.definition, row.ID, values))
	}
	return items, nil
}

// ConstructItem returns a detached item with a fresh id and default values.
func (q *sqlQuery) ConstructItem() (*item.Item, error) {
	return buildItem(q.definition, uuid.NewString(), nil), nil
}

// SaveItems writes the buffered edits in one transaction under the writer
// lock. Added items are given creation times in the order they were added.
func (q *sqlQuery) SaveItems(ctx context.Context, added, modified, removed []*item.Item) error {
	now := time.Now().UnixNano()

	inserts := make([]ItemModel, 0, len(added))
	// added is newest first
	for i := len(added) - 1; i >= 0; i-- {
		row, err := toModel(added[i], now)
		if err != nil {
			return err
		}
		row.CreatedAt = now + int64(len(inserts))
		inserts = append(inserts, row)
	}
	updates := make([]ItemModel, 0, len(modified))
	for _, it := range modified {
		row, err := toModel(it, now)
		if err != nil {
			return err
		}
		updates = append(updates, row)
	}
	deletes := make([]string, 0, len(removed))
	for _, it := range removed {
		id, err := itemKey(it)
		if err != nil {
			return err
		}
		deletes = append(deletes, id)
	}

	return q.store.withWriteLock(ctx, func() error {
		return util.Retry(ctx, func() error {
			return q.store.bunDB.SaveItems(ctx, inserts, updates, deletes)
		}, util.DatabaseRetryOptions(ctx)...)
	})
}

func (q *sqlQuery) DeleteAllItems(ctx context.Context) error {
	return q.store.withWriteLock(ctx, func() error {
		return util.Retry(ctx, func() error {
			n, err := q.store.bunDB.DeleteAllItems(ctx)
			if err != nil {
				return err
			}
			log.Debugf("[Storage] deleted all %d items from %s", n, q.store.Path())
			return nil
		}, util.DatabaseRetryOptions(ctx)...)
	})
}

func toModel(it *item.Item, now int64) (ItemModel, error) {
	id, err := itemKey(it)
	if err != nil {
		return ItemModel{}, err
	}
	data, err := encodeValues(recordValues(it))
	if err != nil {
		return ItemModel{}, err
	}
	return ItemModel{ID: id, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}
