// Package query defines the contract between a lazy view and its backing
// data source.
//
// A Factory builds a Query for a given sort order. A Query is a read-mostly
// handle whose Size is stable for its lifetime; the view discards the query
// and asks the factory for a new one whenever the sort order or the schema
// changes.
package query

import (
	"context"
	"fmt"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
)

// SortKey orders a query by one property.
type SortKey struct {
	PropertyID string
	Ascending  bool
}

func (k SortKey) String() string {
	if k.Ascending {
		return k.PropertyID + ":asc"
	}
	return k.PropertyID + ":desc"
}

// Query loads and stores items for one sort order.
type Query interface {
	// Size returns the number of backing items. Stable for the query's lifetime.
	Size(ctx context.Context) (int, error)
	// LoadItems returns exactly count items starting at backing index start.
	LoadItems(ctx context.Context, start, count int) ([]*item.Item, error)
	// ConstructItem returns a blank item matching the definition.
	ConstructItem() (*item.Item, error)
	// SaveItems persists the pending edits atomically.
	SaveItems(ctx context.Context, added, modified, removed []*item.Item) error
	// DeleteAllItems removes every backing item.
	DeleteAllItems(ctx context.Context) error
}

// Factory builds queries bound to a definition.
type Factory interface {
	SetDefinition(def *Definition)
	ConstructQuery(ctx context.Context, sortKeys []SortKey) (Query, error)
}

// SortValidator is implemented by factories whose queries accept sort keys
// beyond the sortable properties of the definition, such as a storage key.
type SortValidator interface {
	ValidateSortKeys(keys []SortKey) error
}

// SortKeys pairs property ids with ascending flags. Fails with
// common.ErrInvalidSortSpec when the slices differ in length.
func SortKeys(ids []string, ascending []bool) ([]SortKey, error) {
	if len(ids) != len(ascending) {
		return nil, fmt.Errorf("%w: %d properties but %d ascending states",
			common.ErrInvalidSortSpec, len(ids), len(ascending))
	}
	keys := make([]SortKey, len(ids))
	for i, id := range ids {
		keys[i] = SortKey{PropertyID: id, Ascending: ascending[i]}
	}
	return keys, nil
}

// ValidateSortKeys checks that every key names a sortable property of def.
func ValidateSortKeys(def *Definition, keys []SortKey) error {
	for _, k := range keys {
		p, ok := def.Property(k.PropertyID)
		if !ok {
			return fmt.Errorf("%w: unknown property %q", common.ErrInvalidSortSpec, k.PropertyID)
		}
		if !p.Sortable {
			return fmt.Errorf("%w: property %q is not sortable", common.ErrInvalidSortSpec, k.PropertyID)
		}
	}
	return nil
}
