package storage

import (
	"fmt"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

// recordValues collects the persisted values of it. Reserved properties and
// the key are not stored.
func recordValues(it *item.Item) map[string]any {
	values := make(map[string]any)
	for _, id := range it.PropertyIDs() {
		if id == KeyPropertyID || item.IsReserved(id) {
			continue
		}
		values[id] = it.Value(id)
	}
	return values
}

// itemKey returns the row id carried by it.
func itemKey(it *item.Item) (string, error) {
	id, ok := it.Value(KeyPropertyID).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("item has no %q property: %w", KeyPropertyID, common.ErrNotFound)
	}
	return id, nil
}

// buildItem materializes a stored row through the definition and attaches
// a read-only key property.
func buildItem(def *query.Definition, id string, values map[string]any) *item.Item {
	if values == nil {
		values = make(map[string]any)
	}
	values[KeyPropertyID] = id
	it := def.NewItem(values)
	if p := it.Property(KeyPropertyID); p != nil {
		p.SetReadOnly(true)
		return it
	}
	// AddProperty cannot fail: the id is known to be absent.
	_ = it.AddProperty(KeyPropertyID, item.NewProperty(id, item.TypeOf[string](), true))
	return it
}

// validateSort checks that the key or a sortable definition property backs
// every sort key.
func validateSort(def *query.Definition, keys []query.SortKey) error {
	if def == nil {
		return fmt.Errorf("query factory has no definition: %w", common.ErrInvalidProperty)
	}
	var rest []query.SortKey
	for _, k := range keys {
		if k.PropertyID != KeyPropertyID {
			rest = append(rest, k)
		}
	}
	return query.ValidateSortKeys(def, rest)
}
