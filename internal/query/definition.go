// Copyright 2024 LazyQuery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
)

// DefaultBatchSize is used when a definition is created with a batch size below 1.
const DefaultBatchSize = 50

// PropertyDef declares one property of the item schema.
type PropertyDef struct {
	ID       string
	Type     reflect.Type
	Default  any
	ReadOnly bool
	Sortable bool
}

// Definition declares the item schema and the batch size used for loading.
// It is shared by a view and its query factory; changing it requires a
// refresh of the view.
type Definition struct {
	batchSize int
	props     []PropertyDef
	index     map[string]int
}

// NewDefinition creates an empty definition.
func NewDefinition(batchSize int) *Definition {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Definition{
		batchSize: batchSize,
		index:     make(map[string]int),
	}
}

func (d *Definition) BatchSize() int {
	return d.batchSize
}

// AddProperty appends a property to the schema. The default value is
// coerced to typ. Reserved status and debug properties are always read-only
// and never sortable.
func (d *Definition) AddProperty(id string, typ reflect.Type, defaultValue any, readOnly, sortable bool) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", common.ErrInvalidProperty)
	}
	if i := strings.IndexFunc(id, needsEscape); i >= 0 {
		r, _ := utf8.DecodeRuneInString(id[i:])
		return fmt.Errorf("%w: id %q contains %q", common.ErrInvalidProperty, id, r)
	}
	if _, ok := d.index[id]; ok {
		return fmt.Errorf("property %q: %w", id, common.ErrExists)
	}
	v, err := item.Coerce(defaultValue, typ)
	if err != nil {
		return fmt.Errorf("property %q default: %w", id, err)
	}
	if item.IsReserved(id) {
		readOnly = true
		sortable = false
	}
	d.index[id] = len(d.props)
	d.props = append(d.props, PropertyDef{
		ID:       id,
		Type:     typ,
		Default:  v,
		ReadOnly: readOnly,
		Sortable: sortable,
	})
	return nil
}

// needsEscape reports runes that JSON encoding escapes or replaces. Property ids
// are stored as JSON object keys and addressed by quoted JSON path labels,
// which take the key text verbatim.
func needsEscape(r rune) bool {
	return r < 0x20 || r == '"' || r == '\\' || r == '\u2028' || r == '\u2029' || r == utf8.RuneError
}

// RemoveProperty drops a property from the schema.
func (d *Definition) RemoveProperty(id string) error {
	i, ok := d.index[id]
	if !ok {
		return fmt.Errorf("property %q: %w", id, common.ErrNotFound)
	}
	d.props = append(d.props[:i], d.props[i+1:]...)
	delete(d.index, id)
	for j := i; j < len(d.props); j++ {
		d.index[d.props[j].ID] = j
	}
	return nil
}

// AddDebugProperties adds the status property and the three debug properties.
func (d *Definition) AddDebugProperties() error {
	reserved := []PropertyDef{
		{ID: item.PropertyIDItemStatus, Type: item.TypeOf[item.Status](), Default: item.StatusNone},
		{ID: item.DebugPropertyIDBatchIndex, Type: item.TypeOf[int](), Default: 0},
		{ID: item.DebugPropertyIDQueryIndex, Type: item.TypeOf[int](), Default: 0},
		{ID: item.DebugPropertyIDBatchQueryTime, Type: item.TypeOf[int64](), Default: int64(0)},
	}
	for _, p := range reserved {
		if _, ok := d.index[p.ID]; ok {
			continue
		}
		if err := d.AddProperty(p.ID, p.Type, p.Default, true, false); err != nil {
			return err
		}
	}
	return nil
}

// Property returns the declaration of id.
func (d *Definition) Property(id string) (PropertyDef, bool) {
	i, ok := d.index[id]
	if !ok {
		return PropertyDef{}, false
	}
	return d.props[i], true
}

// Properties returns all declarations in schema order.
func (d *Definition) Properties() []PropertyDef {
	return append([]PropertyDef(nil), d.props...)
}

func (d *Definition) PropertyIDs() []string {
	ids := make([]string, len(d.props))
	for i, p := range d.props {
		ids[i] = p.ID
	}
	return ids
}

// SortablePropertyIDs returns the ids usable in sort keys.
func (d *Definition) SortablePropertyIDs() []string {
	var ids []string
	for _, p := range d.props {
		if p.Sortable {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// NewItem builds an item matching the schema. Values missing from values
// (or values that cannot be coerced) get the declared default.
func (d *Definition) NewItem(values map[string]any) *item.Item {
	it := item.New()
	for _, p := range d.props {
		v := p.Default
		if raw, ok := values[p.ID]; ok {
			if cv, err := item.Coerce(raw, p.Type); err == nil {
				v = cv
			}
		}
		// Schema ids are unique, AddProperty cannot fail here.
		_ = it.AddProperty(p.ID, item.NewProperty(v, p.Type, p.ReadOnly))
	}
	return it
}
