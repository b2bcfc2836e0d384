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

// Package item provides the record model shared by queries and views.
//
// An Item is an ordered set of named properties. The property set is fixed
// once the item has been handed to a view: queries build items completely
// (see query.Definition.NewItem) and consumers only change property values.
// Value changes are observed through ValueChangeNotifier, which is how a
// view learns that one of its items became dirty.
//
// Reserved property ids:
//   - PropertyIDItemStatus: Status of the item in the pending edit set.
//   - DebugPropertyIDBatchIndex, DebugPropertyIDQueryIndex,
//     DebugPropertyIDBatchQueryTime: diagnostics stamped on every batch load.
//
// All reserved properties are read-only for consumers and written by the view
// with SetPrivileged.
package item

import (
	"fmt"

	"lazyquery/internal/common"
)

const (
	PropertyIDItemStatus          = "PROPERTY_ID_ITEM_STATUS"
	DebugPropertyIDBatchIndex     = "DEBUG_PROPERTY_ID_BATCH_INDEX"
	DebugPropertyIDQueryIndex     = "DEBUG_PROPERTY_ID_QUERY_INDEX"
	DebugPropertyIDBatchQueryTime = "DEBUG_PROPERTY_ID_BATCH_QUERY_TIME"
)

// IsReserved reports whether id is a status or debug property id.
// Reserved properties are never persisted.
func IsReserved(id string) bool {
	switch id {
	case PropertyIDItemStatus, DebugPropertyIDBatchIndex, DebugPropertyIDQueryIndex, DebugPropertyIDBatchQueryTime:
		return true
	}
	return false
}

// Item maps property ids to properties, preserving insertion order.
type Item struct {
	ids   []string
	props map[string]Property
}

// New creates an empty item.
func New() *Item {
	return &Item{props: make(map[string]Property)}
}

// AddProperty attaches p under id. Returns common.ErrExists if id is taken.
func (it *Item) AddProperty(id string, p Property) error {
	if _, ok := it.props[id]; ok {
		return fmt.Errorf("property %q: %w", id, common.ErrExists)
	}
	it.ids = append(it.ids, id)
	it.props[id] = p
	return nil
}

// PropertyIDs returns the property ids in insertion order.
func (it *Item) PropertyIDs() []string {
	return append([]string(nil), it.ids...)
}

// Property returns the property with the given id, or nil.
func (it *Item) Property(id string) Property {
	return it.props[id]
}

// Value returns the value of property id, or nil if absent.
func (it *Item) Value(id string) any {
	p := it.props[id]
	if p == nil {
		return nil
	}
	return p.Value()
}

// SetValue writes v to property id.
func (it *Item) SetValue(id string, v any) error {
	p := it.props[id]
	if p == nil {
		return fmt.Errorf("property %q: %w", id, common.ErrNotFound)
	}
	return p.SetValue(v)
}

// Status returns the item status. ok is false when the item does not carry
// a status property, in which case status tracking is disabled for it.
func (it *Item) Status() (status Status, ok bool) {
	p := it.props[PropertyIDItemStatus]
	if p == nil {
		return StatusNone, false
	}
	s, _ := p.Value().(Status)
	return s, true
}

// SetStatus writes the status property with SetPrivileged.
// No-op for items without a status property.
func (it *Item) SetStatus(s Status) error {
	return it.setPrivileged(PropertyIDItemStatus, s)
}

// Stamp writes a reserved debug property if the item carries it.
func (it *Item) Stamp(id string, v any) error {
	return it.setPrivileged(id, v)
}

func (it *Item) setPrivileged(id string, v any) error {
	p := it.props[id]
	if p == nil {
		return nil
	}
	return SetPrivileged(p, v)
}

// Freeze makes every property read-only and returns the ids of the
// properties that were writable before.
func (it *Item) Freeze() []string {
	var thawed []string
	for _, id := range it.ids {
		p := it.props[id]
		if !p.ReadOnly() {
			thawed = append(thawed, id)
			p.SetReadOnly(true)
		}
	}
	return thawed
}

// Thaw clears the read-only flag of the given properties.
func (it *Item) Thaw(ids []string) {
	for _, id := range ids {
		if p := it.props[id]; p != nil {
			p.SetReadOnly(false)
		}
	}
}

// Notifiers returns the properties that support value change notification,
// in property order.
func (it *Item) Notifiers() []Property {
	var out []Property
	for _, id := range it.ids {
		p := it.props[id]
		if _, ok := p.(ValueChangeNotifier); ok {
			out = append(out, p)
		}
	}
	return out
}
