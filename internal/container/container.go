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

// Package container adapts a LazyView to the consumer facing read/write API.
//
// Items are addressed by virtual index. Unlike the bare view, Commit and
// Discard refresh the view so that the next read reflects the backing store.
package container

import (
	"context"
	"fmt"
	"reflect"

	log "github.com/sirupsen/logrus"

	"lazyquery/internal/item"
	"lazyquery/internal/query"
	"lazyquery/internal/view"
)

// Container is a lazily loaded, sortable, editable list of items.
type Container struct {
	definition *query.Definition
	factory    query.Factory
	view       *view.LazyView
}

// New creates a container over queries built by factory.
func New(def *query.Definition, factory query.Factory, opts ...view.Option) *Container {
	return &Container{
		definition: def,
		factory:    factory,
		view:       view.New(def, factory, opts...),
	}
}

// View exposes the underlying engine, mainly for diagnostics.
func (c *Container) View() *view.LazyView {
	return c.view
}

func (c *Container) Definition() *query.Definition {
	return c.definition
}

func (c *Container) Size(ctx context.Context) (int, error) {
	return c.view.Size(ctx)
}

func (c *Container) BatchSize() int {
	return c.view.BatchSize()
}

// Item returns the item at index.
func (c *Container) Item(ctx context.Context, index int) (*item.Item, error) {
	return c.view.Item(ctx, index)
}

// ContainsID reports whether index addresses an item.
func (c *Container) ContainsID(ctx context.Context, index int) (bool, error) {
	size, err := c.view.Size(ctx)
	if err != nil {
		return false, err
	}
	return index >= 0 && index < size, nil
}

// Items returns up to count items starting at start. The range is clamped
// to the container size.
func (c *Container) Items(ctx context.Context, start, count int) ([]*item.Item, error) {
	size, err := c.view.Size(ctx)
	if err != nil {
		return nil, err
	}
	start = max(start, 0)
	end := min(start+max(count, 0), size)
	var items []*item.Item
	for i := start; i < end; i++ {
		it, err := c.view.Item(ctx, i)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (c *Container) PropertyIDs() []string {
	return c.definition.PropertyIDs()
}

// Type returns the declared type of property id, or nil if unknown.
func (c *Container) Type(id string) reflect.Type {
	p, ok := c.definition.Property(id)
	if !ok {
		return nil
	}
	return p.Type
}

func (c *Container) SortablePropertyIDs() []string {
	return c.definition.SortablePropertyIDs()
}

// Sort orders the container by the given properties. The factory decides
// which keys it accepts when it implements query.SortValidator; otherwise
// every property must be sortable in the definition.
func (c *Container) Sort(propertyIDs []string, ascending []bool) error {
	keys, err := query.SortKeys(propertyIDs, ascending)
	if err != nil {
		return err
	}
	if sv, ok := c.factory.(query.SortValidator); ok {
		err = sv.ValidateSortKeys(keys)
	} else {
		err = query.ValidateSortKeys(c.definition, keys)
	}
	if err != nil {
		return err
	}
	return c.view.Sort(propertyIDs, ascending)
}

// AddItem prepends a new item and returns its index (always 0).
func (c *Container) AddItem(ctx context.Context) (int, error) {
	return c.view.AddItem(ctx)
}

func (c *Container) RemoveItem(ctx context.Context, index int) error {
	return c.view.RemoveItem(ctx, index)
}

// RemoveAllItems deletes every item in the backing store.
func (c *Container) RemoveAllItems(ctx context.Context) error {
	return c.view.RemoveAllItems(ctx)
}

// AddContainerProperty adds a writable, sortable property to the schema and
// refreshes. Pending edits are discarded.
func (c *Container) AddContainerProperty(id string, typ reflect.Type, defaultValue any) error {
	if err := c.definition.AddProperty(id, typ, defaultValue, false, true); err != nil {
		return fmt.Errorf("add container property: %w", err)
	}
	log.Debugf("[Container] added property %q (%v)", id, typ)
	c.view.Refresh()
	return nil
}

// RemoveContainerProperty drops a property from the schema and refreshes.
func (c *Container) RemoveContainerProperty(id string) error {
	if err := c.definition.RemoveProperty(id); err != nil {
		return fmt.Errorf("remove container property: %w", err)
	}
	log.Debugf("[Container] removed property %q", id)
	c.view.Refresh()
	return nil
}

// Commit saves pending edits and refreshes so that the saved state is visible.
func (c *Container) Commit(ctx context.Context) error {
	if err := c.view.Commit(ctx); err != nil {
		return err
	}
	c.view.Refresh()
	return nil
}

// Discard drops pending edits and reloads from the backing store.
func (c *Container) Discard() {
	c.view.Refresh()
}

func (c *Container) IsModified() bool {
	return c.view.IsModified()
}

func (c *Container) Refresh() {
	c.view.Refresh()
}
