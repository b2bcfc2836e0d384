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

// Package cache provides the item cache used by the lazy view.
//
// Design Principles:
// 1. Eviction is explicit - Put never drops entries; the owner calls Evict
// 2. Pinned entries survive eviction - the owner decides what is dirty
//
// Currently provides:
// - LRU: backing index keyed cache with least-recently-used eviction that skips pinned entries
//
// Not thread-safe. The view that owns the cache drives it from a single goroutine.
package cache

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxSize is the cache bound used when none is configured.
const DefaultMaxSize = 1000

// LRU maps backing indices to values and keeps them in access order.
// The key order doubles as the access log: oldest first, most recent last.
type LRU[V any] struct {
	entries   *simplelru.LRU[int, V]
	maxSize   int
	evictions int
}

// New creates a cache bounded to maxSize entries (DefaultMaxSize if maxSize < 1).
func New[V any](maxSize int) *LRU[V] {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}
	// The underlying list is unbounded so that Put never evicts on its own;
	// NewLRU only fails for non-positive sizes.
	entries, _ := simplelru.NewLRU[int, V](math.MaxInt, nil)
	return &LRU[V]{entries: entries, maxSize: maxSize}
}

// Get returns the value at index and marks it most recently used.
func (c *LRU[V]) Get(index int) (V, bool) {
	return c.entries.Get(index)
}

// Peek returns the value at index without touching the access order.
func (c *LRU[V]) Peek(index int) (V, bool) {
	return c.entries.Peek(index)
}

func (c *LRU[V]) Contains(index int) bool {
	return c.entries.Contains(index)
}

// Put stores v at index as the most recently used entry.
func (c *LRU[V]) Put(index int, v V) {
	c.entries.Add(index, v)
}

// Remove deletes index. Returns false if it was not cached.
func (c *LRU[V]) Remove(index int) bool {
	return c.entries.Remove(index)
}

func (c *LRU[V]) Len() int {
	return c.entries.Len()
}

func (c *LRU[V]) MaxSize() int {
	return c.maxSize
}

// Evictions returns the number of entries dropped by Evict since creation.
func (c *LRU[V]) Evictions() int {
	return c.evictions
}

// Keys returns the cached indices, least recently used first.
func (c *LRU[V]) Keys() []int {
	return c.entries.Keys()
}

// Values returns the cached values, least recently used first.
func (c *LRU[V]) Values() []V {
	return c.entries.Values()
}

// Purge drops every entry without calling any callback.
func (c *LRU[V]) Purge() {
	c.entries.Purge()
}

// Evict shrinks the cache to MaxSize by dropping the least recently used
// entries. Entries for which pinned returns true are rotated to the most
// recent end instead. The loop stops after one full pass over the entries
// present when it started, so the cache stays oversized when every entry is
// pinned. onEvict is called for every dropped entry. Returns the number of
// dropped entries.
func (c *LRU[V]) Evict(pinned func(V) bool, onEvict func(index int, v V)) int {
	dropped := 0
	counter := 0
	limit := c.entries.Len()
	for c.entries.Len() > c.maxSize {
		index, v, ok := c.entries.GetOldest()
		if !ok {
			break
		}
		if pinned == nil || !pinned(v) {
			c.entries.Remove(index)
			dropped++
			if onEvict != nil {
				onEvict(index, v)
			}
		} else {
			c.entries.Get(index)
		}

		counter++
		if counter > limit {
			break
		}
	}
	c.evictions += dropped
	return dropped
}
