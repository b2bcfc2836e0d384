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

// Package view implements LazyView, a lazily loaded, batch fetched and LRU
// cached window over a query, with buffered edits.
//
// # Index spaces
//
// The view exposes virtual indices [0, Size). Items added with AddItem are
// kept in memory in front of the backing items, newest first, so virtual
// index v maps to the overlay when v < len(added) and to backing index
// v - len(added) otherwise (see backingIndex).
//
// # Loading
//
// A cache miss at backing index b loads the batch window that contains b,
// aligned on the definition's batch size. Loaded items are stamped with the
// debug properties they carry, registered for value change notification and
// enrolled in the cache. The cache is then shrunk back to its bound, skipping
// dirty (modified or removed) items.
//
// # Edits
//
// Writes to a cached item's properties mark it modified. RemoveItem marks an
// item removed and freezes it. Commit hands the pending edits to the query;
// Discard drops them. Neither reloads the cache; call Refresh for that.
//
// Not thread-safe. All calls, including property writes on items obtained
// from the view, must come from the same goroutine.
package view

import (
	"context"
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"lazyquery/internal/cache"
	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

// Option configures a LazyView.
type Option func(*LazyView)

// WithMaxCacheSize bounds the number of cached backing items.
func WithMaxCacheSize(n int) Option {
	return func(v *LazyView) {
		if n > 0 {
			v.maxCacheSize = n
		}
	}
}

// Stats is a snapshot of view counters.
type Stats struct {
	QueryCount  int
	BatchLoads  int
	CacheHits   int
	CacheMisses int
	Evictions   int
	CacheSize   int
	Listeners   int
	Added       int
	Modified    int
	Removed     int
}

// LazyView is the view engine. Create with New or NewWithBatchSize.
type LazyView struct {
	definition *query.Definition
	factory    query.Factory
	query      query.Query // nil until first use and after Refresh

	sortKeys []query.SortKey

	maxCacheSize int
	cache        *cache.LRU[*item.Item]
	// owners resolves value change events back to the item that owns the
	// property. Holds exactly the properties the view listens to.
	owners map[item.Property]*item.Item

	added    []*item.Item // newest first
	modified *orderedmap.OrderedMap[*item.Item, struct{}]
	// removed maps each removed item to the properties that were writable
	// before it was frozen.
	removed *orderedmap.OrderedMap[*item.Item, []string]

	queryCount  int
	batchCount  int // batch loads on the current query
	batchLoads  int
	cacheHits   int
	cacheMisses int
}

var _ item.ValueChangeListener = (*LazyView)(nil)

// New creates a view over queries built by factory for def.
func New(def *query.Definition, factory query.Factory, opts ...Option) *LazyView {
	v := &LazyView{
		definition:   def,
		factory:      factory,
		maxCacheSize: cache.DefaultMaxSize,
		owners:       make(map[item.Property]*item.Item),
		modified:     orderedmap.New[*item.Item, struct{}](),
		removed:      orderedmap.New[*item.Item, []string](),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.cache = cache.New[*item.Item](v.maxCacheSize)
	factory.SetDefinition(def)
	return v
}

// NewWithBatchSize creates a view with an empty definition of the given batch size.
func NewWithBatchSize(factory query.Factory, batchSize int, opts ...Option) *LazyView {
	return New(query.NewDefinition(batchSize), factory, opts...)
}

func (v *LazyView) Definition() *query.Definition {
	return v.definition
}

func (v *LazyView) BatchSize() int {
	return v.definition.BatchSize()
}

func (v *LazyView) MaxCacheSize() int {
	return v.maxCacheSize
}

// SortKeys returns the current sort order.
func (v *LazyView) SortKeys() []query.SortKey {
	return slices.Clone(v.sortKeys)
}

// QueryCount returns how many queries the view has constructed.
func (v *LazyView) QueryCount() int {
	return v.queryCount
}

func (v *LazyView) getQuery(ctx context.Context) (query.Query, error) {
	if v.query != nil {
		return v.query, nil
	}
	q, err := v.factory.ConstructQuery(ctx, v.SortKeys())
	if err != nil {
		return nil, err
	}
	v.query = q
	v.queryCount++
	v.batchCount = 0
	log.Debugf("[LazyView] constructed query #%d sort=%v", v.queryCount, v.sortKeys)
	return q, nil
}

// backingIndex maps a virtual index to an overlay slot (backing=false) or
// a backing index (backing=true).
func (v *LazyView) backingIndex(index int) (i int, backing bool) {
	if index < len(v.added) {
		return index, false
	}
	return index - len(v.added), true
}

// Size returns the number of added items plus the backing query size.
func (v *LazyView) Size(ctx context.Context) (int, error) {
	q, err := v.getQuery(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.Size(ctx)
	if err != nil {
		return 0, err
	}
	return len(v.added) + n, nil
}

// Item returns the item at virtual index. Fails with common.ErrIndexOutOfRange
// when index is outside [0, Size).
func (v *LazyView) Item(ctx context.Context, index int) (*item.Item, error) {
	size, err := v.Size(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= size {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", common.ErrIndexOutOfRange, index, size)
	}

	b, backing := v.backingIndex(index)
	if !backing {
		return v.added[b], nil
	}
	if it, ok := v.cache.Get(b); ok {
		v.cacheHits++
		return it, nil
	}
	v.cacheMisses++
	return v.loadBatch(ctx, b)
}

// loadBatch loads the window containing backing index b and returns the item at b.
// Nothing is cached when the query fails.
func (v *LazyView) loadBatch(ctx context.Context, b int) (*item.Item, error) {
	q, err := v.getQuery(ctx)
	if err != nil {
		return nil, err
	}
	total, err := q.Size(ctx)
	if err != nil {
		return nil, err
	}
	batchSize := v.BatchSize()
	start := b - b%batchSize
	count := min(batchSize, total-start)
	if count <= 0 {
		return nil, fmt.Errorf("%w: start=%d size=%d", common.ErrEmptyWindow, start, total)
	}

	began := time.Now()
	items, err := q.LoadItems(ctx, start, count)
	elapsed := time.Since(began)
	if err != nil {
		return nil, err
	}
	if len(items) < count {
		return nil, fmt.Errorf("%w: got %d of %d at %d", common.ErrShortBatch, len(items), count, start)
	}

	batchIndex := v.batchCount
	v.batchCount++
	v.batchLoads++

	for j := 0; j < count; j++ {
		index := start + j
		// An entry that survived eviction may be dirty; keep it over the fresh copy.
		if _, ok := v.cache.Get(index); ok {
			continue
		}
		it := items[j]
		v.stamp(it, batchIndex, elapsed)
		v.cache.Put(index, it)
		v.register(it)
	}

	requested, _ := v.cache.Peek(b)
	evicted := v.cache.Evict(
		func(it *item.Item) bool { return it == requested || v.isDirty(it) },
		func(_ int, it *item.Item) { v.unregister(it) },
	)

	log.Debugf("[LazyView] loadBatch: query=%d batch=%d start=%d count=%d elapsed=%s evicted=%d cached=%d",
		v.queryCount, batchIndex, start, count, elapsed, evicted, v.cache.Len())
	return requested, nil
}

func (v *LazyView) stamp(it *item.Item, batchIndex int, elapsed time.Duration) {
	stamps := []struct {
		id    string
		value any
	}{
		{item.DebugPropertyIDBatchIndex, batchIndex},
		{item.DebugPropertyIDQueryIndex, v.queryCount},
		{item.DebugPropertyIDBatchQueryTime, elapsed.Milliseconds()},
	}
	for _, s := range stamps {
		if err := it.Stamp(s.id, s.value); err != nil {
			log.Warnf("[LazyView] stamp %s: %v", s.id, err)
		}
	}
}

func (v *LazyView) register(it *item.Item) {
	for _, p := range it.Notifiers() {
		p.(item.ValueChangeNotifier).AddListener(v)
		v.owners[p] = it
	}
}

func (v *LazyView) unregister(it *item.Item) {
	for _, p := range it.Notifiers() {
		if _, ok := v.owners[p]; !ok {
			continue
		}
		p.(item.ValueChangeNotifier).RemoveListener(v)
		delete(v.owners, p)
	}
}

func (v *LazyView) isDirty(it *item.Item) bool {
	if _, ok := v.modified.Get(it); ok {
		return true
	}
	_, ok := v.removed.Get(it)
	return ok
}

// ValueChange marks the owner of the changed property as modified.
// Changes of the status property itself are ignored.
func (v *LazyView) ValueChange(ev item.ValueChangeEvent) error {
	it, ok := v.owners[ev.Property]
	if !ok {
		log.Errorf("[LazyView] value change from unregistered property %p", ev.Property)
		return common.ErrUnknownProperty
	}
	if ev.Property == it.Property(item.PropertyIDItemStatus) {
		return nil
	}
	if status, ok := it.Status(); ok && status != item.StatusModified {
		if err := it.SetStatus(item.StatusModified); err != nil {
			return err
		}
	}
	v.modified.Set(it, struct{}{})
	return nil
}

// AddItem prepends a blank item built by the query and returns its index, always 0.
func (v *LazyView) AddItem(ctx context.Context) (int, error) {
	q, err := v.getQuery(ctx)
	if err != nil {
		return 0, err
	}
	it, err := q.ConstructItem()
	if err != nil {
		return 0, err
	}
	if err := it.SetStatus(item.StatusAdded); err != nil {
		return 0, err
	}
	v.added = append([]*item.Item{it}, v.added...)
	return 0, nil
}

// RemoveItem marks the item at index removed and freezes its properties.
// Removing an added item cancels the addition instead: the item leaves the
// overlay and is never handed to SaveItems.
func (v *LazyView) RemoveItem(ctx context.Context, index int) error {
	it, err := v.Item(ctx, index)
	if err != nil {
		return err
	}
	if _, ok := v.removed.Get(it); ok {
		return nil
	}
	if err := it.SetStatus(item.StatusRemoved); err != nil {
		return err
	}
	thawed := it.Freeze()

	if i := slices.Index(v.added, it); i >= 0 {
		v.added = slices.Delete(v.added, i, i+1)
		return nil
	}
	v.modified.Delete(it)
	v.removed.Set(it, thawed)
	return nil
}

// RemoveAllItems deletes every backing item and refreshes the view.
func (v *LazyView) RemoveAllItems(ctx context.Context) error {
	q, err := v.getQuery(ctx)
	if err != nil {
		return err
	}
	if err := q.DeleteAllItems(ctx); err != nil {
		return err
	}
	v.Refresh()
	return nil
}

// Sort replaces the sort order and refreshes the view. Fails with
// common.ErrInvalidSortSpec when the slices differ in length.
func (v *LazyView) Sort(propertyIDs []string, ascending []bool) error {
	keys, err := query.SortKeys(propertyIDs, ascending)
	if err != nil {
		return err
	}
	v.sortKeys = keys
	v.Refresh()
	return nil
}

// Refresh deregisters every listener, drops the query and the cache, and
// discards pending edits. The next access constructs a new query.
func (v *LazyView) Refresh() {
	for p := range v.owners {
		if n, ok := p.(item.ValueChangeNotifier); ok {
			n.RemoveListener(v)
		}
	}
	clear(v.owners)
	v.query = nil
	v.cache.Purge()
	v.Discard()
	log.Debugf("[LazyView] refreshed (queries constructed so far: %d)", v.queryCount)
}

// IsModified reports whether there are pending edits.
func (v *LazyView) IsModified() bool {
	return len(v.added) > 0 || v.modified.Len() > 0 || v.removed.Len() > 0
}

// Commit saves pending edits through the query. On failure the pending
// edits and item statuses are left untouched so the caller can retry.
// The cache is not reloaded.
func (v *LazyView) Commit(ctx context.Context) error {
	if !v.IsModified() {
		return nil
	}
	q, err := v.getQuery(ctx)
	if err != nil {
		return err
	}
	added, modified, removed := v.Pending()
	if err := q.SaveItems(ctx, added, modified, removed); err != nil {
		return err
	}
	v.resetStatuses()
	v.clearPending()
	log.Debugf("[LazyView] committed added=%d modified=%d removed=%d", len(added), len(modified), len(removed))
	return nil
}

// Discard drops pending edits without touching the query. Removed items get
// their writable properties back. Values already written to modified items
// stay in the cache until the next Refresh.
func (v *LazyView) Discard() {
	v.resetStatuses()
	for pair := v.removed.Oldest(); pair != nil; pair = pair.Next() {
		pair.Key.Thaw(pair.Value)
	}
	v.clearPending()
}

// Pending returns copies of the added (newest first), modified and removed sets.
func (v *LazyView) Pending() (added, modified, removed []*item.Item) {
	added = slices.Clone(v.added)
	modified = make([]*item.Item, 0, v.modified.Len())
	for pair := v.modified.Oldest(); pair != nil; pair = pair.Next() {
		modified = append(modified, pair.Key)
	}
	removed = make([]*item.Item, 0, v.removed.Len())
	for pair := v.removed.Oldest(); pair != nil; pair = pair.Next() {
		removed = append(removed, pair.Key)
	}
	return added, modified, removed
}

func (v *LazyView) resetStatuses() {
	added, modified, removed := v.Pending()
	for _, set := range [][]*item.Item{added, modified, removed} {
		for _, it := range set {
			if err := it.SetStatus(item.StatusNone); err != nil {
				log.Warnf("[LazyView] reset status: %v", err)
			}
		}
	}
}

func (v *LazyView) clearPending() {
	v.added = nil
	v.modified = orderedmap.New[*item.Item, struct{}]()
	v.removed = orderedmap.New[*item.Item, []string]()
}

// CachedIndices returns the cached backing indices, least recently used first.
func (v *LazyView) CachedIndices() []int {
	return v.cache.Keys()
}

// Stats returns a snapshot of the view counters.
func (v *LazyView) Stats() Stats {
	return Stats{
		QueryCount:  v.queryCount,
		BatchLoads:  v.batchLoads,
		CacheHits:   v.cacheHits,
		CacheMisses: v.cacheMisses,
		Evictions:   v.cache.Evictions(),
		CacheSize:   v.cache.Len(),
		Listeners:   len(v.owners),
		Added:       len(v.added),
		Modified:    v.modified.Len(),
		Removed:     v.removed.Len(),
	}
}
