package view

import (
	"context"
	"reflect"

	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

type loadCall struct {
	start, count int
}

type saveCall struct {
	added, modified, removed []*item.Item
}

// fakeFactory serves rows labelled 0..n-1 and records every call.
type fakeFactory struct {
	def     *query.Definition
	rows    []map[string]any
	queries []*fakeQuery

	loadErr  error
	saveErr  error
	shortBy  int
	static   bool // attach a non-notifying property to loaded items
	sortSeen [][]query.SortKey
}

func newFakeFactory(n int) *fakeFactory {
	f := &fakeFactory{}
	for i := 0; i < n; i++ {
		f.rows = append(f.rows, map[string]any{"label": i, "name": "row"})
	}
	return f
}

func (f *fakeFactory) SetDefinition(def *query.Definition) {
	f.def = def
}

func (f *fakeFactory) ConstructQuery(_ context.Context, keys []query.SortKey) (query.Query, error) {
	f.sortSeen = append(f.sortSeen, keys)
	q := &fakeQuery{f: f, size: len(f.rows)}
	f.queries = append(f.queries, q)
	return q, nil
}

func (f *fakeFactory) current() *fakeQuery {
	return f.queries[len(f.queries)-1]
}

func (f *fakeFactory) loads() []loadCall {
	var all []loadCall
	for _, q := range f.queries {
		all = append(all, q.loads...)
	}
	return all
}

type fakeQuery struct {
	f       *fakeFactory
	size    int
	loads   []loadCall
	saves   []saveCall
	deleted int
}

func (q *fakeQuery) Size(context.Context) (int, error) {
	return q.size, nil
}

func (q *fakeQuery) LoadItems(_ context.Context, start, count int) ([]*item.Item, error) {
	if q.f.loadErr != nil {
		return nil, q.f.loadErr
	}
	q.loads = append(q.loads, loadCall{start, count})
	var items []*item.Item
	for i := start; i < start+count-q.f.shortBy; i++ {
		it := q.f.def.NewItem(q.f.rows[i])
		if q.f.static {
			_ = it.AddProperty("static", staticProperty{})
		}
		items = append(items, it)
	}
	return items, nil
}

func (q *fakeQuery) ConstructItem() (*item.Item, error) {
	return q.f.def.NewItem(nil), nil
}

func (q *fakeQuery) SaveItems(_ context.Context, added, modified, removed []*item.Item) error {
	if q.f.saveErr != nil {
		return q.f.saveErr
	}
	q.saves = append(q.saves, saveCall{added, modified, removed})
	for _, it := range added {
		q.f.rows = append(q.f.rows, map[string]any{"label": it.Value("label"), "name": it.Value("name")})
	}
	return nil
}

func (q *fakeQuery) DeleteAllItems(context.Context) error {
	q.deleted++
	q.f.rows = nil
	return nil
}

// staticProperty is a property without change notification.
type staticProperty struct{}

func (staticProperty) Value() any { return "static" }
func (staticProperty) SetValue(any) error { return nil }
func (staticProperty) Type() reflect.Type { return nil }
func (staticProperty) ReadOnly() bool { return true }
func (staticProperty) SetReadOnly(bool) {}
