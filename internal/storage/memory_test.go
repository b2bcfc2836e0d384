package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

func memoryQueryOver(t *testing.T, s *MemoryStore, def *query.Definition, keys ...query.SortKey) query.Query {
	t.Helper()
	f := NewMemoryFactory(s)
	f.SetDefinition(def)
	q, err := f.ConstructQuery(context.Background(), keys)
	require.NoError(t, err)
	return q
}

func TestMemoryQuery_LoadItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	def := testDefinition(t)
	s.Insert(
		map[string]any{"name": "charlie", "count": 3},
		map[string]any{"name": "alpha", "count": 1},
		map[string]any{"name": "bravo", "count": 2},
	)

	t.Run("insertion order without native sort", func(t *testing.T) {
		t.Parallel()
		items, err := memoryQueryOver(t, s, def).LoadItems(ctx, 0, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie", "alpha", "bravo"}, names(items))
	})

	t.Run("sorted", func(t *testing.T) {
		t.Parallel()
		q := memoryQueryOver(t, s, def, query.SortKey{PropertyID: "name", Ascending: false})
		items, err := q.LoadItems(ctx, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie", "bravo"}, names(items))
	})

	t.Run("native sort", func(t *testing.T) {
		t.Parallel()
		f := NewMemoryFactory(s, query.SortKey{PropertyID: "count", Ascending: true})
		f.SetDefinition(def)
		q, err := f.ConstructQuery(ctx, nil)
		require.NoError(t, err)
		items, err := q.LoadItems(ctx, 0, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names(items))
	})

	t.Run("window past the end", func(t *testing.T) {
		t.Parallel()
		_, err := memoryQueryOver(t, s, def).LoadItems(ctx, 2, 2)
		assert.ErrorIs(t, err, common.ErrShortBatch)
	})

	t.Run("unsortable property", func(t *testing.T) {
		t.Parallel()
		f := NewMemoryFactory(s)
		f.SetDefinition(def)
		_, err := f.ConstructQuery(ctx, []query.SortKey{{PropertyID: "note", Ascending: true}})
		assert.ErrorIs(t, err, common.ErrInvalidSortSpec)
	})
}

func TestMemoryQuery_Snapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	s.Insert(map[string]any{"name": "alpha"})

	q := memoryQueryOver(t, s, testDefinition(t))
	s.Insert(map[string]any{"name": "bravo"})

	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryQuery_SaveItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	def := testDefinition(t)
	ids := s.Insert(map[string]any{"name": "alpha"}, map[string]any{"name": "bravo"})

	q := memoryQueryOver(t, s, def)
	items, err := q.LoadItems(ctx, 0, 2)
	require.NoError(t, err)
	require.NoError(t, items[0].SetValue("note", "edited"))

	older, err := q.ConstructItem()
	require.NoError(t, err)
	require.NoError(t, older.SetValue("name", "one"))
	newer, err := q.ConstructItem()
	require.NoError(t, err)
	require.NoError(t, newer.SetValue("name", "two"))

	require.NoError(t, q.SaveItems(ctx, []*item.Item{newer, older}, items[:1], items[1:]))
	assert.Equal(t, 1, s.Saves())

	got, err := s.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "edited", got["note"])
	_, err = s.Get(ids[1])
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := memoryQueryOver(t, s, def).LoadItems(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "one", "two"}, names(all))
}

func TestMemoryQuery_SaveItemsUnknownID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	def := testDefinition(t)
	s.Insert(map[string]any{"name": "alpha"})

	q := memoryQueryOver(t, s, def)
	added, err := q.ConstructItem()
	require.NoError(t, err)
	ghost := buildItem(def, "ghost", nil)

	err = q.SaveItems(ctx, []*item.Item{added}, nil, []*item.Item{ghost})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 1, s.Len(), "nothing applied")
	assert.Equal(t, 0, s.Saves())
}

func TestMemoryQuery_DeleteAllItems(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	s.Insert(map[string]any{"name": "alpha"})

	require.NoError(t, memoryQueryOver(t, s, testDefinition(t)).DeleteAllItems(context.Background()))
	assert.Equal(t, 0, s.Len())
}

func TestCompareValues(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"nil first", nil, 1, -1},
		{"equal nils", nil, nil, 0},
		{"ints", 1, 2, -1},
		{"mixed numbers", 2.5, 2, 1},
		{"strings", "b", "a", 1},
		{"times", now, now.Add(time.Second), -1},
		{"bools", false, true, -1},
		{"numbers before strings", 10, "1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, compareValues(tt.a, tt.b))
		})
	}
}
