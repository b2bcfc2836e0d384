package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
	"lazyquery/internal/query"
)

// testStore creates a temporary store for testing.
// Uses t.TempDir() which automatically cleans up after the test.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.lazyquery")
	s, err := Create(path)
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func testDefinition(t *testing.T) *query.Definition {
	t.Helper()
	def := query.NewDefinition(10)
	require.NoError(t, def.AddProperty("name", item.TypeOf[string](), "", false, true))
	require.NoError(t, def.AddProperty("count", item.TypeOf[int](), 0, false, true))
	require.NoError(t, def.AddProperty("note", item.TypeOf[string](), "", false, false))
	return def
}

func sqlQueryOver(t *testing.T, s *Store, def *query.Definition, keys ...query.SortKey) query.Query {
	t.Helper()
	f, err := NewFactory(s, []query.SortKey{{PropertyID: "name", Ascending: true}})
	require.NoError(t, err)
	f.SetDefinition(def)
	q, err := f.ConstructQuery(context.Background(), keys)
	require.NoError(t, err)
	return q
}

func names(items []*item.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value("name").(string))
	}
	return out
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates new file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "new.lazyquery")

		s, err := Create(path)
		require.NoError(t, err)
		defer s.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err, "store file should exist")
		assert.Equal(t, path, s.Path())

		version, err := s.BunDB().GetSchemaInfo(context.Background(), "version")
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, version)
	})

	t.Run("fails when file already exists", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		_, err := Create(s.Path())
		assert.ErrorIs(t, err, common.ErrExists)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("opens existing store", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "reopen.lazyquery")
		s, err := Create(path)
		require.NoError(t, err)
		_, err = s.Insert(context.Background(), map[string]any{"name": "alpha"})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s, err = Open(path)
		require.NoError(t, err)
		defer s.Close()
		n, err := s.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("fails for missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Open(filepath.Join(t.TempDir(), "missing.lazyquery"))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestStore_InsertGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	ids, err := s.Insert(ctx,
		map[string]any{"name": "alpha", "count": 1},
		map[string]any{"name": "beta", "count": 2},
	)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	got, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "beta", got["name"])
	assert.EqualValues(t, 2, got["count"])

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNewFactory_RequiresNativeSort(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	_, err := NewFactory(s, nil)
	assert.ErrorIs(t, err, common.ErrInvalidSortSpec)
}

func TestFactory_ConstructQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	f, err := NewFactory(s, []query.SortKey{{PropertyID: "name", Ascending: true}})
	require.NoError(t, err)

	_, err = f.ConstructQuery(ctx, nil)
	assert.ErrorIs(t, err, common.ErrInvalidProperty, "no definition yet")

	f.SetDefinition(testDefinition(t))
	_, err = f.ConstructQuery(ctx, []query.SortKey{{PropertyID: "note", Ascending: true}})
	assert.ErrorIs(t, err, common.ErrInvalidSortSpec, "note is not sortable")

	_, err = f.ConstructQuery(ctx, []query.SortKey{{PropertyID: KeyPropertyID, Ascending: false}})
	assert.NoError(t, err, "key is always sortable")
}

func TestSQLQuery_LoadItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	def := testDefinition(t)

	_, err := s.Insert(ctx,
		map[string]any{"name": "charlie", "count": 3},
		map[string]any{"name": "alpha", "count": 1},
		map[string]any{"name": "bravo", "count": 2},
	)
	require.NoError(t, err)

	t.Run("native sort", func(t *testing.T) {
		q := sqlQueryOver(t, s, def)
		size, err := q.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, size)

		items, err := q.LoadItems(ctx, 0, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names(items))
		assert.Equal(t, 1, items[0].Value("count"), "json numbers coerce to int")
		assert.True(t, items[0].Property(KeyPropertyID).ReadOnly())
	})

	t.Run("explicit descending sort", func(t *testing.T) {
		q := sqlQueryOver(t, s, def, query.SortKey{PropertyID: "count", Ascending: false})
		items, err := q.LoadItems(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"bravo", "alpha"}, names(items))
	})

	t.Run("short window", func(t *testing.T) {
		q := sqlQueryOver(t, s, def)
		_, err := q.LoadItems(ctx, 2, 5)
		assert.ErrorIs(t, err, common.ErrShortBatch)
	})

	t.Run("size is stable for the query lifetime", func(t *testing.T) {
		q := sqlQueryOver(t, s, def)
		size, err := q.Size(ctx)
		require.NoError(t, err)
		_, err = s.Insert(ctx, map[string]any{"name": "delta"})
		require.NoError(t, err)
		again, err := q.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, size, again)
	})
}

func TestSQLQuery_SortByQuotedLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	const rank = "rank <&> größe"
	def := query.NewDefinition(10)
	require.NoError(t, def.AddProperty("name", item.TypeOf[string](), "", false, true))
	require.NoError(t, def.AddProperty(rank, item.TypeOf[int](), 0, false, true))

	_, err := s.Insert(ctx,
		map[string]any{"name": "alpha", rank: 2},
		map[string]any{"name": "bravo", rank: 3},
		map[string]any{"name": "charlie", rank: 1},
	)
	require.NoError(t, err)

	q := sqlQueryOver(t, s, def, query.SortKey{PropertyID: rank, Ascending: false})
	items, err := q.LoadItems(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha", "charlie"}, names(items))
	assert.Equal(t, 3, items[0].Value(rank))
}

func TestSQLQuery_SaveItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	def := testDefinition(t)
	require.NoError(t, def.AddDebugProperties())

	ids, err := s.Insert(ctx,
		map[string]any{"name": "alpha", "count": 1},
		map[string]any{"name": "bravo", "count": 2},
	)
	require.NoError(t, err)

	q := sqlQueryOver(t, s, def)
	items, err := q.LoadItems(ctx, 0, 2)
	require.NoError(t, err)

	first, err := q.ConstructItem()
	require.NoError(t, err)
	require.NoError(t, first.SetValue("name", "carol"))
	second, err := q.ConstructItem()
	require.NoError(t, err)
	require.NoError(t, second.SetValue("name", "carol"))
	require.NotEqual(t, first.Value(KeyPropertyID), second.Value(KeyPropertyID))

	require.NoError(t, items[0].SetValue("count", 10))

	// newest first, as a view hands them over
	require.NoError(t, q.SaveItems(ctx, []*item.Item{second, first}, items[:1], items[1:]))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	updated, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.EqualValues(t, 10, updated["count"])
	assert.NotContains(t, updated, item.PropertyIDItemStatus, "reserved properties are not stored")
	assert.NotContains(t, updated, KeyPropertyID)

	_, err = s.Get(ctx, ids[1])
	assert.ErrorIs(t, err, common.ErrNotFound)

	// equal names fall back to insertion order
	reloaded, err := sqlQueryOver(t, s, def).LoadItems(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, first.Value(KeyPropertyID), reloaded[1].Value(KeyPropertyID))
	assert.Equal(t, second.Value(KeyPropertyID), reloaded[2].Value(KeyPropertyID))
}

func TestSQLQuery_SaveItemsIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)
	def := testDefinition(t)

	_, err := s.Insert(ctx, map[string]any{"name": "alpha"})
	require.NoError(t, err)
	q := sqlQueryOver(t, s, def)

	added, err := q.ConstructItem()
	require.NoError(t, err)
	ghost := buildItem(def, "ghost", map[string]any{"name": "ghost"})

	err = q.SaveItems(ctx, []*item.Item{added}, []*item.Item{ghost}, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "insert rolled back with the failed update")
}

func TestSQLQuery_DeleteAllItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	_, err := s.Insert(ctx, map[string]any{"name": "a"}, map[string]any{"name": "b"})
	require.NoError(t, err)

	q := sqlQueryOver(t, s, testDefinition(t))
	require.NoError(t, q.DeleteAllItems(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_WriteLockHeldElsewhere(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	s := testStore(t)

	other, err := Open(s.Path())
	require.NoError(t, err)
	defer other.Close()

	locked, err := other.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.lock.Unlock()

	cancel()
	_, err = s.Insert(ctx, map[string]any{"name": "blocked"})
	assert.Error(t, err)
}
