package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyquery/internal/common"
	"lazyquery/internal/item"
)

func newTaskDefinition(t *testing.T) *Definition {
	t.Helper()
	def := NewDefinition(100)
	require.NoError(t, def.AddProperty("name", item.TypeOf[string](), "", false, true))
	require.NoError(t, def.AddProperty("assignee", item.TypeOf[string](), "nobody", false, true))
	require.NoError(t, def.AddProperty("estimate", item.TypeOf[int](), 0, false, false))
	return def
}

func TestNewDefinition_BatchSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 100, NewDefinition(100).BatchSize())
	assert.Equal(t, DefaultBatchSize, NewDefinition(0).BatchSize())
	assert.Equal(t, DefaultBatchSize, NewDefinition(-3).BatchSize())
}

func TestDefinition_AddProperty(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		def := newTaskDefinition(t)
		assert.ErrorIs(t, def.AddProperty("name", item.TypeOf[string](), "", false, false), common.ErrExists)
	})

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(1)
		assert.ErrorIs(t, def.AddProperty("", nil, nil, false, false), common.ErrInvalidProperty)
	})

	t.Run("ids that need escaping in JSON", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(1)
		for _, id := range []string{"a\x01b", "tab\there", `say "hi"`, `back\slash`, "line\u2028sep", "bad\xffutf8"} {
			assert.ErrorIs(t, def.AddProperty(id, nil, nil, false, true), common.ErrInvalidProperty, "id %q", id)
		}
		require.NoError(t, def.AddProperty("due date", nil, nil, false, true))
		require.NoError(t, def.AddProperty("größe <&>", nil, nil, false, true))
	})

	t.Run("bad default", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(1)
		assert.ErrorIs(t, def.AddProperty("n", item.TypeOf[int](), "seven", false, false), common.ErrTypeMismatch)
	})

	t.Run("reserved ids are read-only and unsortable", func(t *testing.T) {
		t.Parallel()
		def := NewDefinition(1)
		require.NoError(t, def.AddProperty(item.DebugPropertyIDBatchIndex, item.TypeOf[int](), 0, false, true))
		p, ok := def.Property(item.DebugPropertyIDBatchIndex)
		require.True(t, ok)
		assert.True(t, p.ReadOnly)
		assert.False(t, p.Sortable)
	})
}

func TestDefinition_RemoveProperty(t *testing.T) {
	t.Parallel()
	def := newTaskDefinition(t)

	require.NoError(t, def.RemoveProperty("assignee"))
	assert.Equal(t, []string{"name", "estimate"}, def.PropertyIDs())
	p, ok := def.Property("estimate")
	require.True(t, ok)
	assert.Equal(t, "estimate", p.ID)

	assert.ErrorIs(t, def.RemoveProperty("assignee"), common.ErrNotFound)
}

func TestDefinition_AddDebugProperties(t *testing.T) {
	t.Parallel()
	def := newTaskDefinition(t)
	require.NoError(t, def.AddDebugProperties())
	require.NoError(t, def.AddDebugProperties(), "adding twice is idempotent")

	assert.Equal(t, []string{
		"name", "assignee", "estimate",
		item.PropertyIDItemStatus,
		item.DebugPropertyIDBatchIndex,
		item.DebugPropertyIDQueryIndex,
		item.DebugPropertyIDBatchQueryTime,
	}, def.PropertyIDs())
	assert.Equal(t, []string{"name", "assignee"}, def.SortablePropertyIDs())
}

func TestDefinition_NewItem(t *testing.T) {
	t.Parallel()
	def := newTaskDefinition(t)
	require.NoError(t, def.AddDebugProperties())

	it := def.NewItem(map[string]any{
		"name":     "alpha",
		"estimate": float64(3),
		"ignored":  true,
	})

	assert.Equal(t, "alpha", it.Value("name"))
	assert.Equal(t, "nobody", it.Value("assignee"))
	assert.Equal(t, 3, it.Value("estimate"))
	assert.Nil(t, it.Property("ignored"))

	status, ok := it.Status()
	assert.True(t, ok)
	assert.Equal(t, item.StatusNone, status)
	assert.True(t, it.Property(item.PropertyIDItemStatus).ReadOnly())
}

func TestSortKeys(t *testing.T) {
	t.Parallel()

	keys, err := SortKeys([]string{"name", "assignee"}, []bool{true, false})
	require.NoError(t, err)
	assert.Equal(t, []SortKey{{"name", true}, {"assignee", false}}, keys)
	assert.Equal(t, "assignee:desc", keys[1].String())

	_, err = SortKeys([]string{"name"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidSortSpec)

	keys, err = SortKeys(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestValidateSortKeys(t *testing.T) {
	t.Parallel()
	def := newTaskDefinition(t)

	assert.NoError(t, ValidateSortKeys(def, []SortKey{{"name", true}}))
	assert.ErrorIs(t, ValidateSortKeys(def, []SortKey{{"estimate", true}}), common.ErrInvalidSortSpec)
	assert.ErrorIs(t, ValidateSortKeys(def, []SortKey{{"missing", true}}), common.ErrInvalidSortSpec)
}
