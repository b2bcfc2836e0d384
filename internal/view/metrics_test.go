package view

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	v, _ := newTestView(t, 30, 10, 10)
	mustItem(t, v, 0)
	mustItem(t, v, 10)
	require.NoError(t, mustItem(t, v, 10).SetValue("name", "edited"))
	_, err := v.AddItem(context.Background())
	require.NoError(t, err)

	c := NewCollector(v, prometheus.Labels{"view": "tasks"})
	assert.Equal(t, 11, testutil.CollectAndCount(c))

	const want = `
# HELP lazyquery_view_batch_loads_total Batches loaded from queries
# TYPE lazyquery_view_batch_loads_total counter
lazyquery_view_batch_loads_total{view="tasks"} 2
# HELP lazyquery_view_cache_evictions_total Items evicted from the cache
# TYPE lazyquery_view_cache_evictions_total counter
lazyquery_view_cache_evictions_total{view="tasks"} 10
# HELP lazyquery_view_cache_hits_total Item reads served from the cache
# TYPE lazyquery_view_cache_hits_total counter
lazyquery_view_cache_hits_total{view="tasks"} 1
# HELP lazyquery_view_pending_items Buffered edits by kind
# TYPE lazyquery_view_pending_items gauge
lazyquery_view_pending_items{kind="added",view="tasks"} 1
lazyquery_view_pending_items{kind="modified",view="tasks"} 1
lazyquery_view_pending_items{kind="removed",view="tasks"} 0
`
	err = testutil.CollectAndCompare(c, strings.NewReader(want),
		"lazyquery_view_batch_loads_total",
		"lazyquery_view_cache_evictions_total",
		"lazyquery_view_cache_hits_total",
		"lazyquery_view_pending_items",
	)
	assert.NoError(t, err)
}

func TestCollector_Registers(t *testing.T) {
	v, _ := newTestView(t, 5, 10, 10)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(v, nil)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 9)
}
