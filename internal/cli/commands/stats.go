package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"lazyquery/internal/view"
)

var (
	statsSweep   bool
	statsMetrics bool
	statsSort    []string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store size and view cache counters",
	Long: `Show the store size and the counters of a fresh view.

With --sweep every item is read forward and then backward, which exercises
batch loading and cache eviction. With --metrics the counters are printed
in the Prometheus text exposition format instead.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsSweep, "sweep", false, "read every item forward then backward")
	statsCmd.Flags().BoolVar(&statsMetrics, "metrics", false, "print counters in Prometheus text format")
	statsCmd.Flags().StringSliceVar(&statsSort, "sort", nil, "sort keys as property[:asc|:desc]")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(statsSort)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	size, err := s.container.Size(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	if statsSweep {
		for i := 0; i < size; i++ {
			if _, err := s.container.Item(ctx, i); err != nil {
				return err
			}
		}
		for i := size - 1; i >= 0; i-- {
			if _, err := s.container.Item(ctx, i); err != nil {
				return err
			}
		}
	}
	elapsed := time.Since(start)

	if statsMetrics {
		reg := prometheus.NewRegistry()
		if err := reg.Register(view.NewCollector(s.container.View(), prometheus.Labels{"store": s.store.Path()})); err != nil {
			return err
		}
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, fam := range families {
			if _, err := expfmt.MetricFamilyToText(out, fam); err != nil {
				return err
			}
		}
		return nil
	}

	st := s.container.View().Stats()
	fmt.Fprintf(out, "Store: %s\n", s.store.Path())
	fmt.Fprintf(out, "Items: %d\n", size)
	fmt.Fprintf(out, "Batch size: %d\n", s.container.BatchSize())
	fmt.Fprintf(out, "Max cache size: %d\n", s.container.View().MaxCacheSize())
	fmt.Fprintf(out, "Queries: %d\n", st.QueryCount)
	fmt.Fprintf(out, "Batch loads: %d\n", st.BatchLoads)
	fmt.Fprintf(out, "Cache hits: %d\n", st.CacheHits)
	fmt.Fprintf(out, "Cache misses: %d\n", st.CacheMisses)
	fmt.Fprintf(out, "Evictions: %d\n", st.Evictions)
	fmt.Fprintf(out, "Cached items: %d\n", st.CacheSize)
	fmt.Fprintf(out, "Listeners: %d\n", st.Listeners)
	if statsSweep {
		fmt.Fprintf(out, "Sweep time: %v\n", elapsed.Round(time.Millisecond))
	}
	return nil
}
