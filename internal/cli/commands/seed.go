package commands

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"lazyquery/internal/item"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert generated items into the store",
	Long: `Insert generated items, useful for exercising batching and caching.

Every declared property gets a value derived from the item number.

Examples:
  lazyquery seed --count 5000`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 1000, "number of items to insert")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	def := s.container.Definition()
	base := time.Now().UTC().Truncate(time.Hour)
	rows := make([]map[string]any, 0, seedCount)
	for i := range seedCount {
		values := make(map[string]any)
		for _, p := range def.Properties() {
			if p.ReadOnly || p.Type == nil {
				continue
			}
			switch {
			case p.Type == item.TypeOf[time.Time]():
				values[p.ID] = base.Add(time.Duration(i) * time.Hour)
			case p.Type.Kind() == reflect.String:
				values[p.ID] = fmt.Sprintf("%s-%06d", p.ID, i)
			case p.Type.Kind() == reflect.Int:
				values[p.ID] = i % 40
			case p.Type.Kind() == reflect.Float64:
				values[p.ID] = float64(i) / 4
			case p.Type.Kind() == reflect.Bool:
				values[p.ID] = i%3 == 0
			}
		}
		rows = append(rows, values)
	}

	start := time.Now()
	if _, err := s.store.Insert(context.Background(), rows...); err != nil {
		return err
	}
	fmt.Fprintf(out, "Inserted %d items into %s in %v\n", len(rows), s.store.Path(), time.Since(start).Round(time.Millisecond))
	return nil
}
