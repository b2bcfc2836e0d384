package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lazyquery/internal/item"
	"lazyquery/internal/storage"
)

var (
	listFrom  int
	listCount int
	listSort  []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print a page of items",
	Long: `Print a page of items in view order.

Examples:
  lazyquery list
  lazyquery list --from 200 --count 50
  lazyquery list --sort hours:desc --sort name`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVar(&listFrom, "from", 0, "index of the first item")
	listCmd.Flags().IntVarP(&listCount, "count", "n", 20, "number of items to print")
	listCmd.Flags().StringSliceVar(&listSort, "sort", nil, "sort keys as property[:asc|:desc]")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(listSort)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	size, err := s.container.Size(ctx)
	if err != nil {
		return err
	}
	items, err := s.container.Items(ctx, listFrom, listCount)
	if err != nil {
		return err
	}

	columns := []string{storage.KeyPropertyID}
	for _, id := range s.container.PropertyIDs() {
		if id != storage.KeyPropertyID {
			columns = append(columns, id)
		}
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "#\t%s\n", strings.Join(columns, "\t"))
	for i, it := range items {
		fmt.Fprintf(w, "%d\t%s\n", listFrom+i, strings.Join(row(it, columns), "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "(%d of %d items)\n", len(items), size)
	return nil
}

func row(it *item.Item, columns []string) []string {
	cells := make([]string, 0, len(columns))
	for _, id := range columns {
		cells = append(cells, formatValue(it.Value(id)))
	}
	return cells
}
