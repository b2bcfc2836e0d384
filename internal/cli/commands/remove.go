package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var removeSort []string

var removeCmd = &cobra.Command{
	Use:   "remove <index>...",
	Short: "Remove the items at the given indices",
	Long: `Remove the items at the given view indices and commit.

Removals are buffered until commit, so indices refer to the view before
any of them is applied.

Examples:
  lazyquery remove 0 4 9`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringSliceVar(&removeSort, "sort", nil, "sort keys as property[:asc|:desc]")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	indices := make([]int, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", a, err)
		}
		indices = append(indices, i)
	}

	s, err := openSession(removeSort)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	for _, i := range indices {
		if err := s.container.RemoveItem(ctx, i); err != nil {
			s.container.Discard()
			return fmt.Errorf("remove %d: %w", i, err)
		}
	}
	if err := s.container.Commit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d items\n", len(indices))
	return nil
}
