package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lazyquery/internal/storage"
)

var setSort []string

var setCmd = &cobra.Command{
	Use:   "set <index> property=value...",
	Short: "Change properties of the item at an index",
	Long: `Change properties of the item at the given view index and commit.

The index is resolved in the order given by --sort (or the native sort).

Examples:
  lazyquery set 0 hours=5
  lazyquery set --sort hours:desc 3 done=true`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringSliceVar(&setSort, "sort", nil, "sort keys as property[:asc|:desc]")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", args[0], err)
	}

	s, err := openSession(setSort)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	it, err := s.container.Item(ctx, index)
	if err != nil {
		return err
	}
	if err := applyAssignments(s.container, it, args[1:]); err != nil {
		s.container.Discard()
		return err
	}
	id := it.Value(storage.KeyPropertyID)
	if err := s.container.Commit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated item %v\n", id)
	return nil
}
