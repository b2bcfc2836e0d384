package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lazyquery/internal/storage"
)

var addCmd = &cobra.Command{
	Use:   "add property=value...",
	Short: "Add an item and commit it",
	Long: `Add one item with the given property values and commit it.

Properties not named keep their declared defaults.

Examples:
  lazyquery add name="write docs" hours=3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	index, err := s.container.AddItem(ctx)
	if err != nil {
		return err
	}
	it, err := s.container.Item(ctx, index)
	if err != nil {
		return err
	}
	if err := applyAssignments(s.container, it, args); err != nil {
		s.container.Discard()
		return err
	}
	id := it.Value(storage.KeyPropertyID)
	if err := s.container.Commit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added item %v\n", id)
	return nil
}
